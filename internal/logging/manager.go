package logging

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Компоненты движка, у которых есть собственный логгер
const (
	ComponentWorld    = "world"
	ComponentMesher   = "mesher"
	ComponentPipeline = "pipeline"
	ComponentStorage  = "storage"
	ComponentHTTP     = "http"
	ComponentDebug    = "debug"
)

// LoggerManager выдаёт логгеры компонентов и хранит переопределения уровней.
// Переопределение действует и на логгеры, созданные позже.
type LoggerManager struct {
	mu        sync.RWMutex
	loggers   map[string]*Logger
	overrides map[string]LogLevel
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

func newLoggerManager() *LoggerManager {
	return &LoggerManager{
		loggers:   make(map[string]*Logger),
		overrides: make(map[string]LogLevel),
	}
}

// GetLoggerManager возвращает общий менеджер логгеров процесса
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = newLoggerManager()
	})
	return globalManager
}

// Get возвращает логгер компонента. Если файл логов открыть не удалось,
// компонент пишет только в консоль логгера по умолчанию.
func (lm *LoggerManager) Get(component string) *Logger {
	lm.mu.RLock()
	l, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if ok {
		return l
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if l, ok := lm.loggers[component]; ok {
		return l
	}

	l, err := NewLogger(component)
	if err != nil {
		defaultLogger.log(WARN, "логгер %s работает без файла: %v", component, err)
		l = &Logger{
			component:       component,
			consoleLogger:   defaultLogger.consoleLogger,
			minConsoleLevel: INFO,
			minFileLevel:    ERROR,
		}
	}
	if level, ok := lm.overrides[component]; ok {
		l.minConsoleLevel = level
	}
	lm.loggers[component] = l
	return l
}

// SetLevel задаёт консольный уровень компонента, в том числе ещё не созданного
func (lm *LoggerManager) SetLevel(component string, level LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.overrides[component] = level
	if l, ok := lm.loggers[component]; ok {
		l.minConsoleLevel = level
	}
}

// ApplyLevels применяет уровни из конфигурации вида {"mesher": "debug"}
func (lm *LoggerManager) ApplyLevels(levels map[string]string) error {
	for component, name := range levels {
		level, ok := lookupLevel(name)
		if !ok {
			return fmt.Errorf("неизвестный уровень %q для компонента %s", name, component)
		}
		lm.SetLevel(component, level)
	}
	return nil
}

// Level возвращает текущий консольный уровень компонента
func (lm *LoggerManager) Level(component string) LogLevel {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	if l, ok := lm.loggers[component]; ok {
		return l.minConsoleLevel
	}
	if level, ok := lm.overrides[component]; ok {
		return level
	}
	return INFO
}

// CloseAll закрывает файлы всех логгеров и забывает их; переопределения остаются
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []string
	for component, l := range lm.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", component, err))
		}
	}
	lm.loggers = make(map[string]*Logger)
	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("закрытие логгеров: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Components возвращает отсортированный список созданных логгеров
func (lm *LoggerManager) Components() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	out := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		out = append(out, component)
	}
	sort.Strings(out)
	return out
}

func lookupLevel(name string) (LogLevel, bool) {
	switch strings.ToUpper(name) {
	case "TRACE":
		return TRACE, true
	case "DEBUG":
		return DEBUG, true
	case "INFO":
		return INFO, true
	case "WARN":
		return WARN, true
	case "ERROR":
		return ERROR, true
	}
	return INFO, false
}

// GetComponentLogger возвращает логгер компонента из общего менеджера
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().Get(component)
}

func GetWorldLogger() *Logger    { return GetComponentLogger(ComponentWorld) }
func GetMesherLogger() *Logger   { return GetComponentLogger(ComponentMesher) }
func GetPipelineLogger() *Logger { return GetComponentLogger(ComponentPipeline) }
func GetStorageLogger() *Logger  { return GetComponentLogger(ComponentStorage) }
func GetHTTPLogger() *Logger     { return GetComponentLogger(ComponentHTTP) }
func GetDebugLogger() *Logger    { return GetComponentLogger(ComponentDebug) }
