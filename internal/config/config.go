package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/annel0/voxelcore/internal/mesher"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Loader    LoaderConfig    `yaml:"loader"`
	Mesher    MesherConfig    `yaml:"mesher"`
	Registry  RegistryConfig  `yaml:"registry"`
	Anchors   AnchorsConfig   `yaml:"anchors"`
	Debug     DebugConfig     `yaml:"debug"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type WorldConfig struct {
	Seed                  int64  `yaml:"seed"`
	EventBuffer           int    `yaml:"event_buffer"`
	MaxGenerationAttempts int    `yaml:"max_generation_attempts"`
	GenerationConcurrency int    `yaml:"generation_concurrency"`
	StoreDir              string `yaml:"store_dir"` // пусто: BadgerDB в памяти
	Caves                 bool   `yaml:"caves"`
}

type LoaderConfig struct {
	LoadRadius     int `yaml:"load_radius"`
	UnloadRadius   int `yaml:"unload_radius"`
	LoadsPerTick   int `yaml:"loads_per_tick"`
	UnloadsPerTick int `yaml:"unloads_per_tick"`
	Workers        int `yaml:"workers"`
	TickMillis     int `yaml:"tick_ms"`
}

type MesherConfig struct {
	Mode        string `yaml:"mode"` // simple | greedy
	Workers     int    `yaml:"workers"`
	MaxInFlight int    `yaml:"max_in_flight"`
}

type RegistryConfig struct {
	Manifest string `yaml:"manifest"` // пусто: встроенный набор блоков
}

// AnchorsConfig - где хранить якоря загрузчика между запусками
type AnchorsConfig struct {
	Backend string `yaml:"backend"` // memory | mysql | redis
	DSN     string `yaml:"dsn"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

type DebugConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Categories []string `yaml:"categories"`
	Buffer     int      `yaml:"buffer"`
	NATSURL    string   `yaml:"nats_url"`
	Stream     string   `yaml:"stream"`
	Retention  int      `yaml:"retention_minutes"`
}

// MetricsConfig - HTTP сервер: /metrics, /health и служебный /api
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
}

type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
	// уровни отдельных компонентов: world, mesher, pipeline, storage, http, debug
	Components map[string]string `yaml:"components"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Seed:                  1337,
			EventBuffer:           4096,
			MaxGenerationAttempts: 3,
			GenerationConcurrency: 8,
			Caves:                 true,
		},
		Loader: LoaderConfig{
			LoadRadius:     4,
			UnloadRadius:   6,
			LoadsPerTick:   16,
			UnloadsPerTick: 16,
			Workers:        4,
			TickMillis:     50,
		},
		Mesher: MesherConfig{
			Mode:        "greedy",
			MaxInFlight: 64,
		},
		Anchors: AnchorsConfig{
			Backend: "memory",
			Prefix:  "voxel:",
		},
		Debug: DebugConfig{
			Buffer:    1024,
			Stream:    "VOXEL_DEBUG",
			Retention: 60,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "voxeld",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// MesherMode возвращает режим мешера с приоритетом: config -> env -> default
func (c *Config) MesherMode() (mesher.Mode, error) {
	return mesher.ParseMode(getStringWithEnvFallback(c.Mesher.Mode, "VOXEL_MESHER_MODE", "greedy"))
}

// MetricsAddr возвращает адрес /metrics; пустая строка отключает сервер
func (c *Config) MetricsAddr() string {
	return getStringWithEnvFallback(c.Metrics.Addr, "VOXEL_METRICS_ADDR", "")
}

// Seed возвращает сид мира с поддержкой fallback значений
func (c *Config) Seed() int64 {
	if c.World.Seed != 0 {
		return c.World.Seed
	}
	if envVal := os.Getenv("VOXEL_SEED"); envVal != "" {
		if seed, err := strconv.ParseInt(envVal, 10, 64); err == nil {
			return seed
		}
	}
	return 1337
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	if _, err := c.MesherMode(); err != nil {
		return err
	}
	if c.Loader.LoadRadius < 0 {
		return fmt.Errorf("loader.load_radius не может быть отрицательным: %d", c.Loader.LoadRadius)
	}
	if c.Loader.UnloadRadius != 0 && c.Loader.UnloadRadius <= c.Loader.LoadRadius {
		return fmt.Errorf("loader.unload_radius (%d) должен быть больше load_radius (%d)",
			c.Loader.UnloadRadius, c.Loader.LoadRadius)
	}
	if c.Mesher.MaxInFlight < 0 || c.Mesher.Workers < 0 {
		return fmt.Errorf("mesher: отрицательные лимиты")
	}
	switch c.Anchors.Backend {
	case "", "memory", "mysql", "mariadb", "redis":
	default:
		return fmt.Errorf("anchors.backend: неизвестный бэкенд %q", c.Anchors.Backend)
	}
	return nil
}

// getStringWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getStringWithEnvFallback(configVal, envVar, defaultVal string) string {
	if configVal != "" {
		return configVal
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultVal
}

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", пытается прочитать путь из ENV VOXEL_CONFIG, иначе возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return cfg, nil // конфиг не задан: использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
