package world

// EventType определяет тип события жизненного цикла чанка
type EventType uint8

const (
	EventTypeLoading    EventType = iota // Начата загрузка или генерация
	EventTypeLoaded                      // Чанк вставлен в мир
	EventTypeLoadFailed                  // Загрузка не удалась
	EventTypeUnloaded                    // Чанк выгружен
	EventTypeModified                    // Содержимое изменено
)

func (t EventType) String() string {
	switch t {
	case EventTypeLoading:
		return "loading"
	case EventTypeLoaded:
		return "loaded"
	case EventTypeLoadFailed:
		return "load_failed"
	case EventTypeUnloaded:
		return "unloaded"
	case EventTypeModified:
		return "modified"
	default:
		return "unknown"
	}
}

// Event - событие канала мира. Обрабатывается одним потребителем в порядке поступления.
type Event interface {
	GetType() EventType
}

// EventLoading отправляется перед загрузкой чанка
type EventLoading struct {
	Pos ChunkPos
}

// GetType возвращает тип события
func (e EventLoading) GetType() EventType { return EventTypeLoading }

// EventLoaded отправляется после вставки чанка в мир
type EventLoaded struct {
	Pos ChunkPos
}

// GetType возвращает тип события
func (e EventLoaded) GetType() EventType { return EventTypeLoaded }

// EventLoadFailed отправляется, если генерация или чтение из хранилища не удались
type EventLoadFailed struct {
	Pos       ChunkPos
	Err       error
	Permanent bool // позиция больше не будет генерироваться
}

// GetType возвращает тип события
func (e EventLoadFailed) GetType() EventType { return EventTypeLoadFailed }

// EventUnloaded отправляется после удаления чанка из мира
type EventUnloaded struct {
	Pos ChunkPos
}

// GetType возвращает тип события
func (e EventUnloaded) GetType() EventType { return EventTypeUnloaded }

// EventModified несёт изменённый чанк и соседей, чьи граничные грани затронуты.
// Touched отсортирован и не содержит повторов.
type EventModified struct {
	Touched []ChunkPos
}

// GetType возвращает тип события
func (e EventModified) GetType() EventType { return EventTypeModified }
