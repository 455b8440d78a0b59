package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/world"
	"github.com/google/uuid"
)

// ErrBusClosed возвращается при публикации в закрытую шину
var ErrBusClosed = errors.New("event bus closed")

// DebugChannel публикует отладочные события ядра в шину.
// Emit не блокирует: события низкого приоритета при переполнении отбрасываются.
// События, которые не удалось сериализовать или опубликовать, учитываются в Dropped.
type DebugChannel struct {
	bus     EventBus
	enabled map[string]bool
	dropped atomic.Uint64
	log     *logging.Logger
}

var _ world.DebugSink = (*DebugChannel)(nil)

// NewDebugChannel создаёт канал. Пустой список categories включает все категории.
func NewDebugChannel(bus EventBus, categories ...string) *DebugChannel {
	d := &DebugChannel{bus: bus, log: logging.GetDebugLogger()}
	if len(categories) > 0 {
		d.enabled = make(map[string]bool, len(categories))
		for _, c := range categories {
			d.enabled[c] = true
		}
	}
	return d
}

// Enabled сообщает, публикуется ли категория
func (d *DebugChannel) Enabled(category string) bool {
	return d.enabled == nil || d.enabled[category]
}

// Emit реализует world.DebugSink
func (d *DebugChannel) Emit(category, kind string, fields map[string]interface{}) {
	if !d.Enabled(category) {
		return
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		d.drop(category, kind, err)
		return
	}
	err = d.bus.Publish(context.Background(), &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    category,
		EventType: kind,
		Version:   1,
		Priority:  0,
		Payload:   payload,
	})
	if err != nil {
		d.drop(category, kind, err)
	}
}

// Dropped возвращает число событий, потерянных до попадания в шину
func (d *DebugChannel) Dropped() uint64 {
	return d.dropped.Load()
}

func (d *DebugChannel) drop(category, kind string, err error) {
	d.dropped.Add(1)
	d.log.Debug("Отладочное событие %s/%s отброшено: %v", category, kind, err)
}

// Fields разбирает полезную нагрузку события
func (e *Envelope) Fields() (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if len(e.Payload) == 0 {
		return fields, nil
	}
	err := json.Unmarshal(e.Payload, &fields)
	return fields, err
}
