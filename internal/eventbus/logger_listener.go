package eventbus

import (
	"context"

	"github.com/annel0/voxelcore/internal/logging"
)

// StartLoggingListener подписывается на события выбранных категорий (пусто значит все)
// и пишет их в лог компонента "debug". Функция неблокирующая.
func StartLoggingListener(bus EventBus, categories ...string) (Subscription, error) {
	log := logging.GetDebugLogger()
	sub, err := bus.Subscribe(context.Background(), Filter{Sources: categories}, func(ctx context.Context, ev *Envelope) {
		log.Debug("[%s] %s %s", ev.Source, ev.EventType, ev.Payload)
	})
	if err != nil {
		return nil, err
	}
	logging.Info("🪵 LoggingListener: подписка на отладочные события активирована")
	return sub, nil
}
