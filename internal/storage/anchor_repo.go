package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/voxelcore/internal/vec"
)

// ErrAnchorNotFound возвращается Delete для неизвестного якоря
var ErrAnchorNotFound = errors.New("якорь не найден")

// AnchorRepo хранит позиции якорей загрузчика между запусками.
// Якорь задаётся строковым идентификатором (например, игрок или камера)
// и мировой позицией блока, вокруг которой держатся чанки.
type AnchorRepo interface {
	// Save сохраняет позицию якоря, перезаписывая прежнюю
	Save(ctx context.Context, id string, pos vec.Vec3) error

	// Load возвращает (pos, false, nil), если якорь не сохранялся
	Load(ctx context.Context, id string) (vec.Vec3, bool, error)

	// Delete удаляет якорь; ErrAnchorNotFound если его нет
	Delete(ctx context.Context, id string) error

	// BatchSave сохраняет несколько якорей разом (автосохранение при остановке)
	BatchSave(ctx context.Context, anchors map[string]vec.Vec3) error

	// All возвращает все сохранённые якоря
	All(ctx context.Context) (map[string]vec.Vec3, error)

	Close() error
}

// AnchorConfig выбирает бэкенд репозитория якорей
type AnchorConfig struct {
	Backend string // memory | mysql | redis
	DSN     string // user:pass@tcp(host:port)/db для mysql
	Addr    string // host:port для redis
	Prefix  string // префикс ключей redis
}

// NewAnchorRepo создаёт репозиторий по конфигурации; пустой бэкенд означает память
func NewAnchorRepo(cfg AnchorConfig) (AnchorRepo, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryAnchorRepo(), nil
	case "mysql", "mariadb":
		return NewMariaAnchorRepo(cfg.DSN)
	case "redis":
		return NewRedisAnchorRepo(cfg.Addr, cfg.Prefix)
	default:
		return nil, fmt.Errorf("неизвестный бэкенд якорей: %q", cfg.Backend)
	}
}

func validateAnchorID(id string) error {
	if id == "" {
		return errors.New("пустой идентификатор якоря")
	}
	if len(id) > 64 {
		return fmt.Errorf("идентификатор якоря длиннее 64 символов: %q", id)
	}
	return nil
}
