package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/annel0/voxelcore/internal/vec"
)

// MemoryAnchorRepo реализует AnchorRepo в памяти.
// Используется по умолчанию и в тестах; данные теряются при перезапуске.
type MemoryAnchorRepo struct {
	mu   sync.RWMutex
	data map[string]vec.Vec3
}

// NewMemoryAnchorRepo создаёт пустой репозиторий
func NewMemoryAnchorRepo() *MemoryAnchorRepo {
	return &MemoryAnchorRepo{data: make(map[string]vec.Vec3)}
}

func (r *MemoryAnchorRepo) Save(ctx context.Context, id string, pos vec.Vec3) error {
	if err := validateAnchorID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[id] = pos
	return nil
}

func (r *MemoryAnchorRepo) Load(ctx context.Context, id string) (vec.Vec3, bool, error) {
	if err := validateAnchorID(id); err != nil {
		return vec.Vec3{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return vec.Vec3{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.data[id]
	return pos, ok, nil
}

func (r *MemoryAnchorRepo) Delete(ctx context.Context, id string) error {
	if err := validateAnchorID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return fmt.Errorf("%w: %s", ErrAnchorNotFound, id)
	}
	delete(r.data, id)
	return nil
}

// BatchSave проверяет все записи до записи: батч применяется целиком или никак
func (r *MemoryAnchorRepo) BatchSave(ctx context.Context, anchors map[string]vec.Vec3) error {
	if len(anchors) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id := range anchors {
		if err := validateAnchorID(id); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, pos := range anchors {
		r.data[id] = pos
	}
	return nil
}

func (r *MemoryAnchorRepo) All(ctx context.Context) (map[string]vec.Vec3, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]vec.Vec3, len(r.data))
	for id, pos := range r.data {
		out[id] = pos
	}
	return out, nil
}

// Count возвращает число сохранённых якорей
func (r *MemoryAnchorRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func (r *MemoryAnchorRepo) Close() error { return nil }
