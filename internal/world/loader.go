package world

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/annel0/voxelcore/internal/util"
	"github.com/annel0/voxelcore/internal/vec"
)

// LoaderOptions настраивает динамическую загрузку чанков вокруг якорей
type LoaderOptions struct {
	LoadRadius     int // Чебышёвский радиус загрузки в чанках
	UnloadRadius   int // Радиус выгрузки, должен быть больше LoadRadius
	LoadsPerTick   int
	UnloadsPerTick int
	Workers        int // Параллельные загрузки
}

// DefaultLoaderOptions возвращает настройки по умолчанию
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		LoadRadius:     4,
		UnloadRadius:   6,
		LoadsPerTick:   16,
		UnloadsPerTick: 16,
		Workers:        4,
	}
}

// TickStats - итог одного тика загрузчика
type TickStats struct {
	Dispatched int // отправлено загрузок
	Unloaded   int // выгружено чанков
	Blocked    int // выгрузок отложено из-за ErrUnloadBlocked
	QueuedLoad int // осталось в очереди загрузки
	QueuedFree int // осталось в очереди выгрузки
}

// Loader поддерживает множество загруженных чанков вокруг якорей (например, игроков).
// Очереди загрузки и выгрузки без повторов: постановка в одну убирает позицию из другой.
type Loader struct {
	world *World
	opts  LoaderOptions
	pool  pond.Pool

	mu      sync.Mutex
	anchors map[string]ChunkPos
	loads   *util.DedupQueue[ChunkPos]
	unloads *util.DedupQueue[ChunkPos]
	pending map[ChunkPos]struct{}
	wg      sync.WaitGroup
}

// NewLoader создаёт загрузчик
func NewLoader(w *World, opts LoaderOptions) *Loader {
	def := DefaultLoaderOptions()
	if opts.LoadRadius < 0 {
		opts.LoadRadius = def.LoadRadius
	}
	if opts.UnloadRadius <= opts.LoadRadius {
		opts.UnloadRadius = opts.LoadRadius + 2
	}
	if opts.LoadsPerTick <= 0 {
		opts.LoadsPerTick = def.LoadsPerTick
	}
	if opts.UnloadsPerTick <= 0 {
		opts.UnloadsPerTick = def.UnloadsPerTick
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}

	return &Loader{
		world:   w,
		opts:    opts,
		pool:    pond.NewPool(opts.Workers),
		anchors: make(map[string]ChunkPos),
		loads:   util.NewDedupQueue[ChunkPos](),
		unloads: util.NewDedupQueue[ChunkPos](),
		pending: make(map[ChunkPos]struct{}),
	}
}

// SetAnchor задаёт или перемещает якорь в мировых координатах блоков
func (l *Loader) SetAnchor(id string, pos vec.Vec3) {
	l.mu.Lock()
	l.anchors[id] = ChunkOf(pos)
	l.mu.Unlock()
}

// RemoveAnchor удаляет якорь
func (l *Loader) RemoveAnchor(id string) {
	l.mu.Lock()
	delete(l.anchors, id)
	l.mu.Unlock()
}

// Tick пересчитывает желаемое множество, ставит загрузки и выгрузки в очереди
// и выполняет не больше LoadsPerTick загрузок (асинхронно) и UnloadsPerTick выгрузок.
func (l *Loader) Tick(ctx context.Context) TickStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	var stats TickStats
	anchors := make([]ChunkPos, 0, len(l.anchors))
	for _, a := range l.anchors {
		anchors = append(anchors, a)
	}

	for _, p := range l.desired(anchors) {
		if l.world.Loaded(p) || l.world.Failed(p) {
			l.unloads.Remove(p)
			continue
		}
		if _, busy := l.pending[p]; busy {
			continue
		}
		l.unloads.Remove(p)
		l.loads.Push(p)
	}

	for _, p := range l.world.Positions() {
		if distance(anchors, p) > l.opts.UnloadRadius {
			l.loads.Remove(p)
			l.unloads.Push(p)
		}
	}

	for stats.Dispatched < l.opts.LoadsPerTick {
		p, ok := l.loads.Pop()
		if !ok {
			break
		}
		if distance(anchors, p) > l.opts.LoadRadius || l.world.Loaded(p) {
			continue
		}
		l.dispatch(ctx, p)
		stats.Dispatched++
	}

	var retry []ChunkPos
	for processed := 0; processed < l.opts.UnloadsPerTick; processed++ {
		p, ok := l.unloads.Pop()
		if !ok {
			break
		}
		if distance(anchors, p) <= l.opts.UnloadRadius {
			continue
		}
		err := l.world.Unload(p)
		switch {
		case err == nil:
			stats.Unloaded++
		case errors.Is(err, ErrUnloadBlocked):
			stats.Blocked++
			retry = append(retry, p)
		case errors.Is(err, ErrChunkNotLoaded):
		default:
			// чанк выгружен, но не сохранён
			stats.Unloaded++
			l.world.log.Error("Выгрузка %v: %v", p, err)
		}
	}
	for _, p := range retry {
		l.unloads.Push(p)
	}

	stats.QueuedLoad = l.loads.Len()
	stats.QueuedFree = l.unloads.Len()
	return stats
}

func (l *Loader) dispatch(ctx context.Context, p ChunkPos) {
	l.pending[p] = struct{}{}
	l.wg.Add(1)
	l.pool.Submit(func() {
		defer l.wg.Done()
		if _, err := l.world.GetOrLoad(ctx, p); err != nil {
			l.world.log.Debug("Загрузка %v не удалась: %v", p, err)
		}
		l.mu.Lock()
		delete(l.pending, p)
		l.mu.Unlock()
	})
}

// Pending возвращает число выполняющихся загрузок
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Wait ждёт завершения всех отправленных загрузок
func (l *Loader) Wait() {
	l.wg.Wait()
}

// Stop дожидается загрузок и останавливает пул
func (l *Loader) Stop() {
	l.pool.StopAndWait()
}

// desired возвращает позиции в радиусе загрузки, ближайшие первыми
func (l *Loader) desired(anchors []ChunkPos) []ChunkPos {
	r := l.opts.LoadRadius
	seen := make(map[ChunkPos]struct{})
	var out []ChunkPos
	for _, a := range anchors {
		for x := a.X - r; x <= a.X+r; x++ {
			for y := a.Y - r; y <= a.Y+r; y++ {
				for z := a.Z - r; z <= a.Z+r; z++ {
					p := ChunkPos{X: x, Y: y, Z: z}
					if _, ok := seen[p]; ok {
						continue
					}
					seen[p] = struct{}{}
					out = append(out, p)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := distance(anchors, out[i]), distance(anchors, out[j])
		if di != dj {
			return di < dj
		}
		return out[i].Less(out[j])
	})
	return out
}

// distance - расстояние Чебышёва до ближайшего якоря; без якорей - бесконечность
func distance(anchors []ChunkPos, p ChunkPos) int {
	best := int(^uint(0) >> 1)
	for _, a := range anchors {
		if d := a.Vec().ChebyshevTo(p.Vec()); d < best {
			best = d
		}
	}
	return best
}
