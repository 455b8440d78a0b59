package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/metrics"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Значения по умолчанию
const (
	DefaultEventBuffer           = 4096
	DefaultMaxGenerationAttempts = 3
	DefaultGenerationConcurrency = 8
)

// ChunkStore хранит изменённые чанки, вытесненные из памяти
type ChunkStore interface {
	// Load возвращает (nil, false, nil), если чанка нет в хранилище
	Load(pos ChunkPos) (*RawChunk, bool, error)
	Save(pos ChunkPos, raw *RawChunk) error
}

// Options настраивает World
type Options struct {
	Seed                  int64
	EventBuffer           int
	MaxGenerationAttempts int
	GenerationConcurrency int
	Store                 ChunkStore
	Debug                 DebugSink
	Metrics               *metrics.Recorder
	Logger                *logging.Logger
}

// World - карта чанков: единственный источник истины о резидентных чанках.
// Экземпляр создаётся при запуске и явно передаётся компонентам.
type World struct {
	registry *block.Registry
	gen      Generator
	store    ChunkStore
	seed     int64

	chunks *chunkIndex
	flight singleflight.Group
	genSem *semaphore.Weighted

	failMu      sync.Mutex
	failures    map[ChunkPos]int
	maxAttempts int

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	debug   DebugSink
	metrics *metrics.Recorder
	log     *logging.Logger
}

// New создаёт пустой мир
func New(registry *block.Registry, gen Generator, opts Options) *World {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.MaxGenerationAttempts <= 0 {
		opts.MaxGenerationAttempts = DefaultMaxGenerationAttempts
	}
	if opts.GenerationConcurrency <= 0 {
		opts.GenerationConcurrency = DefaultGenerationConcurrency
	}
	if opts.Debug == nil {
		opts.Debug = NopDebugSink
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetWorldLogger()
	}

	return &World{
		registry:    registry,
		gen:         gen,
		store:       opts.Store,
		seed:        opts.Seed,
		chunks:      newChunkIndex(),
		genSem:      semaphore.NewWeighted(int64(opts.GenerationConcurrency)),
		failures:    make(map[ChunkPos]int),
		maxAttempts: opts.MaxGenerationAttempts,
		events:      make(chan Event, opts.EventBuffer),
		done:        make(chan struct{}),
		debug:       opts.Debug,
		metrics:     opts.Metrics,
		log:         opts.Logger,
	}
}

// Registry возвращает реестр блоков мира
func (w *World) Registry() *block.Registry {
	return w.registry
}

// Seed возвращает зерно генерации
func (w *World) Seed() int64 {
	return w.seed
}

// Events возвращает канал событий. Потребитель должен быть один:
// отправка блокирующая, канал ограничен.
func (w *World) Events() <-chan Event {
	return w.events
}

// Close прекращает доставку событий. Отправители, ожидающие место в канале, освобождаются.
func (w *World) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
	})
}

// Chunk возвращает резидентный чанк без загрузки
func (w *World) Chunk(pos ChunkPos) (*Chunk, bool) {
	return w.chunks.get(pos)
}

// Loaded проверяет, резидентен ли чанк
func (w *World) Loaded(pos ChunkPos) bool {
	_, ok := w.chunks.get(pos)
	return ok
}

// Len возвращает количество резидентных чанков
func (w *World) Len() int {
	return w.chunks.len()
}

// Positions возвращает отсортированный список резидентных чанков
func (w *World) Positions() []ChunkPos {
	return w.chunks.positions()
}

// Failed сообщает, помечена ли позиция как окончательно сбойная
func (w *World) Failed(pos ChunkPos) bool {
	w.failMu.Lock()
	defer w.failMu.Unlock()
	return w.failures[pos] >= w.maxAttempts
}

// GetOrLoad возвращает чанк, генерируя его при отсутствии.
// Одновременные запросы одной позиции выполняют одну генерацию и получают один и тот же чанк.
// Общая загрузка не зависит от отмены ctx отдельного вызывающего: отменённый вызов
// возвращает ctx.Err(), остальные дожидаются результата.
func (w *World) GetOrLoad(ctx context.Context, pos ChunkPos) (*Chunk, error) {
	if c, ok := w.chunks.get(pos); ok {
		return c, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w.Failed(pos) {
		return nil, fmt.Errorf("%w: %v помечен как сбойный", ErrGenerationFailed, pos)
	}

	shared := context.WithoutCancel(ctx)
	ch := w.flight.DoChan(pos.String(), func() (interface{}, error) {
		// Повторная проверка: чанк мог появиться, пока ждали очередь singleflight
		if c, ok := w.chunks.get(pos); ok {
			return c, nil
		}
		return w.load(shared, pos)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Chunk), nil
	}
}

func (w *World) load(ctx context.Context, pos ChunkPos) (*Chunk, error) {
	seq := w.chunks.sequence(pos)

	seq.Lock()
	w.emit(EventLoading{Pos: pos})
	// хранилище читается под замком порядка: Unload сохраняет чанк, не отпуская его
	raw, fromStore, err := w.restore(pos)
	seq.Unlock()

	if err == nil && raw == nil {
		raw, err = w.produce(ctx, pos)
	}
	if err != nil {
		permanent := false
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			permanent = w.recordFailure(pos)
		}
		if permanent {
			w.log.Error("Чанк %v помечен как сбойный после %d попыток: %v", pos, w.maxAttempts, err)
		} else {
			w.log.Warn("Не удалось загрузить чанк %v: %v", pos, err)
		}
		seq.Lock()
		w.emit(EventLoadFailed{Pos: pos, Err: err, Permanent: permanent})
		seq.Unlock()
		return nil, err
	}

	seq.Lock()
	defer seq.Unlock()
	c, inserted := w.chunks.insert(newChunk(pos, raw))
	if inserted {
		if fromStore {
			c.modified.Store(true)
		}
		w.clearFailures(pos)
		w.metrics.ChunkLoaded(fromStore)
		w.log.Debug("Чанк %v загружен (из хранилища: %v)", pos, fromStore)
		w.emit(EventLoaded{Pos: pos})
	}
	return c, nil
}

// restore читает чанк из хранилища; (nil, false, nil), если его там нет
func (w *World) restore(pos ChunkPos) (*RawChunk, bool, error) {
	if w.store == nil {
		return nil, false, nil
	}
	stored, ok, err := w.store.Load(pos)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v: хранилище: %w", ErrGenerationFailed, pos, err)
	}
	if !ok {
		return nil, false, nil
	}
	return stored, true, nil
}

// produce генерирует чанк, соблюдая лимит одновременных генераций
func (w *World) produce(ctx context.Context, pos ChunkPos) (*RawChunk, error) {
	if err := w.genSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer w.genSem.Release(1)

	start := time.Now()
	raw, err := w.generate(ctx, pos)
	w.metrics.Generation(err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}
	if err := w.validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v: %w", ErrGenerationFailed, pos, err)
	}
	return raw, nil
}

func (w *World) generate(ctx context.Context, pos ChunkPos) (raw *RawChunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = fmt.Errorf("%w: %v: panic: %v", ErrGenerationFailed, pos, r)
		}
	}()

	raw, err = w.gen.Generate(ctx, pos, w.seed)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v: %w", ErrGenerationFailed, pos, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %v: генератор вернул nil", ErrGenerationFailed, pos)
	}
	return raw, nil
}

func (w *World) validate(raw *RawChunk) error {
	for i, c := range raw.Cells {
		if !w.registry.Valid(c.ID()) {
			return fmt.Errorf("%w: id %d в ячейке %d", ErrUnknownBlock, c.ID(), i)
		}
	}
	return nil
}

// recordFailure увеличивает счётчик неудач. Возвращает true, если лимит исчерпан.
func (w *World) recordFailure(pos ChunkPos) bool {
	w.failMu.Lock()
	defer w.failMu.Unlock()
	w.failures[pos]++
	return w.failures[pos] >= w.maxAttempts
}

func (w *World) clearFailures(pos ChunkPos) {
	w.failMu.Lock()
	delete(w.failures, pos)
	w.failMu.Unlock()
}

// ReadBlock возвращает ID блока. Никогда не запускает загрузку.
func (w *World) ReadBlock(pos vec.Vec3) (block.BlockID, error) {
	c, err := w.ReadCell(pos)
	if err != nil {
		return block.AirID, err
	}
	return c.ID(), nil
}

// ReadCell возвращает ячейку вместе с освещением
func (w *World) ReadCell(pos vec.Vec3) (Cell, error) {
	cp, local := Split(pos)
	c, ok := w.chunks.get(cp)
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrChunkNotLoaded, cp)
	}
	g, err := c.Read()
	if err != nil {
		return 0, err
	}
	cell := g.Cell(local.X, local.Y, local.Z)
	g.Release()
	return cell, nil
}

// Unload удаляет чанк, если у него нет гардов и ожидающих заданий.
// Изменённый чанк сохраняется в хранилище до того, как позицию можно будет загрузить снова.
func (w *World) Unload(pos ChunkPos) error {
	seq := w.chunks.sequence(pos)
	seq.Lock()
	defer seq.Unlock()

	c, err := w.chunks.remove(pos)
	if err != nil {
		if errors.Is(err, ErrUnloadBlocked) {
			w.metrics.UnloadBlocked()
		}
		return fmt.Errorf("%w: %v", err, pos)
	}

	w.metrics.ChunkUnloaded()
	w.log.Debug("Чанк %v выгружен", pos)

	var saveErr error
	if w.store != nil && c.Modified() {
		if err := w.store.Save(pos, c.snapshot()); err != nil {
			w.log.Error("Не удалось сохранить чанк %v: %v", pos, err)
			saveErr = fmt.Errorf("сохранение %v: %w", pos, err)
		}
	}

	w.emit(EventUnloaded{Pos: pos})
	return saveErr
}

// emit отправляет событие потребителю и дублирует его в отладочный канал
func (w *World) emit(ev Event) {
	w.debug.Emit(eventCategory(ev), ev.GetType().String(), eventFields(ev))
	select {
	case w.events <- ev:
	case <-w.done:
	}
}
