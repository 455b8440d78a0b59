// Package pipeline связывает мир, трекер и мешер: читает события мира,
// раздаёт готовые чанки пулу воркеров и отдаёт свежие меши по запросу Drain.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/mesher"
	"github.com/annel0/voxelcore/internal/metrics"
	"github.com/annel0/voxelcore/internal/observability"
	"github.com/annel0/voxelcore/internal/tracker"
	"github.com/annel0/voxelcore/internal/world"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxInFlight - сколько заданий может быть выдано и не забрано через Drain
const DefaultMaxInFlight = 64

// ErrAlreadyStarted возвращается при повторном Start
var ErrAlreadyStarted = errors.New("pipeline already started")

// Options настраивает сервис
type Options struct {
	MaxInFlight int
	Workers     int
	Debug       world.DebugSink
	Metrics     *metrics.Recorder
	Logger      *logging.Logger
}

// Update - результат для рендерера: новый меш либо удаление
type Update struct {
	Pos     world.ChunkPos
	Version uint64
	Buffer  *mesher.VertexBuffer
	Removed bool
}

type result struct {
	job      tracker.Job
	buf      *mesher.VertexBuffer
	elapsed  time.Duration
	err      error
	panicked interface{}
}

// Service - конвейер меширования. Трекер и очередь удалений защищены mu;
// воркеры возвращают результаты через completed, ёмкость которого равна MaxInFlight.
type Service struct {
	world   *world.World
	tracker *tracker.Tracker
	build   func(mesher.Source) *mesher.VertexBuffer
	pool    pond.Pool

	maxInFlight int
	debug       world.DebugSink
	metrics     *metrics.Recorder
	log         *logging.Logger

	mu       sync.Mutex
	inFlight int
	removals []world.ChunkPos

	completed chan result
	wake      chan struct{}

	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// New создаёт сервис; работа начинается после Start
func New(w *world.World, m *mesher.Mesher, opts Options) *Service {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Debug == nil {
		opts.Debug = world.NopDebugSink
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetPipelineLogger()
	}

	return &Service{
		world:       w,
		tracker:     tracker.New(),
		build:       m.Build,
		pool:        pond.NewPool(opts.Workers),
		maxInFlight: opts.MaxInFlight,
		debug:       opts.Debug,
		metrics:     opts.Metrics,
		log:         opts.Logger,
		completed:   make(chan result, opts.MaxInFlight),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// Start запускает горутину-потребителя событий мира
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go s.consume(ctx)
	s.log.Info("Конвейер меширования запущен (в полёте до %d заданий)", s.maxInFlight)
	return nil
}

// Stop останавливает потребителя и дожидается воркеров.
// Незабранные результаты остаются в Drain.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		started, cancel := s.started, s.cancel
		s.started = true // повторный Start после Stop запрещён
		s.mu.Unlock()

		if started {
			cancel()
			<-s.done
		}
		s.pool.StopAndWait()
		s.log.Info("Конвейер меширования остановлен")
	})
}

func (s *Service) consume(ctx context.Context) {
	defer close(s.done)
	events := s.world.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			s.apply(ev)
		case <-s.wake:
		}
		s.dispatch(ctx)
	}
}

func (s *Service) apply(ev world.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Apply(ev)
	if e, ok := ev.(world.EventUnloaded); ok {
		s.removals = append(s.removals, e.Pos)
		s.debug.Emit(world.CategoryMesher, "remove", map[string]interface{}{"pos": e.Pos.String()})
	}
}

// dispatch выдаёт готовые задания, пока не исчерпан лимит в полёте.
// Соседство закрепляется здесь, до постановки в пул: ожидающее в очереди задание
// уже блокирует выгрузку своих чанков. Снимает закрепление воркер.
func (s *Service) dispatch(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var retry []tracker.Job
	for s.inFlight < s.maxInFlight {
		job, ok := s.tracker.PopReady()
		if !ok {
			break
		}
		n, err := s.world.PinNeighborhood(job.Pos)
		if err != nil {
			// событие о выгрузке ещё не дошло до трекера
			s.log.Debug("Задание %v отложено: %v", job.Pos, err)
			retry = append(retry, job)
			continue
		}

		s.inFlight++
		s.metrics.MeshDispatched()
		s.debug.Emit(world.CategoryMesher, "dispatch", map[string]interface{}{
			"pos":     job.Pos.String(),
			"version": job.Version,
		})
		s.pool.Submit(func() {
			s.completed <- s.run(ctx, job, n)
		})
	}
	for _, job := range retry {
		s.tracker.Retry(job)
	}
}

// run выполняется на воркере и всегда освобождает соседство
func (s *Service) run(ctx context.Context, job tracker.Job, n *world.Neighborhood) (res result) {
	defer n.Release()

	res.job = job
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}

	s.mu.Lock()
	current := s.tracker.Current(job)
	s.mu.Unlock()
	if !current {
		res.err = errStale
		return res
	}

	view, err := n.Acquire()
	if err != nil {
		res.err = err
		return res
	}

	_, span := observability.Tracer().Start(ctx, "mesher.build",
		trace.WithAttributes(
			attribute.Int("chunk.x", job.Pos.X),
			attribute.Int("chunk.y", job.Pos.Y),
			attribute.Int("chunk.z", job.Pos.Z),
			attribute.Int64("chunk.version", int64(job.Version)),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			res.buf = nil
			res.panicked = r
			span.SetStatus(codes.Error, fmt.Sprint(r))
		}
	}()

	start := time.Now()
	res.buf = s.build(view)
	res.elapsed = time.Since(start)
	span.SetAttributes(attribute.Int("mesh.quads", res.buf.Quads()))
	return res
}

var errStale = errors.New("stale job")

// Drain не блокируется: забирает удаления и актуальные меши, накопленные с прошлого вызова.
// Устаревшие результаты отбрасываются. Если мешер запаниковал на воркере,
// паника повторяется здесь, в горутине вызывающего.
func (s *Service) Drain() []Update {
	s.mu.Lock()

	var out []Update
	for _, pos := range s.removals {
		out = append(out, Update{Pos: pos, Removed: true})
	}
	s.removals = nil

	var panicked interface{}
	freed := 0
loop:
	for {
		select {
		case res := <-s.completed:
			freed++
			s.inFlight--
			switch {
			case res.panicked != nil:
				if panicked == nil {
					panicked = res.panicked
				}
			case errors.Is(res.err, errStale):
				s.metrics.MeshStale()
			case res.err != nil:
				s.metrics.MeshCancelled()
				s.log.Debug("Задание %v отменено: %v", res.job.Pos, res.err)
			case !s.tracker.Current(res.job):
				s.metrics.MeshStale()
				s.debug.Emit(world.CategoryMesher, "stale", map[string]interface{}{
					"pos":     res.job.Pos.String(),
					"version": res.job.Version,
				})
			default:
				s.metrics.MeshCompleted(res.elapsed, len(res.buf.Vertices))
				s.debug.Emit(world.CategoryMesher, "complete", map[string]interface{}{
					"pos":      res.job.Pos.String(),
					"version":  res.job.Version,
					"quads":    res.buf.Quads(),
					"duration": res.elapsed.String(),
				})
				out = append(out, Update{Pos: res.job.Pos, Version: res.job.Version, Buffer: res.buf})
			}
		default:
			break loop
		}
	}
	s.mu.Unlock()

	if freed > 0 {
		s.signal()
	}
	if panicked != nil {
		s.log.Error("Паника мешера: %v", panicked)
		panic(panicked)
	}
	return out
}

// signal будит потребителя, чтобы выдать задания на освободившиеся места
func (s *Service) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stats - снимок состояния конвейера
type Stats struct {
	InFlight int
	Ready    int
	Tracked  int
}

// Stats возвращает текущее состояние
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		InFlight: s.inFlight,
		Ready:    s.tracker.Pending(),
		Tracked:  s.tracker.Len(),
	}
}

// State возвращает состояние позиции в трекере
func (s *Service) State(pos world.ChunkPos) tracker.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.State(pos)
}
