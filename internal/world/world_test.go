package world

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorld(t *testing.T, gen Generator) *World {
	t.Helper()
	if gen == nil {
		gen = FlatGenerator{Ground: block.StoneID}
	}
	w := New(block.DefaultRegistry(), gen, Options{Seed: 7})
	t.Cleanup(w.Close)
	return w
}

func drainEvents(w *World) []Event {
	var out []Event
	for {
		select {
		case ev := <-w.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func mustLoad(t *testing.T, w *World, positions ...ChunkPos) {
	t.Helper()
	for _, p := range positions {
		_, err := w.GetOrLoad(context.Background(), p)
		require.NoError(t, err)
	}
}

func TestCellPacking(t *testing.T) {
	c := MakeCell(block.BlockID(0xBEEF), 9, 15)
	assert.Equal(t, block.BlockID(0xBEEF), c.ID())
	assert.Equal(t, uint8(9), c.BlockLight())
	assert.Equal(t, uint8(15), c.SkyLight())

	c = c.WithID(block.StoneID)
	assert.Equal(t, block.StoneID, c.ID())
	assert.Equal(t, uint8(9), c.BlockLight(), "смена ID не трогает свет")

	c = c.WithLight(3, 4)
	assert.Equal(t, block.StoneID, c.ID())
	assert.Equal(t, uint8(3), c.BlockLight())
	assert.Equal(t, uint8(4), c.SkyLight())
}

func TestSplitNegativeCoords(t *testing.T) {
	cp, local := Split(vec.New(-1, 32, -33))
	assert.Equal(t, ChunkPos{X: -1, Y: 1, Z: -2}, cp)
	assert.Equal(t, vec.New(31, 0, 31), local)

	assert.Equal(t, 0, Index(0, 0, 0))
	assert.Equal(t, Volume-1, Index(31, 31, 31))
	assert.Equal(t, 1<<10, Index(0, 1, 0))
	assert.Equal(t, 1<<5, Index(0, 0, 1))
}

func TestSides(t *testing.T) {
	for _, s := range Sides {
		assert.Equal(t, s, s.Opposite().Opposite())
		assert.Equal(t, s.Axis(), s.Opposite().Axis())
		assert.NotEqual(t, s.Negative(), s.Opposite().Negative())
		n := s.Normal()
		assert.Equal(t, vec.Vec3{}, n.Add(s.Opposite().Normal()))
	}
	assert.Equal(t, uint8(0x3F), FullMask)
	assert.Equal(t, 2, NegZ.Axis())
	assert.True(t, NegY.Negative())
}

func TestWriteThenRead(t *testing.T) {
	w := newTestWorld(t, nil)
	mustLoad(t, w, ChunkPos{})

	positions := []vec.Vec3{vec.New(0, 0, 0), vec.New(31, 31, 31), vec.New(5, 17, 9)}
	ids := []block.BlockID{block.StoneID, block.GlassID, block.WaterID, block.AirID}
	for _, p := range positions {
		for _, id := range ids {
			require.NoError(t, w.WriteBlock(p, id))
			got, err := w.ReadBlock(p)
			require.NoError(t, err)
			assert.Equal(t, id, got)
		}
	}
}

func TestReadNotLoaded(t *testing.T) {
	w := newTestWorld(t, nil)

	_, err := w.ReadBlock(vec.New(100, 0, 0))
	assert.ErrorIs(t, err, ErrChunkNotLoaded)
	assert.ErrorIs(t, w.WriteBlock(vec.New(100, 0, 0), block.StoneID), ErrChunkNotLoaded)
	assert.Zero(t, w.Len(), "чтение не запускает загрузку")
}

func TestWriteRejectsUnknownBlock(t *testing.T) {
	w := newTestWorld(t, nil)
	mustLoad(t, w, ChunkPos{})
	assert.ErrorIs(t, w.WriteBlock(vec.New(1, 1, 1), block.BlockID(500)), ErrUnknownBlock)
}

func TestGetOrLoadSingleFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	gen := GeneratorFunc(func(ctx context.Context, pos ChunkPos, seed int64) (*RawChunk, error) {
		calls.Add(1)
		<-release
		return NewRawChunk(), nil
	})
	w := newTestWorld(t, gen)
	pos := ChunkPos{X: 3, Y: -1, Z: 2}

	const n = 16
	results := make([]*Chunk, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := w.GetOrLoad(context.Background(), pos)
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, c := range results {
		assert.Same(t, results[0], c)
	}

	var loaded int
	for _, ev := range drainEvents(w) {
		if ev.GetType() == EventTypeLoaded {
			loaded++
		}
	}
	assert.Equal(t, 1, loaded)
}

func TestGenerationFailureIsBounded(t *testing.T) {
	var calls atomic.Int32
	gen := GeneratorFunc(func(ctx context.Context, pos ChunkPos, seed int64) (*RawChunk, error) {
		calls.Add(1)
		return nil, errors.New("шум сломался")
	})
	w := newTestWorld(t, gen)
	pos := ChunkPos{X: 1}

	for i := 0; i < DefaultMaxGenerationAttempts; i++ {
		_, err := w.GetOrLoad(context.Background(), pos)
		assert.ErrorIs(t, err, ErrGenerationFailed)
	}
	assert.True(t, w.Failed(pos))

	_, err := w.GetOrLoad(context.Background(), pos)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, int32(DefaultMaxGenerationAttempts), calls.Load(), "сбойная позиция больше не генерируется")

	events := drainEvents(w)
	last := events[len(events)-1].(EventLoadFailed)
	assert.True(t, last.Permanent)
	assert.Equal(t, pos, last.Pos)
}

func TestGenerationPanicAndBadContent(t *testing.T) {
	w := newTestWorld(t, GeneratorFunc(func(ctx context.Context, pos ChunkPos, seed int64) (*RawChunk, error) {
		if pos.X == 0 {
			panic("boom")
		}
		raw := NewRawChunk()
		raw.Set(1, 2, 3, block.BlockID(9999))
		return raw, nil
	}))

	_, err := w.GetOrLoad(context.Background(), ChunkPos{})
	assert.ErrorIs(t, err, ErrGenerationFailed)

	_, err = w.GetOrLoad(context.Background(), ChunkPos{X: 1})
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, ErrUnknownBlock)
	assert.Zero(t, w.Len())
}

func TestCancelledLoadIsNotCountedAsFailure(t *testing.T) {
	w := newTestWorld(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.GetOrLoad(ctx, ChunkPos{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, w.Failed(ChunkPos{}))
}

func TestCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	w := newTestWorld(t, GeneratorFunc(func(ctx context.Context, pos ChunkPos, seed int64) (*RawChunk, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return FlatGenerator{Ground: block.StoneID}.Generate(ctx, pos, seed)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := w.GetOrLoad(ctx, ChunkPos{})
		first <- err
	}()
	<-started

	second := make(chan *Chunk, 1)
	go func() {
		c, err := w.GetOrLoad(context.Background(), ChunkPos{})
		assert.NoError(t, err)
		second <- c
	}()

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("отменённый вызов не вернулся")
	}

	close(release)
	select {
	case c := <-second:
		require.NotNil(t, c)
		assert.True(t, w.Loaded(ChunkPos{}))
	case <-time.After(2 * time.Second):
		t.Fatal("второй вызов не получил чанк")
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, w.Failed(ChunkPos{}))
}

// gateSink задерживает первое событие указанного вида, пока тест не откроет шлюз
type gateSink struct {
	kind    string
	once    sync.Once
	entered chan struct{}
	open    chan struct{}
}

func (g *gateSink) Emit(_, kind string, _ map[string]interface{}) {
	if kind != g.kind {
		return
	}
	g.once.Do(func() {
		close(g.entered)
		<-g.open
	})
}

func TestLifecycleEventsKeepPerChunkOrder(t *testing.T) {
	sink := &gateSink{kind: EventTypeLoaded.String(), entered: make(chan struct{}), open: make(chan struct{})}
	w := New(block.DefaultRegistry(), FlatGenerator{Ground: block.StoneID}, Options{Debug: sink})
	t.Cleanup(w.Close)
	pos := ChunkPos{X: 2}

	loaded := make(chan error, 1)
	go func() {
		_, err := w.GetOrLoad(context.Background(), pos)
		loaded <- err
	}()
	<-sink.entered // чанк уже в карте, событие Loaded ещё не отправлено

	unloaded := make(chan error, 1)
	go func() { unloaded <- w.Unload(pos) }()

	select {
	case err := <-unloaded:
		t.Fatalf("выгрузка обогнала событие загрузки: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(sink.open)
	require.NoError(t, <-loaded)
	require.NoError(t, <-unloaded)

	var kinds []EventType
	for _, ev := range drainEvents(w) {
		kinds = append(kinds, ev.GetType())
	}
	assert.Equal(t, []EventType{EventTypeLoading, EventTypeLoaded, EventTypeUnloaded}, kinds)
	assert.False(t, w.Loaded(pos))
}

func TestUnloadBlockedByReadGuard(t *testing.T) {
	w := newTestWorld(t, nil)
	pos := ChunkPos{}
	mustLoad(t, w, pos)
	c, ok := w.Chunk(pos)
	require.True(t, ok)

	g, err := c.Read()
	require.NoError(t, err)

	err = w.Unload(pos)
	assert.ErrorIs(t, err, ErrUnloadBlocked)
	assert.True(t, w.Loaded(pos), "чанк с живым гардом остаётся в мире")

	// гард освобождается из другой горутины
	done := make(chan struct{})
	go func() {
		g.Release()
		close(done)
	}()
	<-done

	require.NoError(t, w.Unload(pos))
	assert.False(t, w.Loaded(pos))

	_, err = c.Read()
	assert.ErrorIs(t, err, ErrChunkNotLoaded, "старая ссылка видит выгрузку")
	assert.ErrorIs(t, w.Unload(pos), ErrChunkNotLoaded)
}

func TestUnloadBlockedByWriteGuardAndPin(t *testing.T) {
	w := newTestWorld(t, nil)
	pos := ChunkPos{}
	mustLoad(t, w, pos)
	for _, s := range Sides {
		mustLoad(t, w, pos.Offset(s))
	}
	c, _ := w.Chunk(pos)

	wg, err := c.Write()
	require.NoError(t, err)
	assert.ErrorIs(t, w.Unload(pos), ErrUnloadBlocked)
	wg.Release()

	n, err := w.PinNeighborhood(pos)
	require.NoError(t, err)
	assert.ErrorIs(t, w.Unload(pos), ErrUnloadBlocked)
	assert.ErrorIs(t, w.Unload(pos.Offset(PosY)), ErrUnloadBlocked, "соседи тоже закреплены")

	n.Release()
	n.Release()
	assert.Zero(t, c.Pins())
	require.NoError(t, w.Unload(pos))
}

func TestWriteEmitsModifiedWithBoundaryNeighbors(t *testing.T) {
	w := newTestWorld(t, nil)
	pos := ChunkPos{Y: 1}
	mustLoad(t, w, pos)
	drainEvents(w)

	// внутренняя ячейка затрагивает только свой чанк
	require.NoError(t, w.WriteBlock(vec.New(5, 40, 5), block.StoneID))
	// угловая ячейка (0, 63, 31) граничит с -X, +Y и +Z
	require.NoError(t, w.WriteBlock(vec.New(0, 63, 31), block.StoneID))
	// повторная запись того же значения ничего не меняет
	require.NoError(t, w.WriteBlock(vec.New(0, 63, 31), block.StoneID))

	events := drainEvents(w)
	require.Len(t, events, 2)

	first := events[0].(EventModified)
	assert.Equal(t, []ChunkPos{pos}, first.Touched)

	second := events[1].(EventModified)
	assert.Equal(t, []ChunkPos{
		pos.Offset(NegX),
		pos,
		pos.Offset(PosZ),
		pos.Offset(PosY),
	}, second.Touched)

	c, _ := w.Chunk(pos)
	assert.True(t, c.Modified())
	assert.Equal(t, uint64(2), c.Version())
}

func TestWriteBlocksBatch(t *testing.T) {
	w := newTestWorld(t, nil)
	a, b := ChunkPos{Y: 1}, ChunkPos{X: 1, Y: 1}
	mustLoad(t, w, a, b)
	drainEvents(w)

	edits := []Edit{
		{Pos: vec.New(40, 33, 3), ID: block.SandID},
		{Pos: vec.New(3, 33, 3), ID: block.StoneID},
		{Pos: vec.New(4, 33, 3), ID: block.DirtID},
	}
	require.NoError(t, w.WriteBlocks(edits))

	for _, e := range edits {
		got, err := w.ReadBlock(e.Pos)
		require.NoError(t, err)
		assert.Equal(t, e.ID, got)
	}

	events := drainEvents(w)
	require.Len(t, events, 1, "один пакет - одно событие")
	assert.Equal(t, []ChunkPos{a, b}, events[0].(EventModified).Touched)

	// пакет с незагруженным чанком не применяется
	err := w.WriteBlocks([]Edit{
		{Pos: vec.New(5, 33, 5), ID: block.StoneID},
		{Pos: vec.New(500, 33, 5), ID: block.StoneID},
	})
	assert.ErrorIs(t, err, ErrChunkNotLoaded)
	got, _ := w.ReadBlock(vec.New(5, 33, 5))
	assert.Equal(t, block.AirID, got)
	assert.Empty(t, drainEvents(w))
}

func TestSetLight(t *testing.T) {
	w := newTestWorld(t, nil)
	mustLoad(t, w, ChunkPos{})
	drainEvents(w)

	p := vec.New(10, 10, 10)
	require.NoError(t, w.SetLight(p, 12, 3))
	c, err := w.ReadCell(p)
	require.NoError(t, err)
	assert.Equal(t, uint8(12), c.BlockLight())
	assert.Equal(t, uint8(3), c.SkyLight())
	assert.Equal(t, block.AirID, c.ID())

	assert.ErrorIs(t, w.SetLight(p, 16, 0), ErrOutOfRange)
	require.Len(t, drainEvents(w), 1)
}

func TestQueryRegionSpansChunks(t *testing.T) {
	w := newTestWorld(t, nil)
	mustLoad(t, w, ChunkPos{}, ChunkPos{X: -1})

	require.NoError(t, w.WriteBlock(vec.New(-1, 2, 2), block.SandID))
	require.NoError(t, w.WriteBlock(vec.New(0, 2, 2), block.StoneID))

	box := vec.NewBox(vec.New(-2, 1, 1), vec.New(1, 3, 3))
	r, err := w.QueryRegion(box)
	require.NoError(t, err)
	assert.Len(t, r.Cells, 4*3*3)
	assert.Equal(t, block.SandID, r.Block(vec.New(-1, 2, 2)))
	assert.Equal(t, block.StoneID, r.Block(vec.New(0, 2, 2)))
	assert.Equal(t, block.AirID, r.Block(vec.New(1, 2, 2)))
	assert.Equal(t, uint8(MaxLight), r.At(vec.New(-2, 1, 1)).SkyLight())

	_, err = w.QueryRegion(vec.NewBox(vec.New(0, 0, 0), vec.New(40, 0, 0)))
	assert.ErrorIs(t, err, ErrChunkNotLoaded)

	empty, err := w.QueryRegion(vec.Box{})
	require.NoError(t, err)
	assert.Empty(t, empty.Cells)
}

func TestNeighborhoodView(t *testing.T) {
	w := newTestWorld(t, nil)
	center := ChunkPos{}
	mustLoad(t, w, center)
	for _, s := range Sides {
		mustLoad(t, w, center.Offset(s))
	}

	require.NoError(t, w.WriteBlock(vec.New(32, 0, 0), block.GlassID)) // +X сосед
	require.NoError(t, w.WriteBlock(vec.New(0, -1, 0), block.WaterID)) // -Y сосед
	require.NoError(t, w.WriteBlock(vec.New(4, 4, 4), block.DirtID))

	_, err := w.PinNeighborhood(ChunkPos{X: 5})
	assert.ErrorIs(t, err, ErrChunkNotLoaded)

	n, err := w.PinNeighborhood(center)
	require.NoError(t, err)
	v, err := n.Acquire()
	require.NoError(t, err)

	c, _ := w.Chunk(center)
	assert.Equal(t, 1, c.Readers())

	assert.Equal(t, block.GlassID, v.Cell(32, 0, 0).ID())
	assert.Equal(t, block.WaterID, v.Cell(0, -1, 0).ID())
	assert.Equal(t, block.DirtID, v.Cell(4, 4, 4).ID())
	assert.Equal(t, Cell(0), v.Cell(-1, -1, 0), "диагональный сосед читается как воздух")
	for _, s := range Sides {
		assert.True(t, v.HasNeighbor(s))
	}

	// писатель ждёт, пока вид держит гарды
	written := make(chan struct{})
	go func() {
		_ = w.WriteBlock(vec.New(1, 1, 1), block.StoneID)
		close(written)
	}()
	select {
	case <-written:
		t.Fatal("запись не должна пройти при живых гардах чтения")
	case <-time.After(20 * time.Millisecond):
	}

	n.Release()
	<-written
	assert.Zero(t, c.Readers())
	assert.Zero(t, c.Pins())
}

func TestNewViewMissingNeighbor(t *testing.T) {
	center := NewRawChunk()
	var sides [SideCount]*RawChunk
	sides[PosX] = NewRawChunk()
	v := NewView(ChunkPos{}, center, sides)

	assert.True(t, v.HasNeighbor(PosX))
	assert.False(t, v.HasNeighbor(NegX))
	assert.Panics(t, func() { v.Cell(-1, 0, 0) })
}

func TestCompactRoundTrip(t *testing.T) {
	raw := NewRawChunk()
	raw.Fill(MakeCell(block.StoneID, 0, 0))
	runs := Compact(raw)
	require.Len(t, runs, 1)
	assert.Equal(t, Volume, runs[0].Count)
	_, homogeneous := Homogeneous(raw)
	assert.True(t, homogeneous)

	// последняя ячейка чанка не разбивает хвостовой прогон
	raw.Set(31, 31, 31, block.GlassID)
	raw.SetCell(17, 3, 9, MakeCell(block.TorchID, 14, 15))
	runs = Compact(raw)
	require.Len(t, runs, 4)
	assert.Equal(t, block.GlassID, runs[3].Cell.ID())
	assert.Equal(t, 1, runs[3].Count)

	// ячейка в середине делит прогон камня на два
	raw.Set(0, 31, 31, block.GlassID)
	runs = Compact(raw)
	assert.Len(t, runs, 6)

	back, err := Decompact(runs)
	require.NoError(t, err)
	assert.Equal(t, raw.Cells, back.Cells)

	_, err = Decompact([]Run{{Cell: 0, Count: 10}})
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = Decompact([]Run{{Cell: 0, Count: Volume + 1}})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestChunksInBox(t *testing.T) {
	got := ChunksInBox(vec.NewBox(vec.New(-1, 0, 0), vec.New(32, 0, 0)))
	assert.Equal(t, []ChunkPos{{X: -1}, {X: 0}, {X: 1}}, got)
	assert.Nil(t, ChunksInBox(vec.Box{}))
}
