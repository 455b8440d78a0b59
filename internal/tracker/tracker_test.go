package tracker

import (
	"testing"

	"github.com/annel0/voxelcore/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadAll(t *Tracker, positions ...world.ChunkPos) {
	for _, p := range positions {
		t.Apply(world.EventLoading{Pos: p})
		t.Apply(world.EventLoaded{Pos: p})
	}
}

func withNeighbors(pos world.ChunkPos) []world.ChunkPos {
	n := pos.Neighbors()
	return append([]world.ChunkPos{pos}, n[:]...)
}

func drain(t *Tracker) []Job {
	var jobs []Job
	for {
		job, ok := t.PopReady()
		if !ok {
			return jobs
		}
		jobs = append(jobs, job)
	}
}

func TestReadyRequiresAllNeighbors(t *testing.T) {
	tr := New()
	center := world.ChunkPos{X: 1, Y: 2, Z: 3}

	tr.Apply(world.EventLoading{Pos: center})
	assert.Equal(t, StateLoading, tr.State(center))
	tr.Apply(world.EventLoaded{Pos: center})
	assert.Equal(t, StateLoaded, tr.State(center))
	assert.True(t, tr.Dirty(center))
	assert.False(t, tr.Ready(center))

	neighbors := center.Neighbors()
	for i, n := range neighbors {
		loadAll(tr, n)
		assert.Equal(t, i == len(neighbors)-1, tr.Ready(center), "сосед %d", i)
	}
	assert.Equal(t, world.FullMask, tr.Mask(center))
	assert.Equal(t, world.PosX.Opposite().Bit(), tr.Mask(neighbors[world.PosX]))

	jobs := drain(tr)
	require.Len(t, jobs, 1, "соседи без полного окружения не готовы")
	assert.Equal(t, center, jobs[0].Pos)
	assert.False(t, tr.Dirty(center))
	assert.True(t, tr.Current(jobs[0]))
}

func TestSingleEditYieldsSingleJob(t *testing.T) {
	tr := New()
	center := world.ChunkPos{}
	loadAll(tr, withNeighbors(center)...)
	drain(tr)

	tr.Apply(world.EventModified{Touched: []world.ChunkPos{center}})
	tr.Apply(world.EventModified{Touched: []world.ChunkPos{center}})
	jobs := drain(tr)
	require.Len(t, jobs, 1)
	assert.Equal(t, center, jobs[0].Pos)

	// изменения незагруженных позиций игнорируются
	tr.Apply(world.EventModified{Touched: []world.ChunkPos{{X: 50}}})
	assert.Equal(t, StateUnloaded, tr.State(world.ChunkPos{X: 50}))
	assert.Empty(t, drain(tr))
}

func TestEditDuringMeshingMakesResultStale(t *testing.T) {
	tr := New()
	center := world.ChunkPos{}
	loadAll(tr, withNeighbors(center)...)

	job, ok := tr.PopReady()
	require.True(t, ok)
	tr.Apply(world.EventModified{Touched: []world.ChunkPos{center}})
	assert.False(t, tr.Current(job))

	next, ok := tr.PopReady()
	require.True(t, ok)
	assert.Equal(t, center, next.Pos)
	assert.Greater(t, next.Version, job.Version)
	assert.True(t, tr.Current(next))
}

func TestUnloadCancelsReadiness(t *testing.T) {
	tr := New()
	center := world.ChunkPos{Y: -1}
	loadAll(tr, withNeighbors(center)...)
	require.True(t, tr.Ready(center))

	gone := center.Offset(world.NegZ)
	tr.Apply(world.EventUnloaded{Pos: gone})
	assert.False(t, tr.Ready(center))
	assert.Equal(t, StateUnloaded, tr.State(gone))
	assert.Equal(t, world.FullMask&^world.NegZ.Bit(), tr.Mask(center))
	assert.Empty(t, drain(tr))

	loadAll(tr, gone)
	jobs := drain(tr)
	require.Len(t, jobs, 1)
	assert.Equal(t, center, jobs[0].Pos)
}

func TestUnloadInvalidatesInFlightJob(t *testing.T) {
	tr := New()
	center := world.ChunkPos{}
	loadAll(tr, withNeighbors(center)...)
	job, ok := tr.PopReady()
	require.True(t, ok)

	tr.Apply(world.EventUnloaded{Pos: center.Offset(world.PosY)})
	assert.False(t, tr.Current(job), "сосед исчез, пока шло меширование")

	tr.Apply(world.EventUnloaded{Pos: center})
	assert.False(t, tr.Current(job))
	assert.Equal(t, 5, tr.Len())
	for _, n := range center.Neighbors() {
		assert.Zero(t, tr.Mask(n))
	}
}

func TestLoadFailedResetsPosition(t *testing.T) {
	tr := New()
	pos := world.ChunkPos{X: 9}
	tr.Apply(world.EventLoading{Pos: pos})
	tr.Apply(world.EventLoadFailed{Pos: pos})
	assert.Equal(t, StateUnloaded, tr.State(pos))
	assert.Zero(t, tr.Len())
	assert.False(t, tr.Current(Job{Pos: pos}))
}

func TestNeighborLoadRemeshesLoadedNeighbors(t *testing.T) {
	tr := New()
	a := world.ChunkPos{}
	loadAll(tr, withNeighbors(a)...)
	b := a.Offset(world.PosX)
	ring := b.Neighbors()
	for _, n := range ring {
		if n != a {
			loadAll(tr, n)
		}
	}
	jobs := drain(tr)
	var got []world.ChunkPos
	for _, j := range jobs {
		got = append(got, j.Pos)
	}
	assert.ElementsMatch(t, []world.ChunkPos{a, b}, got)

	// перезагрузка соседа b снова ставит b в очередь, a не затронут
	tr.Apply(world.EventUnloaded{Pos: b.Offset(world.PosX)})
	loadAll(tr, b.Offset(world.PosX))
	jobs = drain(tr)
	require.Len(t, jobs, 1)
	assert.Equal(t, b, jobs[0].Pos)
	assert.Zero(t, tr.Pending())
}

func TestRetryRequeuesUndispatchedJob(t *testing.T) {
	tr := New()
	center := world.ChunkPos{}
	loadAll(tr, withNeighbors(center)...)

	jobs := drain(tr)
	require.Len(t, jobs, 1)
	assert.False(t, tr.Ready(center))

	tr.Retry(jobs[0])
	assert.True(t, tr.Ready(center))
	assert.True(t, tr.Dirty(center))
	again := drain(tr)
	require.Len(t, again, 1)
	assert.Equal(t, jobs[0], again[0], "версия сохраняется")

	// после выгрузки соседа повтор не ставит позицию в очередь
	tr.Apply(world.EventUnloaded{Pos: center.Offset(world.PosY)})
	tr.Retry(again[0])
	assert.False(t, tr.Ready(center))

	// выгруженная позиция игнорируется
	tr.Apply(world.EventUnloaded{Pos: center})
	tr.Retry(again[0])
	assert.Equal(t, StateUnloaded, tr.State(center))
	assert.Empty(t, drain(tr))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unloaded", StateUnloaded.String())
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "loaded", StateLoaded.String())
}
