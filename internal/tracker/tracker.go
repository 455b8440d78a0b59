// Package tracker следит за состоянием чанков и решает, какие из них
// можно отдавать мешеру. Трекер не потокобезопасен: им владеет одна горутина,
// которая последовательно применяет события мира.
package tracker

import (
	"fmt"

	"github.com/annel0/voxelcore/internal/util"
	"github.com/annel0/voxelcore/internal/world"
)

// State - состояние позиции
type State uint8

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Job - задание на меширование. Version позволяет отбросить результат,
// если чанк или его соседство изменились, пока задание выполнялось.
type Job struct {
	Pos     world.ChunkPos
	Version uint64
}

type entry struct {
	state   State
	mask    uint8 // биты загруженных соседей, world.Side.Bit()
	dirty   bool
	version uint64
}

// Tracker хранит состояние только для позиций, о которых приходили события
type Tracker struct {
	entries map[world.ChunkPos]*entry
	ready   *util.DedupQueue[world.ChunkPos]
	// общий счётчик версий; версии не повторяются и между загрузками одной позиции
	clock uint64
}

// New создаёт пустой трекер
func New() *Tracker {
	return &Tracker{
		entries: make(map[world.ChunkPos]*entry),
		ready:   util.NewDedupQueue[world.ChunkPos](),
	}
}

// Apply применяет событие мира
func (t *Tracker) Apply(ev world.Event) {
	switch e := ev.(type) {
	case world.EventLoading:
		t.loading(e.Pos)
	case world.EventLoaded:
		t.loaded(e.Pos)
	case world.EventLoadFailed:
		t.remove(e.Pos)
	case world.EventUnloaded:
		t.remove(e.Pos)
	case world.EventModified:
		for _, pos := range e.Touched {
			t.modified(pos)
		}
	}
}

func (t *Tracker) loading(pos world.ChunkPos) {
	if e, ok := t.entries[pos]; ok && e.state == StateLoaded {
		return
	}
	t.entries[pos] = &entry{state: StateLoading}
}

func (t *Tracker) loaded(pos world.ChunkPos) {
	e, ok := t.entries[pos]
	if !ok {
		e = &entry{}
		t.entries[pos] = e
	}
	e.state = StateLoaded
	e.mask = 0
	t.touch(e)

	for _, side := range world.Sides {
		npos := pos.Offset(side)
		n, ok := t.entries[npos]
		if !ok || n.state != StateLoaded {
			continue
		}
		e.mask |= side.Bit()
		n.mask |= side.Opposite().Bit()
		t.touch(n)
		t.refresh(npos, n)
	}
	t.refresh(pos, e)
}

// remove возвращает позицию в Unloaded и отвязывает её от соседей
func (t *Tracker) remove(pos world.ChunkPos) {
	e, ok := t.entries[pos]
	if !ok {
		return
	}
	delete(t.entries, pos)
	t.ready.Remove(pos)
	if e.state != StateLoaded {
		return
	}

	for _, side := range world.Sides {
		npos := pos.Offset(side)
		n, ok := t.entries[npos]
		if !ok || n.state != StateLoaded {
			continue
		}
		n.mask &^= side.Opposite().Bit()
		t.touch(n)
		t.refresh(npos, n)
	}
}

func (t *Tracker) modified(pos world.ChunkPos) {
	e, ok := t.entries[pos]
	if !ok || e.state != StateLoaded {
		return
	}
	t.touch(e)
	t.refresh(pos, e)
}

// touch помечает меш устаревшим и выдаёт новую версию
func (t *Tracker) touch(e *entry) {
	t.clock++
	e.version = t.clock
	e.dirty = true
}

// refresh держит очередь готовых в согласии с состоянием позиции
func (t *Tracker) refresh(pos world.ChunkPos, e *entry) {
	if e.state == StateLoaded && e.dirty && e.mask == world.FullMask {
		t.ready.Push(pos)
		return
	}
	t.ready.Remove(pos)
}

// PopReady извлекает следующую готовую позицию и снимает с неё флаг dirty
func (t *Tracker) PopReady() (Job, bool) {
	for {
		pos, ok := t.ready.Pop()
		if !ok {
			return Job{}, false
		}
		e, ok := t.entries[pos]
		if !ok || !e.dirty {
			continue
		}
		e.dirty = false
		return Job{Pos: pos, Version: e.version}, true
	}
}

// Retry возвращает невыданное задание: позиция снова dirty и попадёт в очередь,
// если она всё ещё загружена и окружена. Версия не меняется.
func (t *Tracker) Retry(job Job) {
	e, ok := t.entries[job.Pos]
	if !ok || e.state != StateLoaded {
		return
	}
	e.dirty = true
	t.refresh(job.Pos, e)
}

// Current сообщает, что результат задания всё ещё актуален
func (t *Tracker) Current(job Job) bool {
	e, ok := t.entries[job.Pos]
	return ok && e.state == StateLoaded && e.version == job.Version
}

// State возвращает состояние позиции
func (t *Tracker) State(pos world.ChunkPos) State {
	if e, ok := t.entries[pos]; ok {
		return e.state
	}
	return StateUnloaded
}

// Mask возвращает маску загруженных соседей
func (t *Tracker) Mask(pos world.ChunkPos) uint8 {
	if e, ok := t.entries[pos]; ok {
		return e.mask
	}
	return 0
}

// Dirty сообщает, что меш позиции устарел
func (t *Tracker) Dirty(pos world.ChunkPos) bool {
	e, ok := t.entries[pos]
	return ok && e.dirty
}

// Version возвращает текущую версию позиции
func (t *Tracker) Version(pos world.ChunkPos) uint64 {
	if e, ok := t.entries[pos]; ok {
		return e.version
	}
	return 0
}

// Ready сообщает, что позиция загружена, окружена загруженными соседями и требует меширования
func (t *Tracker) Ready(pos world.ChunkPos) bool {
	return t.ready.Contains(pos)
}

// Pending возвращает число готовых позиций
func (t *Tracker) Pending() int {
	return t.ready.Len()
}

// Len возвращает число отслеживаемых позиций
func (t *Tracker) Len() int {
	return len(t.entries)
}
