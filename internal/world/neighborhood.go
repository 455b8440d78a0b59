package world

import (
	"fmt"
	"sync/atomic"

	"github.com/annel0/voxelcore/internal/vec"
)

// Neighborhood - закреплённые центр и 6 соседей по граням.
// Пока закрепление живо, ни один из чанков не может быть выгружен
// (Unload вернёт ErrUnloadBlocked). Соседи ищутся через карту по
// арифметике позиций, сами чанки ссылок друг на друга не хранят.
type Neighborhood struct {
	center *Chunk
	sides  [SideCount]*Chunk

	guards   []*ReadGuard
	released atomic.Bool
}

// PinNeighborhood закрепляет центр и всех соседей. Если кто-то не загружен,
// закрепления снимаются и возвращается ErrChunkNotLoaded.
func (w *World) PinNeighborhood(pos ChunkPos) (*Neighborhood, error) {
	n := &Neighborhood{}

	c, ok := w.chunks.pin(pos)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrChunkNotLoaded, pos)
	}
	n.center = c

	for _, s := range Sides {
		np := pos.Offset(s)
		sc, ok := w.chunks.pin(np)
		if !ok {
			n.unpin()
			return nil, fmt.Errorf("%w: %v (сосед %v)", ErrChunkNotLoaded, np, s)
		}
		n.sides[s] = sc
	}
	return n, nil
}

// Pos возвращает позицию центрального чанка
func (n *Neighborhood) Pos() ChunkPos {
	return n.center.pos
}

// Acquire захватывает гарды чтения на все 7 чанков и возвращает вид для мешера.
// Вызывается на воркере; освобождение через Release допустимо из любой горутины.
func (n *Neighborhood) Acquire() (*View, error) {
	g, err := n.center.Read()
	if err != nil {
		return nil, err
	}
	n.guards = append(n.guards, g)

	v := &View{origin: n.center.pos.Origin(), center: g}
	for _, s := range Sides {
		sg, err := n.sides[s].Read()
		if err != nil {
			n.releaseGuards()
			return nil, err
		}
		n.guards = append(n.guards, sg)
		v.sides[s] = sg
	}
	return v, nil
}

// Release освобождает гарды и снимает закрепления. Повторный вызов ничего не делает.
func (n *Neighborhood) Release() {
	if !n.released.CompareAndSwap(false, true) {
		return
	}
	n.releaseGuards()
	n.unpin()
}

func (n *Neighborhood) releaseGuards() {
	for _, g := range n.guards {
		g.Release()
	}
	n.guards = nil
}

func (n *Neighborhood) unpin() {
	if n.center != nil {
		n.center.pins.Add(-1)
	}
	for _, c := range n.sides {
		if c != nil {
			c.pins.Add(-1)
		}
	}
}

// cellReader - всё, что нужно виду от источника ячеек
type cellReader interface {
	Cell(x, y, z int) Cell
}

// View - доступ на чтение к чанку и его граничным слоям.
// Координаты лежат в [-1, ChunkSize]; ячейка, выходящая за чанк сразу
// по двум осям (диагональный сосед), считается воздухом.
type View struct {
	origin vec.Vec3
	center cellReader
	sides  [SideCount]cellReader
}

// NewView строит вид из сырых данных; nil в sides означает отсутствующего соседа.
// Используется в тестах и инструментах, где нет резидентного мира.
func NewView(pos ChunkPos, center *RawChunk, sides [SideCount]*RawChunk) *View {
	v := &View{origin: pos.Origin(), center: center}
	for i, s := range sides {
		if s != nil {
			v.sides[i] = s
		}
	}
	return v
}

// Origin возвращает мировые координаты ячейки (0,0,0) центрального чанка
func (v *View) Origin() vec.Vec3 {
	return v.origin
}

// HasNeighbor сообщает, доступен ли сосед со стороны side
func (v *View) HasNeighbor(side Side) bool {
	return v.sides[side] != nil
}

// Cell возвращает ячейку по координатам относительно центрального чанка
func (v *View) Cell(x, y, z int) Cell {
	out := 0
	side := Side(0)
	if x < 0 {
		out, side = out+1, NegX
	} else if x >= ChunkSize {
		out, side = out+1, PosX
	}
	if y < 0 {
		out, side = out+1, NegY
	} else if y >= ChunkSize {
		out, side = out+1, PosY
	}
	if z < 0 {
		out, side = out+1, NegZ
	} else if z >= ChunkSize {
		out, side = out+1, PosZ
	}

	switch out {
	case 0:
		return v.center.Cell(x, y, z)
	case 1:
		n := v.sides[side]
		if n == nil {
			panic(fmt.Sprintf("neighbor %v of %v is not available", side, ChunkOf(v.origin)))
		}
		return n.Cell(x&ChunkMask, y&ChunkMask, z&ChunkMask)
	default:
		return 0
	}
}
