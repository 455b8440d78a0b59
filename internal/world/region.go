package world

import (
	"fmt"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
)

// Region - снимок ячеек в параллелепипеде мировых координат.
// Каждый чанк копируется под своей read-блокировкой.
type Region struct {
	Box   vec.Box
	Cells []Cell
}

// At возвращает ячейку по мировой позиции внутри Box
func (r *Region) At(p vec.Vec3) Cell {
	return r.Cells[r.Box.Index(p)]
}

// Block возвращает ID блока по мировой позиции внутри Box
func (r *Region) Block(p vec.Vec3) block.BlockID {
	return r.At(p).ID()
}

// Size возвращает размеры области
func (r *Region) Size() vec.Vec3 {
	return r.Box.Size()
}

// QueryRegion копирует все ячейки box. Если хотя бы один чанк не резидентен,
// возвращается ErrChunkNotLoaded и загрузка не запускается.
func (w *World) QueryRegion(box vec.Box) (*Region, error) {
	region := &Region{Box: box}
	if box.Empty() {
		return region, nil
	}

	positions := ChunksInBox(box)
	chunks := make([]*Chunk, len(positions))
	for i, cp := range positions {
		c, ok := w.chunks.get(cp)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrChunkNotLoaded, cp)
		}
		chunks[i] = c
	}

	region.Cells = make([]Cell, box.Volume())
	for i, c := range chunks {
		g, err := c.Read()
		if err != nil {
			return nil, err
		}
		part := box.Intersect(positions[i].Bounds())
		origin := positions[i].Origin()
		for y := part.Min.Y; y < part.Max.Y; y++ {
			for z := part.Min.Z; z < part.Max.Z; z++ {
				for x := part.Min.X; x < part.Max.X; x++ {
					p := vec.Vec3{X: x, Y: y, Z: z}
					region.Cells[box.Index(p)] = g.Cell(x-origin.X, y-origin.Y, z-origin.Z)
				}
			}
		}
		g.Release()
	}
	return region, nil
}
