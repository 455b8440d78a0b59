package world

import (
	"fmt"
	"sort"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
)

// Edit - изменение одного блока в пакете
type Edit struct {
	Pos vec.Vec3
	ID  block.BlockID
}

// WriteBlock записывает блок. Эксклюзивно блокируется только владеющий чанк.
// Если значение изменилось, отправляется EventModified с чанком и соседями,
// чьи граничные грани затронуты. Запись того же значения событий не порождает.
func (w *World) WriteBlock(pos vec.Vec3, id block.BlockID) error {
	return w.WriteBlocks([]Edit{{Pos: pos, ID: id}})
}

// WriteBlocks применяет пакет изменений по одному чанку за раз в каноническом порядке
// и отправляет одно событие с объединением затронутых чанков.
// Если какой-то чанк не загружен, пакет не применяется вовсе.
func (w *World) WriteBlocks(edits []Edit) error {
	for _, e := range edits {
		if !w.registry.Valid(e.ID) {
			return fmt.Errorf("%w: %d в %v", ErrUnknownBlock, e.ID, e.Pos)
		}
	}

	groups, order, err := w.groupEdits(edits)
	if err != nil {
		return err
	}

	touched := make(map[ChunkPos]struct{})
	applied := 0
	var firstErr error
	for _, cp := range order {
		g := groups[cp]
		guard, err := g.chunk.Write()
		if err != nil {
			// чанк выгрузили между разрешением и записью
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, e := range g.edits {
			_, local := Split(e.Pos)
			if guard.Set(local.X, local.Y, local.Z, e.ID) {
				applied++
				markTouched(touched, cp, local)
			}
		}
		guard.Release()
	}

	w.finishEdit(touched, applied)
	return firstErr
}

// SetLight записывает освещение ячейки. Точка входа для внешнего распространения света.
func (w *World) SetLight(pos vec.Vec3, blockLight, skyLight uint8) error {
	if blockLight > MaxLight || skyLight > MaxLight {
		return fmt.Errorf("%w: свет (%d, %d) в %v", ErrOutOfRange, blockLight, skyLight, pos)
	}

	cp, local := Split(pos)
	c, ok := w.chunks.get(cp)
	if !ok {
		return fmt.Errorf("%w: %v", ErrChunkNotLoaded, cp)
	}
	guard, err := c.Write()
	if err != nil {
		return err
	}
	changed := guard.SetLight(local.X, local.Y, local.Z, blockLight, skyLight)
	guard.Release()

	touched := make(map[ChunkPos]struct{})
	applied := 0
	if changed {
		applied = 1
		markTouched(touched, cp, local)
	}
	w.finishEdit(touched, applied)
	return nil
}

type editGroup struct {
	chunk *Chunk
	edits []Edit
}

// groupEdits разбивает изменения по чанкам и проверяет, что все они загружены
func (w *World) groupEdits(edits []Edit) (map[ChunkPos]*editGroup, []ChunkPos, error) {
	groups := make(map[ChunkPos]*editGroup)
	var order []ChunkPos
	for _, e := range edits {
		cp := ChunkOf(e.Pos)
		g, ok := groups[cp]
		if !ok {
			c, loaded := w.chunks.get(cp)
			if !loaded {
				return nil, nil, fmt.Errorf("%w: %v", ErrChunkNotLoaded, cp)
			}
			g = &editGroup{chunk: c}
			groups[cp] = g
			order = append(order, cp)
		}
		g.edits = append(g.edits, e)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })
	return groups, order, nil
}

func (w *World) finishEdit(touched map[ChunkPos]struct{}, applied int) {
	if applied == 0 {
		return
	}
	w.metrics.Edits(applied)

	list := make([]ChunkPos, 0, len(touched))
	for p := range touched {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Less(list[j]) })
	w.emit(EventModified{Touched: list})
}

// markTouched добавляет чанк и соседей, граничащих с изменённой ячейкой
func markTouched(set map[ChunkPos]struct{}, cp ChunkPos, local vec.Vec3) {
	set[cp] = struct{}{}
	if local.X == 0 {
		set[cp.Offset(NegX)] = struct{}{}
	}
	if local.X == ChunkMask {
		set[cp.Offset(PosX)] = struct{}{}
	}
	if local.Y == 0 {
		set[cp.Offset(NegY)] = struct{}{}
	}
	if local.Y == ChunkMask {
		set[cp.Offset(PosY)] = struct{}{}
	}
	if local.Z == 0 {
		set[cp.Offset(NegZ)] = struct{}{}
	}
	if local.Z == ChunkMask {
		set[cp.Offset(PosZ)] = struct{}{}
	}
}
