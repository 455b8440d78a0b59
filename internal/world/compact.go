package world

import "fmt"

// Run - серия одинаковых ячеек в порядке индексов чанка
type Run struct {
	Cell  Cell
	Count int
}

// Compact сворачивает чанк в серии. Однородный чанк даёт ровно одну серию.
func Compact(raw *RawChunk) []Run {
	runs := make([]Run, 0, 16)
	cur := Run{Cell: raw.Cells[0], Count: 0}
	for _, c := range raw.Cells {
		if c == cur.Cell {
			cur.Count++
			continue
		}
		runs = append(runs, cur)
		cur = Run{Cell: c, Count: 1}
	}
	return append(runs, cur)
}

// Decompact разворачивает серии обратно в чанк
func Decompact(runs []Run) (*RawChunk, error) {
	raw := &RawChunk{}
	i := 0
	for _, r := range runs {
		if r.Count <= 0 || i+r.Count > Volume {
			return nil, fmt.Errorf("%w: серия длиной %d на позиции %d", ErrOutOfRange, r.Count, i)
		}
		for end := i + r.Count; i < end; i++ {
			raw.Cells[i] = r.Cell
		}
	}
	if i != Volume {
		return nil, fmt.Errorf("%w: серии покрывают %d из %d ячеек", ErrOutOfRange, i, Volume)
	}
	return raw, nil
}

// Homogeneous возвращает ячейку, если весь чанк заполнен ею
func Homogeneous(raw *RawChunk) (Cell, bool) {
	first := raw.Cells[0]
	for _, c := range raw.Cells[1:] {
		if c != first {
			return 0, false
		}
	}
	return first, true
}
