package util

import (
	"fmt"
	"sort"
)

// SplinePoint - опорная точка кусочно-линейного сплайна
type SplinePoint struct {
	X float64
	Y float64
}

// Spline отображает значение шума в высоту рельефа
type Spline struct {
	points []SplinePoint
}

// NewSpline создаёт сплайн; точки сортируются по X. Нужны минимум две точки.
func NewSpline(points ...SplinePoint) (*Spline, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("сплайну нужны минимум 2 точки, получено %d", len(points))
	}
	ps := make([]SplinePoint, len(points))
	copy(ps, points)
	sort.Slice(ps, func(i, j int) bool { return ps[i].X < ps[j].X })
	for i := 1; i < len(ps); i++ {
		if ps[i].X == ps[i-1].X {
			return nil, fmt.Errorf("повторяющаяся точка сплайна x=%v", ps[i].X)
		}
	}
	return &Spline{points: ps}, nil
}

// Eval возвращает значение сплайна; вне диапазона значение зажимается крайними точками
func (s *Spline) Eval(x float64) float64 {
	ps := s.points
	if x <= ps[0].X {
		return ps[0].Y
	}
	last := ps[len(ps)-1]
	if x >= last.X {
		return last.Y
	}
	i := sort.Search(len(ps), func(i int) bool { return ps[i].X >= x })
	a, b := ps[i-1], ps[i]
	t := (x - a.X) / (b.X - a.X)
	return a.Y + (b.Y-a.Y)*t
}
