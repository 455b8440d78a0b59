package vec

// Box - выровненный по осям параллелепипед в целочисленных координатах.
// Min включительно, Max исключительно.
type Box struct {
	Min Vec3
	Max Vec3
}

// NewBox строит Box по двум углам в любом порядке (оба включительно)
func NewBox(a, b Vec3) Box {
	return Box{
		Min: Vec3{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max: Vec3{X: max(a.X, b.X) + 1, Y: max(a.Y, b.Y) + 1, Z: max(a.Z, b.Z) + 1},
	}
}

// Size возвращает размеры по осям
func (b Box) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Empty возвращает true, если объём равен нулю
func (b Box) Empty() bool {
	return b.Max.X <= b.Min.X || b.Max.Y <= b.Min.Y || b.Max.Z <= b.Min.Z
}

// Volume возвращает число клеток внутри
func (b Box) Volume() int {
	if b.Empty() {
		return 0
	}
	s := b.Size()
	return s.X * s.Y * s.Z
}

// Contains проверяет, лежит ли точка внутри
func (b Box) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X < b.Max.X &&
		p.Y >= b.Min.Y && p.Y < b.Max.Y &&
		p.Z >= b.Min.Z && p.Z < b.Max.Z
}

// Intersect возвращает пересечение двух Box (может быть пустым)
func (b Box) Intersect(o Box) Box {
	return Box{
		Min: Vec3{X: max(b.Min.X, o.Min.X), Y: max(b.Min.Y, o.Min.Y), Z: max(b.Min.Z, o.Min.Z)},
		Max: Vec3{X: min(b.Max.X, o.Max.X), Y: min(b.Max.Y, o.Max.Y), Z: min(b.Max.Z, o.Max.Z)},
	}
}

// Translate сдвигает Box на вектор
func (b Box) Translate(d Vec3) Box {
	return Box{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Index возвращает линейный индекс точки p внутри Box (порядок X, затем Z, затем Y).
// Точка должна лежать внутри.
func (b Box) Index(p Vec3) int {
	s := b.Size()
	d := p.Sub(b.Min)
	return d.X + s.X*(d.Z+s.Z*d.Y)
}
