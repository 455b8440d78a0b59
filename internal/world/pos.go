package world

import (
	"fmt"

	"github.com/annel0/voxelcore/internal/vec"
)

// Размеры чанка
const (
	ChunkShift = 5
	ChunkSize  = 1 << ChunkShift // 32
	ChunkMask  = ChunkSize - 1
	Volume     = ChunkSize * ChunkSize * ChunkSize
)

// ChunkPos - координаты чанка в сетке чанков (не в блоках)
type ChunkPos struct {
	X int
	Y int
	Z int
}

// Offset возвращает позицию соседа со стороны side
func (p ChunkPos) Offset(side Side) ChunkPos {
	d := side.Normal()
	return ChunkPos{X: p.X + d.X, Y: p.Y + d.Y, Z: p.Z + d.Z}
}

// Neighbors возвращает 6 соседей по граням в порядке сторон
func (p ChunkPos) Neighbors() [SideCount]ChunkPos {
	var out [SideCount]ChunkPos
	for _, s := range Sides {
		out[s] = p.Offset(s)
	}
	return out
}

// Origin возвращает мировые координаты блока (0,0,0) чанка
func (p ChunkPos) Origin() vec.Vec3 {
	return vec.Vec3{X: p.X << ChunkShift, Y: p.Y << ChunkShift, Z: p.Z << ChunkShift}
}

// Less задаёт канонический порядок обхода чанков
func (p ChunkPos) Less(o ChunkPos) bool {
	return p.Vec().Less(o.Vec())
}

// Vec возвращает позицию как вектор
func (p ChunkPos) Vec() vec.Vec3 {
	return vec.Vec3{X: p.X, Y: p.Y, Z: p.Z}
}

func (p ChunkPos) String() string {
	return fmt.Sprintf("chunk(%d,%d,%d)", p.X, p.Y, p.Z)
}

// ChunkOf возвращает чанк, которому принадлежит мировая позиция блока
func ChunkOf(p vec.Vec3) ChunkPos {
	return ChunkPos{X: p.X >> ChunkShift, Y: p.Y >> ChunkShift, Z: p.Z >> ChunkShift}
}

// Split разбивает мировую позицию на чанк и локальное смещение в [0, ChunkSize)
func Split(p vec.Vec3) (ChunkPos, vec.Vec3) {
	return ChunkOf(p), vec.Vec3{X: p.X & ChunkMask, Y: p.Y & ChunkMask, Z: p.Z & ChunkMask}
}

// Index возвращает индекс ячейки в массиве чанка (x | z<<5 | y<<10)
func Index(x, y, z int) int {
	return x | z<<ChunkShift | y<<(2*ChunkShift)
}

// InBounds проверяет, что локальные координаты лежат внутри чанка
func InBounds(x, y, z int) bool {
	return uint(x) < ChunkSize && uint(y) < ChunkSize && uint(z) < ChunkSize
}

// ChunksInBox возвращает отсортированный список чанков, пересекающих box
func ChunksInBox(b vec.Box) []ChunkPos {
	if b.Empty() {
		return nil
	}
	lo := ChunkOf(b.Min)
	hi := ChunkOf(b.Max.Sub(vec.Vec3{X: 1, Y: 1, Z: 1}))

	out := make([]ChunkPos, 0, (hi.X-lo.X+1)*(hi.Y-lo.Y+1)*(hi.Z-lo.Z+1))
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				out = append(out, ChunkPos{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}

// Bounds возвращает область чанка в мировых координатах блоков
func (p ChunkPos) Bounds() vec.Box {
	o := p.Origin()
	return vec.Box{Min: o, Max: o.Add(vec.Vec3{X: ChunkSize, Y: ChunkSize, Z: ChunkSize})}
}
