package mesher

import (
	"encoding/binary"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world"
	"github.com/go-gl/mathgl/mgl32"
)

// AABB - ограничивающий объём меша в мировых координатах, для отсечения в рендерере
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Center возвращает центр объёма
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Extent возвращает размеры объёма
func (b AABB) Extent() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// VertexBuffer - результат меширования одного чанка.
// Каждый quad занимает 6 индексов.
type VertexBuffer struct {
	Pos      world.ChunkPos
	Vertices []Vertex
	Indices  []uint32
	Bounds   AABB

	origin  vec.Vec3
	lo, hi  [3]uint32
	hasGeom bool
}

func newBuffer(pos world.ChunkPos, origin vec.Vec3) *VertexBuffer {
	return &VertexBuffer{
		Pos:      pos,
		Vertices: make([]Vertex, 0, 1024),
		Indices:  make([]uint32, 0, 1536),
		origin:   origin,
	}
}

// Quads возвращает число quad'ов (двусторонний quad считается дважды)
func (b *VertexBuffer) Quads() int {
	return len(b.Indices) / 6
}

// Empty сообщает, что в меше нет геометрии
func (b *VertexBuffer) Empty() bool {
	return len(b.Indices) == 0
}

// Bytes сериализует вершины (два little-endian слова на вершину) и затем индексы.
// Одинаковый вход даёт побайтно одинаковый результат.
func (b *VertexBuffer) Bytes() []byte {
	out := make([]byte, 0, len(b.Vertices)*8+len(b.Indices)*4)
	for _, v := range b.Vertices {
		out = binary.LittleEndian.AppendUint32(out, v.PosAO)
		out = binary.LittleEndian.AppendUint32(out, v.Attr)
	}
	for _, i := range b.Indices {
		out = binary.LittleEndian.AppendUint32(out, i)
	}
	return out
}

// addVertex добавляет вершину; координаты в 1/16 блока относительно чанка
func (b *VertexBuffer) addVertex(p [3]uint32, v Vertex) {
	b.Vertices = append(b.Vertices, v)
	if !b.hasGeom {
		b.lo, b.hi, b.hasGeom = p, p, true
		return
	}
	for i := 0; i < 3; i++ {
		b.lo[i] = min(b.lo[i], p[i])
		b.hi[i] = max(b.hi[i], p[i])
	}
}

// finish вычисляет Bounds
func (b *VertexBuffer) finish() *VertexBuffer {
	if !b.hasGeom {
		o := mgl32.Vec3{float32(b.origin.X), float32(b.origin.Y), float32(b.origin.Z)}
		b.Bounds = AABB{Min: o, Max: o}
		return b
	}
	toWorld := func(p [3]uint32) mgl32.Vec3 {
		return mgl32.Vec3{
			float32(b.origin.X) + float32(p[0])/PosScale,
			float32(b.origin.Y) + float32(p[1])/PosScale,
			float32(b.origin.Z) + float32(p[2])/PosScale,
		}
	}
	b.Bounds = AABB{Min: toWorld(b.lo), Max: toWorld(b.hi)}
	return b
}
