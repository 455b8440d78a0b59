// Package mesher строит вершинные буферы чанков из снимка соседства.
// Мешер - чистая функция: одинаковый вход даёт побайтно одинаковый буфер.
package mesher

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/cespare/xxhash/v2"
)

// Source - то, что мешер читает: центральный чанк и граничные слои шести соседей.
// Координаты Cell лежат в [-1, ChunkSize].
type Source interface {
	Origin() vec.Vec3
	Cell(x, y, z int) world.Cell
	HasNeighbor(side world.Side) bool
}

var _ Source = (*world.View)(nil)

// ContractViolation - паника при мешировании без полного соседства.
// Планировщик не должен допускать такой вызов.
type ContractViolation struct {
	Pos     world.ChunkPos
	Missing []world.Side
}

func (c *ContractViolation) Error() string {
	names := make([]string, len(c.Missing))
	for i, s := range c.Missing {
		names[i] = s.String()
	}
	return fmt.Sprintf("мешер: у чанка %v нет соседей [%s]", c.Pos, strings.Join(names, " "))
}

// Mesher - настроенный мешер. Безопасен для одновременного использования.
type Mesher struct {
	mode     Mode
	registry *block.Registry
	log      *logging.Logger
}

// New создаёт мешер с логгером компонента "mesher"
func New(mode Mode, registry *block.Registry) *Mesher {
	return &Mesher{mode: mode, registry: registry, log: logging.GetMesherLogger()}
}

// WithLogger возвращает копию мешера с другим логгером
func (m *Mesher) WithLogger(log *logging.Logger) *Mesher {
	cp := *m
	cp.log = log
	return &cp
}

// Mode возвращает режим
func (m *Mesher) Mode() Mode {
	return m.mode
}

// Build строит меш. Нарушение контракта записывается в лог и паника продолжается.
func (m *Mesher) Build(src Source) *VertexBuffer {
	defer func() {
		if r := recover(); r != nil {
			if cv, ok := r.(*ContractViolation); ok {
				m.log.Error("%v", cv)
			}
			panic(r)
		}
	}()
	return Build(m.mode, m.registry, src)
}

// Build строит меш центрального чанка src.
// Паникует с *ContractViolation, если хотя бы один сосед отсутствует.
func Build(mode Mode, registry *block.Registry, src Source) *VertexBuffer {
	origin := src.Origin()
	pos := world.ChunkOf(origin)

	var missing []world.Side
	for _, s := range world.Sides {
		if !src.HasNeighbor(s) {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		panic(&ContractViolation{Pos: pos, Missing: missing})
	}

	b := &builder{
		reg:    registry,
		src:    src,
		origin: origin,
		out:    newBuffer(pos, origin),
	}
	switch mode {
	case ModeGreedy:
		b.greedy()
	default:
		b.simple()
	}
	b.crosses()
	return b.out.finish()
}

// Оси (u, v) грани для каждой стороны; u x v совпадает с нормалью,
// поэтому углы (0,0) (1,0) (1,1) (0,1) идут против часовой стрелки снаружи.
var (
	uAxis = [world.SideCount]int{1, 2, 2, 0, 0, 1}
	vAxis = [world.SideCount]int{2, 1, 0, 2, 1, 0}
)

// Углы quad'а в единицах (du, dv)
var corners = [4][2]int{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

var (
	indicesNormal  = [6]uint32{0, 1, 2, 0, 2, 3}
	indicesFlipped = [6]uint32{1, 2, 3, 1, 3, 0}
)

// face - атрибуты одной грани блока; сравнимая структура служит ключом склейки
type face struct {
	tex  block.TextureID
	ao   [4]uint8
	bl   uint8
	sl   uint8
	wind bool
}

type builder struct {
	reg    *block.Registry
	src    Source
	origin vec.Vec3
	out    *VertexBuffer
}

func (b *builder) props(c world.Cell) *block.Properties {
	return b.reg.Props(c.ID())
}

// visible решает, видна ли грань куба self, смотрящая на соседа n
func (b *builder) visible(self world.Cell, selfProps *block.Properties, n world.Cell) bool {
	np := b.props(n)
	if np.Opaque() {
		return false
	}
	return !(selfProps.Transparent && n.ID() == self.ID())
}

// occluder - только непрозрачные кубы затеняют углы
func (b *builder) occluder(p [3]int) uint8 {
	if b.props(b.src.Cell(p[0], p[1], p[2])).Opaque() {
		return 1
	}
	return 0
}

// faceAt вычисляет атрибуты грани блока p со стороны side.
// ok=false, если грань не видна.
func (b *builder) faceAt(p [3]int, side world.Side) (face, bool) {
	self := b.src.Cell(p[0], p[1], p[2])
	sp := b.props(self)
	if sp.Mesh != block.MeshCube {
		return face{}, false
	}

	n := side.Normal()
	front := [3]int{p[0] + n.X, p[1] + n.Y, p[2] + n.Z}
	fc := b.src.Cell(front[0], front[1], front[2])
	if !b.visible(self, sp, fc) {
		return face{}, false
	}

	f := face{
		tex:  sp.Texture(int(side), b.variantHash(sp, int(side), p)),
		bl:   fc.BlockLight(),
		sl:   fc.SkyLight(),
		wind: sp.WindSway,
	}

	u, v := uAxis[side], vAxis[side]
	for i, c := range corners {
		du, dv := c[0]*2-1, c[1]*2-1
		s1, s2, cr := front, front, front
		s1[u] += du
		s2[v] += dv
		cr[u] += du
		cr[v] += dv
		o1, o2 := b.occluder(s1), b.occluder(s2)
		if o1 == 1 && o2 == 1 {
			f.ao[i] = 3
		} else {
			f.ao[i] = o1 + o2 + b.occluder(cr)
		}
	}
	return f, true
}

// variantHash детерминированно выбирает вариант текстуры по мировой позиции и грани
func (b *builder) variantHash(sp *block.Properties, faceIdx int, p [3]int) uint64 {
	if len(sp.Textures[faceIdx]) < 2 {
		return 0
	}
	var buf [3*binary.MaxVarintLen64 + 1]byte
	n := binary.PutVarint(buf[:], int64(b.origin.X+p[0]))
	n += binary.PutVarint(buf[n:], int64(b.origin.Y+p[1]))
	n += binary.PutVarint(buf[n:], int64(b.origin.Z+p[2]))
	buf[n] = byte(faceIdx)
	return xxhash.Sum64(buf[:n+1])
}

// emitQuad добавляет прямоугольник граней блоков слоя layer, занимающий
// [u0, u0+w) x [v0, v0+h) в плоскости стороны side
func (b *builder) emitQuad(side world.Side, layer, u0, v0, w, h int, f face) {
	axis := side.Axis()
	u, v := uAxis[side], vAxis[side]
	plane := layer
	if !side.Negative() {
		plane++
	}

	base := uint32(len(b.out.Vertices))
	for i, c := range corners {
		var p [3]uint32
		p[axis] = uint32(plane * PosScale)
		p[u] = uint32((u0 + c[0]*w) * PosScale)
		p[v] = uint32((v0 + c[1]*h) * PosScale)
		b.out.addVertex(p, packRaw(p[0], p[1], p[2], f.ao[i], f.tex,
			uint8(axis), side.Negative(), f.wind, f.bl, f.sl))
	}

	idx := indicesNormal
	if int(f.ao[0])+int(f.ao[2]) > int(f.ao[1])+int(f.ao[3]) {
		idx = indicesFlipped
	}
	for _, i := range idx {
		b.out.Indices = append(b.out.Indices, base+i)
	}
}

// simple - по одному quad'у на каждую видимую грань
func (b *builder) simple() {
	for y := 0; y < world.ChunkSize; y++ {
		for z := 0; z < world.ChunkSize; z++ {
			for x := 0; x < world.ChunkSize; x++ {
				p := [3]int{x, y, z}
				for _, side := range world.Sides {
					f, ok := b.faceAt(p, side)
					if !ok {
						continue
					}
					b.emitQuad(side, p[side.Axis()], p[uAxis[side]], p[vAxis[side]], 1, 1, f)
				}
			}
		}
	}
}
