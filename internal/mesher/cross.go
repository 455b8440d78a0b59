package mesher

import (
	"github.com/annel0/voxelcore/internal/world"
	"github.com/annel0/voxelcore/internal/world/block"
)

// Диагонали крестового блока в плоскости XZ: (x0,z0) -> (x1,z1)
var crossDiagonals = [2][4]int{
	{0, 0, 1, 1},
	{1, 0, 0, 1},
}

var crossIndices = [12]uint32{
	0, 1, 2, 0, 2, 3, // лицевая сторона
	0, 2, 1, 0, 3, 2, // обратная
}

// crosses добавляет крестовые блоки (трава, факелы): две двусторонние
// диагональные плоскости на блок. Порядок обхода совпадает с индексом ячеек.
func (b *builder) crosses() {
	for y := 0; y < world.ChunkSize; y++ {
		for z := 0; z < world.ChunkSize; z++ {
			for x := 0; x < world.ChunkSize; x++ {
				c := b.src.Cell(x, y, z)
				sp := b.props(c)
				if sp.Mesh != block.MeshCross {
					continue
				}
				p := [3]int{x, y, z}
				tex := sp.Texture(block.FacePosX, b.variantHash(sp, block.FacePosX, p))
				for i, d := range crossDiagonals {
					b.emitCross(p, d, uint8(i*2), tex, sp.WindSway, c.BlockLight(), c.SkyLight())
				}
			}
		}
	}
}

func (b *builder) emitCross(p [3]int, d [4]int, axis uint8, tex block.TextureID, wind bool, bl, sl uint8) {
	quad := [4][3]int{
		{p[0] + d[0], p[1], p[2] + d[1]},
		{p[0] + d[2], p[1], p[2] + d[3]},
		{p[0] + d[2], p[1] + 1, p[2] + d[3]},
		{p[0] + d[0], p[1] + 1, p[2] + d[1]},
	}

	base := uint32(len(b.out.Vertices))
	for _, q := range quad {
		v := [3]uint32{uint32(q[0] * PosScale), uint32(q[1] * PosScale), uint32(q[2] * PosScale)}
		b.out.addVertex(v, packRaw(v[0], v[1], v[2], 0, tex, axis, false, wind, bl, sl))
	}
	for _, i := range crossIndices {
		b.out.Indices = append(b.out.Indices, base+i)
	}
}
