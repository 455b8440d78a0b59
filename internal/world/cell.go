package world

import "github.com/annel0/voxelcore/internal/world/block"

// Cell упаковывает ID блока и освещение в одно 32-битное слово:
// биты [0:16) - ID, [16:20) - блочный свет, [20:24) - небесный свет.
// Одно слово на ячейку исключает рваное чтение.
type Cell uint32

const (
	cellIDMask    = 0xFFFF
	cellBlockShft = 16
	cellSkyShft   = 20
	lightMask     = 0xF
)

// MaxLight - максимальный уровень освещения
const MaxLight = 15

// MakeCell собирает ячейку
func MakeCell(id block.BlockID, blockLight, skyLight uint8) Cell {
	return Cell(uint32(id) |
		uint32(blockLight&lightMask)<<cellBlockShft |
		uint32(skyLight&lightMask)<<cellSkyShft)
}

// ID возвращает идентификатор блока
func (c Cell) ID() block.BlockID {
	return block.BlockID(c & cellIDMask)
}

// BlockLight возвращает уровень блочного света
func (c Cell) BlockLight() uint8 {
	return uint8(c>>cellBlockShft) & lightMask
}

// SkyLight возвращает уровень небесного света
func (c Cell) SkyLight() uint8 {
	return uint8(c>>cellSkyShft) & lightMask
}

// WithID заменяет ID, сохраняя освещение
func (c Cell) WithID(id block.BlockID) Cell {
	return c&^cellIDMask | Cell(id)
}

// WithLight заменяет освещение, сохраняя ID
func (c Cell) WithLight(blockLight, skyLight uint8) Cell {
	return MakeCell(c.ID(), blockLight, skyLight)
}
