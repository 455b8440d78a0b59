package mesher

import (
	"math"

	"github.com/annel0/voxelcore/internal/world/block"
)

// Раскладка двух 32-битных слов вершины. Это контракт с шейдером:
// любое изменение ширины полей ломает протокол.
//
// Слово A (pos_ao):  [0:2) AO, [2:12) Z, [12:22) Y, [22:32) X; координаты в 1/16 блока.
// Слово B (attr):    [0:16) текстура, [16:18) ось, [18] знак, [23] ветер,
//
//	[24:28) блочный свет, [28:32) небесный свет.
const (
	aoBits    = 2
	posBits   = 10
	posShiftZ = 2
	posShiftY = 12
	posShiftX = 22
	posMask   = 1<<posBits - 1
	aoMask    = 1<<aoBits - 1

	texMask    = 0xFFFF
	axisShift  = 16
	axisMask   = 0x3
	signShift  = 18
	windShift  = 23
	blockShift = 24
	skyShift   = 28
	lightMask  = 0xF

	// PosScale - число делений блока в фиксированной точке позиции
	PosScale = 16
)

// Vertex - упакованная вершина
type Vertex struct {
	PosAO uint32
	Attr  uint32
}

// Attributes - распакованные атрибуты вершины
type Attributes struct {
	X, Y, Z    float32 // локальная позиция в блоках, квантуется до 1/16
	AO         uint8   // 0..3
	Texture    block.TextureID
	Axis       uint8 // 0=X, 1=Y, 2=Z
	Negative   bool
	Wind       bool
	BlockLight uint8
	SkyLight   uint8
}

// Pack упаковывает атрибуты. Значения шире поля обрезаются по маске.
func Pack(a Attributes) Vertex {
	return packRaw(quantize(a.X), quantize(a.Y), quantize(a.Z), a.AO,
		a.Texture, a.Axis, a.Negative, a.Wind, a.BlockLight, a.SkyLight)
}

// Unpack восстанавливает атрибуты
func (v Vertex) Unpack() Attributes {
	return Attributes{
		X:          float32(v.PosAO>>posShiftX&posMask) / PosScale,
		Y:          float32(v.PosAO>>posShiftY&posMask) / PosScale,
		Z:          float32(v.PosAO>>posShiftZ&posMask) / PosScale,
		AO:         uint8(v.PosAO & aoMask),
		Texture:    block.TextureID(v.Attr & texMask),
		Axis:       uint8(v.Attr >> axisShift & axisMask),
		Negative:   v.Attr>>signShift&1 == 1,
		Wind:       v.Attr>>windShift&1 == 1,
		BlockLight: uint8(v.Attr >> blockShift & lightMask),
		SkyLight:   uint8(v.Attr >> skyShift & lightMask),
	}
}

// packRaw принимает координаты уже в 1/16 блока
func packRaw(x, y, z uint32, ao uint8, tex block.TextureID, axis uint8, negative, wind bool, blockLight, skyLight uint8) Vertex {
	posAO := uint32(ao)&aoMask |
		(z&posMask)<<posShiftZ |
		(y&posMask)<<posShiftY |
		(x&posMask)<<posShiftX

	attr := uint32(tex)&texMask |
		uint32(axis&axisMask)<<axisShift |
		uint32(blockLight&lightMask)<<blockShift |
		uint32(skyLight&lightMask)<<skyShift
	if negative {
		attr |= 1 << signShift
	}
	if wind {
		attr |= 1 << windShift
	}
	return Vertex{PosAO: posAO, Attr: attr}
}

func quantize(v float32) uint32 {
	if v <= 0 {
		return 0
	}
	return uint32(math.Round(float64(v) * PosScale))
}
