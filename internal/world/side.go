package world

import "github.com/annel0/voxelcore/internal/vec"

// Side - одна из шести граней куба
type Side uint8

const (
	PosX Side = iota
	NegX
	PosY
	NegY
	PosZ
	NegZ
)

// SideCount - количество граней
const SideCount = 6

// FullMask - маска, в которой присутствуют все 6 соседей
const FullMask uint8 = 1<<SideCount - 1

// Sides перечисляет стороны в каноническом порядке
var Sides = [SideCount]Side{PosX, NegX, PosY, NegY, PosZ, NegZ}

var sideNormals = [SideCount]vec.Vec3{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

// Normal возвращает единичный вектор наружу
func (s Side) Normal() vec.Vec3 {
	return sideNormals[s]
}

// Axis возвращает ось грани: 0=X, 1=Y, 2=Z
func (s Side) Axis() int {
	return int(s) >> 1
}

// Negative возвращает true для сторон с отрицательным направлением
func (s Side) Negative() bool {
	return s&1 == 1
}

// Opposite возвращает противоположную сторону
func (s Side) Opposite() Side {
	return s ^ 1
}

// Bit возвращает бит стороны в маске соседей
func (s Side) Bit() uint8 {
	return 1 << s
}

func (s Side) String() string {
	switch s {
	case PosX:
		return "+X"
	case NegX:
		return "-X"
	case PosY:
		return "+Y"
	case NegY:
		return "-Y"
	case PosZ:
		return "+Z"
	case NegZ:
		return "-Z"
	default:
		return "?"
	}
}
