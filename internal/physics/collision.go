package physics

import (
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world"
	"github.com/annel0/voxelcore/internal/world/block"
)

// RegionQuerier - источник снимков блоков; *world.World удовлетворяет интерфейсу
type RegionQuerier interface {
	QueryRegion(box vec.Box) (*world.Region, error)
}

// BoxCollider представляет прямоугольный коллайдер сущности.
// Позиция сущности - центр основания: X/Z по центру, Y по нижней грани.
type BoxCollider struct {
	Width  int // по X, в блоках
	Height int // по Y
	Depth  int // по Z
}

// NewBoxCollider создаёт новый коллайдер с указанными размерами
func NewBoxCollider(width, height, depth int) *BoxCollider {
	return &BoxCollider{
		Width:  max(width, 1),
		Height: max(height, 1),
		Depth:  max(depth, 1),
	}
}

// Bounds возвращает занимаемые клетки для позиции pos
func (bc *BoxCollider) Bounds(pos vec.Vec3) vec.Box {
	minCorner := vec.Vec3{X: pos.X - bc.Width/2, Y: pos.Y, Z: pos.Z - bc.Depth/2}
	return vec.Box{
		Min: minCorner,
		Max: minCorner.Add(vec.Vec3{X: bc.Width, Y: bc.Height, Z: bc.Depth}),
	}
}

// IsPointInside проверяет, находится ли точка внутри коллайдера
func (bc *BoxCollider) IsPointInside(colliderPos, point vec.Vec3) bool {
	return bc.Bounds(colliderPos).Contains(point)
}

// CheckBoxCollision проверяет столкновение двух коллайдеров
func CheckBoxCollision(pos1 vec.Vec3, collider1 *BoxCollider, pos2 vec.Vec3, collider2 *BoxCollider) bool {
	return !collider1.Bounds(pos1).Intersect(collider2.Bounds(pos2)).Empty()
}

// Contact - результат проверки объёма коллайдера по миру
type Contact struct {
	Solid  bool // пересекает твёрдый блок
	Liquid bool // погружён в жидкость хотя бы частично
}

// Sample запрашивает блоки под коллайдером одним снимком региона.
// Если какой-то чанк не загружен, возвращается ошибка world.ErrChunkNotLoaded.
func Sample(q RegionQuerier, reg *block.Registry, pos vec.Vec3, collider *BoxCollider) (Contact, error) {
	region, err := q.QueryRegion(collider.Bounds(pos))
	if err != nil {
		return Contact{}, err
	}

	var c Contact
	for _, cell := range region.Cells {
		switch reg.Props(cell.ID()).Collision {
		case block.CollisionSolid:
			c.Solid = true
		case block.CollisionLiquid:
			c.Liquid = true
		}
	}
	return c, nil
}

// CanMoveToPosition проверяет, может ли сущность с указанным коллайдером переместиться в указанную позицию.
// Незагруженный мир считается непроходимым.
func CanMoveToPosition(q RegionQuerier, reg *block.Registry, newPos vec.Vec3, collider *BoxCollider) bool {
	c, err := Sample(q, reg, newPos, collider)
	if err != nil {
		return false
	}
	return !c.Solid
}

// GroundBelow ищет ближайшую твёрдую опору под pos не глубже maxDepth блоков.
// Возвращает Y верхней грани опоры.
func GroundBelow(q RegionQuerier, reg *block.Registry, pos vec.Vec3, maxDepth int) (int, bool, error) {
	if maxDepth <= 0 {
		return 0, false, nil
	}
	column := vec.Box{
		Min: vec.Vec3{X: pos.X, Y: pos.Y - maxDepth, Z: pos.Z},
		Max: vec.Vec3{X: pos.X + 1, Y: pos.Y, Z: pos.Z + 1},
	}
	region, err := q.QueryRegion(column)
	if err != nil {
		return 0, false, err
	}
	for y := pos.Y - 1; y >= column.Min.Y; y-- {
		id := region.Block(vec.Vec3{X: pos.X, Y: y, Z: pos.Z})
		if reg.Props(id).Collision == block.CollisionSolid {
			return y + 1, true, nil
		}
	}
	return 0, false, nil
}
