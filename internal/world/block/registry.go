package block

import (
	"errors"
	"fmt"
)

// BlockID представляет идентификатор блока
type BlockID uint16

// TextureID - плотный индекс текстуры в атласе. 0 зарезервирован под "unknown".
type TextureID uint16

// AirID зарезервирован за воздухом: без коллизии, прозрачен, никогда не мешится
const AirID BlockID = 0

// UnknownTexture используется для граней без заданной текстуры
const UnknownTexture TextureID = 0

// Индексы граней, совпадают с порядком сторон в пакете world: +X, -X, +Y, -Y, +Z, -Z
const (
	FacePosX = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
	FaceCount
)

// CollisionType описывает форму коллизии блока
type CollisionType uint8

const (
	CollisionNone CollisionType = iota
	CollisionSolid
	CollisionLiquid
)

func (c CollisionType) String() string {
	switch c {
	case CollisionNone:
		return "none"
	case CollisionSolid:
		return "solid"
	case CollisionLiquid:
		return "liquid"
	default:
		return "unknown"
	}
}

// MeshType описывает, как блок превращается в геометрию
type MeshType uint8

const (
	MeshNone MeshType = iota
	MeshCube
	MeshCross
)

func (m MeshType) String() string {
	switch m {
	case MeshNone:
		return "none"
	case MeshCube:
		return "cube"
	case MeshCross:
		return "cross"
	default:
		return "unknown"
	}
}

// ErrUnknownBlock возвращается при обращении к незарегистрированному блоку
var ErrUnknownBlock = errors.New("unknown block")

// Properties - метаданные типа блока
type Properties struct {
	ID          BlockID
	Name        string
	Collision   CollisionType
	Mesh        MeshType
	Transparent bool
	WindSway    bool
	BlockLight  uint8
	// Варианты текстур для каждой грани (индекс - FacePosX..FaceNegZ)
	Textures [FaceCount][]TextureID
}

// Opaque возвращает true для непрозрачных кубов: только они скрывают соседние грани и затеняют AO
func (p *Properties) Opaque() bool {
	return p.Mesh == MeshCube && !p.Transparent
}

// Texture выбирает вариант текстуры грани по хешу позиции
func (p *Properties) Texture(face int, hash uint64) TextureID {
	variants := p.Textures[face]
	switch len(variants) {
	case 0:
		return UnknownTexture
	case 1:
		return variants[0]
	default:
		return variants[hash%uint64(len(variants))]
	}
}

// Registry - неизменяемая таблица типов блоков.
// Строится один раз при запуске через Build/LoadManifest и затем только читается,
// поэтому доступ из нескольких горутин не требует блокировок.
type Registry struct {
	props      []Properties
	byName     map[string]BlockID
	textures   []string
	textureIDs map[string]TextureID
}

// Build строит реестр из определений. Воздух добавляется автоматически под ID 0.
func Build(defs []Definition) (*Registry, error) {
	r := &Registry{
		byName:     make(map[string]BlockID, len(defs)+1),
		textures:   []string{"unknown"},
		textureIDs: map[string]TextureID{"unknown": UnknownTexture},
	}

	r.props = append(r.props, Properties{
		ID:          AirID,
		Name:        "air",
		Collision:   CollisionNone,
		Mesh:        MeshNone,
		Transparent: true,
	})
	r.byName["air"] = AirID

	for i, def := range defs {
		if len(r.props) > int(^BlockID(0)) {
			return nil, fmt.Errorf("слишком много блоков: %d", len(defs))
		}
		props, err := r.compile(def)
		if err != nil {
			return nil, fmt.Errorf("блок #%d (%q): %w", i, def.Name, err)
		}
		props.ID = BlockID(len(r.props))
		r.props = append(r.props, props)
		r.byName[props.Name] = props.ID
	}

	return r, nil
}

func (r *Registry) compile(def Definition) (Properties, error) {
	if def.Name == "" {
		return Properties{}, errors.New("пустое имя")
	}
	if _, dup := r.byName[def.Name]; dup {
		return Properties{}, fmt.Errorf("имя %q уже зарегистрировано", def.Name)
	}

	mesh, err := parseMesh(def.Mesh)
	if err != nil {
		return Properties{}, err
	}
	collision, err := parseCollision(def.Collision, mesh)
	if err != nil {
		return Properties{}, err
	}
	if def.BlockLight > 15 {
		return Properties{}, fmt.Errorf("block_light %d вне диапазона 0..15", def.BlockLight)
	}

	props := Properties{
		Name:        def.Name,
		Collision:   collision,
		Mesh:        mesh,
		Transparent: def.Transparent || mesh != MeshCube,
		WindSway:    def.WindSway,
		BlockLight:  def.BlockLight,
	}
	for face := 0; face < FaceCount; face++ {
		for _, name := range def.Texture.forFace(face) {
			props.Textures[face] = append(props.Textures[face], r.internTexture(name))
		}
	}
	return props, nil
}

func (r *Registry) internTexture(name string) TextureID {
	if id, ok := r.textureIDs[name]; ok {
		return id
	}
	id := TextureID(len(r.textures))
	r.textures = append(r.textures, name)
	r.textureIDs[name] = id
	return id
}

// Get возвращает свойства блока
func (r *Registry) Get(id BlockID) (*Properties, bool) {
	if int(id) >= len(r.props) {
		return nil, false
	}
	return &r.props[id], true
}

// Props возвращает свойства блока; неизвестный ID трактуется как воздух
func (r *Registry) Props(id BlockID) *Properties {
	if int(id) >= len(r.props) {
		return &r.props[AirID]
	}
	return &r.props[id]
}

// Valid проверяет, зарегистрирован ли ID
func (r *Registry) Valid(id BlockID) bool {
	return int(id) < len(r.props)
}

// Opaque - сокращение для Props(id).Opaque()
func (r *Registry) Opaque(id BlockID) bool {
	return r.Props(id).Opaque()
}

// Lookup ищет блок по имени
func (r *Registry) Lookup(name string) (BlockID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// MustLookup ищет блок по имени и паникует, если его нет
func (r *Registry) MustLookup(name string) BlockID {
	id, ok := r.byName[name]
	if !ok {
		panic(fmt.Sprintf("block %q is not registered", name))
	}
	return id
}

// Len возвращает число зарегистрированных блоков, включая воздух
func (r *Registry) Len() int {
	return len(r.props)
}

// Textures возвращает имена текстур в порядке их TextureID
func (r *Registry) Textures() []string {
	out := make([]string, len(r.textures))
	copy(out, r.textures)
	return out
}

func parseMesh(s string) (MeshType, error) {
	switch s {
	case "", "cube":
		return MeshCube, nil
	case "cross":
		return MeshCross, nil
	case "none":
		return MeshNone, nil
	default:
		return MeshNone, fmt.Errorf("неизвестный тип меша %q", s)
	}
}

func parseCollision(s string, mesh MeshType) (CollisionType, error) {
	switch s {
	case "":
		if mesh == MeshCube {
			return CollisionSolid, nil
		}
		return CollisionNone, nil
	case "solid":
		return CollisionSolid, nil
	case "liquid":
		return CollisionLiquid, nil
	case "none":
		return CollisionNone, nil
	default:
		return CollisionNone, fmt.Errorf("неизвестный тип коллизии %q", s)
	}
}
