package block

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition - описание блока в YAML-манифесте
type Definition struct {
	Name        string      `yaml:"name"`
	Collision   string      `yaml:"collision"` // none | solid | liquid
	Mesh        string      `yaml:"mesh"`      // none | cube | cross
	Transparent bool        `yaml:"transparent"`
	WindSway    bool        `yaml:"wind_sway"`
	BlockLight  uint8       `yaml:"block_light"`
	Texture     TextureSpec `yaml:"texture"`
}

// TextureSpec задаёт варианты текстур по граням.
// Более конкретное поле перекрывает более общее: top/bottom > side > all.
type TextureSpec struct {
	All    []string `yaml:"all"`
	Side   []string `yaml:"side"`
	Top    []string `yaml:"top"`
	Bottom []string `yaml:"bottom"`
}

func (t TextureSpec) forFace(face int) []string {
	switch face {
	case FacePosY:
		if len(t.Top) > 0 {
			return t.Top
		}
	case FaceNegY:
		if len(t.Bottom) > 0 {
			return t.Bottom
		}
	default:
		if len(t.Side) > 0 {
			return t.Side
		}
	}
	return t.All
}

// Manifest - корень файла манифеста
type Manifest struct {
	Blocks []Definition `yaml:"blocks"`
}

//go:embed default_blocks.yaml
var defaultManifest []byte

// Идентификаторы блоков реестра по умолчанию
const (
	StoneID BlockID = iota + 1
	DirtID
	GrassID
	SandID
	WaterID
	GlassID
	LeavesID
	DetailGrassID
	TorchID
)

// ParseManifest строит реестр из YAML
func ParseManifest(data []byte) (*Registry, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("ошибка разбора манифеста блоков: %w", err)
	}
	return Build(m.Blocks)
}

// LoadManifest читает манифест с диска
func LoadManifest(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения манифеста %s: %w", path, err)
	}
	return ParseManifest(data)
}

// DefaultRegistry возвращает встроенный набор блоков
func DefaultRegistry() *Registry {
	r, err := ParseManifest(defaultManifest)
	if err != nil {
		panic(fmt.Sprintf("встроенный манифест блоков повреждён: %v", err))
	}
	return r
}
