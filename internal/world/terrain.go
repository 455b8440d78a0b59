package world

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/annel0/voxelcore/internal/util"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"
)

// Константы рельефа
const (
	SeaLevel       = 0
	dirtDepth      = 3
	terrainScale   = 0.008
	caveScale      = 0.06
	caveThreshold  = 0.78
	detailScale    = 0.35
	detailDensity  = 0.72
	torchRarity    = 4096 // один факел примерно на столько поверхностных колонок
	heightmapCache = 4096 // колонок чанков в кеше
)

// TerrainOptions настраивает генератор рельефа
type TerrainOptions struct {
	// Spline отображает FBM-шум [0,1] в высоту поверхности в блоках
	Spline *util.Spline
	// Caves включает трёхмерные пещеры
	Caves bool
	// CacheColumns - сколько карт высот хранить в кеше
	CacheColumns int64
}

type heightmap [ChunkSize * ChunkSize]int

type terrainBlocks struct {
	stone, dirt, grass, sand, water, detail, torch block.BlockID
}

// TerrainGenerator - генератор по умолчанию: карта высот из FBM-шума Перлина,
// пропущенного через сплайн, слои камня/земли/травы, пляжи и вода ниже уровня моря,
// редкая трава и факелы, пещеры и начальный небесный свет.
type TerrainGenerator struct {
	registry *block.Registry
	ids      terrainBlocks
	spline   *util.Spline
	caves    bool

	mu     sync.Mutex
	noises map[int64]*util.Noise

	heights *ristretto.Cache
}

// DefaultTerrainSpline - форма рельефа по умолчанию
func DefaultTerrainSpline() *util.Spline {
	s, err := util.NewSpline(
		util.SplinePoint{X: 0.0, Y: -24},
		util.SplinePoint{X: 0.35, Y: -4},
		util.SplinePoint{X: 0.5, Y: 4},
		util.SplinePoint{X: 0.65, Y: 16},
		util.SplinePoint{X: 0.8, Y: 40},
		util.SplinePoint{X: 1.0, Y: 72},
	)
	if err != nil {
		panic(err)
	}
	return s
}

// NewTerrainGenerator создаёт генератор. Реестр должен содержать блоки
// stone, dirt, grass, sand, water, detail_grass и torch.
func NewTerrainGenerator(registry *block.Registry, opts TerrainOptions) (*TerrainGenerator, error) {
	var ids terrainBlocks
	for name, dst := range map[string]*block.BlockID{
		"stone":        &ids.stone,
		"dirt":         &ids.dirt,
		"grass":        &ids.grass,
		"sand":         &ids.sand,
		"water":        &ids.water,
		"detail_grass": &ids.detail,
		"torch":        &ids.torch,
	} {
		id, ok := registry.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: генератору нужен блок %q", ErrUnknownBlock, name)
		}
		*dst = id
	}

	if opts.Spline == nil {
		opts.Spline = DefaultTerrainSpline()
	}
	if opts.CacheColumns <= 0 {
		opts.CacheColumns = heightmapCache
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: opts.CacheColumns * 10,
		MaxCost:     opts.CacheColumns,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания кеша карт высот: %w", err)
	}

	return &TerrainGenerator{
		registry: registry,
		ids:      ids,
		spline:   opts.Spline,
		caves:    opts.Caves,
		noises:   make(map[int64]*util.Noise),
		heights:  cache,
	}, nil
}

// Close освобождает кеш
func (g *TerrainGenerator) Close() {
	g.heights.Close()
}

func (g *TerrainGenerator) noise(seed int64) *util.Noise {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.noises[seed]
	if !ok {
		n = util.NewNoise(seed)
		g.noises[seed] = n
	}
	return n
}

// Generate реализует Generator
func (g *TerrainGenerator) Generate(ctx context.Context, pos ChunkPos, seed int64) (*RawChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	noise := g.noise(seed)
	hm := g.heightmap(noise, pos, seed)
	origin := pos.Origin()
	raw := NewRawChunk()

	for x := 0; x < ChunkSize; x++ {
		for z := 0; z < ChunkSize; z++ {
			h := hm[x+z*ChunkSize]
			wx, wz := origin.X+x, origin.Z+z
			for y := 0; y < ChunkSize; y++ {
				wy := origin.Y + y
				id := g.blockAt(noise, seed, wx, wy, wz, h)
				if id != block.AirID {
					raw.Set(x, y, z, id)
				}
			}
		}
		if x%8 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	g.seedLight(raw, hm, origin.Y)
	return raw, nil
}

func (g *TerrainGenerator) blockAt(noise *util.Noise, seed int64, wx, wy, wz, h int) block.BlockID {
	beach := h <= SeaLevel+1

	switch {
	case wy > h:
		if wy <= SeaLevel {
			return g.ids.water
		}
		if wy == h+1 && !beach {
			if columnHash(seed, wx, wz)%torchRarity == 0 {
				return g.ids.torch
			}
			if noise.Noise2D(float64(wx)*detailScale, float64(wz)*detailScale) > detailDensity {
				return g.ids.detail
			}
		}
		return block.AirID
	case g.caves && wy < h-1 && wy > SeaLevel-64:
		v := noise.Noise3D(float64(wx)*caveScale, float64(wy)*caveScale, float64(wz)*caveScale)
		if v > caveThreshold {
			return block.AirID
		}
	}

	switch {
	case wy == h && beach:
		return g.ids.sand
	case wy == h:
		return g.ids.grass
	case wy > h-dirtDepth && beach:
		return g.ids.sand
	case wy > h-dirtDepth:
		return g.ids.dirt
	default:
		return g.ids.stone
	}
}

// heightmap возвращает высоты поверхности для колонки чанков (x, z), используя кеш
func (g *TerrainGenerator) heightmap(noise *util.Noise, pos ChunkPos, seed int64) *heightmap {
	key := columnKey(seed, pos.X, pos.Z)
	if v, ok := g.heights.Get(key); ok {
		return v.(*heightmap)
	}

	hm := &heightmap{}
	origin := pos.Origin()
	for x := 0; x < ChunkSize; x++ {
		for z := 0; z < ChunkSize; z++ {
			wx, wz := float64(origin.X+x), float64(origin.Z+z)
			n := noise.FBM2D(wx*terrainScale, wz*terrainScale, 5, 2.0, 0.5)
			hm[x+z*ChunkSize] = int(g.spline.Eval(n))
		}
	}
	g.heights.Set(key, hm, 1)
	return hm
}

// seedLight задаёт начальный свет: небесный 15 над первой непрозрачной
// ячейкой колонки внутри чанка и 0 ниже; излучающие блоки получают свой блочный свет.
// Колонка ниже поверхности мира начинается в тени.
func (g *TerrainGenerator) seedLight(raw *RawChunk, hm *heightmap, originY int) {
	for x := 0; x < ChunkSize; x++ {
		for z := 0; z < ChunkSize; z++ {
			sky := uint8(MaxLight)
			if originY+ChunkSize-1 < hm[x+z*ChunkSize] {
				sky = 0
			}
			for y := ChunkSize - 1; y >= 0; y-- {
				c := raw.Cell(x, y, z)
				props := g.registry.Props(c.ID())
				if props.Opaque() {
					sky = 0
				}
				raw.SetCell(x, y, z, c.WithLight(props.BlockLight, sky))
			}
		}
	}
}

func columnKey(seed int64, x, z int) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(seed))
	binary.LittleEndian.PutUint64(buf[8:], uint64(x))
	binary.LittleEndian.PutUint64(buf[16:], uint64(z))
	return xxhash.Sum64(buf[:])
}

func columnHash(seed int64, wx, wz int) uint64 {
	return columnKey(seed^0x5bd1e995, wx, wz)
}
