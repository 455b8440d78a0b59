package block

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, 10, r.Len())
	air := r.Props(AirID)
	assert.Equal(t, "air", air.Name)
	assert.Equal(t, MeshNone, air.Mesh)
	assert.False(t, air.Opaque())

	ids := map[string]BlockID{
		"stone":        StoneID,
		"dirt":         DirtID,
		"grass":        GrassID,
		"sand":         SandID,
		"water":        WaterID,
		"glass":        GlassID,
		"leaves":       LeavesID,
		"detail_grass": DetailGrassID,
		"torch":        TorchID,
	}
	for name, id := range ids {
		got, ok := r.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, id, got, name)
	}

	assert.True(t, r.Opaque(StoneID))
	assert.False(t, r.Opaque(WaterID))
	assert.False(t, r.Opaque(DetailGrassID))
	assert.Equal(t, CollisionLiquid, r.Props(WaterID).Collision)
	assert.Equal(t, CollisionNone, r.Props(DetailGrassID).Collision)
	assert.True(t, r.Props(LeavesID).WindSway)
	assert.Equal(t, uint8(14), r.Props(TorchID).BlockLight)
}

func TestFaceTextures(t *testing.T) {
	r := DefaultRegistry()
	grass := r.Props(GrassID)
	names := r.Textures()

	assert.Equal(t, "unknown", names[UnknownTexture])
	assert.Equal(t, "grass_top", names[grass.Texture(FacePosY, 0)])
	assert.Equal(t, "dirt", names[grass.Texture(FaceNegY, 0)])
	for _, face := range []int{FacePosX, FaceNegX, FacePosZ, FaceNegZ} {
		assert.Equal(t, "grass_side", names[grass.Texture(face, 7)])
	}

	// dirt и низ травы разделяют одну текстуру
	assert.Equal(t, r.Props(DirtID).Texture(FacePosX, 0), grass.Texture(FaceNegY, 0))

	stone := r.Props(StoneID)
	assert.Len(t, stone.Textures[FacePosX], 3)
	assert.Equal(t, stone.Texture(FacePosX, 4), stone.Texture(FacePosX, 1), "вариант выбирается по модулю")
	assert.Equal(t, UnknownTexture, r.Props(AirID).Texture(FacePosX, 0))
}

func TestBuildRejectsInvalid(t *testing.T) {
	cases := map[string][]Definition{
		"пустое имя":       {{Name: ""}},
		"дубликат":         {{Name: "a"}, {Name: "a"}},
		"воздух занят":     {{Name: "air"}},
		"плохой меш":       {{Name: "a", Mesh: "sphere"}},
		"плохая коллизия":  {{Name: "a", Collision: "sticky"}},
		"слишком яркий":    {{Name: "a", BlockLight: 16}},
	}
	for name, defs := range cases {
		_, err := Build(defs)
		assert.Error(t, err, name)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocks.yaml")
	manifest := `
blocks:
  - name: marble
    texture:
      all: [marble]
  - name: lamp
    block_light: 15
    transparent: true
    texture:
      side: [lamp_side]
      top: [lamp_top]
`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	r, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	lamp := r.MustLookup("lamp")
	props, ok := r.Get(lamp)
	require.True(t, ok)
	assert.True(t, props.Transparent)
	assert.Equal(t, CollisionSolid, props.Collision)
	assert.Equal(t, UnknownTexture, props.Texture(FaceNegY, 0), "низ не задан")

	_, ok = r.Get(BlockID(99))
	assert.False(t, ok)
	assert.Equal(t, "air", r.Props(BlockID(99)).Name)
	assert.Panics(t, func() { r.MustLookup("stone") })

	_, err = LoadManifest(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
