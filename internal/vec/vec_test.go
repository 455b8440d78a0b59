package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorDivMod(t *testing.T) {
	cases := []struct {
		a, b, div, mod int
	}{
		{0, 32, 0, 0},
		{31, 32, 0, 31},
		{32, 32, 1, 0},
		{-1, 32, -1, 31},
		{-32, 32, -1, 0},
		{-33, 32, -2, 31},
	}
	for _, c := range cases {
		assert.Equal(t, c.div, FloorDiv(c.a, c.b), "FloorDiv(%d,%d)", c.a, c.b)
		assert.Equal(t, c.mod, FloorMod(c.a, c.b), "FloorMod(%d,%d)", c.a, c.b)
	}
}

func TestVec3Ordering(t *testing.T) {
	a := New(0, 5, 5)
	b := New(1, 0, 0)
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a), "вектор не меньше самого себя")
	assert.Equal(t, 5, New(0, 0, 0).ChebyshevTo(New(-5, 2, 3)))
}

func TestBox(t *testing.T) {
	b := NewBox(New(2, 3, 4), New(0, 0, 0))
	assert.Equal(t, New(0, 0, 0), b.Min)
	assert.Equal(t, New(3, 4, 5), b.Max)
	assert.Equal(t, 60, b.Volume())
	assert.True(t, b.Contains(New(2, 3, 4)))
	assert.False(t, b.Contains(New(3, 0, 0)))

	inter := b.Intersect(Box{Min: New(1, 1, 1), Max: New(10, 10, 10)})
	assert.Equal(t, New(1, 1, 1), inter.Min)
	assert.Equal(t, New(3, 4, 5), inter.Max)

	assert.True(t, b.Intersect(Box{Min: New(5, 5, 5), Max: New(6, 6, 6)}).Empty())

	// индексы уникальны и плотны
	seen := make(map[int]bool)
	for x := 0; x < 3; x++ {
		for y := 0; y < 4; y++ {
			for z := 0; z < 5; z++ {
				seen[b.Index(New(x, y, z))] = true
			}
		}
	}
	assert.Len(t, seen, 60)
	assert.True(t, seen[0] && seen[59])
}
