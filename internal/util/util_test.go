package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupQueueOrder(t *testing.T) {
	q := NewDedupQueue[int]()
	assert.True(t, q.Push(1))
	assert.True(t, q.Push(2))
	assert.False(t, q.Push(1), "повтор игнорируется")
	assert.True(t, q.Push(3))
	assert.Equal(t, 3, q.Len())

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// удалённый элемент возвращается в конец
	assert.True(t, q.Remove(2))
	assert.False(t, q.Remove(2))
	assert.True(t, q.Push(2))

	var got []int
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{3, 2}, got)
	assert.Zero(t, q.Len())
	assert.False(t, q.Contains(2))
}

func TestDedupQueueCompacts(t *testing.T) {
	q := NewDedupQueue[int]()
	for i := 0; i < 1000; i++ {
		q.Push(i)
	}
	for i := 0; i < 900; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	assert.Equal(t, 100, q.Len())
	assert.LessOrEqual(t, len(q.items), 1000)
	v, _ := q.Pop()
	assert.Equal(t, 900, v)
}

func TestSpline(t *testing.T) {
	s, err := NewSpline(SplinePoint{X: 1, Y: 100}, SplinePoint{X: 0, Y: 0}, SplinePoint{X: 0.5, Y: 10})
	require.NoError(t, err)

	assert.InDelta(t, 0, s.Eval(-1), 1e-9)
	assert.InDelta(t, 5, s.Eval(0.25), 1e-9)
	assert.InDelta(t, 10, s.Eval(0.5), 1e-9)
	assert.InDelta(t, 55, s.Eval(0.75), 1e-9)
	assert.InDelta(t, 100, s.Eval(2), 1e-9)

	_, err = NewSpline(SplinePoint{X: 0, Y: 0})
	assert.Error(t, err)
	_, err = NewSpline(SplinePoint{X: 0, Y: 0}, SplinePoint{X: 0, Y: 1})
	assert.Error(t, err)
}

func TestNoiseDeterministic(t *testing.T) {
	a := NewNoise(42)
	b := NewNoise(42)
	for i := 0; i < 20; i++ {
		x, y := float64(i)*0.37, float64(i)*0.11
		assert.Equal(t, a.Noise2D(x, y), b.Noise2D(x, y))
		assert.Equal(t, a.Noise3D(x, y, x+y), b.Noise3D(x, y, x+y))

		v := a.FBM2D(x, y, 4, 2, 0.5)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}
