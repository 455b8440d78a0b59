package storage

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseAnchorRepo проверяет поведение, общее для всех бэкендов.
// Идентификаторы уникальны, чтобы внешние базы можно было переиспользовать.
func exerciseAnchorRepo(t *testing.T, repo AnchorRepo) {
	ctx := context.Background()
	id := func(name string) string { return name + "-" + uuid.NewString()[:8] }

	t.Run("SaveLoad", func(t *testing.T) {
		a := id("player")
		require.NoError(t, repo.Save(ctx, a, vec.New(10, -20, 30)))

		pos, ok, err := repo.Load(ctx, a)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, vec.New(10, -20, 30), pos)

		require.NoError(t, repo.Save(ctx, a, vec.New(1, 2, 3)))
		pos, _, err = repo.Load(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, vec.New(1, 2, 3), pos, "повторное сохранение перезаписывает")
	})

	t.Run("LoadMissing", func(t *testing.T) {
		pos, ok, err := repo.Load(ctx, id("ghost"))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, vec.Vec3{}, pos)
	})

	t.Run("Delete", func(t *testing.T) {
		a := id("camera")
		require.NoError(t, repo.Save(ctx, a, vec.New(0, 64, 0)))
		require.NoError(t, repo.Delete(ctx, a))
		_, ok, err := repo.Load(ctx, a)
		require.NoError(t, err)
		assert.False(t, ok)

		assert.ErrorIs(t, repo.Delete(ctx, a), ErrAnchorNotFound)
	})

	t.Run("BatchSaveAndAll", func(t *testing.T) {
		batch := map[string]vec.Vec3{
			id("a"): vec.New(1, 1, 1),
			id("b"): vec.New(-32, 0, 32),
			id("c"): vec.New(100, -5, 7),
		}
		require.NoError(t, repo.BatchSave(ctx, batch))
		require.NoError(t, repo.BatchSave(ctx, nil))

		all, err := repo.All(ctx)
		require.NoError(t, err)
		for k, want := range batch {
			assert.Equal(t, want, all[k], k)
		}
	})

	t.Run("InvalidID", func(t *testing.T) {
		assert.Error(t, repo.Save(ctx, "", vec.Vec3{}))
		_, _, err := repo.Load(ctx, "")
		assert.Error(t, err)
		assert.Error(t, repo.BatchSave(ctx, map[string]vec.Vec3{"": {}}))
	})
}

func TestMemoryAnchorRepo(t *testing.T) {
	exerciseAnchorRepo(t, NewMemoryAnchorRepo())
}

func TestMemoryAnchorRepoCancelledContext(t *testing.T) {
	repo := NewMemoryAnchorRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, repo.Save(ctx, "p", vec.Vec3{}), context.Canceled)
	_, err := repo.All(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, repo.Count())
}

func TestMemoryAnchorRepoConcurrentAccess(t *testing.T) {
	repo := NewMemoryAnchorRepo()
	ctx := context.Background()

	const goroutines = 10
	const ops = 100

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				id := fmt.Sprintf("g%d-%d", g, j)
				pos := vec.New(g, j, -g)
				if err := repo.Save(ctx, id, pos); err != nil {
					t.Errorf("save %s: %v", id, err)
					return
				}
				got, ok, err := repo.Load(ctx, id)
				if err != nil || !ok || got != pos {
					t.Errorf("load %s: %v %v %v", id, got, ok, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, goroutines*ops, repo.Count())
}

func TestNewAnchorRepoBackends(t *testing.T) {
	repo, err := NewAnchorRepo(AnchorConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryAnchorRepo{}, repo)
	require.NoError(t, repo.Close())

	_, err = NewAnchorRepo(AnchorConfig{Backend: "etcd"})
	assert.Error(t, err)
}

func TestRedisAnchorRepo(t *testing.T) {
	addr := os.Getenv("VOXEL_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	repo, err := NewRedisAnchorRepo(addr, "voxel-test-"+uuid.NewString()[:8]+":")
	if err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	t.Cleanup(func() {
		repo.client.Del(context.Background(), repo.key)
		repo.Close()
	})
	exerciseAnchorRepo(t, repo)
}

func TestMariaAnchorRepo(t *testing.T) {
	dsn := os.Getenv("VOXEL_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("VOXEL_TEST_MYSQL_DSN not set, skipping test")
	}
	repo, err := NewMariaAnchorRepo(dsn)
	if err != nil {
		t.Skipf("MariaDB not available, skipping test: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	exerciseAnchorRepo(t, repo)
}
