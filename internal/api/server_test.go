package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/pipeline"
	"github.com/annel0/voxelcore/internal/storage"
	"github.com/annel0/voxelcore/internal/tracker"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct{}

func (fakePipeline) Stats() pipeline.Stats { return pipeline.Stats{InFlight: 2, Ready: 3, Tracked: 4} }

func (fakePipeline) State(pos world.ChunkPos) tracker.State {
	if pos == (world.ChunkPos{}) {
		return tracker.StateLoaded
	}
	return tracker.StateUnloaded
}

type fakeLoader struct {
	mu      sync.Mutex
	anchors map[string]vec.Vec3
}

func (f *fakeLoader) SetAnchor(id string, pos vec.Vec3) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anchors[id] = pos
}

func (f *fakeLoader) RemoveAnchor(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.anchors, id)
}

func (f *fakeLoader) Pending() int { return 7 }

type fixture struct {
	srv    *Server
	world  *world.World
	loader *fakeLoader
	repo   *storage.MemoryAnchorRepo
}

func setupServer(t *testing.T) *fixture {
	t.Helper()
	w := world.New(block.DefaultRegistry(), world.FlatGenerator{Ground: block.StoneID}, world.Options{})
	t.Cleanup(w.Close)
	_, err := w.GetOrLoad(context.Background(), world.ChunkPos{})
	require.NoError(t, err)

	f := &fixture{
		world:  w,
		loader: &fakeLoader{anchors: map[string]vec.Vec3{}},
		repo:   storage.NewMemoryAnchorRepo(),
	}
	f.srv = NewServer(Config{
		World:    w,
		Pipeline: fakePipeline{},
		Loader:   f.loader,
		Anchors:  f.repo,
		Registry: prometheus.NewRegistry(),
		Logger:   logging.NewWriterLogger("http", &bytes.Buffer{}, logging.ERROR),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) (int, GenericResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	f.srv.Handler().ServeHTTP(rec, req)

	var resp GenericResponse
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func TestHealthAndMetrics(t *testing.T) {
	f := setupServer(t)
	code, _ := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)

	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `voxel_http_request_duration_seconds_count{method="GET",path="/health",status="200"} 1`)
}

func TestStats(t *testing.T) {
	f := setupServer(t)
	code, resp := f.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["chunks_loaded"])
	assert.Equal(t, float64(4), data["chunks_tracked"])
	assert.Equal(t, float64(2), data["mesh_in_flight"])
	assert.Equal(t, float64(7), data["loads_pending"])
}

func TestChunkInfo(t *testing.T) {
	f := setupServer(t)
	code, resp := f.do(t, http.MethodGet, "/api/chunks/0/0/0", nil)
	require.Equal(t, http.StatusOK, code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["loaded"])
	assert.Equal(t, false, data["modified"])
	assert.Equal(t, tracker.StateLoaded.String(), data["mesh_state"])

	code, resp = f.do(t, http.MethodGet, "/api/chunks/9/0/0", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, resp.Data.(map[string]interface{})["loaded"])

	code, _ = f.do(t, http.MethodGet, "/api/chunks/a/0/0", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBlockReadWrite(t *testing.T) {
	f := setupServer(t)

	code, resp := f.do(t, http.MethodGet, "/api/blocks/1/2/3", nil)
	require.Equal(t, http.StatusOK, code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "air", data["name"])
	assert.Equal(t, float64(world.MaxLight), data["sky_light"])

	code, _ = f.do(t, http.MethodPut, "/api/blocks/1/2/3", PutBlockRequest{Block: "stone"})
	require.Equal(t, http.StatusOK, code)
	id, err := f.world.ReadBlock(vec.New(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, block.StoneID, id)

	code, _ = f.do(t, http.MethodPut, "/api/blocks/1/2/3", PutBlockRequest{Block: "unobtainium"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPut, "/api/blocks/1/2/3", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodGet, "/api/blocks/100/0/0", nil)
	assert.Equal(t, http.StatusNotFound, code, "чанк не загружен")
}

func TestAnchorsLifecycle(t *testing.T) {
	f := setupServer(t)

	code, _ := f.do(t, http.MethodPut, "/api/anchors/player", AnchorRequest{X: 40, Y: 8, Z: -3})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, vec.New(40, 8, -3), f.loader.anchors["player"])

	pos, ok, err := f.repo.Load(context.Background(), "player")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, vec.New(40, 8, -3), pos)

	code, resp := f.do(t, http.MethodGet, "/api/anchors", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, resp.Data.(map[string]interface{}), "player")

	code, _ = f.do(t, http.MethodDelete, "/api/anchors/player", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, f.loader.anchors, "player")

	code, _ = f.do(t, http.MethodDelete, "/api/anchors/player", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
