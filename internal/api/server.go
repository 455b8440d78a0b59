package api

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/middleware"
	"github.com/annel0/voxelcore/internal/pipeline"
	"github.com/annel0/voxelcore/internal/storage"
	"github.com/annel0/voxelcore/internal/tracker"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Pipeline - то, что сервер читает из конвейера мешей
type Pipeline interface {
	Stats() pipeline.Stats
	State(pos world.ChunkPos) tracker.State
}

// Anchors управляет якорями загрузчика; *world.Loader удовлетворяет интерфейсу
type Anchors interface {
	SetAnchor(id string, pos vec.Vec3)
	RemoveAnchor(id string)
	Pending() int
}

// Config содержит зависимости HTTP сервера
type Config struct {
	Addr     string
	World    *world.World
	Pipeline Pipeline
	Loader   Anchors
	Anchors  storage.AnchorRepo
	Registry *prometheus.Registry
	Logger   *logging.Logger
}

// Server - служебный HTTP API: /health, /metrics и интроспекция мира под /api
type Server struct {
	router  *gin.Engine
	srv     *http.Server
	cfg     Config
	log     *logging.Logger
	started time.Time
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewServer создаёт сервер, но не запускает его
func NewServer(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetHTTPLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(otelgin.Middleware("voxeld"))
	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())
	promMw := middleware.NewPrometheusMiddleware("voxel", cfg.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, cfg.Registry)

	s := &Server{
		router:  router,
		cfg:     cfg,
		log:     cfg.Logger,
		started: time.Now(),
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	api.GET("/stats", s.handleStats)
	api.GET("/chunks/:x/:y/:z", s.handleChunk)

	blocks := api.Group("/blocks")
	{
		blocks.GET("/:x/:y/:z", s.handleGetBlock)
		blocks.PUT("/:x/:y/:z", s.handlePutBlock)
	}

	anchors := api.Group("/anchors")
	{
		anchors.GET("", s.handleGetAnchors)
		anchors.PUT("/:id", s.handlePutAnchor)
		anchors.DELETE("/:id", s.handleDeleteAnchor)
	}
}

// Handler возвращает корневой http.Handler (используется в тестах)
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start запускает сервер в отдельной горутине
func (s *Server) Start() {
	go func() {
		s.log.Info("🌐 HTTP API доступен по адресу %s (/health, /metrics, /api)", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Ошибка HTTP сервера: %v", err)
		}
	}()
}

// Shutdown останавливает сервер, дожидаясь активных запросов
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleHealth проверка состояния сервера
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats := s.cfg.Pipeline.Stats()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "ok",
		Data: gin.H{
			"chunks_loaded":  s.cfg.World.Len(),
			"chunks_tracked": stats.Tracked,
			"mesh_in_flight": stats.InFlight,
			"mesh_ready":     stats.Ready,
			"loads_pending":  s.cfg.Loader.Pending(),
			"uptime_seconds": int64(time.Since(s.started).Seconds()),
			"goroutines":     runtime.NumGoroutine(),
		},
	})
}

func (s *Server) handleChunk(c *gin.Context) {
	p, ok := parseVec(c)
	if !ok {
		return
	}
	pos := world.ChunkPos{X: p.X, Y: p.Y, Z: p.Z}

	data := gin.H{
		"pos":        pos.String(),
		"loaded":     false,
		"failed":     s.cfg.World.Failed(pos),
		"mesh_state": s.cfg.Pipeline.State(pos).String(),
	}
	if ch, ok := s.cfg.World.Chunk(pos); ok {
		data["loaded"] = true
		data["version"] = ch.Version()
		data["modified"] = ch.Modified()
		data["readers"] = ch.Readers()
		data["pins"] = ch.Pins()
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: data})
}

func (s *Server) handleGetBlock(c *gin.Context) {
	p, ok := parseVec(c)
	if !ok {
		return
	}
	cell, err := s.cfg.World.ReadCell(p)
	if err != nil {
		s.fail(c, err)
		return
	}
	props := s.cfg.World.Registry().Props(cell.ID())
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "ok",
		Data: gin.H{
			"id":          cell.ID(),
			"name":        props.Name,
			"block_light": cell.BlockLight(),
			"sky_light":   cell.SkyLight(),
		},
	})
}

// PutBlockRequest - запрос на запись блока по имени
type PutBlockRequest struct {
	Block string `json:"block" binding:"required"`
}

func (s *Server) handlePutBlock(c *gin.Context) {
	p, ok := parseVec(c)
	if !ok {
		return
	}
	var req PutBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса: " + err.Error()})
		return
	}
	id, found := s.cfg.World.Registry().Lookup(req.Block)
	if !found {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неизвестный блок: " + req.Block})
		return
	}
	if err := s.cfg.World.WriteBlock(p, id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блок записан"})
}

// AnchorRequest - новая позиция якоря в мировых координатах блоков
type AnchorRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (s *Server) handleGetAnchors(c *gin.Context) {
	all, err := s.cfg.Anchors.All(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make(map[string]AnchorRequest, len(all))
	for id, p := range all {
		out[id] = AnchorRequest{X: p.X, Y: p.Y, Z: p.Z}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: out})
}

func (s *Server) handlePutAnchor(c *gin.Context) {
	id := c.Param("id")
	var req AnchorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса: " + err.Error()})
		return
	}
	pos := vec.New(req.X, req.Y, req.Z)
	if err := s.cfg.Anchors.Save(c.Request.Context(), id, pos); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	s.cfg.Loader.SetAnchor(id, pos)
	s.log.Info("⚓ Якорь %s перемещён в %v", id, pos)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Якорь сохранён"})
}

func (s *Server) handleDeleteAnchor(c *gin.Context) {
	id := c.Param("id")
	if err := s.cfg.Anchors.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	s.cfg.Loader.RemoveAnchor(id)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Якорь удалён"})
}

// fail переводит ошибки мира и хранилища в HTTP статус
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, world.ErrChunkNotLoaded), errors.Is(err, storage.ErrAnchorNotFound):
		status = http.StatusNotFound
	case errors.Is(err, world.ErrUnknownBlock), errors.Is(err, world.ErrOutOfRange):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.log.Error("Ошибка обработки %s: %v", c.Request.URL.Path, err)
	}
	c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
}

// parseVec читает :x/:y/:z; при ошибке уже отвечает 400
func parseVec(c *gin.Context) (vec.Vec3, bool) {
	var out [3]int
	for i, name := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(c.Param(name))
		if err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверная координата " + name})
			return vec.Vec3{}, false
		}
		out[i] = v
	}
	return vec.New(out[0], out[1], out[2]), true
}
