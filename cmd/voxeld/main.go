package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/voxelcore/internal/api"
	"github.com/annel0/voxelcore/internal/config"
	"github.com/annel0/voxelcore/internal/eventbus"
	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/mesher"
	"github.com/annel0/voxelcore/internal/metrics"
	"github.com/annel0/voxelcore/internal/observability"
	"github.com/annel0/voxelcore/internal/pipeline"
	"github.com/annel0/voxelcore/internal/storage"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $VOXEL_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if err := logging.InitLogger(cfg.Logging.Dir); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseLogger()
	logging.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	if err := logging.GetLoggerManager().ApplyLevels(cfg.Logging.Components); err != nil {
		log.Fatalf("❌ Ошибка настройки логирования: %v", err)
	}

	logging.Info("🧊 Запуск voxeld")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseLogger()
		os.Exit(1)
	}
	logging.Info("👋 voxeld остановлен")
}

func run(ctx context.Context, cfg *config.Config) error {
	// === РЕЕСТР БЛОКОВ ===
	registry := block.DefaultRegistry()
	if cfg.Registry.Manifest != "" {
		r, err := block.LoadManifest(cfg.Registry.Manifest)
		if err != nil {
			return err
		}
		registry = r
	}
	logging.Info("📦 Зарегистрировано блоков: %d, текстур: %d", registry.Len(), len(registry.Textures()))

	mode, err := cfg.MesherMode()
	if err != nil {
		return err
	}

	// === МЕТРИКИ ===
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(metrics.NewProcessCollector())
	recorder := metrics.NewRecorder(promReg)

	// === ТРАССИРОВКА ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, observability.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			logging.Warn("⚠️ Трассировка отключена: %v", err)
		} else {
			defer func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				_ = shutdown(shutdownCtx)
			}()
		}
	}

	// === ОТЛАДОЧНЫЙ КАНАЛ ===
	var debug world.DebugSink
	if cfg.Debug.Enabled {
		bus, err := newDebugBus(cfg.Debug)
		if err != nil {
			return err
		}
		defer bus.Close()

		sub, err := eventbus.StartLoggingListener(bus, cfg.Debug.Categories...)
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()

		exporter := eventbus.NewMetricsExporter(bus, promReg)
		exporter.Start()
		defer exporter.Stop()

		debug = eventbus.NewDebugChannel(bus, cfg.Debug.Categories...)
	}

	// === ХРАНИЛИЩЕ И ГЕНЕРАТОР ===
	store, err := storage.NewBadgerStore(cfg.World.StoreDir)
	if err != nil {
		return err
	}
	defer store.Close()

	gen, err := world.NewTerrainGenerator(registry, world.TerrainOptions{Caves: cfg.World.Caves})
	if err != nil {
		return err
	}
	defer gen.Close()

	// === МИР ===
	w := world.New(registry, gen, world.Options{
		Seed:                  cfg.Seed(),
		EventBuffer:           cfg.World.EventBuffer,
		MaxGenerationAttempts: cfg.World.MaxGenerationAttempts,
		GenerationConcurrency: cfg.World.GenerationConcurrency,
		Store:                 store,
		Debug:                 debug,
		Metrics:               recorder,
		Logger:                logging.GetWorldLogger(),
	})
	defer w.Close()

	svc := pipeline.New(w, mesher.New(mode, registry), pipeline.Options{
		MaxInFlight: cfg.Mesher.MaxInFlight,
		Workers:     cfg.Mesher.Workers,
		Debug:       debug,
		Metrics:     recorder,
		Logger:      logging.GetPipelineLogger(),
	})
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	loader := world.NewLoader(w, world.LoaderOptions{
		LoadRadius:     cfg.Loader.LoadRadius,
		UnloadRadius:   cfg.Loader.UnloadRadius,
		LoadsPerTick:   cfg.Loader.LoadsPerTick,
		UnloadsPerTick: cfg.Loader.UnloadsPerTick,
		Workers:        cfg.Loader.Workers,
	})
	defer loader.Stop()

	// === ЯКОРЯ ===
	anchors, err := storage.NewAnchorRepo(storage.AnchorConfig{
		Backend: cfg.Anchors.Backend,
		DSN:     cfg.Anchors.DSN,
		Addr:    cfg.Anchors.Addr,
		Prefix:  cfg.Anchors.Prefix,
	})
	if err != nil {
		return err
	}
	defer anchors.Close()
	if err := restoreAnchors(ctx, anchors, loader); err != nil {
		return err
	}

	// === HTTP API ===
	if addr := cfg.MetricsAddr(); addr != "" {
		srv := api.NewServer(api.Config{
			Addr:     addr,
			World:    w,
			Pipeline: svc,
			Loader:   loader,
			Anchors:  anchors,
			Registry: promReg,
		})
		srv.Start()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logging.Info("✅ Мир запущен: seed=%d, мешер=%s, радиус загрузки=%d", w.Seed(), mode, cfg.Loader.LoadRadius)

	return loop(ctx, cfg, loader, svc)
}

// loop тикает загрузчик и забирает готовые меши до отмены ctx
func loop(ctx context.Context, cfg *config.Config, loader *world.Loader, svc *pipeline.Service) error {
	tick := time.NewTicker(time.Duration(max(cfg.Loader.TickMillis, 1)) * time.Millisecond)
	defer tick.Stop()
	report := time.NewTicker(10 * time.Second)
	defer report.Stop()

	meshes := make(map[world.ChunkPos]int)
	var quads int
	for {
		select {
		case <-ctx.Done():
			logging.Info("📡 Получен сигнал завершения, останавливаемся...")
			return nil
		case <-tick.C:
			loader.Tick(ctx)
			for _, u := range svc.Drain() {
				quads -= meshes[u.Pos]
				if u.Removed {
					delete(meshes, u.Pos)
					continue
				}
				meshes[u.Pos] = u.Buffer.Quads()
				quads += meshes[u.Pos]
			}
		case <-report.C:
			st := svc.Stats()
			logging.Info("📊 чанков=%d, мешей=%d, квадов=%d, в работе=%d, в очереди=%d, загрузок ожидает=%d",
				st.Tracked, len(meshes), quads, st.InFlight, st.Ready, loader.Pending())
		}
	}
}

// restoreAnchors возвращает загрузчику сохранённые якоря; без них мир держится вокруг начала координат
func restoreAnchors(ctx context.Context, repo storage.AnchorRepo, loader *world.Loader) error {
	saved, err := repo.All(ctx)
	if err != nil {
		return err
	}
	if len(saved) == 0 {
		saved = map[string]vec.Vec3{"origin": {}}
		if err := repo.BatchSave(ctx, saved); err != nil {
			return err
		}
	}
	for id, pos := range saved {
		loader.SetAnchor(id, pos)
		logging.Info("⚓ Якорь %s: %v", id, pos)
	}
	return nil
}

// newDebugBus выбирает транспорт отладочного канала: JetStream при заданном NATS URL, иначе память
func newDebugBus(cfg config.DebugConfig) (eventbus.EventBus, error) {
	if cfg.NATSURL == "" {
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}
	logging.Info("🛰️ Отладочный канал через NATS JetStream: %s", cfg.NATSURL)
	return eventbus.NewJetStreamBus(cfg.NATSURL, cfg.Stream, time.Duration(cfg.Retention)*time.Minute)
}
