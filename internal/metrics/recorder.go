package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder собирает Prometheus-метрики мира и конвейера меширования.
// Все методы безопасны для nil-получателя: компонент без метрик просто передаёт nil.
type Recorder struct {
	chunksLoaded       prometheus.Gauge
	generations        prometheus.Counter
	generationFailures prometheus.Counter
	generationDuration prometheus.Histogram
	storeHits          prometheus.Counter
	unloads            prometheus.Counter
	unloadBlocked      prometheus.Counter
	edits              prometheus.Counter

	meshDispatched prometheus.Counter
	meshCompleted  prometheus.Counter
	meshStale      prometheus.Counter
	meshCancelled  prometheus.Counter
	meshDuration   prometheus.Histogram
	meshVertices   prometheus.Histogram
}

// NewRecorder создаёт метрики и регистрирует их в reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		chunksLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "chunks_loaded",
			Help:      "Количество резидентных чанков.",
		}),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "generations_total",
			Help:      "Успешные генерации чанков.",
		}),
		generationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "generation_failures_total",
			Help:      "Неудачные попытки генерации.",
		}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "generation_seconds",
			Help:      "Длительность генерации одного чанка.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		storeHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "store_hits_total",
			Help:      "Чанки, восстановленные из хранилища вместо генерации.",
		}),
		unloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "unloads_total",
			Help:      "Выгруженные чанки.",
		}),
		unloadBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "unload_blocked_total",
			Help:      "Выгрузки, отклонённые из-за живых гардов или заданий.",
		}),
		edits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "edits_total",
			Help:      "Применённые изменения блоков и света.",
		}),
		meshDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "mesher",
			Name:      "jobs_dispatched_total",
			Help:      "Задания меширования, отправленные в пул.",
		}),
		meshCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "mesher",
			Name:      "jobs_completed_total",
			Help:      "Результаты меширования, переданные рендереру.",
		}),
		meshStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "mesher",
			Name:      "jobs_stale_total",
			Help:      "Устаревшие результаты, отброшенные при выгрузке.",
		}),
		meshCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "mesher",
			Name:      "jobs_cancelled_total",
			Help:      "Задания, отменённые до начала работы.",
		}),
		meshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxel",
			Subsystem: "mesher",
			Name:      "job_seconds",
			Help:      "Длительность построения меша.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		meshVertices: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxel",
			Subsystem: "mesher",
			Name:      "vertices",
			Help:      "Число вершин в построенном меше.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 9),
		}),
	}

	reg.MustRegister(
		r.chunksLoaded, r.generations, r.generationFailures, r.generationDuration,
		r.storeHits, r.unloads, r.unloadBlocked, r.edits,
		r.meshDispatched, r.meshCompleted, r.meshStale, r.meshCancelled,
		r.meshDuration, r.meshVertices,
	)
	return r
}

// ChunkLoaded отмечает вставку чанка
func (r *Recorder) ChunkLoaded(fromStore bool) {
	if r == nil {
		return
	}
	r.chunksLoaded.Inc()
	if fromStore {
		r.storeHits.Inc()
	}
}

// ChunkUnloaded отмечает выгрузку чанка
func (r *Recorder) ChunkUnloaded() {
	if r == nil {
		return
	}
	r.chunksLoaded.Dec()
	r.unloads.Inc()
}

// UnloadBlocked отмечает отклонённую выгрузку
func (r *Recorder) UnloadBlocked() {
	if r == nil {
		return
	}
	r.unloadBlocked.Inc()
}

// Generation отмечает попытку генерации
func (r *Recorder) Generation(ok bool, d time.Duration) {
	if r == nil {
		return
	}
	if ok {
		r.generations.Inc()
	} else {
		r.generationFailures.Inc()
	}
	r.generationDuration.Observe(d.Seconds())
}

// Edits отмечает n применённых изменений
func (r *Recorder) Edits(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.edits.Add(float64(n))
}

// MeshDispatched отмечает отправку задания
func (r *Recorder) MeshDispatched() {
	if r == nil {
		return
	}
	r.meshDispatched.Inc()
}

// MeshCompleted отмечает готовый результат
func (r *Recorder) MeshCompleted(d time.Duration, vertices int) {
	if r == nil {
		return
	}
	r.meshCompleted.Inc()
	r.meshDuration.Observe(d.Seconds())
	r.meshVertices.Observe(float64(vertices))
}

// MeshStale отмечает отброшенный результат
func (r *Recorder) MeshStale() {
	if r == nil {
		return
	}
	r.meshStale.Inc()
}

// MeshCancelled отмечает задание, отменённое до меширования
func (r *Recorder) MeshCancelled() {
	if r == nil {
		return
	}
	r.meshCancelled.Inc()
}
