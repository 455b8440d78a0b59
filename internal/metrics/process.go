package metrics

import (
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessCollector экспортирует загрузку CPU и память процесса движка.
// Значения снимаются при каждом scrape.
type ProcessCollector struct {
	startTime time.Time
	proc      *process.Process

	cpuDesc    *prometheus.Desc
	sysCPUDesc *prometheus.Desc
	rssDesc    *prometheus.Desc
	heapDesc   *prometheus.Desc
	goDesc     *prometheus.Desc
	uptimeDesc *prometheus.Desc
}

// NewProcessCollector создаёт коллектор для текущего процесса
func NewProcessCollector() *ProcessCollector {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &ProcessCollector{
		startTime:  time.Now(),
		proc:       proc,
		cpuDesc:    prometheus.NewDesc("voxel_process_cpu_percent", "Загрузка CPU процессом, %.", nil, nil),
		sysCPUDesc: prometheus.NewDesc("voxel_system_cpu_percent", "Загрузка CPU системы, %.", nil, nil),
		rssDesc:    prometheus.NewDesc("voxel_process_rss_bytes", "Резидентная память процесса.", nil, nil),
		heapDesc:   prometheus.NewDesc("voxel_heap_alloc_bytes", "Размер кучи Go.", nil, nil),
		goDesc:     prometheus.NewDesc("voxel_goroutines", "Число горутин.", nil, nil),
		uptimeDesc: prometheus.NewDesc("voxel_uptime_seconds", "Время работы процесса.", nil, nil),
	}
}

// Describe реализует prometheus.Collector
func (c *ProcessCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cpuDesc
	ch <- c.sysCPUDesc
	ch <- c.rssDesc
	ch <- c.heapDesc
	ch <- c.goDesc
	ch <- c.uptimeDesc
}

// Collect реализует prometheus.Collector
func (c *ProcessCollector) Collect(ch chan<- prometheus.Metric) {
	if c.proc != nil {
		if pct, err := c.proc.CPUPercent(); err == nil {
			ch <- prometheus.MustNewConstMetric(c.cpuDesc, prometheus.GaugeValue, pct)
		}
		if mem, err := c.proc.MemoryInfo(); err == nil {
			ch <- prometheus.MustNewConstMetric(c.rssDesc, prometheus.GaugeValue, float64(mem.RSS))
		}
	}
	// Неблокирующий замер: интервал 0 сравнивает с предыдущим вызовом
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		ch <- prometheus.MustNewConstMetric(c.sysCPUDesc, prometheus.GaugeValue, pcts[0])
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	ch <- prometheus.MustNewConstMetric(c.heapDesc, prometheus.GaugeValue, float64(m.HeapAlloc))
	ch <- prometheus.MustNewConstMetric(c.goDesc, prometheus.GaugeValue, float64(runtime.NumGoroutine()))
	ch <- prometheus.MustNewConstMetric(c.uptimeDesc, prometheus.GaugeValue, time.Since(c.startTime).Seconds())
}
