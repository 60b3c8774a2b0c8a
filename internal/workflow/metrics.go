package workflow

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"vidqueue/internal/queue"
)

// Metrics holds the Prometheus collectors updated by the Manager. Each Manager
// gets its own set so tests can assert on them without a global registry.
type Metrics struct {
	filesTotal       *prometheus.CounterVec
	projectsTotal    *prometheus.CounterVec
	bytesSaved       prometheus.Counter
	encodeDuration   prometheus.Histogram
	queueMode        *prometheus.GaugeVec
	persistFailures  prometheus.Counter
	projectsByStatus *prometheus.GaugeVec
}

// NewMetrics builds an unregistered collector set.
func NewMetrics() *Metrics {
	return &Metrics{
		filesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidqueue_files_total",
				Help: "Files that reached a terminal state, by result",
			},
			[]string{"result"},
		),
		projectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidqueue_projects_total",
				Help: "Projects that reached a terminal state, by result",
			},
			[]string{"result"},
		),
		bytesSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vidqueue_bytes_saved_total",
				Help: "Bytes saved by completed encodes",
			},
		),
		encodeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vidqueue_encode_duration_seconds",
				Help:    "Wall time spent encoding one file",
				Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200}, // 10s to 2h
			},
		),
		queueMode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vidqueue_queue_mode",
				Help: "Current queue mode (1 for the active mode, 0 otherwise)",
			},
			[]string{"mode"},
		),
		persistFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vidqueue_persistence_failures_total",
				Help: "Queue snapshot writes that failed",
			},
		),
		projectsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vidqueue_projects",
				Help: "Projects currently in the queue, by status",
			},
			[]string{"status"},
		),
	}
}

// Collectors lists every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.filesTotal,
		m.projectsTotal,
		m.bytesSaved,
		m.encodeDuration,
		m.queueMode,
		m.persistFailures,
		m.projectsByStatus,
	}
}

// Register adds the collectors to reg. Collectors that are already registered
// are tolerated so a restarted Manager can reuse a registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

func (m *Metrics) observeFile(task queue.FileTask) {
	if m == nil {
		return
	}
	m.filesTotal.WithLabelValues(string(task.Status)).Inc()
	if task.Result == nil {
		return
	}
	if task.Status == queue.StatusCompleted && task.Result.BytesSaved > 0 {
		m.bytesSaved.Add(float64(task.Result.BytesSaved))
	}
	if task.Result.DurationSeconds > 0 {
		m.encodeDuration.Observe(task.Result.DurationSeconds)
	}
}

func (m *Metrics) observeProject(status queue.Status) {
	if m == nil {
		return
	}
	m.projectsTotal.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) setMode(mode queue.Mode) {
	if m == nil {
		return
	}
	for _, candidate := range []queue.Mode{queue.ModeIdle, queue.ModeRunning, queue.ModePaused, queue.ModeCanceling} {
		value := 0.0
		if candidate == mode {
			value = 1
		}
		m.queueMode.WithLabelValues(string(candidate)).Set(value)
	}
}

func (m *Metrics) setProjectCounts(counts map[queue.Status]int) {
	if m == nil {
		return
	}
	for _, status := range queue.AllStatuses() {
		m.projectsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

func (m *Metrics) persistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}
