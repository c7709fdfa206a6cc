package diag

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the run counters on a private registry. A batch run has no
// scrape endpoint; the registry is dumped in textfile format at the end.
type Metrics struct {
	reg *prometheus.Registry

	ops        *prometheus.CounterVec
	errors     *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	guardians  *prometheus.CounterVec
	children   *prometheus.CounterVec
	index      *prometheus.GaugeVec
	collisions *prometheus.CounterVec
	skipped    *prometheus.CounterVec
}

// NewMetrics registers every kidslink collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kidslink_op_total",
			Help: "Pipeline stage outcomes.",
		}, []string{"comp", "stage", "result"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kidslink_error_total",
			Help: "Errors by component and category.",
		}, []string{"comp", "code"}),
		durations: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kidslink_stage_duration_seconds",
			Help:    "Stage wall time.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"comp", "stage"}),
		guardians: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kidslink_guardians_total",
			Help: "Tallied guardians by resolution method.",
		}, []string{"method"}),
		children: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kidslink_children_total",
			Help: "Linked children by resolution method of their guardian.",
		}, []string{"method"}),
		index: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kidslink_index_entries",
			Help: "Member index size per lookup strategy.",
		}, []string{"strategy"}),
		collisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kidslink_index_collisions_total",
			Help: "Normalized keys claimed by more than one member id.",
		}, []string{"strategy"}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kidslink_rows_skipped_total",
			Help: "Input rows left out, by reason.",
		}, []string{"reason"}),
	}
}

// Registry exposes the underlying registry (tests, textfile export).
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// WriteTextfile writes the registry in node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}

var (
	metricsMu sync.RWMutex
	metrics   *Metrics
)

// SetMetrics installs the process metrics (nil disables).
func SetMetrics(m *Metrics) { metricsMu.Lock(); metrics = m; metricsMu.Unlock() }

// GetMetrics returns the installed metrics, possibly nil.
func GetMetrics() *Metrics { metricsMu.RLock(); defer metricsMu.RUnlock(); return metrics }

// IncOp counts a stage outcome (result=success|error).
func IncOp(comp, stage, result string) {
	if m := GetMetrics(); m != nil {
		m.ops.WithLabelValues(comp, stage, result).Inc()
	}
}

// IncError counts an error by category.
func IncError(comp, code string) {
	if m := GetMetrics(); m != nil {
		m.errors.WithLabelValues(comp, code).Inc()
	}
}

// ObserveDuration records a stage duration.
func ObserveDuration(comp, stage string, d time.Duration) {
	if m := GetMetrics(); m != nil {
		m.durations.WithLabelValues(comp, stage).Observe(d.Seconds())
	}
}

// AddGuardians adds n tallied guardians for method.
func AddGuardians(method string, n int) {
	if m := GetMetrics(); m != nil && n > 0 {
		m.guardians.WithLabelValues(method).Add(float64(n))
	}
}

// AddChildren adds n linked children for method.
func AddChildren(method string, n int) {
	if m := GetMetrics(); m != nil && n > 0 {
		m.children.WithLabelValues(method).Add(float64(n))
	}
}

// SetIndexEntries records the index size of a strategy.
func SetIndexEntries(strategy string, n int) {
	if m := GetMetrics(); m != nil {
		m.index.WithLabelValues(strategy).Set(float64(n))
	}
}

// IncCollision counts one index key collision.
func IncCollision(strategy string) {
	if m := GetMetrics(); m != nil {
		m.collisions.WithLabelValues(strategy).Inc()
	}
}

// AddSkipped counts rows left out for reason.
func AddSkipped(reason string, n int) {
	if m := GetMetrics(); m != nil && n > 0 {
		m.skipped.WithLabelValues(reason).Add(float64(n))
	}
}
