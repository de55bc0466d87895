package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects per-run metrics. A nil *Recorder discards everything.
type Recorder struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.HistogramVec
	chunks        *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rag_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),
		chunks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_chunks_total",
			Help: "Chunks seen and added during ingestion.",
		}, []string{"kind"}),
	}
}

func (r *Recorder) ObserveStage(stage string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// Since is a deferrable helper: defer rec.Since("load", time.Now()).
func (r *Recorder) Since(stage string, start time.Time) {
	r.ObserveStage(stage, time.Since(start))
}

func (r *Recorder) AddChunks(kind string, n int) {
	if r == nil {
		return
	}
	r.chunks.WithLabelValues(kind).Add(float64(n))
}

// WriteTextfile writes the registry in text exposition format for the
// node-exporter textfile collector. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
