package observability

import (
	"net/http"
	"time"

	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "weddinghub"

// Metrics holds the service's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	serverMetrics *grpcprom.ServerMetrics

	submissions    *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	compensations  *prometheus.CounterVec
	bytesUploaded  *prometheus.CounterVec
	janitorPending prometheus.Gauge
}

// InitMetrics builds the registry with gRPC server metrics, submission
// metrics and the Go runtime collectors.
func InitMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		serverMetrics: grpcprom.NewServerMetrics(
			grpcprom.WithServerHandlingTimeHistogram(
				grpcprom.WithHistogramBuckets([]float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10}),
			),
		),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submissions by outcome and failing stage.",
		}, []string{"outcome", "stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_stage_duration_seconds",
			Help:      "Time spent in each submission stage.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage", "result"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensations_total",
			Help:      "Compensating deletes by object kind and result.",
		}, []string{"kind", "result"}),
		bytesUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes written to the object store.",
		}, []string{"kind"}),
		janitorPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "janitor_pending_deletes",
			Help:      "Orphaned objects waiting for cleanup.",
		}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.serverMetrics,
		m.submissions,
		m.stageDuration,
		m.compensations,
		m.bytesUploaded,
		m.janitorPending,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// GetServerMetrics returns the gRPC server metrics
func (m *Metrics) GetServerMetrics() *grpcprom.ServerMetrics {
	return m.serverMetrics
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// GetHandler returns the HTTP handler for /metrics endpoint
func (m *Metrics) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveSubmission(outcome, stage string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome, stage).Inc()
}

func (m *Metrics) ObserveStage(stage, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, result).Observe(d.Seconds())
}

func (m *Metrics) ObserveCompensation(kind, result string) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) AddUploadedBytes(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesUploaded.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) SetJanitorPending(n int) {
	if m == nil {
		return
	}
	m.janitorPending.Set(float64(n))
}

// NewMetricsServer returns the HTTP server exposing /metrics and /health.
// The caller owns its lifecycle.
func NewMetricsServer(addr string, m *Metrics, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", m.GetHandler())

	logger.Info("metrics server configured", zap.String("addr", addr))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
