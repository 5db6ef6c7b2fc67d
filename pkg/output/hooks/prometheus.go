package hooks

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/siteprobe/siteprobe/pkg/output/dispatcher"
	"github.com/siteprobe/siteprobe/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*PrometheusHook)(nil)

// PrometheusHook maintains scan metrics in its own registry. It does
// not run a server: the API mounts Registry() on its /metrics route so
// one listener serves both traffic and metrics.
type PrometheusHook struct {
	registry *prometheus.Registry

	scansTotal      *prometheus.CounterVec
	probeErrors     *prometheus.CounterVec
	findingsTotal   *prometheus.CounterVec
	runningScans    prometheus.Gauge
	scanDurationSec prometheus.Histogram

	mu     sync.Mutex
	closed bool
}

// NewPrometheusHook creates the hook and registers its collectors on a
// fresh registry, keeping the process-global default registry clean.
func NewPrometheusHook() (*PrometheusHook, error) {
	registry := prometheus.NewRegistry()

	h := &PrometheusHook{
		registry: registry,
		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteprobe_scans_total",
				Help: "Total scans by terminal status",
			},
			[]string{"status"},
		),
		probeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteprobe_probe_errors_total",
				Help: "Isolated probe failures by probe name",
			},
			[]string{"probe"},
		),
		findingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteprobe_findings_total",
				Help: "Reported findings by severity, after deduplication",
			},
			[]string{"severity"},
		),
		runningScans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "siteprobe_running_scans",
				Help: "Scans currently in flight",
			},
		),
		scanDurationSec: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "siteprobe_scan_duration_seconds",
				Help:    "End-to-end scan duration distribution",
				Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 90, 120},
			},
		),
	}

	collectors := []prometheus.Collector{
		h.scansTotal,
		h.probeErrors,
		h.findingsTotal,
		h.runningScans,
		h.scanDurationSec,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Registry exposes the hook's registry for the API's /metrics handler.
func (h *PrometheusHook) Registry() *prometheus.Registry {
	return h.registry
}

// OnEvent updates metrics from lifecycle events.
func (h *PrometheusHook) OnEvent(_ context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartedEvent:
		h.runningScans.Inc()
	case *events.ProbeEvent:
		if e.Error != "" {
			h.probeErrors.WithLabelValues(e.Probe).Inc()
		}
	case *events.CompletedEvent:
		h.runningScans.Dec()
		h.scansTotal.WithLabelValues("completed").Inc()
		h.scanDurationSec.Observe(e.DurationSec)
		for severity, count := range e.Severities {
			h.findingsTotal.WithLabelValues(severity).Add(float64(count))
		}
	case *events.FailedEvent:
		h.runningScans.Dec()
		h.scansTotal.WithLabelValues("failed").Inc()
	case *events.RejectedEvent:
		h.runningScans.Dec()
		h.scansTotal.WithLabelValues("rejected").Inc()
	}
	return nil
}

// EventTypes returns the event types this hook handles.
func (h *PrometheusHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeStarted,
		events.EventTypeProbe,
		events.EventTypeCompleted,
		events.EventTypeFailed,
		events.EventTypeRejected,
	}
}

// Close stops metric updates. The registry stays readable so a final
// scrape during shutdown still sees consistent values.
func (h *PrometheusHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
