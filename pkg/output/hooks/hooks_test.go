package hooks

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/siteprobe/siteprobe/pkg/output/events"
)

func TestLogHook_HandlesAllEvents(t *testing.T) {
	h := NewLogHook()
	ctx := context.Background()

	all := []events.Event{
		events.NewStartedEvent("scan_01", "https://example.com"),
		events.NewPhaseEvent("scan_01", "detection", 10),
		events.NewProbeEvent("scan_01", "ports", 2, ""),
		events.NewProbeEvent("scan_01", "certificate", 0, "handshake timeout"),
		events.NewCompletedEvent("scan_01", "https://example.com", 90, "A", 2, nil, 1, 3.5),
		events.NewFailedEvent("scan_01", "https://example.com", "boom"),
		events.NewRejectedEvent("scan_01", "http://127.0.0.1", "loopback"),
	}
	for _, e := range all {
		if err := h.OnEvent(ctx, e); err != nil {
			t.Errorf("OnEvent(%s) error: %v", e.EventType(), err)
		}
	}

	if h.EventTypes() != nil {
		t.Error("log hook should subscribe to all event types")
	}
}

func TestPrometheusHook_RunningGauge(t *testing.T) {
	h, err := NewPrometheusHook()
	if err != nil {
		t.Fatalf("NewPrometheusHook() error: %v", err)
	}
	ctx := context.Background()

	h.OnEvent(ctx, events.NewStartedEvent("scan_01", "https://a.example"))
	h.OnEvent(ctx, events.NewStartedEvent("scan_02", "https://b.example"))
	if got := testutil.ToFloat64(h.runningScans); got != 2 {
		t.Errorf("running_scans = %v, want 2", got)
	}

	h.OnEvent(ctx, events.NewCompletedEvent("scan_01", "https://a.example", 100, "A", 0, nil, 0, 2))
	h.OnEvent(ctx, events.NewFailedEvent("scan_02", "https://b.example", "boom"))
	if got := testutil.ToFloat64(h.runningScans); got != 0 {
		t.Errorf("running_scans = %v, want 0", got)
	}
}

func TestPrometheusHook_Counters(t *testing.T) {
	h, err := NewPrometheusHook()
	if err != nil {
		t.Fatalf("NewPrometheusHook() error: %v", err)
	}
	ctx := context.Background()

	h.OnEvent(ctx, events.NewProbeEvent("scan_01", "ports", 0, "dial timeout"))
	h.OnEvent(ctx, events.NewProbeEvent("scan_01", "templates", 3, ""))
	if got := testutil.ToFloat64(h.probeErrors.WithLabelValues("ports")); got != 1 {
		t.Errorf("probe_errors_total{probe=ports} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.probeErrors.WithLabelValues("templates")); got != 0 {
		t.Errorf("probe_errors_total{probe=templates} = %v, want 0", got)
	}

	h.OnEvent(ctx, events.NewCompletedEvent("scan_01", "https://example.com", 73, "B",
		3, map[string]int{"high": 1, "low": 2}, 1, 4))
	if got := testutil.ToFloat64(h.scansTotal.WithLabelValues("completed")); got != 1 {
		t.Errorf("scans_total{status=completed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.findingsTotal.WithLabelValues("high")); got != 1 {
		t.Errorf("findings_total{severity=high} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.findingsTotal.WithLabelValues("low")); got != 2 {
		t.Errorf("findings_total{severity=low} = %v, want 2", got)
	}

	h.OnEvent(ctx, events.NewRejectedEvent("scan_02", "http://127.0.0.1", "loopback"))
	if got := testutil.ToFloat64(h.scansTotal.WithLabelValues("rejected")); got != 1 {
		t.Errorf("scans_total{status=rejected} = %v, want 1", got)
	}
}

func TestPrometheusHook_ClosedIgnoresEvents(t *testing.T) {
	h, err := NewPrometheusHook()
	if err != nil {
		t.Fatalf("NewPrometheusHook() error: %v", err)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	h.OnEvent(context.Background(), events.NewStartedEvent("scan_01", "https://example.com"))
	if got := testutil.ToFloat64(h.runningScans); got != 0 {
		t.Errorf("running_scans after Close = %v, want 0", got)
	}
}

func TestPrometheusHook_RegistryExposed(t *testing.T) {
	h, err := NewPrometheusHook()
	if err != nil {
		t.Fatalf("NewPrometheusHook() error: %v", err)
	}
	if h.Registry() == nil {
		t.Fatal("Registry() returned nil")
	}

	h.OnEvent(context.Background(), events.NewStartedEvent("scan_01", "https://example.com"))
	families, err := h.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "siteprobe_running_scans" {
			found = true
		}
	}
	if !found {
		t.Error("siteprobe_running_scans not present in registry gather")
	}
}
