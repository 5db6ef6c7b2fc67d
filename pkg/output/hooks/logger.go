// Package hooks provides the built-in event hooks: structured log
// lines, Prometheus metrics, and OpenTelemetry traces.
package hooks

import (
	"context"
	"log"

	"github.com/siteprobe/siteprobe/pkg/output/dispatcher"
	"github.com/siteprobe/siteprobe/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*LogHook)(nil)

// LogHook writes one log line per lifecycle event. Always registered in
// serve mode; the scan log is the primary operational record since no
// job state survives a restart.
type LogHook struct{}

// NewLogHook creates a logging hook.
func NewLogHook() *LogHook { return &LogHook{} }

// OnEvent logs the event with the shared bracketed-tag format.
func (h *LogHook) OnEvent(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case *events.StartedEvent:
		log.Printf("[scan] STARTED  id=%s  target=%s", e.Scan, e.Target)
	case *events.PhaseEvent:
		log.Printf("[scan] PHASE  id=%s  phase=%s  progress=%d%%", e.Scan, e.Phase, e.Progress)
	case *events.ProbeEvent:
		if e.Error != "" {
			log.Printf("[scan] PROBE FAILED  id=%s  probe=%s  err=%s", e.Scan, e.Probe, e.Error)
		} else {
			log.Printf("[scan] PROBE  id=%s  probe=%s  findings=%d", e.Scan, e.Probe, e.Findings)
		}
	case *events.CompletedEvent:
		log.Printf("[scan] COMPLETED  id=%s  score=%d  grade=%s  issues=%d  probeErrors=%d  duration=%.1fs",
			e.Scan, e.Score, e.Grade, e.TotalIssues, e.ProbeErrors, e.DurationSec)
	case *events.FailedEvent:
		log.Printf("[scan] FAILED  id=%s  err=%s", e.Scan, e.Error)
	case *events.RejectedEvent:
		log.Printf("[scan] REJECTED  id=%s  target=%s  reason=%s", e.Scan, e.Target, e.Reason)
	}
	return nil
}

// EventTypes returns nil: the log hook receives everything.
func (h *LogHook) EventTypes() []events.EventType { return nil }
