// Package events defines the scan lifecycle events that flow through
// the dispatcher to observability hooks. All events are designed for
// JSON serialization.
//
// The BaseEvent struct is designed to be embedded in specific event
// types (PhaseEvent, ProbeEvent, etc.).
package events

import "time"

// EventType represents the type of lifecycle event.
type EventType string

const (
	// EventTypeStarted indicates a scan pipeline has started running.
	EventTypeStarted EventType = "scan.started"
	// EventTypePhase indicates the pipeline entered a new phase.
	EventTypePhase EventType = "scan.phase"
	// EventTypeProbe indicates a single probe settled (success or isolated failure).
	EventTypeProbe EventType = "scan.probe"
	// EventTypeCompleted indicates a scan finished with a report.
	EventTypeCompleted EventType = "scan.completed"
	// EventTypeFailed indicates the pipeline itself failed.
	EventTypeFailed EventType = "scan.failed"
	// EventTypeRejected indicates the target was rejected after admission.
	EventTypeRejected EventType = "scan.rejected"
)

// Event is the base interface for all events.
type Event interface {
	EventType() EventType
	Timestamp() time.Time
	ScanID() string
}

// BaseEvent contains common fields for all events.
// It is designed to be embedded in specific event types.
type BaseEvent struct {
	Type EventType `json:"type"`
	Time time.Time `json:"timestamp"`
	Scan string    `json:"scan_id"`
}

// EventType returns the type of this event.
func (e BaseEvent) EventType() EventType { return e.Type }

// Timestamp returns when this event occurred.
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// ScanID returns the identifier of the scan that produced this event.
func (e BaseEvent) ScanID() string { return e.Scan }

// base builds the embedded BaseEvent for the constructors below.
func base(t EventType, scanID string) BaseEvent {
	return BaseEvent{Type: t, Time: time.Now(), Scan: scanID}
}
