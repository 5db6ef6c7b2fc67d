package events

// StartedEvent is emitted when the pipeline goroutine picks up a job.
type StartedEvent struct {
	BaseEvent
	Target string `json:"target"`
}

// NewStartedEvent creates a scan.started event.
func NewStartedEvent(scanID, target string) *StartedEvent {
	return &StartedEvent{BaseEvent: base(EventTypeStarted, scanID), Target: target}
}

// PhaseEvent is emitted on every phase transition and progress bump.
type PhaseEvent struct {
	BaseEvent
	Phase    string `json:"phase"`
	Progress int    `json:"progress_percent"`
}

// NewPhaseEvent creates a scan.phase event.
func NewPhaseEvent(scanID, phase string, progress int) *PhaseEvent {
	return &PhaseEvent{BaseEvent: base(EventTypePhase, scanID), Phase: phase, Progress: progress}
}

// ProbeEvent is emitted as each probe settles. Error is empty on
// success; an isolated failure carries its reason here and nowhere else.
type ProbeEvent struct {
	BaseEvent
	Probe    string `json:"probe"`
	Findings int    `json:"findings"`
	Error    string `json:"error,omitempty"`
}

// NewProbeEvent creates a scan.probe event.
func NewProbeEvent(scanID, probe string, findings int, errMsg string) *ProbeEvent {
	return &ProbeEvent{BaseEvent: base(EventTypeProbe, scanID), Probe: probe, Findings: findings, Error: errMsg}
}

// CompletedEvent is emitted once when a scan reaches the completed
// state. It carries the report headline, not the full finding list.
type CompletedEvent struct {
	BaseEvent
	Target      string         `json:"target"`
	Score       int            `json:"score"`
	Grade       string         `json:"grade"`
	TotalIssues int            `json:"total_issues"`
	Severities  map[string]int `json:"severity_counts,omitempty"`
	ProbeErrors int            `json:"probe_errors"`
	DurationSec float64        `json:"duration_sec"`
}

// NewCompletedEvent creates a scan.completed event.
func NewCompletedEvent(scanID, target string, score int, grade string, totalIssues int, severities map[string]int, probeErrors int, durationSec float64) *CompletedEvent {
	return &CompletedEvent{
		BaseEvent:   base(EventTypeCompleted, scanID),
		Target:      target,
		Score:       score,
		Grade:       grade,
		TotalIssues: totalIssues,
		Severities:  severities,
		ProbeErrors: probeErrors,
		DurationSec: durationSec,
	}
}

// FailedEvent is emitted once when the pipeline itself fails — an
// aggregation error or a panic, never an isolated probe failure.
type FailedEvent struct {
	BaseEvent
	Target string `json:"target"`
	Error  string `json:"error"`
}

// NewFailedEvent creates a scan.failed event.
func NewFailedEvent(scanID, target, errMsg string) *FailedEvent {
	return &FailedEvent{BaseEvent: base(EventTypeFailed, scanID), Target: target, Error: errMsg}
}

// RejectedEvent is emitted when an admitted job's target fails
// validation.
type RejectedEvent struct {
	BaseEvent
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// NewRejectedEvent creates a scan.rejected event.
func NewRejectedEvent(scanID, target, reason string) *RejectedEvent {
	return &RejectedEvent{BaseEvent: base(EventTypeRejected, scanID), Target: target, Reason: reason}
}
