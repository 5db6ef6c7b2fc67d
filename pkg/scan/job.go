// Package scan tracks the lifecycle of scan jobs: admission, status,
// progress, and retention. It owns no probing logic; the orchestrator
// drives jobs through their states.
package scan

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/siteprobe/siteprobe/pkg/aggregate"
)

// Status represents the current state of a scan job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRejected  Status = "rejected"
)

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRejected
}

// Job represents one scan through its lifecycle. All mutation goes
// through Store methods; readers take snapshots.
//
// Job intentionally does NOT retain probe intermediates — only the final
// aggregated report survives, so a finished job holds no raw response
// data in memory.
type Job struct {
	mu sync.RWMutex

	// Immutable fields (set at creation, never change).
	ID        string
	Target    string
	CreatedAt time.Time

	// Mutable fields (updated by the pipeline goroutine).
	Status    Status
	Progress  int // 0-100, monotonically non-decreasing
	Phase     string
	UpdatedAt time.Time

	// Terminal fields (set once on completion/failure/rejection).
	Report      *aggregate.Report
	Error       string
	CompletedAt time.Time

	// done is closed when the job reaches a terminal state.
	// Used by WaitTerminal for long-poll support.
	done chan struct{}
}

// closeDone safely closes the done channel. Must be called under j.mu.
func closeDone(ch chan struct{}) {
	select {
	case <-ch:
		// Already closed.
	default:
		close(ch)
	}
}

// WaitTerminal blocks until the job reaches a terminal state, the context
// is cancelled, or wait elapses — whichever comes first. Lets status
// pollers long-poll instead of hammering the endpoint.
func (j *Job) WaitTerminal(ctx context.Context, wait time.Duration) {
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-j.done:
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Snapshot returns a read-consistent copy of the job for serialization.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	snap := Snapshot{
		ID:        j.ID,
		Target:    j.Target,
		Status:    j.Status,
		Progress:  j.Progress,
		Phase:     j.Phase,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if !j.CompletedAt.IsZero() {
		t := j.CompletedAt
		snap.CompletedAt = &t
	}
	if j.Status == StatusCompleted {
		snap.Report = j.Report
	}
	if j.Status == StatusFailed || j.Status == StatusRejected {
		snap.Error = j.Error
	}
	return snap
}

// Snapshot is an immutable, JSON-serializable view of a Job. Field names
// are the status API wire contract.
type Snapshot struct {
	ID          string            `json:"scanId"`
	Target      string            `json:"target"`
	Status      Status            `json:"status"`
	Progress    int               `json:"progressPercent"`
	Phase       string            `json:"currentPhase,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"lastUpdatedAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	Report      *aggregate.Report `json:"report,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// generateScanID produces a short, unique, URL-safe scan identifier.
// Format: "scan_" + 16 hex chars (8 random bytes = 2^64 values).
func generateScanID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand failed: %w", err)
	}
	return "scan_" + hex.EncodeToString(b), nil
}
