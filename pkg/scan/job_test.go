package scan

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/siteprobe/siteprobe/pkg/aggregate"
)

func TestGenerateScanID(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id, err := generateScanID()
		if err != nil {
			t.Fatalf("generateScanID() returned error: %v", err)
		}
		if !strings.HasPrefix(id, "scan_") {
			t.Fatalf("scan ID %q missing 'scan_' prefix", id)
		}
		if len(id) != 21 { // "scan_" (5) + 16 hex chars
			t.Fatalf("scan ID %q has unexpected length %d, want 21", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate scan ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusQueued, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusRejected, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestSnapshot_ReportOnlyWhenCompleted(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Stop()

	job, err := store.Create("https://example.com")
	if err != nil {
		t.Fatalf("creating job: %v", err)
	}

	// A running job exposes no report and no error.
	store.Start(job.ID)
	snap := job.Snapshot()
	if snap.Report != nil {
		t.Error("running job snapshot carries a report")
	}
	if snap.Error != "" {
		t.Errorf("running job snapshot carries error %q", snap.Error)
	}
	if snap.CompletedAt != nil {
		t.Error("running job snapshot carries CompletedAt")
	}

	store.Complete(job.ID, &aggregate.Report{Score: 100, Grade: "A"})
	snap = job.Snapshot()
	if snap.Report == nil {
		t.Fatal("completed job snapshot missing report")
	}
	if snap.Report.Grade != "A" {
		t.Errorf("report grade = %q, want A", snap.Report.Grade)
	}
	if snap.CompletedAt == nil {
		t.Error("completed job snapshot missing CompletedAt")
	}
}

func TestSnapshot_ErrorOnlyWhenFailedOrRejected(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Stop()

	failed, _ := store.Create("https://example.com")
	store.Start(failed.ID)
	store.Fail(failed.ID, "aggregation error")

	snap := failed.Snapshot()
	if snap.Error != "aggregation error" {
		t.Errorf("failed snapshot error = %q, want aggregation error", snap.Error)
	}
	if snap.Report != nil {
		t.Error("failed job snapshot carries a report")
	}

	rejected, _ := store.Create("http://localhost/")
	store.Reject(rejected.ID, "blocked hostname")

	snap = rejected.Snapshot()
	if snap.Status != StatusRejected {
		t.Fatalf("status = %q, want rejected", snap.Status)
	}
	if snap.Error != "blocked hostname" {
		t.Errorf("rejected snapshot error = %q", snap.Error)
	}
}

func TestWaitTerminal_ReturnsOnCompletion(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Stop()

	job, _ := store.Create("https://example.com")
	store.Start(job.ID)

	go func() {
		time.Sleep(20 * time.Millisecond)
		store.Complete(job.ID, &aggregate.Report{})
	}()

	start := time.Now()
	job.WaitTerminal(context.Background(), 5*time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WaitTerminal blocked %v after completion, want prompt return", elapsed)
	}
}

func TestWaitTerminal_TimesOut(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Stop()

	job, _ := store.Create("https://example.com")
	store.Start(job.ID)

	start := time.Now()
	job.WaitTerminal(context.Background(), 30*time.Millisecond)
	elapsed := time.Since(start)

	if elapsed < 30*time.Millisecond {
		t.Errorf("WaitTerminal returned after %v, want at least the wait window", elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("WaitTerminal blocked %v past its window", elapsed)
	}
}

func TestWaitTerminal_HonorsContext(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Stop()

	job, _ := store.Create("https://example.com")
	store.Start(job.ID)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	job.WaitTerminal(ctx, 5*time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WaitTerminal ignored context cancellation, blocked %v", elapsed)
	}
}

func TestWaitTerminal_ZeroWaitNoBlock(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Stop()

	job, _ := store.Create("https://example.com")

	start := time.Now()
	job.WaitTerminal(context.Background(), 0)
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("WaitTerminal(0) blocked %v, want immediate return", elapsed)
	}
}
