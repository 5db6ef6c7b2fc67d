package scan

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/siteprobe/siteprobe/pkg/aggregate"
	"github.com/siteprobe/siteprobe/pkg/duration"
)

// Update is a field-level merge for a live job. Nil fields are left
// untouched, so concurrent writers touching different fields don't
// clobber each other's values.
type Update struct {
	Phase    *string
	Progress *int
}

// Store is a concurrent-safe, in-memory job store with retention-based
// eviction. Terminal jobs stay queryable for the retention window, then
// disappear as if they never existed — both to a background sweep and to
// a lazy check on read, whichever fires first.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	retention time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewStore creates a store and starts its sweep goroutine.
func NewStore(retention time.Duration) *Store {
	if retention <= 0 {
		retention = duration.ScanRetention
	}
	interval := retention / 5
	if interval <= 0 {
		interval = duration.StoreSweep
	}

	s := &Store{
		jobs:      make(map[string]*Job),
		retention: retention,
		stop:      make(chan struct{}),
	}
	go s.sweepLoop(interval)
	return s
}

// Stop shuts down the sweep goroutine. Safe to call multiple times.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Create registers a new queued job for the given target.
func (s *Store) Create(target string) (*Job, error) {
	id, err := generateScanID()
	if err != nil {
		return nil, fmt.Errorf("scan: generate id: %w", err)
	}

	now := time.Now()
	job := &Job{
		ID:        id,
		Target:    target,
		Status:    StatusQueued,
		Progress:  0,
		Phase:     "start",
		CreatedAt: now,
		UpdatedAt: now,
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.jobs[id] = job
	total := len(s.jobs)
	s.mu.Unlock()

	log.Printf("[scan-store] CREATED  id=%s  target=%s  total=%d", id, target, total)
	return job, nil
}

// Get returns the job with the given ID. An expired terminal job is
// evicted on the spot and reported as not found, indistinguishable from
// an ID that never existed.
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	job := s.jobs[id]
	known := len(s.jobs)
	s.mu.RUnlock()

	if job == nil {
		log.Printf("[scan-store] GET MISS  id=%s  known=%d", id, known)
		return nil, ErrJobNotFound
	}

	job.mu.RLock()
	expired := job.Status.IsTerminal() && time.Since(job.UpdatedAt) > s.retention
	job.mu.RUnlock()

	if expired {
		s.mu.Lock()
		delete(s.jobs, id)
		s.mu.Unlock()
		log.Printf("[scan-store] EVICT  id=%s  reason=lazy-expiry", id)
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Start transitions a queued job to running.
func (s *Store) Start(id string) {
	job := s.lookup(id)
	if job == nil {
		return
	}

	job.mu.Lock()
	if job.Status != StatusQueued {
		job.mu.Unlock()
		return
	}
	job.Status = StatusRunning
	job.UpdatedAt = time.Now()
	job.mu.Unlock()

	log.Printf("[scan-store] RUNNING  id=%s", id)
}

// Apply merges an Update into a live job. No-op when the job is absent
// or terminal. Progress only ever rises; a stale writer reporting a
// lower percentage loses.
func (s *Store) Apply(id string, u Update) {
	job := s.lookup(id)
	if job == nil {
		return
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	if job.Status.IsTerminal() {
		return
	}
	if u.Phase != nil {
		job.Phase = *u.Phase
	}
	if u.Progress != nil && *u.Progress > job.Progress {
		job.Progress = *u.Progress
	}
	job.UpdatedAt = time.Now()
}

// Complete marks a job as successfully finished with its report.
// No-op if the job is already terminal.
func (s *Store) Complete(id string, report *aggregate.Report) {
	job := s.lookup(id)
	if job == nil {
		return
	}

	job.mu.Lock()
	if job.Status.IsTerminal() {
		job.mu.Unlock()
		return
	}
	now := time.Now()
	job.Status = StatusCompleted
	job.Progress = 100
	job.Phase = "done"
	job.Report = report
	job.UpdatedAt = now
	job.CompletedAt = now
	closeDone(job.done)
	job.mu.Unlock()

	if report != nil {
		log.Printf("[scan-store] COMPLETED  id=%s  score=%d  grade=%s  issues=%d",
			id, report.Score, report.Grade, report.TotalIssues)
	} else {
		log.Printf("[scan-store] COMPLETED  id=%s", id)
	}
}

// Fail marks a job as failed. The phase is left where the pipeline died.
// No-op if the job is already terminal.
func (s *Store) Fail(id, msg string) {
	job := s.lookup(id)
	if job == nil {
		return
	}

	job.mu.Lock()
	if job.Status.IsTerminal() {
		job.mu.Unlock()
		return
	}
	now := time.Now()
	job.Status = StatusFailed
	job.Error = msg
	job.UpdatedAt = now
	job.CompletedAt = now
	closeDone(job.done)
	job.mu.Unlock()

	log.Printf("[scan-store] FAILED  id=%s  err=%s", id, msg)
}

// Reject marks a queued job as rejected (invalid target). Only valid
// from the queued state; running jobs fail instead.
func (s *Store) Reject(id, msg string) {
	job := s.lookup(id)
	if job == nil {
		return
	}

	job.mu.Lock()
	if job.Status != StatusQueued {
		job.mu.Unlock()
		return
	}
	now := time.Now()
	job.Status = StatusRejected
	job.Error = msg
	job.UpdatedAt = now
	job.CompletedAt = now
	closeDone(job.done)
	job.mu.Unlock()

	log.Printf("[scan-store] REJECTED  id=%s  reason=%s", id, msg)
}

// ActiveCount returns the number of jobs currently tracked, including
// recently finished ones still inside the retention window.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// lookup fetches a job without the lazy retention check. Internal
// writers never operate on evicted jobs anyway.
func (s *Store) lookup(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

// sweepLoop periodically evicts expired terminal jobs.
func (s *Store) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes jobs that have been terminal longer than the retention
// window. Two-phase: collect under read lock, delete under write lock,
// to keep the write lock short.
func (s *Store) sweep() {
	s.mu.RLock()
	cutoff := time.Now().Add(-s.retention)
	var expired []string
	for id, job := range s.jobs {
		job.mu.RLock()
		status := job.Status
		updated := job.UpdatedAt
		job.mu.RUnlock()

		if status.IsTerminal() && updated.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	s.mu.Lock()
	for _, id := range expired {
		delete(s.jobs, id)
	}
	remaining := len(s.jobs)
	s.mu.Unlock()

	log.Printf("[scan-store] SWEEP  removed=%d  remaining=%d", len(expired), remaining)
}
