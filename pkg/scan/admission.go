package scan

import (
	"log"
	"sync/atomic"
)

// Admission caps the number of concurrently running scans. Each scan
// holds significant resources (sockets, probe goroutines, response
// buffers), so excess requests are rejected up front instead of queued.
type Admission struct {
	max     int64
	running atomic.Int64
}

// NewAdmission creates an admission controller with the given cap.
func NewAdmission(max int) *Admission {
	if max < 1 {
		max = 1
	}
	return &Admission{max: int64(max)}
}

// TryAdmit attempts to claim a scan slot. The check and the increment
// happen as one atomic step, so concurrent callers can never over-admit
// past the cap. Never blocks.
func (a *Admission) TryAdmit() (ok bool, running, max int64) {
	for {
		cur := a.running.Load()
		if cur >= a.max {
			return false, cur, a.max
		}
		if a.running.CompareAndSwap(cur, cur+1) {
			return true, cur + 1, a.max
		}
	}
}

// Release frees a slot. Floored at zero: a stray double release logs a
// warning instead of underflowing the counter into permanent capacity.
func (a *Admission) Release() {
	for {
		cur := a.running.Load()
		if cur <= 0 {
			log.Printf("[admission] RELEASE UNDERFLOW running=%d", cur)
			return
		}
		if a.running.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// Running returns the number of currently admitted scans.
func (a *Admission) Running() int64 {
	return a.running.Load()
}

// Max returns the concurrent-scan cap.
func (a *Admission) Max() int64 {
	return a.max
}
