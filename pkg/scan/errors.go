package scan

import "errors"

// Sentinel errors for scan lifecycle failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrCapacity indicates the admission controller refused a new scan
	// because the concurrent-scan cap is reached.
	ErrCapacity = errors.New("scan: capacity reached")

	// ErrJobNotFound indicates the job ID is unknown or the job was
	// evicted after its retention window. Indistinguishable on purpose.
	ErrJobNotFound = errors.New("scan: job not found")
)
