package finding

import "time"

// ScanResult is the base result type for probe operations.
// Probe packages embed this and add domain-specific result fields
// such as open ports or certificate facts.
//
// Example embedding:
//
//	type CertResult struct {
//	    finding.ScanResult
//	    Grade string `json:"grade,omitempty"`
//	}
type ScanResult struct {
	Target    string        `json:"target"`
	StartTime time.Time     `json:"startTime,omitzero"`
	Duration  time.Duration `json:"duration,omitempty,format:nano"`
}
