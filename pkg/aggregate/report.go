package aggregate

import (
	"time"

	"github.com/siteprobe/siteprobe/pkg/finding"
)

// Report is the aggregated result of one complete scan. Field names are
// the wire contract for the status API and must not change casing.
type Report struct {
	TargetURL      string                   `json:"targetUrl"`
	ScannedAt      time.Time                `json:"scannedAt"`
	Score          int                      `json:"score"`
	Grade          string                   `json:"grade"`
	GradeReason    string                   `json:"gradeReason,omitempty"`
	SeverityCounts map[finding.Severity]int `json:"severityCounts"`
	TotalIssues    int                      `json:"totalIssues"`
	Findings       []finding.Finding        `json:"findings"`

	// DetectedTechnology is whatever the fingerprint probe produced,
	// carried opaquely so fingerprint schema changes don't touch this
	// package.
	DetectedTechnology any `json:"detectedTechnologySnapshot,omitempty"`

	ProbeErrors map[string]string `json:"probeErrors,omitempty"`
}

// Passing reports whether the grade is acceptable (C or better).
// The one-shot CLI exits non-zero for failing grades.
func (r *Report) Passing() bool {
	return r.Grade == "A" || r.Grade == "B" || r.Grade == "C"
}
