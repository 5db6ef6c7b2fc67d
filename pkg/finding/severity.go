package finding

import "strings"

// Severity represents the severity level of a security finding.
// All values are lowercase strings; probe output carrying any
// other casing or an unknown level is folded by Normalize.
type Severity string

const (
	// Critical represents immediate system compromise (RCE, auth bypass).
	Critical Severity = "critical"

	// High represents significant impact requiring prompt fix (SQLi, stored XSS).
	High Severity = "high"

	// Medium represents moderate impact (reflected XSS, CSRF).
	Medium Severity = "medium"

	// Low represents limited impact (verbose errors, minor info leak).
	Low Severity = "low"

	// Info represents informational findings with no direct security impact.
	Info Severity = "info"
)

// Levels lists all recognized severities from most to least severe.
var Levels = []Severity{Critical, High, Medium, Low, Info}

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case Critical, High, Medium, Low, Info:
		return true
	}
	return false
}

// Score returns a numeric rank for sorting and comparison.
// Critical=5, High=4, Medium=3, Low=2, Info=1, Unknown=0.
func (s Severity) Score() int {
	switch s {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// Weight returns the report-score deduction carried by one finding
// of this severity. Info findings never reduce the score.
func (s Severity) Weight() int {
	switch s {
	case Critical:
		return 10
	case High:
		return 7
	case Medium:
		return 5
	case Low:
		return 3
	default:
		return 0
	}
}

// Normalize lowercases s and folds unrecognized values into Info.
// Probes pull severity strings from external sources (templates,
// CVE feeds), so anything off-catalog lands in the zero-weight bucket.
func (s Severity) Normalize() Severity {
	n := Severity(strings.ToLower(strings.TrimSpace(string(s))))
	if n.IsValid() {
		return n
	}
	return Info
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}

// FromCVSS maps a CVSS v3 base score to a severity bucket using the
// standard qualitative rating scale.
func FromCVSS(score float64) Severity {
	switch {
	case score >= 9.0:
		return Critical
	case score >= 7.0:
		return High
	case score >= 4.0:
		return Medium
	case score > 0:
		return Low
	default:
		return Info
	}
}
