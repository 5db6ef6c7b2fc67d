// Package aggregate merges per-probe findings into a single scored report.
//
// Aggregation is deterministic: the same findings in the same encounter
// order always produce the same report, so repeated scans of an unchanged
// target are comparable.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/siteprobe/siteprobe/pkg/finding"
)

// Input carries everything the pipeline gathered for one target.
type Input struct {
	TargetURL string
	ScannedAt time.Time

	// Findings concatenated in pipeline order: fingerprint components,
	// local KB, ports, certificate, templates, CVE lookup, synthesized.
	Findings []finding.Finding

	// Technology is the fingerprint snapshot, passed through untouched.
	Technology any

	// ProbeErrors maps probe name to failure reason. Absent key = no error.
	ProbeErrors map[string]string
}

// Aggregate deduplicates, counts, scores, grades, and sorts.
func Aggregate(in Input) *Report {
	findings := dedupe(in.Findings)

	counts := map[finding.Severity]int{
		finding.Critical: 0,
		finding.High:     0,
		finding.Medium:   0,
		finding.Low:      0,
		finding.Info:     0,
	}
	for _, f := range findings {
		counts[f.Severity]++
	}

	score := computeScore(counts)
	grade, reason := assignGrade(score)

	// Critical first. Stable, so probe encounter order breaks ties.
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Score() > findings[j].Severity.Score()
	})

	probeErrors := in.ProbeErrors
	if probeErrors == nil {
		probeErrors = map[string]string{}
	}

	return &Report{
		TargetURL:          in.TargetURL,
		ScannedAt:          in.ScannedAt,
		Score:              score,
		Grade:              grade,
		GradeReason:        reason,
		SeverityCounts:     counts,
		TotalIssues:        len(findings),
		Findings:           findings,
		DetectedTechnology: in.Technology,
		ProbeErrors:        probeErrors,
	}
}

// dedupe removes repeats of the same issue reported by different probes.
// Key is (lowercase title, severity after normalization); the first
// encounter wins, preserving its description and probe attribution.
func dedupe(in []finding.Finding) []finding.Finding {
	type key struct {
		title    string
		severity finding.Severity
	}
	seen := make(map[key]bool, len(in))
	out := make([]finding.Finding, 0, len(in))

	for _, f := range in {
		f.Severity = f.Severity.Normalize()
		k := key{title: strings.ToLower(f.Title), severity: f.Severity}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return out
}

// computeScore deducts severity weights from a perfect 100.
// Info findings carry no weight: a target with only informational
// observations scores exactly 100.
func computeScore(counts map[finding.Severity]int) int {
	deduction := 0
	for severity, count := range counts {
		deduction += severity.Weight() * count
	}

	score := 100 - deduction
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// assignGrade maps a score to a letter grade with a one-line reason.
func assignGrade(score int) (grade, reason string) {
	switch {
	case score >= 85:
		return "A", "Strong security posture"
	case score >= 70:
		return "B", "Good posture with room for improvement"
	case score >= 55:
		return "C", "Moderate risk, several issues need attention"
	case score >= 40:
		return "D", "Weak posture, significant issues found"
	default:
		return "F", "Critical risk, immediate remediation required"
	}
}
