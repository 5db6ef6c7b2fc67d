package aggregate

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/siteprobe/siteprobe/pkg/finding"
	"github.com/siteprobe/siteprobe/pkg/jsonutil"
)

func TestAggregate_EmptyInput(t *testing.T) {
	report := Aggregate(Input{TargetURL: "https://example.com"})

	if report.Score != 100 {
		t.Errorf("Score = %d, want 100", report.Score)
	}
	if report.Grade != "A" {
		t.Errorf("Grade = %q, want A", report.Grade)
	}
	if report.TotalIssues != 0 {
		t.Errorf("TotalIssues = %d, want 0", report.TotalIssues)
	}
	if len(report.Findings) != 0 {
		t.Errorf("Findings = %d entries, want 0", len(report.Findings))
	}
	if report.ProbeErrors == nil {
		t.Error("ProbeErrors should be an empty map, not nil")
	}
	if len(report.ProbeErrors) != 0 {
		t.Errorf("ProbeErrors = %v, want empty", report.ProbeErrors)
	}
	if len(report.SeverityCounts) != 5 {
		t.Errorf("SeverityCounts has %d keys, want all 5", len(report.SeverityCounts))
	}
}

func TestAggregate_InfoOnlyScoresPerfect(t *testing.T) {
	report := Aggregate(Input{
		Findings: []finding.Finding{
			{Title: "Server header present", Severity: finding.Info},
			{Title: "Technology detected", Severity: finding.Info},
			{Title: "Redirect chain observed", Severity: finding.Info},
		},
	})

	if report.Score != 100 {
		t.Errorf("info-only scan: Score = %d, want exactly 100", report.Score)
	}
	if report.Grade != "A" {
		t.Errorf("Grade = %q, want A", report.Grade)
	}
	if report.TotalIssues != 3 {
		t.Errorf("TotalIssues = %d, want 3", report.TotalIssues)
	}
}

func TestAggregate_ScoreDeductions(t *testing.T) {
	tests := []struct {
		name      string
		counts    map[finding.Severity]int
		wantScore int
		wantGrade string
	}{
		{"one critical", map[finding.Severity]int{finding.Critical: 1}, 90, "A"},
		{"one high", map[finding.Severity]int{finding.High: 1}, 93, "A"},
		{"one medium", map[finding.Severity]int{finding.Medium: 1}, 95, "A"},
		{"one low", map[finding.Severity]int{finding.Low: 1}, 97, "A"},
		{
			"mixed bag",
			map[finding.Severity]int{finding.Critical: 2, finding.High: 3, finding.Medium: 1, finding.Low: 4},
			42, "D",
		},
		{"floor at zero", map[finding.Severity]int{finding.Critical: 15}, 0, "F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Aggregate(Input{Findings: findingsFromCounts(tt.counts)})
			if report.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", report.Score, tt.wantScore)
			}
			if report.Grade != tt.wantGrade {
				t.Errorf("Grade = %q, want %q", report.Grade, tt.wantGrade)
			}
		})
	}
}

func TestAssignGrade_Cutoffs(t *testing.T) {
	tests := []struct {
		score     int
		wantGrade string
	}{
		{100, "A"},
		{85, "A"},
		{84, "B"},
		{70, "B"},
		{69, "C"},
		{55, "C"},
		{54, "D"},
		{40, "D"},
		{39, "F"},
		{0, "F"},
	}

	for _, tt := range tests {
		grade, reason := assignGrade(tt.score)
		if grade != tt.wantGrade {
			t.Errorf("assignGrade(%d) = %q, want %q", tt.score, grade, tt.wantGrade)
		}
		if reason == "" {
			t.Errorf("assignGrade(%d) has empty reason", tt.score)
		}
	}
}

func TestAggregate_DeduplicatesAcrossProbes(t *testing.T) {
	// The certificate probe and a vulnerability template can both flag
	// an outdated TLS version. One issue, one report entry.
	report := Aggregate(Input{
		Findings: []finding.Finding{
			{
				Title:       "Outdated TLS Version",
				Severity:    finding.Critical,
				Description: "negotiated TLS 1.0",
				Probe:       "certificate",
			},
			{
				Title:       "outdated tls version",
				Severity:    finding.Severity("CRITICAL"),
				Description: "tls10 matcher hit",
				Probe:       "templates",
			},
		},
	})

	if report.TotalIssues != 1 {
		t.Fatalf("TotalIssues = %d, want 1 after dedup", report.TotalIssues)
	}

	f := report.Findings[0]
	if f.Probe != "certificate" {
		t.Errorf("kept finding from probe %q, want first encounter (certificate)", f.Probe)
	}
	if f.Description != "negotiated TLS 1.0" {
		t.Errorf("kept description %q, want first encounter's", f.Description)
	}
	if report.SeverityCounts[finding.Critical] != 1 {
		t.Errorf("critical count = %d, want 1", report.SeverityCounts[finding.Critical])
	}
	if report.Score != 90 {
		t.Errorf("Score = %d, want 90", report.Score)
	}
}

func TestAggregate_SameTitleDifferentSeverityKept(t *testing.T) {
	report := Aggregate(Input{
		Findings: []finding.Finding{
			{Title: "Weak Cipher Suites", Severity: finding.High},
			{Title: "Weak Cipher Suites", Severity: finding.Medium},
		},
	})

	if report.TotalIssues != 2 {
		t.Errorf("TotalIssues = %d, want 2 (severity is part of the dedup key)", report.TotalIssues)
	}
}

func TestAggregate_UnknownSeverityFoldsToInfo(t *testing.T) {
	report := Aggregate(Input{
		Findings: []finding.Finding{
			{Title: "Something odd", Severity: finding.Severity("urgent")},
			{Title: "Another oddity", Severity: finding.Severity("P1")},
		},
	})

	if report.SeverityCounts[finding.Info] != 2 {
		t.Errorf("info count = %d, want 2", report.SeverityCounts[finding.Info])
	}
	if report.Score != 100 {
		t.Errorf("Score = %d, want 100 (unknown severities carry no weight)", report.Score)
	}
	for _, f := range report.Findings {
		if f.Severity != finding.Info {
			t.Errorf("finding %q severity = %q, want info", f.Title, f.Severity)
		}
	}
}

func TestAggregate_SortsCriticalFirstStable(t *testing.T) {
	report := Aggregate(Input{
		Findings: []finding.Finding{
			{Title: "low one", Severity: finding.Low},
			{Title: "crit one", Severity: finding.Critical},
			{Title: "info one", Severity: finding.Info},
			{Title: "high one", Severity: finding.High},
			{Title: "crit two", Severity: finding.Critical},
		},
	})

	want := []string{"crit one", "crit two", "high one", "low one", "info one"}
	if len(report.Findings) != len(want) {
		t.Fatalf("got %d findings, want %d", len(report.Findings), len(want))
	}
	for i, title := range want {
		if report.Findings[i].Title != title {
			t.Errorf("position %d: got %q, want %q", i, report.Findings[i].Title, title)
		}
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	in := Input{
		TargetURL: "https://example.com",
		ScannedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Findings: []finding.Finding{
			{Title: "A", Severity: finding.High},
			{Title: "B", Severity: finding.Critical},
			{Title: "C", Severity: finding.High},
		},
		ProbeErrors: map[string]string{"ports": "timeout after 20s"},
	}

	first := Aggregate(in)
	second := Aggregate(in)

	if !reflect.DeepEqual(first, second) {
		t.Error("Aggregate is not deterministic for identical input")
	}
}

func TestAggregate_PassesThroughTechnologyAndErrors(t *testing.T) {
	tech := map[string]any{"webServer": "nginx", "version": "1.18.0"}
	report := Aggregate(Input{
		Technology:  tech,
		ProbeErrors: map[string]string{"detection": "connection refused"},
	})

	if !reflect.DeepEqual(report.DetectedTechnology, tech) {
		t.Errorf("DetectedTechnology = %v, want untouched %v", report.DetectedTechnology, tech)
	}
	if report.ProbeErrors["detection"] != "connection refused" {
		t.Errorf("ProbeErrors = %v", report.ProbeErrors)
	}
}

func TestReport_WireShape(t *testing.T) {
	report := Aggregate(Input{
		TargetURL:  "https://example.com",
		ScannedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Technology: map[string]string{"webServer": "nginx"},
		Findings: []finding.Finding{
			{Title: "X", Severity: finding.Low},
		},
		ProbeErrors: map[string]string{"cve": "nvd unreachable"},
	})

	data, err := jsonutil.Marshal(report)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	for _, key := range []string{
		`"targetUrl"`, `"scannedAt"`, `"score"`, `"grade"`,
		`"severityCounts"`, `"totalIssues"`, `"findings"`,
		`"detectedTechnologySnapshot"`, `"probeErrors"`,
	} {
		if !strings.Contains(string(data), key) {
			t.Errorf("wire JSON missing %s: %s", key, data)
		}
	}
}

func TestReport_Passing(t *testing.T) {
	tests := []struct {
		grade string
		want  bool
	}{
		{"A", true}, {"B", true}, {"C", true}, {"D", false}, {"F", false},
	}
	for _, tt := range tests {
		r := &Report{Grade: tt.grade}
		if got := r.Passing(); got != tt.want {
			t.Errorf("Passing() with grade %s = %v, want %v", tt.grade, got, tt.want)
		}
	}
}

// findingsFromCounts expands a severity histogram into distinct findings.
func findingsFromCounts(counts map[finding.Severity]int) []finding.Finding {
	var out []finding.Finding
	for _, severity := range finding.Levels {
		for i := 0; i < counts[severity]; i++ {
			out = append(out, finding.Finding{
				Title:    string(severity) + " finding " + string(rune('a'+i)),
				Severity: severity,
			})
		}
	}
	return out
}
