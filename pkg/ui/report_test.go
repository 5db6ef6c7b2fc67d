package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/siteprobe/siteprobe/pkg/aggregate"
	"github.com/siteprobe/siteprobe/pkg/finding"
)

func TestMain(m *testing.M) {
	// Test output is not a terminal; force plain text so assertions
	// can match without stripping ANSI sequences.
	lipgloss.SetColorProfile(termenv.Ascii)
	m.Run()
}

func sampleReport() *aggregate.Report {
	return &aggregate.Report{
		TargetURL: "https://example.com",
		ScannedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Score:     58,
		Grade:     "C",
		SeverityCounts: map[finding.Severity]int{
			finding.Critical: 1,
			finding.High:     1,
			finding.Low:      1,
		},
		TotalIssues: 3,
		Findings: []finding.Finding{
			{Title: "Certificate Expiring Soon", Severity: finding.Low, Probe: "certificate"},
			{
				Title: "Known RCE in nginx", Severity: finding.Critical, Probe: "cve",
				CVE: "CVE-2021-23017", Component: "nginx", ComponentVersion: "1.16.1",
				Recommendation: "Upgrade nginx to 1.20.1 or later",
			},
			{Title: "Exposed .git Directory", Severity: finding.High, Probe: "templates"},
		},
		ProbeErrors: map[string]string{"ports": "probe timed out after 1s"},
	}
}

func TestRenderReport_Sections(t *testing.T) {
	var buf strings.Builder
	RenderReport(&buf, sampleReport(), 2300*time.Millisecond)
	out := buf.String()

	for _, want := range []string{
		"https://example.com",
		"58/100",
		"Total Issues:",
		"> Findings",
		"Known RCE in nginx",
		"CVE-2021-23017",
		"nginx 1.16.1",
		"Upgrade nginx to 1.20.1 or later",
		"> Probe Errors",
		"probe timed out after 1s",
		"passed with grade C",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q", want)
		}
	}
}

func TestRenderReport_SeverityOrder(t *testing.T) {
	var buf strings.Builder
	RenderReport(&buf, sampleReport(), time.Second)
	out := buf.String()

	critical := strings.Index(out, "Known RCE in nginx")
	high := strings.Index(out, "Exposed .git Directory")
	low := strings.Index(out, "Certificate Expiring Soon")
	if critical == -1 || high == -1 || low == -1 {
		t.Fatal("findings missing from output")
	}
	if !(critical < high && high < low) {
		t.Errorf("findings not ordered by severity: critical=%d high=%d low=%d", critical, high, low)
	}
}

func TestRenderReport_FailingGrade(t *testing.T) {
	r := sampleReport()
	r.Score = 20
	r.Grade = "F"

	var buf strings.Builder
	RenderReport(&buf, r, time.Second)
	if !strings.Contains(buf.String(), "failed with grade F") {
		t.Error("failing grade should render the failure verdict")
	}
}

func TestRenderReport_CleanTarget(t *testing.T) {
	r := &aggregate.Report{
		TargetURL:      "https://example.com",
		ScannedAt:      time.Now(),
		Score:          100,
		Grade:          "A",
		SeverityCounts: map[finding.Severity]int{},
	}

	var buf strings.Builder
	RenderReport(&buf, r, time.Second)
	out := buf.String()

	if strings.Contains(out, "> Findings") {
		t.Error("clean report should omit the findings section")
	}
	if strings.Contains(out, "> Probe Errors") {
		t.Error("clean report should omit the probe errors section")
	}
	if !strings.Contains(out, "passed with grade A") {
		t.Error("clean report missing the passing verdict")
	}
}
