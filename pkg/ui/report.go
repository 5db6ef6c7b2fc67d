// Package ui renders scan reports for the one-shot CLI in the
// nuclei/httpx terminal style.
package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/siteprobe/siteprobe/pkg/aggregate"
	"github.com/siteprobe/siteprobe/pkg/defaults"
	"github.com/siteprobe/siteprobe/pkg/finding"
)

var titleCaser = cases.Title(language.English)

// RenderReport writes the full human-readable report to w.
func RenderReport(w io.Writer, r *aggregate.Report, elapsed time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("Scan Report"))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render("Target:"), URLStyle.Render(r.TargetURL))
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render("Scanned:"), ValueStyle.Render(r.ScannedAt.Format(time.RFC3339)))
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render("Duration:"), ValueStyle.Render(elapsed.Round(time.Millisecond).String()))
	fmt.Fprintln(w)

	renderScore(w, r)
	renderSeverityCounts(w, r)
	renderFindings(w, r.Findings)
	renderProbeErrors(w, r.ProbeErrors)
	renderVerdict(w, r)
}

// renderScore prints the grade badge and a score meter.
func renderScore(w io.Writer, r *aggregate.Report) {
	color := scoreColor(r.Score)
	scoreStyle := lipgloss.NewStyle().Foreground(color).Bold(true)

	const barWidth = 25
	filled := barWidth * r.Score / 100
	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		if i < filled {
			bar.WriteString(lipgloss.NewStyle().Foreground(color).Render("#"))
		} else {
			bar.WriteString(MeterEmptyStyle.Render("."))
		}
	}

	fmt.Fprintf(w, "  %s %s %s %s\n",
		LabelStyle.Render("Score:"),
		bar.String(),
		scoreStyle.Render(fmt.Sprintf("%d/100", r.Score)),
		GradeStyle(r.Grade).Render(r.Grade),
	)
	if r.GradeReason != "" {
		fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render(""), MutedStyle.Render(r.GradeReason))
	}
	fmt.Fprintln(w)
}

// renderSeverityCounts prints the issue breakdown box.
func renderSeverityCounts(w io.Writer, r *aggregate.Report) {
	const boxWidth = 50
	border := "+" + strings.Repeat("-", boxWidth-2) + "+"

	printRow := func(label, value string, style lipgloss.Style) {
		const labelW = 18
		valueW := boxWidth - 4 - labelW
		labelPadded := label + strings.Repeat(" ", labelW-len(label))
		valuePadded := value + strings.Repeat(" ", max(0, valueW-len([]rune(value))))
		fmt.Fprintf(w, "  |  %s%s|\n", MutedStyle.Render(labelPadded), style.Render(valuePadded))
	}

	fmt.Fprintln(w, BracketStyle.Render("  "+border))
	printRow("Total Issues:", fmt.Sprintf("%d", r.TotalIssues), ValueStyle)
	fmt.Fprintln(w, BracketStyle.Render("  "+border))
	for _, sev := range finding.Levels {
		style := lipgloss.NewStyle().Foreground(severityColor(sev)).Bold(true)
		printRow(titleCaser.String(sev.String())+":", fmt.Sprintf("%d", r.SeverityCounts[sev]), style)
	}
	fmt.Fprintln(w, BracketStyle.Render("  "+border))
	fmt.Fprintln(w)
}

// renderFindings prints one nuclei-style bracket line per finding,
// most severe first.
func renderFindings(w io.Writer, findings []finding.Finding) {
	if len(findings) == 0 {
		return
	}
	fmt.Fprintln(w, SectionStyle.Render("> Findings"))

	sorted := make([]finding.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Score() > sorted[j].Severity.Score()
	})

	for _, f := range sorted {
		var line strings.Builder
		line.WriteString("  ")
		line.WriteString(bracket(SeverityStyle(f.Severity).Render(f.Severity.Normalize().String())))
		if f.Probe != "" {
			line.WriteString(" " + bracket(MutedStyle.Render(f.Probe)))
		}
		line.WriteString(" " + ValueStyle.Render(f.Title))
		if f.CVE != "" {
			line.WriteString(" " + bracket(MutedStyle.Render(f.CVE)))
		}
		if f.Component != "" {
			component := f.Component
			if f.ComponentVersion != "" {
				component += " " + f.ComponentVersion
			}
			line.WriteString(" " + bracket(MutedStyle.Render(component)))
		}
		if f.OWASP != "" {
			line.WriteString(" " + bracket(MutedStyle.Render(defaults.OWASPName(f.OWASP))))
		}
		fmt.Fprintln(w, line.String())

		if f.Recommendation != "" {
			fmt.Fprintf(w, "      %s\n", MutedStyle.Render("-> "+f.Recommendation))
		}
	}
	fmt.Fprintln(w)
}

// renderProbeErrors lists probes that did not finish.
func renderProbeErrors(w io.Writer, probeErrors map[string]string) {
	if len(probeErrors) == 0 {
		return
	}
	fmt.Fprintln(w, SectionStyle.Render("> Probe Errors"))

	probes := make([]string, 0, len(probeErrors))
	for probe := range probeErrors {
		probes = append(probes, probe)
	}
	sort.Strings(probes)
	for _, probe := range probes {
		fmt.Fprintf(w, "  %s %s %s\n",
			WarnStyle.Render("[!]"),
			ValueStyle.Render(probe),
			MutedStyle.Render(probeErrors[probe]),
		)
	}
	fmt.Fprintln(w)
}

// renderVerdict prints the pass/fail line the exit code follows.
func renderVerdict(w io.Writer, r *aggregate.Report) {
	if r.Passing() {
		fmt.Fprintln(w, PassStyle.Render("  [+] Target passed with grade "+r.Grade))
	} else {
		fmt.Fprintln(w, FailStyle.Render("  [X] Target failed with grade "+r.Grade+" - review findings"))
	}
	fmt.Fprintln(w)
}

func bracket(inner string) string {
	return BracketStyle.Render("[") + inner + BracketStyle.Render("]")
}

func severityColor(sev finding.Severity) lipgloss.Color {
	switch sev {
	case finding.Critical:
		return CriticalColor
	case finding.High:
		return HighColor
	case finding.Medium:
		return MediumColor
	case finding.Low:
		return LowColor
	default:
		return InfoColor
	}
}
