package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/siteprobe/siteprobe/pkg/finding"
)

// Color palette shared by the one-shot report renderer.
var (
	// Brand colors
	Primary   = lipgloss.Color("#7D56F4") // Purple
	Secondary = lipgloss.Color("#00D4AA") // Cyan/Teal

	// Severity colors (matching OWASP/Nuclei standards)
	CriticalColor = lipgloss.Color("#FF0000") // Bright red
	HighColor     = lipgloss.Color("#FF6B6B") // Red/Orange
	MediumColor   = lipgloss.Color("#FFD93D") // Yellow
	LowColor      = lipgloss.Color("#6BCB77") // Green
	InfoColor     = lipgloss.Color("#4D96FF") // Blue

	// Status colors
	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Failure = lipgloss.Color("#FF3838")
	Muted   = lipgloss.Color("#6B7280")
)

// Pre-configured styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			MarginTop(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Width(15)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	BracketStyle = lipgloss.NewStyle().
			Foreground(Muted)

	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)

	PassStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(Failure).
			Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	MeterEmptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B3B4F"))
)

// SeverityStyle returns the badge style for a severity level.
func SeverityStyle(sev finding.Severity) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch sev.Normalize() {
	case finding.Critical:
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(CriticalColor)
	case finding.High:
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(HighColor)
	case finding.Medium:
		return base.Foreground(lipgloss.Color("#000000")).Background(MediumColor)
	case finding.Low:
		return base.Foreground(lipgloss.Color("#000000")).Background(LowColor)
	case finding.Info:
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(InfoColor)
	default:
		return base.Foreground(Muted)
	}
}

// GradeStyle returns the badge style for a letter grade.
func GradeStyle(grade string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch grade {
	case "A":
		return base.Foreground(lipgloss.Color("#000000")).Background(Success)
	case "B":
		return base.Foreground(lipgloss.Color("#000000")).Background(LowColor)
	case "C":
		return base.Foreground(lipgloss.Color("#000000")).Background(MediumColor)
	case "D":
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(HighColor)
	case "F":
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(CriticalColor)
	default:
		return base.Foreground(Muted)
	}
}

// scoreColor maps a 0-100 score onto the severity palette.
func scoreColor(score int) lipgloss.Color {
	switch {
	case score >= 85:
		return Success
	case score >= 70:
		return LowColor
	case score >= 55:
		return MediumColor
	case score >= 40:
		return HighColor
	default:
		return CriticalColor
	}
}
