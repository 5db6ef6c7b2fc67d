package finding

// Finding is a single reported security issue. Findings are immutable
// value objects: probes construct them and nothing downstream mutates
// them. JSON field names follow the scan API wire contract.
type Finding struct {
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation,omitempty"`

	// Optional classification metadata.
	CVE   string  `json:"cve,omitempty"`
	CWE   string  `json:"cwe,omitempty"`
	OWASP string  `json:"owasp,omitempty"`
	CVSS  float64 `json:"cvss,omitempty"`

	// Affected component, when the finding is tied to detected software.
	Component        string `json:"component,omitempty"`
	ComponentVersion string `json:"componentVersion,omitempty"`

	// Probe tags the originating probe ("detection", "ports",
	// "certificate", "templates", "cve", "kb", "transport").
	Probe string `json:"probe,omitempty"`
}
