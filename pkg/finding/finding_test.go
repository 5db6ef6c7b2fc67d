package finding_test

import (
	"encoding/json"
	"testing"

	"github.com/siteprobe/siteprobe/pkg/finding"
)

// TestFindingWireShape pins the JSON field names the scan API exposes.
// Report consumers key on these names; renaming one is a breaking change.
func TestFindingWireShape(t *testing.T) {
	t.Parallel()

	f := finding.Finding{
		Title:            "Outdated TLS Version",
		Description:      "Server accepts TLS 1.0 handshakes",
		Severity:         finding.Critical,
		Recommendation:   "Disable TLS 1.0 and 1.1",
		CVE:              "CVE-2011-3389",
		CWE:              "CWE-326",
		OWASP:            "A02:2021",
		CVSS:             7.4,
		Component:        "openssl",
		ComponentVersion: "1.0.2",
		Probe:            "certificate",
	}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	for _, key := range []string{
		"title", "description", "severity", "recommendation",
		"cve", "cwe", "owasp", "cvss",
		"component", "componentVersion", "probe",
	} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing wire field %q", key)
		}
	}
	if m["severity"] != "critical" {
		t.Errorf("severity = %v, want critical", m["severity"])
	}
	if m["componentVersion"] != "1.0.2" {
		t.Errorf("componentVersion = %v, want 1.0.2", m["componentVersion"])
	}
}

// TestFindingOptionalFieldsOmitted verifies a minimal finding carries no
// empty classification noise on the wire.
func TestFindingOptionalFieldsOmitted(t *testing.T) {
	t.Parallel()

	f := finding.Finding{Title: "Directory Listing Enabled", Severity: finding.Low}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	for _, key := range []string{"cve", "cwe", "owasp", "cvss", "component", "componentVersion"} {
		if _, ok := m[key]; ok {
			t.Errorf("field %q must be omitted when empty", key)
		}
	}
}
