package finding

import (
	"encoding/json"
	"testing"
	"time"
)

func TestScanResult_JSONRoundtrip(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	original := ScanResult{
		Target:    "https://example.com",
		StartTime: start,
		Duration:  5 * time.Second,
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded ScanResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Target != original.Target {
		t.Errorf("Target = %q, want %q", decoded.Target, original.Target)
	}
	if !decoded.StartTime.Equal(original.StartTime) {
		t.Errorf("StartTime = %v, want %v", decoded.StartTime, original.StartTime)
	}
	if decoded.Duration != original.Duration {
		t.Errorf("Duration = %v, want %v", decoded.Duration, original.Duration)
	}
}

func TestScanResult_EmbeddingPattern(t *testing.T) {
	t.Parallel()

	// Probe result types embed ScanResult and extend it.
	type certResult struct {
		ScanResult
		Grade    string    `json:"grade,omitempty"`
		Findings []Finding `json:"findings,omitempty"`
	}

	r := certResult{
		ScanResult: ScanResult{
			Target:   "https://example.com",
			Duration: 2 * time.Second,
		},
		Grade: "B",
		Findings: []Finding{
			{Title: "Certificate Expiring Soon", Severity: Medium},
		},
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if m["target"] != "https://example.com" {
		t.Errorf("target = %v", m["target"])
	}
	if m["grade"] != "B" {
		t.Errorf("grade = %v", m["grade"])
	}
	findings, ok := m["findings"].([]any)
	if !ok || len(findings) != 1 {
		t.Errorf("findings = %v", m["findings"])
	}
}
