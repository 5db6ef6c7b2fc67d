package probes

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/siteprobe/siteprobe/pkg/finding"
	"github.com/siteprobe/siteprobe/pkg/target"
)

func TestNewCertProber(t *testing.T) {
	p := NewCertProber()
	if p.DialTimeout == 0 {
		t.Error("dial timeout should be set")
	}
	if p.ExpiryWarn == 0 {
		t.Error("expiry warn window should be set")
	}
}

func TestGradeCertificate_PlaintextSkipped(t *testing.T) {
	p := NewCertProber()
	result, err := p.GradeCertificate(context.Background(), &target.Target{
		Hostname:  "example.com",
		Port:      80,
		Plaintext: true,
	})
	if err != nil {
		t.Fatalf("GradeCertificate() error: %v", err)
	}
	if !result.Skipped {
		t.Error("plaintext target should be skipped")
	}
	if result.Grade != "" {
		t.Errorf("skipped result should carry no grade, got %q", result.Grade)
	}
}

func TestGradeCertificate_SelfSigned(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	tgt := testTargetFromURL(t, server.URL)
	p := NewCertProber()
	p.DialTimeout = 2 * time.Second

	result, err := p.GradeCertificate(context.Background(), tgt)
	if err != nil {
		t.Fatalf("GradeCertificate() error: %v", err)
	}

	if !result.SelfSigned {
		t.Error("httptest certificate should be flagged self-signed")
	}
	if result.Expired {
		t.Error("httptest certificate should not be expired")
	}
	if result.Mismatched {
		t.Error("httptest certificate covers 127.0.0.1, should not mismatch")
	}
	if result.TLSVersion == "" {
		t.Error("negotiated TLS version should be recorded")
	}

	found := false
	for _, f := range result.Findings {
		if f.Title == "Self-Signed TLS Certificate" {
			found = true
			if f.Probe != "certificate" {
				t.Errorf("probe = %q, want certificate", f.Probe)
			}
		}
	}
	if !found {
		t.Errorf("missing self-signed finding, got %v", result.Findings)
	}

	if result.Grade != "A" && result.Grade != "B" {
		t.Errorf("Grade = %q, want A or B for a self-signed-only deployment", result.Grade)
	}
	if result.Target != tgt.HostPort() {
		t.Errorf("result target = %q, want %q", result.Target, tgt.HostPort())
	}
	if result.StartTime.IsZero() {
		t.Error("result start time not recorded")
	}
}

func TestGradeCertificate_HandshakeError(t *testing.T) {
	ln, port := listenTCP(t)
	ln.Close()

	p := NewCertProber()
	p.DialTimeout = time.Second

	_, err := p.GradeCertificate(context.Background(), &target.Target{
		Hostname: "127.0.0.1",
		Port:     port,
	})
	if err == nil {
		t.Fatal("expected handshake error against closed port")
	}
	if !errors.Is(err, finding.ErrTargetUnreachable) {
		t.Errorf("dial failure = %v, want finding.ErrTargetUnreachable in chain", err)
	}
}

func TestCertGrade(t *testing.T) {
	tests := []struct {
		name   string
		result CertResult
		want   string
	}{
		{"clean TLS 1.3", CertResult{TLSVersion: "TLS1.3"}, "A+"},
		{"clean TLS 1.2", CertResult{TLSVersion: "TLS1.2"}, "A+"},
		{"self-signed", CertResult{TLSVersion: "TLS1.2", SelfSigned: true}, "B"},
		{"mismatched", CertResult{TLSVersion: "TLS1.2", Mismatched: true}, "C"},
		{"expired", CertResult{TLSVersion: "TLS1.2", Expired: true}, "D"},
		{"negotiated TLS 1.0", CertResult{TLSVersion: "TLS1.0"}, "C"},
		{"rc4 cipher", CertResult{TLSVersion: "TLS1.2", CipherSuite: "TLS_RSA_WITH_RC4_128_SHA"}, "C"},
		{"accepts old versions", CertResult{TLSVersion: "TLS1.2", SupportedVersions: []string{"TLS1.1", "TLS1.2"}}, "B"},
		{"expired and self-signed", CertResult{TLSVersion: "TLS1.2", Expired: true, SelfSigned: true}, "F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := certGrade(&tt.result); got != tt.want {
				t.Errorf("certGrade() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCertFindings(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		fs := certFindings(&CertResult{TLSVersion: "TLS1.3"})
		if len(fs) != 0 {
			t.Errorf("clean result produced findings: %v", fs)
		}
	})

	t.Run("expired is critical", func(t *testing.T) {
		fs := certFindings(&CertResult{Expired: true, NotAfter: time.Now().Add(-24 * time.Hour)})
		if len(fs) != 1 {
			t.Fatalf("findings = %v, want 1", fs)
		}
		if fs[0].Title != "Expired TLS Certificate" || fs[0].Severity != finding.Critical {
			t.Errorf("got %q/%q, want Expired TLS Certificate/critical", fs[0].Title, fs[0].Severity)
		}
	})

	t.Run("outdated protocol is critical", func(t *testing.T) {
		fs := certFindings(&CertResult{
			TLSVersion:        "TLS1.2",
			SupportedVersions: []string{"TLS1.0", "TLS1.2", "TLS1.3"},
		})
		var got *finding.Finding
		for i := range fs {
			if fs[i].Title == "Outdated TLS Version" {
				got = &fs[i]
			}
		}
		if got == nil {
			t.Fatalf("missing outdated version finding, got %v", fs)
		}
		if got.Severity != finding.Critical {
			t.Errorf("severity = %q, want critical", got.Severity)
		}
	})

	t.Run("missing TLS 1.3 is info", func(t *testing.T) {
		fs := certFindings(&CertResult{
			TLSVersion:        "TLS1.2",
			SupportedVersions: []string{"TLS1.2"},
		})
		if len(fs) != 1 {
			t.Fatalf("findings = %v, want 1", fs)
		}
		if fs[0].Severity != finding.Info {
			t.Errorf("severity = %q, want info", fs[0].Severity)
		}
	})

	t.Run("every finding tagged with probe", func(t *testing.T) {
		fs := certFindings(&CertResult{
			Expired:       true,
			SelfSigned:    true,
			Mismatched:    true,
			WeakSignature: true,
			ShortRSAKey:   true,
		})
		for _, f := range fs {
			if f.Probe != "certificate" {
				t.Errorf("finding %q probe = %q, want certificate", f.Title, f.Probe)
			}
		}
	})
}

func TestSupportsOutdatedTLS(t *testing.T) {
	if supportsOutdatedTLS([]string{"TLS1.2", "TLS1.3"}) {
		t.Error("modern-only list flagged as outdated")
	}
	if !supportsOutdatedTLS([]string{"TLS1.0"}) {
		t.Error("TLS1.0 not flagged")
	}
	if !supportsOutdatedTLS([]string{"TLS1.1", "TLS1.2"}) {
		t.Error("TLS1.1 not flagged")
	}
	if supportsOutdatedTLS(nil) {
		t.Error("empty list flagged")
	}
}

func TestTLSVersionName(t *testing.T) {
	tests := []struct {
		ver  uint16
		want string
	}{
		{tls.VersionTLS10, "TLS1.0"},
		{tls.VersionTLS11, "TLS1.1"},
		{tls.VersionTLS12, "TLS1.2"},
		{tls.VersionTLS13, "TLS1.3"},
		{0x0000, "Unknown(0x0000)"},
	}

	for _, tt := range tests {
		if got := tlsVersionName(tt.ver); got != tt.want {
			t.Errorf("tlsVersionName(0x%04x) = %q, want %q", tt.ver, got, tt.want)
		}
	}
}
