package probes

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/siteprobe/siteprobe/pkg/finding"
	"github.com/siteprobe/siteprobe/pkg/target"
)

func listenTCP(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return ln, port
}

func localTarget() *target.Target {
	return &target.Target{Hostname: "127.0.0.1", Port: 80, Plaintext: true}
}

func TestNewPortScanner(t *testing.T) {
	s := NewPortScanner()
	if s.Concurrency == 0 {
		t.Error("concurrency should be set")
	}
	if s.DialTimeout == 0 {
		t.Error("dial timeout should be set")
	}
	if s.Limiter == nil {
		t.Error("limiter should be set")
	}
}

func TestScanPorts_OpenAndClosed(t *testing.T) {
	_, openPort := listenTCP(t)

	closedLn, closedPort := listenTCP(t)
	closedLn.Close()

	s := &PortScanner{
		Ports: []PortSpec{
			{openPort, "HTTP", exposureWeb},
			{closedPort, "HTTP-Alt", exposureWeb},
		},
		Concurrency: 4,
		DialTimeout: 500 * time.Millisecond,
	}

	result, err := s.ScanPorts(context.Background(), localTarget())
	if err != nil {
		t.Fatalf("ScanPorts() error: %v", err)
	}
	if result.Scanned != 2 {
		t.Errorf("Scanned = %d, want 2", result.Scanned)
	}
	if len(result.OpenPorts) != 1 {
		t.Fatalf("OpenPorts = %v, want 1 entry", result.OpenPorts)
	}
	if result.OpenPorts[0].Port != openPort {
		t.Errorf("open port = %d, want %d", result.OpenPorts[0].Port, openPort)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("Findings = %v, want 1 entry", result.Findings)
	}
	if result.Findings[0].Probe != "ports" {
		t.Errorf("finding probe = %q, want ports", result.Findings[0].Probe)
	}
	if result.Target != "127.0.0.1" {
		t.Errorf("result target = %q, want 127.0.0.1", result.Target)
	}
	if result.StartTime.IsZero() {
		t.Error("result start time not recorded")
	}
}

func TestScanPorts_SortsByPort(t *testing.T) {
	_, portA := listenTCP(t)
	_, portB := listenTCP(t)

	s := &PortScanner{
		Ports: []PortSpec{
			{portB, "B", exposureService},
			{portA, "A", exposureService},
		},
		Concurrency: 4,
		DialTimeout: 500 * time.Millisecond,
	}

	result, err := s.ScanPorts(context.Background(), localTarget())
	if err != nil {
		t.Fatalf("ScanPorts() error: %v", err)
	}
	if len(result.OpenPorts) != 2 {
		t.Fatalf("OpenPorts = %v, want 2 entries", result.OpenPorts)
	}
	if result.OpenPorts[0].Port > result.OpenPorts[1].Port {
		t.Errorf("open ports not sorted: %v", result.OpenPorts)
	}
}

func TestScanPorts_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &PortScanner{
		Ports:       []PortSpec{{80, "HTTP", exposureWeb}},
		Concurrency: 2,
		DialTimeout: 500 * time.Millisecond,
	}

	result, err := s.ScanPorts(ctx, localTarget())
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if result == nil {
		t.Fatal("partial result should still be returned")
	}
}

func TestScanPorts_DefaultList(t *testing.T) {
	s := &PortScanner{Concurrency: 32, DialTimeout: 50 * time.Millisecond}

	// No listeners are expected on the sweep list during tests; the
	// point is that the full list is attempted.
	result, err := s.ScanPorts(context.Background(), localTarget())
	if err != nil {
		t.Fatalf("ScanPorts() error: %v", err)
	}
	if result.Scanned != len(topPorts) {
		t.Errorf("Scanned = %d, want %d", result.Scanned, len(topPorts))
	}
}

func TestPortFinding_Severities(t *testing.T) {
	tests := []struct {
		spec         PortSpec
		wantSeverity finding.Severity
		wantCWE      string
	}{
		{PortSpec{3306, "MySQL", exposureAdmin}, finding.High, "CWE-284"},
		{PortSpec{23, "Telnet", exposureAdmin}, finding.High, "CWE-284"},
		{PortSpec{21, "FTP", exposurePlaintext}, finding.Medium, "CWE-319"},
		{PortSpec{80, "HTTP", exposureWeb}, finding.Info, ""},
		{PortSpec{22, "SSH", exposureService}, finding.Info, ""},
	}

	for _, tt := range tests {
		t.Run(tt.spec.Service, func(t *testing.T) {
			f := portFinding(tt.spec)
			if f.Severity != tt.wantSeverity {
				t.Errorf("severity = %q, want %q", f.Severity, tt.wantSeverity)
			}
			if f.CWE != tt.wantCWE {
				t.Errorf("CWE = %q, want %q", f.CWE, tt.wantCWE)
			}
			if f.Probe != "ports" {
				t.Errorf("probe = %q, want ports", f.Probe)
			}
			if f.Recommendation == "" {
				t.Error("recommendation should be set")
			}
		})
	}
}

func TestDialPort(t *testing.T) {
	_, port := listenTCP(t)

	if !dialPort(context.Background(), "127.0.0.1", port, time.Second) {
		t.Error("dialPort should succeed against a live listener")
	}

	closedLn, closedPort := listenTCP(t)
	closedLn.Close()
	if dialPort(context.Background(), "127.0.0.1", closedPort, time.Second) {
		t.Error("dialPort should fail against a closed port")
	}
}
