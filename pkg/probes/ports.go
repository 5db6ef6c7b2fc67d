package probes

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/siteprobe/siteprobe/pkg/defaults"
	"github.com/siteprobe/siteprobe/pkg/duration"
	"github.com/siteprobe/siteprobe/pkg/finding"
	"github.com/siteprobe/siteprobe/pkg/target"
	"github.com/siteprobe/siteprobe/pkg/workerpool"
)

// Port exposure classes. The class decides the severity of the finding an
// open port produces: management and database ports should never face the
// internet, plaintext protocols leak credentials, web ports are expected.
const (
	exposureWeb       = "web"
	exposureAdmin     = "admin"
	exposurePlaintext = "plaintext"
	exposureService   = "service"
)

// PortSpec describes one port in the sweep list.
type PortSpec struct {
	Port     int
	Service  string
	Exposure string
}

// topPorts is the fixed sweep list: the ports that matter for a
// web-facing host, not a full nmap-style sweep.
var topPorts = []PortSpec{
	{21, "FTP", exposurePlaintext},
	{22, "SSH", exposureService},
	{23, "Telnet", exposureAdmin},
	{25, "SMTP", exposurePlaintext},
	{53, "DNS", exposureService},
	{80, "HTTP", exposureWeb},
	{110, "POP3", exposurePlaintext},
	{143, "IMAP", exposurePlaintext},
	{443, "HTTPS", exposureWeb},
	{445, "SMB", exposureAdmin},
	{1433, "MSSQL", exposureAdmin},
	{3306, "MySQL", exposureAdmin},
	{3389, "RDP", exposureAdmin},
	{5432, "PostgreSQL", exposureAdmin},
	{5900, "VNC", exposureAdmin},
	{6379, "Redis", exposureAdmin},
	{8000, "HTTP-Alt", exposureWeb},
	{8080, "HTTP-Proxy", exposureWeb},
	{8443, "HTTPS-Alt", exposureWeb},
	{9200, "Elasticsearch", exposureAdmin},
	{11211, "Memcached", exposureAdmin},
	{27017, "MongoDB", exposureAdmin},
}

// OpenPort is one confirmed open TCP port.
type OpenPort struct {
	Port    int    `json:"port"`
	Service string `json:"service"`
}

// PortScanResult holds the outcome of a port sweep.
type PortScanResult struct {
	finding.ScanResult

	OpenPorts []OpenPort        `json:"openPorts"`
	Scanned   int               `json:"scanned"`
	Findings  []finding.Finding `json:"findings,omitempty"`
}

// PortScanner performs a TCP connect sweep against the target host.
type PortScanner struct {
	// Ports overrides the default sweep list. Empty means topPorts.
	Ports []PortSpec

	// Concurrency bounds the worker pool for the sweep.
	Concurrency int

	// DialTimeout is the per-port connect timeout.
	DialTimeout time.Duration

	// Limiter throttles connection attempts. Nil means no limit.
	Limiter *rate.Limiter
}

// NewPortScanner creates a scanner with the default sweep list and limits.
func NewPortScanner() *PortScanner {
	return &PortScanner{
		Concurrency: defaults.ConcurrencyPorts,
		DialTimeout: duration.PortDial,
		Limiter:     rate.NewLimiter(rate.Limit(defaults.RateLimitMedium), defaults.RateLimitMedium),
	}
}

// ScanPorts sweeps the target host. A closed or filtered port is a
// non-event; the scan fails only when the context is cancelled, and the
// partial result collected so far is returned alongside the error.
func (s *PortScanner) ScanPorts(ctx context.Context, tgt *target.Target) (*PortScanResult, error) {
	start := time.Now()
	ports := s.Ports
	if len(ports) == 0 {
		ports = topPorts
	}
	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = defaults.ConcurrencyPorts
	}
	dialTimeout := s.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = duration.PortDial
	}

	pool := workerpool.New(concurrency)
	defer pool.Close()

	var (
		mu   sync.Mutex
		open []PortSpec
		wg   sync.WaitGroup
	)

	for _, spec := range ports {
		if ctx.Err() != nil {
			break
		}
		if s.Limiter != nil {
			if err := s.Limiter.Wait(ctx); err != nil {
				break
			}
		}

		spec := spec
		wg.Add(1)
		if !pool.Submit(func() {
			defer wg.Done()
			if !dialPort(ctx, tgt.Hostname, spec.Port, dialTimeout) {
				return
			}
			mu.Lock()
			open = append(open, spec)
			mu.Unlock()
		}) {
			wg.Done()
		}
	}
	wg.Wait()

	sort.Slice(open, func(i, j int) bool { return open[i].Port < open[j].Port })

	result := &PortScanResult{
		ScanResult: finding.ScanResult{Target: tgt.Hostname, StartTime: start, Duration: time.Since(start)},
		Scanned:    len(ports),
	}
	for _, spec := range open {
		result.OpenPorts = append(result.OpenPorts, OpenPort{Port: spec.Port, Service: spec.Service})
		result.Findings = append(result.Findings, portFinding(spec))
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("port sweep interrupted: %w", err)
	}
	return result, nil
}

// dialPort reports whether a TCP connect to host:port succeeds.
func dialPort(ctx context.Context, host string, port int, timeout time.Duration) bool {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// portFinding builds the finding for one open port.
func portFinding(spec PortSpec) finding.Finding {
	f := finding.Finding{
		Title:       fmt.Sprintf("Open %s Port %d", spec.Service, spec.Port),
		Description: fmt.Sprintf("TCP port %d (%s) accepts connections from the scanning host.", spec.Port, spec.Service),
		Probe:       "ports",
	}

	switch spec.Exposure {
	case exposureAdmin:
		f.Severity = finding.High
		f.Description += " Database and management services should not be reachable from the public internet."
		f.Recommendation = fmt.Sprintf("Restrict access to port %d with a firewall or bind the service to an internal interface.", spec.Port)
		f.CWE = "CWE-284"
		f.OWASP = "A05:2021"
	case exposurePlaintext:
		f.Severity = finding.Medium
		f.Description += " The protocol transmits credentials and data without encryption."
		f.Recommendation = fmt.Sprintf("Disable the plaintext %s service or replace it with an encrypted equivalent.", spec.Service)
		f.CWE = "CWE-319"
		f.OWASP = "A02:2021"
	default:
		f.Severity = finding.Info
		f.Recommendation = "Verify the service is intentionally exposed."
	}

	return f
}
