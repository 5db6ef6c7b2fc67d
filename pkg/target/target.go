// Package target validates and normalizes raw scan targets before any
// probe touches the network. Validation is the SSRF boundary: targets
// that point at loopback, link-local, private, or cloud-metadata
// addresses are rejected — both as literal hostnames and again after
// DNS resolution, so a public name resolving to an internal address
// never gets scanned.
package target

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/siteprobe/siteprobe/pkg/duration"
)

// ErrInvalidTarget is the sentinel for every validation failure.
// Callers match with errors.Is; the wrapped message carries the reason.
var ErrInvalidTarget = errors.New("target: invalid target")

// Target is a validated, normalized scan destination.
type Target struct {
	// URL is the parsed target with scheme and host, path preserved.
	URL *url.URL

	// Hostname is the bare host without port or brackets.
	Hostname string

	// Port is the explicit or scheme-default port.
	Port int

	// Plaintext is true for http targets. The orchestrator synthesizes
	// an unencrypted-transport finding for these; the certificate probe
	// skips them.
	Plaintext bool
}

// String returns the normalized target URL.
func (t *Target) String() string {
	if t.URL == nil {
		return ""
	}
	return t.URL.String()
}

// HostPort returns "host:port" suitable for net.Dial.
func (t *Target) HostPort() string {
	return net.JoinHostPort(t.Hostname, strconv.Itoa(t.Port))
}

// blockedHostnames are literal spellings of the local host that must be
// rejected before DNS is even consulted. Derived from the usual SSRF
// filter-bypass list.
var blockedHostnames = map[string]bool{
	"localhost": true,
	"0":         true,
	"127.1":     true,
	"127.0.1":   true,
	"0000::1":   true,
}

// blockedMetadataIPs are cloud metadata endpoints that fall outside the
// standard private ranges.
var blockedMetadataIPs = []string{
	"169.254.169.254", // AWS, GCP, Azure
	"100.100.100.200", // Alibaba Cloud
	"192.0.0.192",     // Oracle Cloud
	"fd00:ec2::254",   // AWS IPv6
}

// Validator validates raw targets. Stateless and safe for concurrent
// use; the zero value is not usable, construct with NewValidator.
type Validator struct {
	// LookupIP resolves a hostname to its addresses. Defaults to
	// net.DefaultResolver; tests inject fakes.
	LookupIP func(ctx context.Context, host string) ([]net.IP, error)

	// ResolveTimeout bounds DNS resolution.
	ResolveTimeout time.Duration
}

// NewValidator creates a validator backed by the default resolver.
func NewValidator() *Validator {
	return &Validator{
		LookupIP: func(ctx context.Context, host string) ([]net.IP, error) {
			addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			ips := make([]net.IP, 0, len(addrs))
			for _, a := range addrs {
				ips = append(ips, a.IP)
			}
			return ips, nil
		},
		ResolveTimeout: duration.DNSTimeout,
	}
}

// Validate parses, normalizes, and safety-checks a raw target.
// The returned Target is ready for probing. All failures wrap
// ErrInvalidTarget.
func (v *Validator) Validate(ctx context.Context, raw string) (*Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty target", ErrInvalidTarget)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q not supported (http/https only)", ErrInvalidTarget, u.Scheme)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return nil, fmt.Errorf("%w: missing hostname", ErrInvalidTarget)
	}

	// Literal check first: a blocked name or IP literal never reaches
	// the resolver, so a poisoned DNS answer cannot be the first line
	// of defense.
	if err := checkHostname(hostname); err != nil {
		return nil, err
	}

	port := defaultPort(u)
	if port == 0 {
		return nil, fmt.Errorf("%w: invalid port %q", ErrInvalidTarget, u.Port())
	}

	// Resolve and re-check every address. Only skipped when the host
	// is already an IP literal (checked above).
	if net.ParseIP(hostname) == nil {
		rctx := ctx
		if v.ResolveTimeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(ctx, v.ResolveTimeout)
			defer cancel()
		}
		ips, err := v.LookupIP(rctx, hostname)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot resolve %q: %v", ErrInvalidTarget, hostname, err)
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("%w: %q resolved to no addresses", ErrInvalidTarget, hostname)
		}
		for _, ip := range ips {
			if reason := blockedIP(ip); reason != "" {
				return nil, fmt.Errorf("%w: %q resolves to %s address %s", ErrInvalidTarget, hostname, reason, ip)
			}
		}
	}

	return &Target{
		URL:       u,
		Hostname:  hostname,
		Port:      port,
		Plaintext: u.Scheme == "http",
	}, nil
}

// checkHostname rejects blocked literal names and blocked IP literals.
func checkHostname(hostname string) error {
	lower := strings.ToLower(hostname)
	if blockedHostnames[lower] || strings.HasSuffix(lower, ".localhost") {
		return fmt.Errorf("%w: hostname %q targets the local host", ErrInvalidTarget, hostname)
	}
	if ip := net.ParseIP(hostname); ip != nil {
		if reason := blockedIP(ip); reason != "" {
			return fmt.Errorf("%w: %s address %s is not scannable", ErrInvalidTarget, reason, hostname)
		}
	}
	return nil
}

// blockedIP reports why an address must not be scanned, or "" when the
// address is acceptable. IsPrivate covers RFC 1918 and IPv6 unique-local
// (fc00::/7); link-local covers the 169.254.169.254 metadata service,
// but the explicit metadata list stays for the routable outliers.
func blockedIP(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return "loopback"
	case ip.IsUnspecified():
		return "unspecified"
	case ip.IsPrivate():
		return "private"
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return "link-local"
	case ip.IsMulticast():
		return "multicast"
	}
	for _, meta := range blockedMetadataIPs {
		if ip.Equal(net.ParseIP(meta)) {
			return "cloud-metadata"
		}
	}
	return ""
}

// defaultPort returns the explicit port, or the scheme default, or 0
// when the explicit port is unparseable.
func defaultPort(u *url.URL) int {
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return 0
		}
		return n
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}
