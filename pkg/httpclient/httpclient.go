// Package httpclient is the shared HTTP client factory for every probe.
// All probes talk to the same small set of hosts, so one pooled transport
// beats per-probe clients by a wide margin.
package httpclient

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/siteprobe/siteprobe/pkg/duration"
)

// defaultTimeout bounds a whole request when the caller sets none.
const defaultTimeout = 30 * time.Second

const (
	defaultMaxIdleConns    = 100
	defaultMaxConnsPerHost = 25
)

// Config holds client options. The zero value is usable; New fills in
// pool sizes and timeouts.
type Config struct {
	// Timeout is the total request timeout.
	Timeout time.Duration

	// InsecureSkipVerify skips certificate verification. Scanning
	// clients default to true: a broken chain is a finding for the
	// certificate probe, not a reason other probes go blind.
	InsecureSkipVerify bool

	// MaxIdleConns caps idle connections across all hosts.
	MaxIdleConns int

	// MaxConnsPerHost caps connections per host. Scans hammer a single
	// origin, so this is the limit that actually matters.
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections stay pooled.
	IdleConnTimeout time.Duration

	// DisableKeepAlives closes connections after each request.
	DisableKeepAlives bool

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake.
	TLSHandshakeTimeout time.Duration

	// UserAgent sets a fixed User-Agent header on every request.
	UserAgent string

	// RandomUserAgent rotates realistic browser User-Agents instead.
	RandomUserAgent bool

	// AuthHeaders are added to every request and stripped on
	// cross-origin redirects.
	AuthHeaders http.Header

	// RetryCount retries transport errors and 429/503 responses.
	RetryCount int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration

	// CustomResolvers overrides system DNS, e.g. "8.8.8.8:53" or
	// "1.1.1.1" (port 53 assumed when absent).
	CustomResolvers []string
}

// DefaultConfig returns the settings the shared client runs with.
func DefaultConfig() Config {
	return Config{
		Timeout:             defaultTimeout,
		InsecureSkipVerify:  true,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		IdleConnTimeout:     duration.IdleConnTimeout,
		DialTimeout:         duration.DialTimeout,
		TLSHandshakeTimeout: duration.TLSHandshake,
	}
}

var (
	defaultClient *http.Client
	defaultOnce   sync.Once
)

// Default returns the process-wide shared client. Safe for concurrent
// use; prefer it over New unless a probe needs different settings.
// Redirects are never followed: the redirect response itself is what
// probes inspect.
func Default() *http.Client {
	defaultOnce.Do(func() {
		defaultClient = New(DefaultConfig())
	})
	return defaultClient
}

// New builds a client from cfg, filling zero values with the defaults.
func New(cfg Config) *http.Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = defaultMaxConnsPerHost
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = duration.IdleConnTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = duration.DialTimeout
	}
	if cfg.TLSHandshakeTimeout == 0 {
		cfg.TLSHandshakeTimeout = duration.TLSHandshake
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: duration.KeepAlive,
	}
	if len(cfg.CustomResolvers) > 0 {
		dialer.Resolver = customResolver(cfg.CustomResolvers)
	}

	transport := &http.Transport{
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		DisableKeepAlives:     cfg.DisableKeepAlives,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		DialContext:           dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	if len(cfg.AuthHeaders) > 0 {
		client.CheckRedirect = redirectPolicyWithAuthStrip(cfg.AuthHeaders)
	}
	if needsMiddleware(cfg) {
		client.Transport = &middlewareTransport{
			base:        transport,
			userAgent:   cfg.UserAgent,
			randomUA:    cfg.RandomUserAgent,
			authHeaders: cfg.AuthHeaders,
			retryCount:  cfg.RetryCount,
			retryDelay:  cfg.RetryDelay,
		}
	}
	return client
}

// customResolver round-robins lookups across the given DNS servers.
func customResolver(servers []string) *net.Resolver {
	addrs := make([]string, len(servers))
	for i, s := range servers {
		if !containsPort(s) {
			s = net.JoinHostPort(s, "53")
		}
		addrs[i] = s
	}
	var next atomic.Uint32
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: duration.DNSTimeout}
			return d.DialContext(ctx, network, addrs[int(next.Add(1))%len(addrs)])
		},
	}
}

// containsPort reports whether addr already carries a port component.
// IPv6 addresses contain colons, so bracket notation is checked first:
// "[::1]:53" has a port, bare "::1" does not.
func containsPort(addr string) bool {
	if strings.HasPrefix(addr, "[") {
		return strings.Contains(addr, "]:")
	}
	return strings.Count(addr, ":") == 1
}
