// Package browsertls provides an http.RoundTripper that performs TLS
// handshakes with real browser ClientHello fingerprints.
//
// CDN and WAF layers score clients by TLS fingerprint and serve scanners
// a different response than real visitors (tarpits, challenge pages,
// outright blocks). Probing through a browser fingerprint keeps the
// responses the scanner measures representative of what a browser gets.
//
// Based on https://github.com/refraction-networking/utls.
package browsertls

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"

	"github.com/siteprobe/siteprobe/pkg/duration"
)

// Profile pairs a ClientHello fingerprint with the User-Agent a real
// browser would send alongside it. Mismatched pairs (Chrome hello with
// a Firefox UA) are themselves a detection signal, so the two travel
// together.
type Profile struct {
	Name        string `json:"name"`
	UserAgent   string `json:"user_agent"`
	ClientHello *utls.ClientHelloID
}

// Transport is an http.RoundTripper that dials TLS with a browser
// fingerprint and decorates requests with matching browser headers.
type Transport struct {
	profiles     []*Profile
	currentIndex int
	rotateEvery  int
	requestCount int
	mu           sync.RWMutex
	timeout      time.Duration
	skipVerify   bool
}

// Config configures the browser TLS transport.
type Config struct {
	Profiles    []*Profile // Custom profiles (uses defaults if nil)
	RotateEvery int        // Rotate after N requests (0 = sticky profile)
	Timeout     time.Duration
	SkipVerify  bool
}

// DefaultConfig returns sensible defaults.
// The profile is sticky: all requests within one scan present the same
// browser, because switching fingerprints mid-session is its own signal.
func DefaultConfig() *Config {
	return &Config{
		Profiles:    DefaultProfiles(),
		RotateEvery: 0,
		Timeout:     duration.HTTPScanning,
		SkipVerify:  true,
	}
}

// NewTransport creates a browser-fingerprint HTTP transport.
func NewTransport(cfg *Config) *Transport {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	profiles := cfg.Profiles
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}

	t := &Transport{
		profiles:    profiles,
		rotateEvery: cfg.RotateEvery,
		timeout:     cfg.Timeout,
		skipVerify:  cfg.SkipVerify,
	}

	// Random starting profile so successive scans present different browsers
	if len(profiles) > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(len(profiles)))); err == nil {
			t.currentIndex = int(n.Int64())
		}
	}

	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	if len(t.profiles) == 0 {
		t.mu.Unlock()
		return nil, fmt.Errorf("browsertls: no profiles configured")
	}
	profile := t.profiles[t.currentIndex]
	t.requestCount++

	if t.rotateEvery > 0 && t.requestCount >= t.rotateEvery {
		t.requestCount = 0
		t.currentIndex = (t.currentIndex + 1) % len(t.profiles)
	}
	t.mu.Unlock()

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", profile.UserAgent)
	}
	setBrowserHeaders(req, profile)

	// Single-use transport for this profile's fingerprint.
	// DisableKeepAlives=true ensures connections are closed after use,
	// so the transport holds no long-lived resources.
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return t.dialTLS(ctx, network, addr, profile)
		},
		DisableKeepAlives: true,
	}

	resp, err := transport.RoundTrip(req)

	// With DisableKeepAlives=true this is fast (no idle conns to track),
	// but it ensures internal goroutines are cleaned up.
	transport.CloseIdleConnections()

	return resp, err
}

// dialTLS establishes a TLS connection presenting the profile's ClientHello.
func (t *Transport) dialTLS(ctx context.Context, network, addr string, profile *Profile) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	dialer := &net.Dialer{
		Timeout: t.timeout,
	}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	tlsConfig := &utls.Config{
		ServerName:         host,
		InsecureSkipVerify: t.skipVerify,
	}

	uConn := utls.UClient(conn, tlsConfig, *profile.ClientHello)
	if err := uConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("browsertls: handshake failed: %w", err)
	}

	return uConn, nil
}

// CurrentProfile returns the profile the next request will present.
func (t *Transport) CurrentProfile() *Profile {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.profiles[t.currentIndex]
}

// SetProfile pins the transport to a specific profile by name.
func (t *Transport) SetProfile(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, p := range t.profiles {
		if strings.EqualFold(p.Name, name) {
			t.currentIndex = i
			return nil
		}
	}
	return fmt.Errorf("browsertls: profile not found: %s", name)
}

// CreateClient creates an HTTP client with browser TLS fingerprinting.
func CreateClient(cfg *Config) *http.Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &http.Client{
		Transport: NewTransport(cfg),
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// setBrowserHeaders adds the headers a real browser sends with a page load.
// Client-hint headers only go out for Chromium UAs; Firefox and Safari
// don't send them, and inventing them breaks the disguise.
func setBrowserHeaders(req *http.Request, profile *Profile) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}
	if req.Header.Get("Upgrade-Insecure-Requests") == "" {
		req.Header.Set("Upgrade-Insecure-Requests", "1")
	}

	if !strings.Contains(profile.UserAgent, "Chrome") {
		return
	}
	if req.Header.Get("Sec-Ch-Ua") == "" {
		req.Header.Set("Sec-Ch-Ua", `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`)
	}
	if req.Header.Get("Sec-Ch-Ua-Mobile") == "" {
		req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
	}
	if req.Header.Get("Sec-Fetch-Dest") == "" {
		req.Header.Set("Sec-Fetch-Dest", "document")
	}
	if req.Header.Get("Sec-Fetch-Mode") == "" {
		req.Header.Set("Sec-Fetch-Mode", "navigate")
	}
	if req.Header.Get("Sec-Fetch-Site") == "" {
		req.Header.Set("Sec-Fetch-Site", "none")
	}
}

// DefaultProfiles returns the built-in browser fingerprints.
func DefaultProfiles() []*Profile {
	return []*Profile{
		{
			Name:        "Chrome 120 Windows",
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ClientHello: &utls.HelloChrome_120,
		},
		{
			Name:        "Chrome 120 macOS",
			UserAgent:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ClientHello: &utls.HelloChrome_120,
		},
		{
			Name:        "Chrome 120 Linux",
			UserAgent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ClientHello: &utls.HelloChrome_120,
		},
		{
			Name:        "Firefox 120 Windows",
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
			ClientHello: &utls.HelloFirefox_120,
		},
		{
			Name:        "Safari 16 macOS",
			UserAgent:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.15",
			ClientHello: &utls.HelloSafari_16_0,
		},
		{
			Name:        "Edge 106 Windows",
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/106.0.0.0 Safari/537.36 Edg/106.0.1370.52",
			ClientHello: &utls.HelloEdge_106,
		},
	}
}

// ListProfiles returns names of all built-in profiles.
func ListProfiles() []string {
	profiles := DefaultProfiles()
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	return names
}

// ProfileByName returns a built-in profile by name (case-insensitive).
func ProfileByName(name string) (*Profile, error) {
	for _, p := range DefaultProfiles() {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("browsertls: profile not found: %s", name)
}
