// Package duration provides canonical time constants for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all time-based configuration.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.ProbePorts)
//	Timeout: duration.HTTPProbing,
//
// DO NOT use hardcoded time.Duration values like `30 * time.Second` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// HTTP CLIENT TIMEOUTS
// ============================================================================
//
// These match the presets in pkg/httpclient and are re-exported here for
// packages that need timeout values without importing httpclient.
// ============================================================================

const (
	// HTTPProbing is for quick fingerprinting and health checks (5s)
	HTTPProbing = 5 * time.Second

	// HTTPScanning is for template and security scanning requests (15s)
	HTTPScanning = 15 * time.Second

	// HTTPAPI is for external API calls like the NVD feed (60s)
	HTTPAPI = 60 * time.Second
)

// ============================================================================
// PROBE TIMEOUTS
// ============================================================================
//
// Per-probe hard deadlines. The orchestrator wraps every probe invocation
// in context.WithTimeout using these, so the fan-in join always completes
// in bounded time. Timeouts are per-probe, not per-job.
// ============================================================================

const (
	// ProbeFingerprint bounds the software fingerprint phase (10s)
	ProbeFingerprint = 10 * time.Second

	// ProbePorts bounds the TCP port sweep (20s)
	ProbePorts = 20 * time.Second

	// ProbeCertificate bounds TLS certificate grading (15s)
	ProbeCertificate = 15 * time.Second

	// ProbeTemplates bounds the vulnerability template run (30s)
	ProbeTemplates = 30 * time.Second

	// ProbeCVELookup bounds the CVE feed lookup (15s)
	ProbeCVELookup = 15 * time.Second
)

// ============================================================================
// CONTEXT/OPERATION TIMEOUTS
// ============================================================================
//
// Use these for context.WithTimeout() calls to bound operation duration.
// ============================================================================

const (
	// ContextShort is for quick operations (30s)
	ContextShort = 30 * time.Second

	// ContextMedium is for standard operations (5min)
	ContextMedium = 5 * time.Minute
)

// ============================================================================
// JOB RETENTION
// ============================================================================
//
// Use these for scan job store eviction.
// ============================================================================

const (
	// ScanRetention is how long a terminal scan job stays readable (10min)
	ScanRetention = 10 * time.Minute

	// StoreSweep is the interval between store eviction sweeps (2min)
	StoreSweep = 2 * time.Minute
)

// ============================================================================
// CACHE TTLs
// ============================================================================
//
// Use these for cache expiration times.
// ============================================================================

const (
	// CacheShort is for short-lived cache entries (1min)
	CacheShort = 1 * time.Minute

	// CacheMedium is for medium-lived cache entries (5min)
	CacheMedium = 5 * time.Minute

	// CacheLong is for long-lived cache entries (30min)
	CacheLong = 30 * time.Minute
)

// ============================================================================
// RETRY INTERVALS
// ============================================================================
//
// Use these for retries and backoff bases.
// ============================================================================

const (
	// RetryFast is for quick retries (1s)
	RetryFast = 1 * time.Second

	// RetryStd is for standard retry delay (5s)
	RetryStd = 5 * time.Second
)

// ============================================================================
// NETWORK/TRANSPORT
// ============================================================================
//
// Use these for low-level network configuration.
// ============================================================================

const (
	// DialTimeout is for establishing TCP connections (10s)
	DialTimeout = 10 * time.Second

	// PortDial is for single-port connect attempts during a sweep (3s)
	PortDial = 3 * time.Second

	// KeepAlive is for TCP keep-alive interval (30s)
	KeepAlive = 30 * time.Second

	// IdleConnTimeout is for idle connection pool timeout (90s)
	IdleConnTimeout = 90 * time.Second

	// TLSHandshake is for TLS handshake timeout (10s)
	TLSHandshake = 10 * time.Second

	// DNSTimeout is for DNS resolution timeout (3s)
	DNSTimeout = 3 * time.Second
)

// ============================================================================
// HTTP SERVER
// ============================================================================
//
// Use these for the API server lifecycle.
// ============================================================================

const (
	// ServerRead is the API server read timeout (10s)
	ServerRead = 10 * time.Second

	// ServerWrite is the API server write timeout (30s)
	ServerWrite = 30 * time.Second

	// ServerShutdown bounds graceful shutdown drain (10s)
	ServerShutdown = 10 * time.Second
)
