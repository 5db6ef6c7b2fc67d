// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all runtime configuration defaults.
//
// Usage:
//
//	config.PortConcurrency = defaults.ConcurrencyPorts
//	config.MaxConcurrentScans = defaults.MaxConcurrentScans
//	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
//
// DO NOT use hardcoded values like `Concurrency: 10` anywhere.
// Instead, reference the appropriate constant from this package.
package defaults

import "fmt"

// Version is the current siteprobe version
const Version = "1.2.0"

// ToolName identifies this tool in telemetry and user agents
const ToolName = "siteprobe"

// ============================================================================
// SCAN ADMISSION
// ============================================================================
//
// Use these for the global scan admission cap.
// ============================================================================

const (
	// MaxConcurrentScans is the default cap on concurrently running scans (3)
	MaxConcurrentScans = 3
)

// ============================================================================
// CONCURRENCY SETTINGS
// ============================================================================
//
// Use these for worker pools, semaphores, and parallel operations.
// Choose based on the aggressiveness of the operation.
// ============================================================================

const (
	// ConcurrencyMinimal is for single-threaded operations (1)
	ConcurrencyMinimal = 1

	// ConcurrencyLow is for light scanning (5)
	ConcurrencyLow = 5

	// ConcurrencyMedium is for standard scanning operations (10)
	ConcurrencyMedium = 10

	// ConcurrencyPorts is for the TCP port sweep (32)
	ConcurrencyPorts = 32
)

// ============================================================================
// RETRY SETTINGS
// ============================================================================
//
// Use these for retry loops and error recovery.
// ============================================================================

const (
	// RetryNone disables retries (0)
	RetryNone = 0

	// RetryLow is for quick operations (2)
	RetryLow = 2

	// RetryMedium is the standard retry count (3)
	RetryMedium = 3
)

// ============================================================================
// BUFFER SIZES
// ============================================================================
//
// Use these for byte buffers, slices, and I/O operations.
// ============================================================================

const (
	// BufferSmall is for typical reads (4KB)
	BufferSmall = 4 * 1024

	// BufferMedium is for larger reads (32KB)
	BufferMedium = 32 * 1024

	// BufferHuge is for very large reads (1MB)
	BufferHuge = 1024 * 1024

	// BufferPage caps a fetched page body for fingerprinting (2MB)
	BufferPage = 2 * 1024 * 1024

	// BufferMax is the maximum response body size (10MB)
	BufferMax = 10 * 1024 * 1024
)

// ============================================================================
// CHANNEL SIZES
// ============================================================================
//
// Use these for buffered channels.
// ============================================================================

const (
	// ChannelTiny is for small buffers (10)
	ChannelTiny = 10

	// ChannelSmall is for typical buffers (100)
	ChannelSmall = 100
)

// ============================================================================
// HTTP CONTENT TYPES
// ============================================================================
//
// Use these for Content-Type headers.
// ============================================================================

const (
	// ContentTypeJSON is application/json
	ContentTypeJSON = "application/json"

	// ContentTypeHTML is text/html
	ContentTypeHTML = "text/html"

	// ContentTypePlain is text/plain
	ContentTypePlain = "text/plain"
)

// ============================================================================
// USER AGENTS
// ============================================================================
//
// Use UserAgent() for dynamic user agent strings.
// Use the constants for specific browser emulation.
// ============================================================================

const (
	// UAChrome is a Chrome user agent
	UAChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// UAFirefox is a Firefox user agent
	UAFirefox = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0"

	// UABot is the identifying scanner user agent
	UABot = "Mozilla/5.0 (compatible; siteprobe/" + Version + ")"

	// UAMinimal is a minimal user agent
	UAMinimal = "siteprobe/" + Version
)

// UserAgent returns the siteprobe user agent with context
func UserAgent(context string) string {
	if context == "" {
		return UAMinimal
	}
	return fmt.Sprintf("siteprobe/%s (%s)", Version, context)
}

// ============================================================================
// RATE LIMITING
// ============================================================================
//
// Use these for rate limiting and throttling.
// ============================================================================

const (
	// RateLimitNone disables rate limiting (0)
	RateLimitNone = 0

	// RateLimitLow is conservative rate limiting (10 req/s)
	RateLimitLow = 10

	// RateLimitMedium is moderate rate limiting (50 req/s)
	RateLimitMedium = 50
)

// ============================================================================
// THRESHOLDS
// ============================================================================
//
// Use these for detection thresholds and limits.
// ============================================================================

const (
	// MaxHeaderSize is the maximum header size (8KB)
	MaxHeaderSize = 8 * 1024

	// MaxCVEPerComponent caps CVE findings pulled per fingerprinted component
	MaxCVEPerComponent = 5

	// TechConfidenceMin is the minimum confidence to report a technology (30)
	TechConfidenceMin = 30
)

// ============================================================================
// PORTS
// ============================================================================
//
// Common port numbers.
// ============================================================================

const (
	PortHTTP     = 80
	PortHTTPS    = 443
	PortHTTP8080 = 8080
	PortHTTP8443 = 8443
)
