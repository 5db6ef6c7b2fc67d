// Package hosterrors tracks endpoints that keep failing so probes stop
// hammering them. A scan talks to one target plus a handful of external
// services (the NVD API in particular); once an endpoint has failed
// enough times in a row it is skipped until the entry expires.
//
// Usage:
//
//	if hosterrors.Check("services.nvd.nist.gov") {
//	    return nil // known bad, skip
//	}
//	if err := query(); hosterrors.IsNetworkError(err) {
//	    hosterrors.MarkError("services.nvd.nist.gov")
//	}
package hosterrors

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/siteprobe/siteprobe/pkg/duration"
)

// DefaultMaxErrors is the consecutive-failure threshold before an
// endpoint is marked as down.
const DefaultMaxErrors = 3

// DefaultExpiry is how long a marked endpoint stays skipped.
var DefaultExpiry = duration.CacheMedium

// hostState tracks the error count and expiration for one endpoint.
type hostState struct {
	mu        sync.RWMutex
	count     int32
	markedAt  time.Time
	permanent bool
}

// Cache stores endpoints that have failed connectivity checks.
type Cache struct {
	hosts     sync.Map // map[string]*hostState
	maxErrors int32
	expiry    time.Duration
	hits      atomic.Int64
	misses    atomic.Int64
}

var defaultCache = NewCache(DefaultMaxErrors, DefaultExpiry)

// NewCache creates a host error cache with custom settings.
func NewCache(maxErrors int, expiry time.Duration) *Cache {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	return &Cache{
		maxErrors: int32(maxErrors),
		expiry:    expiry,
	}
}

// MarkError records a failure for an endpoint. Returns true once the
// endpoint has crossed the threshold and will now be skipped.
func (c *Cache) MarkError(host string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}

	actual, _ := c.hosts.LoadOrStore(host, &hostState{})
	state := actual.(*hostState)

	state.mu.Lock()
	defer state.mu.Unlock()

	// A stale marked entry resets before counting the new failure.
	if !state.permanent && !state.markedAt.IsZero() && time.Since(state.markedAt) > c.expiry {
		state.count = 0
		state.markedAt = time.Time{}
	}

	state.count++
	if state.count >= c.maxErrors {
		if state.markedAt.IsZero() {
			state.markedAt = time.Now()
		}
		return true
	}
	return false
}

// MarkPermanent marks an endpoint as down without expiry. Used for DNS
// failures and other conditions that will not recover within a scan.
func (c *Cache) MarkPermanent(host string) {
	host = normalizeHost(host)
	if host == "" {
		return
	}

	actual, _ := c.hosts.LoadOrStore(host, &hostState{})
	state := actual.(*hostState)

	state.mu.Lock()
	state.count = c.maxErrors
	state.markedAt = time.Now()
	state.permanent = true
	state.mu.Unlock()
}

// Check reports whether the endpoint should be skipped.
func (c *Cache) Check(host string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}

	v, ok := c.hosts.Load(host)
	if !ok {
		c.misses.Add(1)
		return false
	}
	state := v.(*hostState)

	state.mu.RLock()
	count := state.count
	permanent := state.permanent
	markedAt := state.markedAt
	state.mu.RUnlock()

	if count < c.maxErrors {
		c.misses.Add(1)
		return false
	}

	if !permanent && time.Since(markedAt) > c.expiry {
		// Expired entry resets under the write lock. Another goroutine
		// may have raced here, so the state is re-checked.
		state.mu.Lock()
		if state.count >= c.maxErrors && !state.permanent && time.Since(state.markedAt) > c.expiry {
			state.count = 0
			state.markedAt = time.Time{}
		}
		state.mu.Unlock()
		c.misses.Add(1)
		return false
	}

	c.hits.Add(1)
	return true
}

// Clear removes an endpoint from the cache, typically after a success.
func (c *Cache) Clear(host string) {
	host = normalizeHost(host)
	if host != "" {
		c.hosts.Delete(host)
	}
}

// ClearAll removes every endpoint and resets the counters.
func (c *Cache) ClearAll() {
	c.hosts.Range(func(key, _ any) bool {
		c.hosts.Delete(key)
		return true
	})
	c.hits.Store(0)
	c.misses.Store(0)
}

// Size returns the number of tracked endpoints.
func (c *Cache) Size() int {
	n := 0
	c.hosts.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stats returns cache hit/miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// MarkError records a failure for an endpoint using the default cache.
func MarkError(host string) bool {
	return defaultCache.MarkError(host)
}

// MarkPermanent marks an endpoint as down using the default cache.
func MarkPermanent(host string) {
	defaultCache.MarkPermanent(host)
}

// Check reports whether the endpoint should be skipped using the default cache.
func Check(host string) bool {
	return defaultCache.Check(host)
}

// Clear removes an endpoint from the default cache.
func Clear(host string) {
	defaultCache.Clear(host)
}

// ClearAll resets the default cache.
func ClearAll() {
	defaultCache.ClearAll()
}

// normalizeHost extracts the lowercase host from a URL or host:port string.
func normalizeHost(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if strings.Contains(input, "://") {
		if u, err := url.Parse(input); err == nil && u.Host != "" {
			input = u.Host
		}
	}
	if host, _, err := net.SplitHostPort(input); err == nil {
		input = host
	}
	return strings.ToLower(input)
}

// IsNetworkError reports whether err looks like a transport-level failure
// worth counting against the endpoint, as opposed to an application error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
		// Temporary errors are retryable and do not count against
		// the endpoint.
		if netErr.Temporary() {
			return false
		}
		return true
	}

	// Anything else wraps the cause in text only.
	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection refused",
		"no such host",
		"no route to host",
		"network is unreachable",
		"i/o timeout",
		"tls handshake timeout",
		"context deadline exceeded",
		"connection reset",
		"eof",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}
