package httpclient

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/siteprobe/siteprobe/pkg/duration"
)

// DNSCache caches DNS lookups. Target validation re-resolves every
// submitted hostname, and popular targets get scanned repeatedly; the
// cache keeps that from hammering the resolver.
type DNSCache struct {
	cache    sync.Map // hostname -> *dnsEntry
	resolver *net.Resolver

	ttl         time.Duration
	negativeTTL time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// dnsEntry is one cached resolution, positive or negative.
type dnsEntry struct {
	mu        sync.RWMutex
	ips       []net.IP
	err       error
	expiresAt time.Time
}

var (
	sharedDNSCache *DNSCache
	dnsCacheOnce   sync.Once
)

// GetDNSCache returns the shared cache instance.
func GetDNSCache() *DNSCache {
	dnsCacheOnce.Do(func() {
		sharedDNSCache = NewDNSCache(duration.CacheMedium, duration.CacheShort)
	})
	return sharedDNSCache
}

// NewDNSCache creates a cache. Successful lookups live for ttl, failed
// ones for negativeTTL. A background goroutine evicts expired entries;
// Close stops it.
func NewDNSCache(ttl, negativeTTL time.Duration) *DNSCache {
	d := &DNSCache{
		resolver:    &net.Resolver{PreferGo: true},
		ttl:         ttl,
		negativeTTL: negativeTTL,
		stop:        make(chan struct{}),
	}
	go d.evictLoop(2 * ttl)
	return d
}

// Close stops the eviction goroutine. Safe to call more than once.
func (d *DNSCache) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
}

func (d *DNSCache) evictLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			now := time.Now()
			d.cache.Range(func(key, value any) bool {
				entry := value.(*dnsEntry)
				entry.mu.RLock()
				expired := now.After(entry.expiresAt)
				entry.mu.RUnlock()
				if expired {
					d.cache.Delete(key)
				}
				return true
			})
		}
	}
}

// LookupHost resolves host, serving from cache while the entry is
// fresh. Negative results are cached too, so an unresolvable host
// fails fast on resubmission.
func (d *DNSCache) LookupHost(ctx context.Context, host string) ([]net.IP, error) {
	if value, ok := d.cache.Load(host); ok {
		entry := value.(*dnsEntry)
		entry.mu.RLock()
		fresh := time.Now().Before(entry.expiresAt)
		ips, err := entry.ips, entry.err
		entry.mu.RUnlock()
		if fresh {
			if err != nil {
				return nil, err
			}
			return append([]net.IP(nil), ips...), nil
		}
	}
	return d.refresh(ctx, host)
}

func (d *DNSCache) refresh(ctx context.Context, host string) ([]net.IP, error) {
	addrs, err := d.resolver.LookupIPAddr(ctx, host)

	entry := &dnsEntry{}
	if err != nil {
		entry.err = fmt.Errorf("resolve %s: %w", host, err)
		entry.expiresAt = time.Now().Add(d.negativeTTL)
		d.cache.Store(host, entry)
		return nil, entry.err
	}

	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		ips = append(ips, addr.IP)
	}
	entry.ips = ips
	entry.expiresAt = time.Now().Add(d.ttl)
	d.cache.Store(host, entry)
	return append([]net.IP(nil), ips...), nil
}

// Invalidate drops the cached entry for host.
func (d *DNSCache) Invalidate(host string) {
	d.cache.Delete(host)
}

// Len returns the number of cached hosts, expired or not.
func (d *DNSCache) Len() int {
	n := 0
	d.cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
