package hosterrors

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

func TestMarkError_Threshold(t *testing.T) {
	cache := NewCache(3, time.Minute)

	if cache.MarkError("nvd.example.test") {
		t.Error("endpoint marked after first error")
	}
	if cache.MarkError("nvd.example.test") {
		t.Error("endpoint marked after second error")
	}
	if !cache.MarkError("nvd.example.test") {
		t.Error("endpoint not marked after third error")
	}
}

func TestCheck(t *testing.T) {
	cache := NewCache(2, time.Minute)

	if cache.Check("fresh.example.test") {
		t.Error("unknown endpoint blocked")
	}

	cache.MarkError("down.example.test")
	cache.MarkError("down.example.test")

	if !cache.Check("down.example.test") {
		t.Error("endpoint not blocked after reaching threshold")
	}
}

func TestCheck_Expiry(t *testing.T) {
	cache := NewCache(2, 50*time.Millisecond)

	cache.MarkError("flaky.example.test")
	cache.MarkError("flaky.example.test")

	if !cache.Check("flaky.example.test") {
		t.Error("endpoint not blocked before expiry")
	}

	time.Sleep(100 * time.Millisecond)

	if cache.Check("flaky.example.test") {
		t.Error("endpoint still blocked after expiry")
	}
}

func TestMarkError_ResetsStaleEntry(t *testing.T) {
	cache := NewCache(2, 50*time.Millisecond)

	cache.MarkError("stale.example.test")
	cache.MarkError("stale.example.test")
	time.Sleep(100 * time.Millisecond)

	// The stale marked entry resets, so a single new failure should not
	// re-block the endpoint.
	if cache.MarkError("stale.example.test") {
		t.Error("single failure after expiry re-marked the endpoint")
	}
	if cache.Check("stale.example.test") {
		t.Error("endpoint blocked after reset")
	}
}

func TestMarkPermanent(t *testing.T) {
	cache := NewCache(2, 50*time.Millisecond)

	cache.MarkPermanent("gone.example.test")

	if !cache.Check("gone.example.test") {
		t.Error("permanently marked endpoint not blocked")
	}

	time.Sleep(100 * time.Millisecond)

	if !cache.Check("gone.example.test") {
		t.Error("permanently marked endpoint expired")
	}
}

func TestClear(t *testing.T) {
	cache := NewCache(2, time.Minute)

	cache.MarkError("recovering.example.test")
	cache.MarkError("recovering.example.test")
	if !cache.Check("recovering.example.test") {
		t.Fatal("endpoint not blocked")
	}

	cache.Clear("recovering.example.test")

	if cache.Check("recovering.example.test") {
		t.Error("endpoint still blocked after Clear")
	}
}

func TestClearAll(t *testing.T) {
	cache := NewCache(2, time.Minute)

	for _, h := range []string{"a.example.test", "b.example.test", "c.example.test"} {
		cache.MarkError(h)
		cache.MarkError(h)
	}
	if got := cache.Size(); got != 3 {
		t.Errorf("Size() = %d, want 3", got)
	}

	cache.ClearAll()

	if got := cache.Size(); got != 0 {
		t.Errorf("Size() after ClearAll = %d, want 0", got)
	}
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"services.nvd.nist.gov", "services.nvd.nist.gov"},
		{"SERVICES.NVD.NIST.GOV", "services.nvd.nist.gov"},
		{"example.com:443", "example.com"},
		{"https://example.com", "example.com"},
		{"https://example.com:8080/rest/json/cves/2.0", "example.com"},
		{"  example.com  ", "example.com"},
		{"", ""},
		{"[::1]:8080", "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeHost(tt.input); got != tt.want {
				t.Errorf("normalizeHost(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStats(t *testing.T) {
	cache := NewCache(2, time.Minute)

	cache.Check("miss1.example.test")
	cache.Check("miss2.example.test")

	cache.MarkError("hit.example.test")
	cache.MarkError("hit.example.test")

	cache.Check("hit.example.test")
	cache.Check("hit.example.test")
	cache.Check("miss3.example.test")

	hits, misses := cache.Stats()
	if hits != 2 {
		t.Errorf("hits = %d, want 2", hits)
	}
	if misses != 3 {
		t.Errorf("misses = %d, want 3", misses)
	}
}

func TestConcurrentAccess(t *testing.T) {
	cache := NewCache(5, time.Minute)
	hosts := []string{"h1.example.test", "h2.example.test", "h3.example.test"}

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			host := hosts[idx%len(hosts)]
			for j := 0; j < 10; j++ {
				cache.MarkError(host)
				cache.Check(host)
			}
		}(i)
	}
	wg.Wait()

	for _, h := range hosts {
		if !cache.Check(h) {
			t.Errorf("endpoint %s not blocked after concurrent failures", h)
		}
	}
}

type mockNetError struct {
	timeout   bool
	temporary bool
}

func (e *mockNetError) Error() string   { return "mock network error" }
func (e *mockNetError) Timeout() bool   { return e.timeout }
func (e *mockNetError) Temporary() bool { return e.temporary }

var _ net.Error = (*mockNetError)(nil)

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"generic", errors.New("some error"), false},
		{"validation", errors.New("target: invalid target"), false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"no such host", errors.New("lookup host: no such host"), true},
		{"io timeout", errors.New("i/o timeout"), true},
		{"context deadline", errors.New("context deadline exceeded"), true},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"tls timeout", errors.New("tls handshake timeout"), true},
		{"unreachable", errors.New("network is unreachable"), true},
		{"net timeout", &mockNetError{timeout: true}, true},
		{"net permanent", &mockNetError{}, true},
		{"net temporary", &mockNetError{temporary: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNetworkError(tt.err); got != tt.want {
				t.Errorf("IsNetworkError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDefaultCache(t *testing.T) {
	ClearAll()
	t.Cleanup(ClearAll)

	for i := 0; i < DefaultMaxErrors; i++ {
		MarkError("pkg-level.example.test")
	}
	if !Check("pkg-level.example.test") {
		t.Error("endpoint not blocked via default cache")
	}

	Clear("pkg-level.example.test")

	if Check("pkg-level.example.test") {
		t.Error("endpoint still blocked after Clear")
	}
}

func BenchmarkCheck_Miss(b *testing.B) {
	cache := NewCache(3, time.Minute)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Check("unknown.example.test")
	}
}

func BenchmarkCheck_Hit(b *testing.B) {
	cache := NewCache(3, time.Minute)
	cache.MarkPermanent("blocked.example.test")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Check("blocked.example.test")
	}
}
