package probes

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/siteprobe/siteprobe/pkg/defaults"
	"github.com/siteprobe/siteprobe/pkg/duration"
	"github.com/siteprobe/siteprobe/pkg/finding"
	"github.com/siteprobe/siteprobe/pkg/hosterrors"
	"github.com/siteprobe/siteprobe/pkg/httpclient"
	"github.com/siteprobe/siteprobe/pkg/iohelper"
	"github.com/siteprobe/siteprobe/pkg/jsonutil"
)

const nvdBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// CVEClient queries the NVD REST API for published CVEs affecting the
// fingerprinted components. Responses are cached per component+version
// so repeated scans of similar stacks stay within NVD rate limits, and
// an unreachable NVD endpoint suspends lookups instead of stalling
// every scan.
type CVEClient struct {
	// BaseURL of the CVE API. Defaults to the NVD 2.0 endpoint.
	BaseURL string

	// APIKey raises NVD rate limits when set.
	APIKey string

	// Client issues the API requests.
	Client *http.Client

	// MaxPerComponent caps findings reported per component.
	MaxPerComponent int

	// Retries is the attempt count per query.
	Retries int

	// CacheTTL bounds how long per-component results are reused.
	CacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]cveCacheEntry
}

type cveCacheEntry struct {
	findings []finding.Finding
	at       time.Time
}

// NewCVEClient creates a client using the given HTTP client, or the
// shared pooled client when nil. The API key is read from
// SITEPROBE_NVD_KEY.
func NewCVEClient(client *http.Client) *CVEClient {
	if client == nil {
		client = httpclient.Default()
	}
	return &CVEClient{
		BaseURL:         nvdBaseURL,
		APIKey:          os.Getenv("SITEPROBE_NVD_KEY"),
		Client:          client,
		MaxPerComponent: defaults.MaxCVEPerComponent,
		Retries:         defaults.RetryMedium,
		CacheTTL:        duration.CacheMedium,
		cache:           make(map[string]cveCacheEntry),
	}
}

// Lookup queries CVEs for every versioned component. Components without
// a version are skipped, and no versioned components means no findings
// and no error. A failing component degrades to skipping it; the first
// failure is returned alongside whatever was found.
func (c *CVEClient) Lookup(ctx context.Context, components []Library) ([]finding.Finding, error) {
	var out []finding.Finding
	var firstErr error

	for _, comp := range components {
		if comp.Name == "" || comp.Version == "" {
			continue
		}
		fs, err := c.lookupComponent(ctx, comp)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				return out, firstErr
			}
			continue
		}
		out = append(out, fs...)
	}
	return out, firstErr
}

func (c *CVEClient) lookupComponent(ctx context.Context, comp Library) ([]finding.Finding, error) {
	key := strings.ToLower(comp.Name + " " + comp.Version)
	if fs, ok := c.cached(key); ok {
		return fs, nil
	}

	host := c.endpointHost()
	if hosterrors.Check(host) {
		return nil, fmt.Errorf("cve lookups suspended: %s unreachable", host)
	}

	resp, err := c.query(ctx, comp.Name+" "+comp.Version)
	if err != nil {
		return nil, err
	}

	fs := c.buildFindings(comp, resp)
	c.store(key, fs)
	return fs, nil
}

// query fetches one keyword search with retries. Rate-limit and server
// errors back off exponentially, honoring Retry-After when present.
func (c *CVEClient) query(ctx context.Context, keyword string) (*nvdResponse, error) {
	endpoint := c.BaseURL
	if endpoint == "" {
		endpoint = nvdBaseURL
	}
	maxPer := c.MaxPerComponent
	if maxPer <= 0 {
		maxPer = defaults.MaxCVEPerComponent
	}
	queryURL := fmt.Sprintf("%s?keywordSearch=%s&resultsPerPage=%d",
		endpoint, url.QueryEscape(keyword), maxPer*4)

	retries := c.Retries
	if retries <= 0 {
		retries = defaults.RetryMedium
	}

	var lastErr error
	var wait time.Duration
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			d := wait
			if d <= 0 {
				d = time.Duration(1<<uint(attempt-1)) * time.Second
			}
			wait = 0
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build cve query: %w", err)
		}
		if c.APIKey != "" {
			req.Header.Set("apiKey", c.APIKey)
		}

		resp, err := c.Client.Do(req)
		if err != nil {
			lastErr = err
			if hosterrors.IsNetworkError(err) {
				hosterrors.MarkError(c.endpointHost())
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			wait = parseRetryAfter(resp.Header.Get("Retry-After"))
			iohelper.DrainAndClose(resp.Body)
			lastErr = fmt.Errorf("cve api returned %s", resp.Status)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			iohelper.DrainAndClose(resp.Body)
			return nil, fmt.Errorf("cve api returned %s", resp.Status)
		}

		body, err := iohelper.ReadBody(resp.Body, defaults.BufferMax)
		iohelper.DrainAndClose(resp.Body)
		if err != nil {
			lastErr = err
			continue
		}

		var out nvdResponse
		if err := jsonutil.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decode cve response: %w", err)
		}
		return &out, nil
	}
	return nil, fmt.Errorf("cve query failed after %d attempts: %w", retries, lastErr)
}

// buildFindings maps the API response to findings, most severe first,
// capped per component.
func (c *CVEClient) buildFindings(comp Library, resp *nvdResponse) []finding.Finding {
	var fs []finding.Finding
	for i := range resp.Vulnerabilities {
		cve := &resp.Vulnerabilities[i].CVE
		if cve.ID == "" {
			continue
		}
		score := baseScore(cve)
		fs = append(fs, finding.Finding{
			Title:            fmt.Sprintf("%s (%s %s)", cve.ID, comp.Name, comp.Version),
			Description:      truncate(englishDescription(cve), 500),
			Severity:         finding.FromCVSS(score),
			Recommendation:   fmt.Sprintf("Review %s and patch %s.", cve.ID, comp.Name),
			CVE:              cve.ID,
			CVSS:             score,
			Component:        comp.Name,
			ComponentVersion: comp.Version,
			Probe:            "cve",
		})
	}

	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Severity.Score() != fs[j].Severity.Score() {
			return fs[i].Severity.Score() > fs[j].Severity.Score()
		}
		return fs[i].CVSS > fs[j].CVSS
	})

	maxPer := c.MaxPerComponent
	if maxPer <= 0 {
		maxPer = defaults.MaxCVEPerComponent
	}
	if len(fs) > maxPer {
		fs = fs[:maxPer]
	}
	return fs
}

func (c *CVEClient) cached(key string) ([]finding.Finding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	ttl := c.CacheTTL
	if ttl <= 0 {
		ttl = duration.CacheMedium
	}
	if time.Since(e.at) > ttl {
		delete(c.cache, key)
		return nil, false
	}
	return append([]finding.Finding(nil), e.findings...), true
}

func (c *CVEClient) store(key string, fs []finding.Finding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		c.cache = make(map[string]cveCacheEntry)
	}
	c.cache[key] = cveCacheEntry{
		findings: append([]finding.Finding(nil), fs...),
		at:       time.Now(),
	}
}

func (c *CVEClient) endpointHost() string {
	endpoint := c.BaseURL
	if endpoint == "" {
		endpoint = nvdBaseURL
	}
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return "services.nvd.nist.gov"
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// nvdResponse mirrors the slice of the NVD 2.0 schema the client reads.
type nvdResponse struct {
	TotalResults    int `json:"totalResults"`
	Vulnerabilities []struct {
		CVE nvdCVE `json:"cve"`
	} `json:"vulnerabilities"`
}

type nvdCVE struct {
	ID           string `json:"id"`
	Descriptions []struct {
		Lang  string `json:"lang"`
		Value string `json:"value"`
	} `json:"descriptions"`
	Metrics struct {
		CVSSMetricV31 []nvdMetric `json:"cvssMetricV31"`
		CVSSMetricV30 []nvdMetric `json:"cvssMetricV30"`
		CVSSMetricV2  []nvdMetric `json:"cvssMetricV2"`
	} `json:"metrics"`
}

type nvdMetric struct {
	CVSSData struct {
		BaseScore float64 `json:"baseScore"`
	} `json:"cvssData"`
}

func baseScore(cve *nvdCVE) float64 {
	if len(cve.Metrics.CVSSMetricV31) > 0 {
		return cve.Metrics.CVSSMetricV31[0].CVSSData.BaseScore
	}
	if len(cve.Metrics.CVSSMetricV30) > 0 {
		return cve.Metrics.CVSSMetricV30[0].CVSSData.BaseScore
	}
	if len(cve.Metrics.CVSSMetricV2) > 0 {
		return cve.Metrics.CVSSMetricV2[0].CVSSData.BaseScore
	}
	return 0
}

func englishDescription(cve *nvdCVE) string {
	for _, d := range cve.Descriptions {
		if d.Lang == "en" {
			return d.Value
		}
	}
	if len(cve.Descriptions) > 0 {
		return cve.Descriptions[0].Value
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if idx := strings.LastIndexByte(cut, ' '); idx > n/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
