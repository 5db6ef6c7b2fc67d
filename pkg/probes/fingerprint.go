// Package probes implements the independent probes a scan fans out to:
// software fingerprinting, TCP port sweep, certificate grading,
// vulnerability templates, and online CVE lookup. Probers are
// self-contained and safe for concurrent use; orchestration, phase
// timeouts, and failure isolation live in pkg/orchestrator.
package probes

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/siteprobe/siteprobe/pkg/defaults"
	"github.com/siteprobe/siteprobe/pkg/finding"
	"github.com/siteprobe/siteprobe/pkg/httpclient"
	"github.com/siteprobe/siteprobe/pkg/iohelper"
	"github.com/siteprobe/siteprobe/pkg/regexcache"
	"github.com/siteprobe/siteprobe/pkg/target"
)

// Library is a software component with an optional detected version.
type Library struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Technology is one detected technology with its detection confidence.
type Technology struct {
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
	Category   string `json:"category,omitempty"`
	Confidence int    `json:"confidence"`
}

// Fingerprint is the software profile of a target, built from one page
// fetch plus an optional favicon fetch. It feeds the knowledge-base and
// CVE lookup phases and is attached to the report as the technology
// snapshot.
type Fingerprint struct {
	finding.ScanResult

	Title        string       `json:"title,omitempty"`
	WebServer    Library      `json:"webServer,omitzero"`
	PoweredBy    string       `json:"poweredBy,omitempty"`
	CMS          string       `json:"cms,omitempty"`
	Frameworks   []string     `json:"frameworks,omitempty"`
	Libraries    []Library    `json:"libraries,omitempty"`
	Technologies []Technology `json:"technologies,omitempty"`
	FaviconHash  int32        `json:"faviconHash,omitempty"`
	FaviconTech  string       `json:"faviconTech,omitempty"`

	// VulnerableComponents carries findings the fingerprint itself can
	// assert from banners alone (end-of-life product lines). Precise
	// version matching is the knowledge base's job.
	VulnerableComponents []finding.Finding `json:"vulnerableComponents,omitempty"`
}

// Components returns the versioned components worth a vulnerability
// lookup: the web server plus every library and technology that carries
// a version. Duplicates are folded case-insensitively.
func (fp *Fingerprint) Components() []Library {
	var out []Library
	seen := make(map[string]bool)
	add := func(name, version string) {
		if name == "" || version == "" {
			return
		}
		key := strings.ToLower(name) + " " + strings.ToLower(version)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Library{Name: name, Version: version})
	}

	add(fp.WebServer.Name, fp.WebServer.Version)
	for _, lib := range fp.Libraries {
		add(lib.Name, lib.Version)
	}
	for _, tech := range fp.Technologies {
		add(tech.Name, tech.Version)
	}
	return out
}

// FingerprintProber detects the software stack behind a target from its
// response headers, HTML, and favicon.
type FingerprintProber struct {
	// Client issues the page and favicon fetches. The browser-TLS
	// client is the usual choice so fronted targets answer normally.
	Client *http.Client

	// MaxBodySize caps how much of the page body is read.
	MaxBodySize int64

	// FetchFavicon controls the extra favicon request.
	FetchFavicon bool

	signatures []techSignature
}

// NewFingerprintProber creates a prober using the given client, or the
// shared pooled client when nil.
func NewFingerprintProber(client *http.Client) *FingerprintProber {
	if client == nil {
		client = httpclient.Default()
	}
	return &FingerprintProber{
		Client:       client,
		MaxBodySize:  defaults.BufferPage,
		FetchFavicon: true,
		signatures:   techSignatures(),
	}
}

// Fingerprint fetches the target once and derives its software profile.
func (p *FingerprintProber) Fingerprint(ctx context.Context, tgt *target.Target) (*Fingerprint, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tgt.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build fingerprint request: %w", err)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", defaults.UAChrome)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", tgt.String(), err)
	}
	maxSize := p.MaxBodySize
	if maxSize <= 0 {
		maxSize = defaults.BufferPage
	}
	body, err := iohelper.ReadBody(resp.Body, maxSize)
	iohelper.DrainAndClose(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", tgt.String(), err)
	}

	facts := extractHTMLFacts(body)
	fp := &Fingerprint{
		ScanResult: finding.ScanResult{Target: tgt.String(), StartTime: start},
		Title:      facts.title,
		PoweredBy:  resp.Header.Get("X-Powered-By"),
	}

	p.detect(fp, resp, body, facts)
	fp.VulnerableComponents = eolFindings(resp.Header)

	if p.FetchFavicon {
		hash, tech := fetchFavicon(ctx, p.Client, baseURL(tgt), defaults.BufferHuge)
		fp.FaviconHash = hash
		fp.FaviconTech = tech
		if tech != "" {
			fp.Technologies = append(fp.Technologies, Technology{
				Name:       tech,
				Category:   "Application",
				Confidence: 100,
			})
		}
	}

	sortTechnologies(fp.Technologies)
	classify(fp)
	fp.Duration = time.Since(start)
	return fp, nil
}

// detect runs the signature table plus the direct header parsers and
// fills the fingerprint in place.
func (p *FingerprintProber) detect(fp *Fingerprint, resp *http.Response, body []byte, facts *htmlFacts) {
	bodyStr := string(body)
	scriptBlob := strings.Join(facts.scripts, "\n")
	techs := make(map[string]*Technology)

	sigs := p.signatures
	if sigs == nil {
		sigs = techSignatures()
	}

	for _, sig := range sigs {
		confidence := 0

		for header, pattern := range sig.headers {
			if val := resp.Header.Get(header); val != "" {
				if pattern == nil || pattern.MatchString(val) {
					confidence += confHeader
				}
			}
		}
		for _, cookie := range sig.cookies {
			for _, c := range resp.Cookies() {
				if strings.EqualFold(c.Name, cookie) {
					confidence += confCookie
				}
			}
		}
		for _, pattern := range sig.html {
			if pattern.MatchString(bodyStr) {
				confidence += confHTML
			}
		}
		for _, pattern := range sig.scripts {
			if pattern.MatchString(scriptBlob) || pattern.MatchString(bodyStr) {
				confidence += confScript
			}
		}
		for name, pattern := range sig.meta {
			if val := facts.metas[name]; val != "" {
				if pattern == nil || pattern.MatchString(val) {
					confidence += confMeta
				}
			}
		}

		if confidence < defaults.TechConfidenceMin {
			continue
		}
		if confidence > 100 {
			confidence = 100
		}
		techs[sig.name] = &Technology{
			Name:       sig.name,
			Category:   sig.category,
			Confidence: confidence,
		}
	}

	// Server banner beats signature guesses for the web server.
	if server := resp.Header.Get("Server"); server != "" {
		name, version := parseBanner(server)
		product := canonicalServerProduct(server)
		if product == "" {
			product = name
		}
		if product != "" {
			fp.WebServer = Library{Name: product, Version: version}
			techs[product] = &Technology{
				Name:       product,
				Version:    version,
				Category:   "Web Server",
				Confidence: 100,
			}
		}
	}

	if fp.PoweredBy != "" {
		name, version := parseBanner(fp.PoweredBy)
		lower := strings.ToLower(fp.PoweredBy)
		for key, product := range poweredByProducts {
			if !strings.Contains(lower, key) {
				continue
			}
			t := &Technology{Name: product, Category: "Web Framework", Confidence: 90}
			switch product {
			case "PHP":
				t.Category = "Programming Language"
			case "WordPress":
				t.Category = "CMS"
			}
			if strings.EqualFold(name, product) {
				t.Version = version
			}
			techs[product] = t
			if t.Version != "" {
				fp.Libraries = append(fp.Libraries, Library{Name: product, Version: t.Version})
			}
		}
	}

	// Versioned client-side libraries from script URLs.
	for _, lib := range scriptLibraries(facts.scripts) {
		fp.Libraries = append(fp.Libraries, lib)
		if t, ok := techs[lib.Name]; ok {
			t.Version = lib.Version
		}
	}

	// Generator meta: "WordPress 5.8.1" style.
	if gen := facts.metas["generator"]; gen != "" {
		if name, version := parseGenerator(gen); name != "" {
			if t, ok := techs[name]; ok {
				t.Version = version
			}
			if version != "" {
				fp.Libraries = append(fp.Libraries, Library{Name: name, Version: version})
			}
		}
	}

	for _, t := range techs {
		fp.Technologies = append(fp.Technologies, *t)
	}
}

// classify fills the CMS and framework summaries from the sorted
// technology list, so the highest-confidence CMS wins.
func classify(fp *Fingerprint) {
	for _, t := range fp.Technologies {
		switch t.Category {
		case "CMS":
			if fp.CMS == "" {
				fp.CMS = t.Name
			}
		case "Web Framework", "JavaScript Framework":
			fp.Frameworks = append(fp.Frameworks, t.Name)
		}
	}
	sort.Strings(fp.Frameworks)
}

// baseURL rebuilds scheme://host[:port] for auxiliary fetches.
func baseURL(tgt *target.Target) string {
	u := *tgt.URL
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// sortTechnologies orders by confidence descending, then name, so the
// snapshot is deterministic.
func sortTechnologies(techs []Technology) {
	sort.Slice(techs, func(i, j int) bool {
		if techs[i].Confidence != techs[j].Confidence {
			return techs[i].Confidence > techs[j].Confidence
		}
		return techs[i].Name < techs[j].Name
	})
}

// parseBanner splits "nginx/1.18.0 (Ubuntu)" into ("nginx", "1.18.0").
// Banners without a version return the product with an empty version.
func parseBanner(banner string) (name, version string) {
	banner = strings.TrimSpace(banner)
	m := regexcache.MustGet(`^([A-Za-z][A-Za-z0-9_.-]*?)(?:/([0-9][0-9A-Za-z._-]*))?(?:\s|$)`).FindStringSubmatch(banner)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}

// canonicalServerProduct maps a raw Server header to a product name.
func canonicalServerProduct(server string) string {
	lower := strings.ToLower(server)
	for _, sp := range serverProducts {
		if strings.Contains(lower, sp.key) {
			return sp.product
		}
	}
	return ""
}

// scriptLibs extracts versioned libraries from script URLs, e.g.
// "/js/jquery-3.4.1.min.js" or "bootstrap@4.3.1/dist/js/bootstrap.js".
var scriptLibs = []struct {
	name    string
	pattern string
}{
	{"jQuery UI", `(?i)jquery-ui[-@/]v?([0-9][0-9.]*[0-9])`},
	{"jQuery", `(?i)jquery[-@]v?([0-9][0-9.]*[0-9])`},
	{"Bootstrap", `(?i)bootstrap[-@/]v?([0-9][0-9.]*[0-9])`},
	{"Vue.js", `(?i)vue[-@]v?([0-9][0-9.]*[0-9])`},
	{"React", `(?i)react[-@]v?([0-9][0-9.]*[0-9])`},
	{"AngularJS", `(?i)angular(?:\.js)?[-@/]v?([0-9][0-9.]*[0-9])`},
}

func scriptLibraries(scripts []string) []Library {
	var out []Library
	seen := make(map[string]bool)
	for _, src := range scripts {
		for _, lib := range scriptLibs {
			m := regexcache.MustGet(lib.pattern).FindStringSubmatch(src)
			if m == nil || seen[lib.name] {
				continue
			}
			seen[lib.name] = true
			out = append(out, Library{Name: lib.name, Version: m[1]})
		}
	}
	return out
}

// parseGenerator splits a generator meta value like "WordPress 5.8.1".
func parseGenerator(gen string) (name, version string) {
	m := regexcache.MustGet(`^([A-Za-z][A-Za-z0-9 .!-]*?)\s+v?([0-9][0-9a-zA-Z.]*)$`).FindStringSubmatch(strings.TrimSpace(gen))
	if m == nil {
		return strings.TrimSpace(gen), ""
	}
	return m[1], m[2]
}

// eolFindings flags banner product lines that are end of life.
func eolFindings(h http.Header) []finding.Finding {
	var fs []finding.Finding
	for _, banner := range []string{h.Get("Server"), h.Get("X-Powered-By")} {
		if banner == "" {
			continue
		}
		lower := strings.ToLower(banner)
		for _, e := range eolBanners {
			if !strings.Contains(lower, e.prefix) {
				continue
			}
			fs = append(fs, finding.Finding{
				Title:          fmt.Sprintf("End-of-Life %s Detected", e.product),
				Description:    fmt.Sprintf("The response banner %q identifies %s, a product line that no longer receives security fixes.", banner, e.product),
				Severity:       finding.High,
				Recommendation: "Upgrade to a supported release.",
				CWE:            "CWE-1104",
				OWASP:          "A06:2021",
				Component:      e.product,
				Probe:          "detection",
			})
			break
		}
	}
	return fs
}

// htmlFacts is what one tokenizer pass pulls out of a page.
type htmlFacts struct {
	title   string
	metas   map[string]string
	scripts []string
}

// extractHTMLFacts tokenizes the page and collects the title, meta tags,
// and script sources. Malformed HTML is handled by the tokenizer; the
// walk simply stops at the error token.
func extractHTMLFacts(body []byte) *htmlFacts {
	facts := &htmlFacts{metas: make(map[string]string)}
	z := html.NewTokenizer(bytes.NewReader(body))
	inTitle := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			facts.title = trimTitle(facts.title)
			return facts

		case html.StartTagToken, html.SelfClosingTagToken:
			t := z.Token()
			switch t.DataAtom.String() {
			case "title":
				inTitle = true
			case "meta":
				var name, content string
				for _, a := range t.Attr {
					switch strings.ToLower(a.Key) {
					case "name", "property":
						name = strings.ToLower(a.Val)
					case "content":
						content = a.Val
					}
				}
				if name != "" && content != "" {
					facts.metas[name] = content
				}
			case "script":
				if src := getAttr(t, "src"); src != "" {
					facts.scripts = append(facts.scripts, src)
				}
			}

		case html.TextToken:
			if inTitle {
				facts.title += z.Token().Data
			}

		case html.EndTagToken:
			if z.Token().DataAtom.String() == "title" {
				inTitle = false
			}
		}
	}
}

func getAttr(t html.Token, key string) string {
	for _, a := range t.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func trimTitle(title string) string {
	title = strings.TrimSpace(title)
	if len(title) > 100 {
		title = title[:100] + "..."
	}
	return title
}
