package probes

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/siteprobe/siteprobe/pkg/defaults"
	"github.com/siteprobe/siteprobe/pkg/finding"
	"github.com/siteprobe/siteprobe/pkg/httpclient"
	"github.com/siteprobe/siteprobe/pkg/iohelper"
	"github.com/siteprobe/siteprobe/pkg/regexcache"
	"github.com/siteprobe/siteprobe/pkg/target"
	"github.com/siteprobe/siteprobe/templates"
)

// Template is one YAML vulnerability check: a set of HTTP requests with
// matchers that decide whether the target exhibits the issue.
type Template struct {
	ID   string `yaml:"id"`
	Info Info   `yaml:"info"`

	HTTP []HTTPRequest `yaml:"http,omitempty"`
}

// Info carries template metadata that becomes the finding on a match.
type Info struct {
	Name        string   `yaml:"name"`
	Author      string   `yaml:"author,omitempty"`
	Severity    string   `yaml:"severity"`
	Description string   `yaml:"description,omitempty"`
	Reference   []string `yaml:"reference,omitempty"`
	Tags        string   `yaml:"tags,omitempty"`
	Remediation string   `yaml:"remediation,omitempty"`

	Classification *Classification `yaml:"classification,omitempty"`
}

// Classification holds vulnerability identifiers.
type Classification struct {
	CVE       string   `yaml:"cve-id,omitempty"`
	CWE       []string `yaml:"cwe-id,omitempty"`
	OWASP     string   `yaml:"owasp,omitempty"`
	CVSSScore float64  `yaml:"cvss-score,omitempty"`
}

// HTTPRequest is one request block within a template.
type HTTPRequest struct {
	Method string `yaml:"method,omitempty"`

	// Path entries are appended to the target base URL. {{BaseURL}} and
	// {{Hostname}} are expanded before the request is built.
	Path []string `yaml:"path,omitempty"`

	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty"`

	Matchers          []Matcher `yaml:"matchers,omitempty"`
	MatchersCondition string    `yaml:"matchers-condition,omitempty"` // and, or

	StopAtFirstMatch bool `yaml:"stop-at-first-match,omitempty"`
}

// Matcher is a single match rule against a response.
type Matcher struct {
	Type string `yaml:"type"` // word, regex, status

	Condition string `yaml:"condition,omitempty"` // and, or

	Words  []string `yaml:"words,omitempty"`
	Regex  []string `yaml:"regex,omitempty"`
	Status []int    `yaml:"status,omitempty"`

	Part string `yaml:"part,omitempty"` // body, header, all

	Negative        bool `yaml:"negative,omitempty"`
	CaseInsensitive bool `yaml:"case-insensitive,omitempty"`
}

// ParseTemplate parses and validates one YAML template.
func ParseTemplate(data []byte) (*Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	if tmpl.ID == "" {
		return nil, fmt.Errorf("template missing required field: id")
	}
	if tmpl.Info.Name == "" {
		return nil, fmt.Errorf("template %s missing required field: info.name", tmpl.ID)
	}
	if len(tmpl.HTTP) == 0 {
		return nil, fmt.Errorf("template %s has no http requests", tmpl.ID)
	}

	return &tmpl, nil
}

// LoadTemplate loads a template from a file.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return ParseTemplate(data)
}

// LoadTemplatesDir loads every .yaml/.yml template in dir. Files that
// fail to parse are skipped so one bad template cannot disable the
// sweep.
func LoadTemplatesDir(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var loaded []*Template
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		tmpl, err := LoadTemplate(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		loaded = append(loaded, tmpl)
	}

	sortTemplates(loaded)
	return loaded, nil
}

// EmbeddedTemplates returns the checks shipped in the binary.
func EmbeddedTemplates() []*Template {
	var loaded []*Template
	fs.WalkDir(templates.FS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		data, err := templates.FS.ReadFile(path)
		if err != nil {
			return nil
		}
		tmpl, err := ParseTemplate(data)
		if err != nil {
			return nil
		}
		loaded = append(loaded, tmpl)
		return nil
	})
	sortTemplates(loaded)
	return loaded
}

func sortTemplates(tmpls []*Template) {
	sort.Slice(tmpls, func(i, j int) bool { return tmpls[i].ID < tmpls[j].ID })
}

// TemplateMatch records one template that fired.
type TemplateMatch struct {
	TemplateID string `json:"templateId"`
	MatchedAt  string `json:"matchedAt"`
}

// TemplateResult is the outcome of a template sweep.
type TemplateResult struct {
	finding.ScanResult

	Checked  int               `json:"checked"`
	Matches  []TemplateMatch   `json:"matches,omitempty"`
	Findings []finding.Finding `json:"findings,omitempty"`
}

// TemplateProber runs YAML vulnerability templates against a target.
type TemplateProber struct {
	// Client issues template requests.
	Client *http.Client

	// Templates to run. Empty means the embedded set.
	Templates []*Template

	// Limiter throttles template requests per target.
	Limiter *rate.Limiter

	// MaxBodySize caps each response read.
	MaxBodySize int64
}

// NewTemplateProber creates a prober with the embedded template set.
func NewTemplateProber(client *http.Client) *TemplateProber {
	if client == nil {
		client = httpclient.Default()
	}
	return &TemplateProber{
		Client:      client,
		Templates:   EmbeddedTemplates(),
		Limiter:     rate.NewLimiter(rate.Limit(defaults.RateLimitMedium), defaults.RateLimitMedium),
		MaxBodySize: defaults.BufferPage,
	}
}

// RunTemplates runs every template against the target. Individual
// template failures (network errors, bad requests) skip that template
// only. The error return is reserved for context cancellation, and the
// partial result is still valid in that case.
func (p *TemplateProber) RunTemplates(ctx context.Context, tgt *target.Target) (*TemplateResult, error) {
	tmpls := p.Templates
	if len(tmpls) == 0 {
		tmpls = EmbeddedTemplates()
	}

	start := time.Now()
	result := &TemplateResult{
		ScanResult: finding.ScanResult{Target: tgt.String(), StartTime: start},
	}
	vars := map[string]string{
		"BaseURL":  strings.TrimSuffix(tgt.String(), "/"),
		"Hostname": tgt.Hostname,
	}

	for _, tmpl := range tmpls {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("template sweep interrupted: %w", err)
		}

		matchedAt, matched := p.runTemplate(ctx, tmpl, vars)
		result.Checked++
		if !matched {
			continue
		}
		result.Matches = append(result.Matches, TemplateMatch{
			TemplateID: tmpl.ID,
			MatchedAt:  matchedAt,
		})
		result.Findings = append(result.Findings, templateFinding(tmpl))
	}

	result.Duration = time.Since(start)
	return result, nil
}

// runTemplate executes one template's request blocks. The first
// matching block wins; request errors skip the path.
func (p *TemplateProber) runTemplate(ctx context.Context, tmpl *Template, vars map[string]string) (string, bool) {
	for _, req := range tmpl.HTTP {
		if matchedAt, ok := p.runRequest(ctx, &req, vars); ok {
			return matchedAt, true
		}
	}
	return "", false
}

func (p *TemplateProber) runRequest(ctx context.Context, req *HTTPRequest, vars map[string]string) (string, bool) {
	paths := req.Path
	if len(paths) == 0 {
		paths = []string{"{{BaseURL}}/"}
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	condition := req.MatchersCondition
	if condition == "" {
		condition = "or"
	}

	for _, path := range paths {
		fullURL := expandVariables(path, vars)
		if !strings.HasPrefix(fullURL, "http") {
			fullURL = vars["BaseURL"] + fullURL
		}

		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return "", false
			}
		}

		body := expandVariables(req.Body, vars)
		httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, strings.NewReader(body))
		if err != nil {
			continue
		}
		for k, v := range req.Headers {
			httpReq.Header.Set(k, expandVariables(v, vars))
		}
		if httpReq.Header.Get("User-Agent") == "" {
			httpReq.Header.Set("User-Agent", defaults.UAChrome)
		}

		resp, err := p.Client.Do(httpReq)
		if err != nil {
			continue
		}
		maxSize := p.MaxBodySize
		if maxSize <= 0 {
			maxSize = defaults.BufferPage
		}
		respBody, err := iohelper.ReadBody(resp.Body, maxSize)
		iohelper.DrainAndClose(resp.Body)
		if err != nil {
			continue
		}

		data := &responseData{
			statusCode: resp.StatusCode,
			headers:    resp.Header,
			body:       respBody,
		}
		if evaluateMatchers(req.Matchers, condition, data) {
			return fullURL, true
		}
	}
	return "", false
}

// templateFinding builds the finding reported when a template fires.
func templateFinding(tmpl *Template) finding.Finding {
	f := finding.Finding{
		Title:          tmpl.Info.Name,
		Description:    tmpl.Info.Description,
		Severity:       finding.Severity(tmpl.Info.Severity).Normalize(),
		Recommendation: tmpl.Info.Remediation,
		Probe:          "templates",
	}
	if c := tmpl.Info.Classification; c != nil {
		f.CVE = c.CVE
		f.OWASP = c.OWASP
		f.CVSS = c.CVSSScore
		if len(c.CWE) > 0 {
			f.CWE = c.CWE[0]
		}
	}
	if f.Description == "" {
		f.Description = "Template " + tmpl.ID + " matched the target response."
	}
	return f
}

// responseData holds one response for matcher evaluation.
type responseData struct {
	statusCode int
	headers    http.Header
	body       []byte
}

// evaluateMatchers applies the matcher list under the block condition.
// A block without matchers never fires.
func evaluateMatchers(matchers []Matcher, condition string, data *responseData) bool {
	if len(matchers) == 0 {
		return false
	}

	results := make([]bool, len(matchers))
	for i, m := range matchers {
		results[i] = evaluateMatcher(&m, data)
	}

	switch strings.ToLower(condition) {
	case "and":
		for _, r := range results {
			if !r {
				return false
			}
		}
		return true
	default: // "or"
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
}

func evaluateMatcher(m *Matcher, data *responseData) bool {
	var content string
	switch strings.ToLower(m.Part) {
	case "header":
		content = buildHeaderString(data.headers)
	case "body":
		content = string(data.body)
	default: // "all" or empty
		var buf bytes.Buffer
		buf.WriteString(buildHeaderString(data.headers))
		buf.Write(data.body)
		content = buf.String()
	}

	if m.CaseInsensitive {
		content = strings.ToLower(content)
	}

	var matched bool
	switch strings.ToLower(m.Type) {
	case "word", "words":
		matched = matchWords(m.Words, content, m.Condition, m.CaseInsensitive)
	case "regex":
		matched = matchRegex(m.Regex, content, m.Condition)
	case "status":
		matched = matchStatus(m.Status, data.statusCode)
	}

	if m.Negative {
		matched = !matched
	}
	return matched
}

func matchWords(words []string, content, condition string, caseInsensitive bool) bool {
	if len(words) == 0 {
		return false
	}

	if condition == "and" {
		for _, word := range words {
			if caseInsensitive {
				word = strings.ToLower(word)
			}
			if !strings.Contains(content, word) {
				return false
			}
		}
		return true
	}

	// Default: or
	for _, word := range words {
		if caseInsensitive {
			word = strings.ToLower(word)
		}
		if strings.Contains(content, word) {
			return true
		}
	}
	return false
}

func matchRegex(patterns []string, content, condition string) bool {
	if len(patterns) == 0 {
		return false
	}

	if condition == "and" {
		for _, pattern := range patterns {
			re, err := regexcache.Get(pattern)
			if err != nil {
				return false // invalid pattern fails AND
			}
			if !re.MatchString(content) {
				return false
			}
		}
		return true
	}

	// Default: or
	for _, pattern := range patterns {
		re, err := regexcache.Get(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(content) {
			return true
		}
	}
	return false
}

func matchStatus(statuses []int, code int) bool {
	for _, status := range statuses {
		if status == code {
			return true
		}
	}
	return false
}

// buildHeaderString flattens headers into matchable text.
func buildHeaderString(headers http.Header) string {
	var buf bytes.Buffer
	for key, values := range headers {
		for _, v := range values {
			buf.WriteString(key)
			buf.WriteString(": ")
			buf.WriteString(v)
			buf.WriteString("\r\n")
		}
	}
	return buf.String()
}

// expandVariables substitutes {{Name}} placeholders.
func expandVariables(input string, vars map[string]string) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	for k, v := range vars {
		input = strings.ReplaceAll(input, "{{"+k+"}}", v)
	}
	return input
}
