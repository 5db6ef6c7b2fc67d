// Package vulnkb provides a local quick-lookup knowledge base of known
// vulnerabilities in common web software. Lookups are synchronous, never
// touch the network, and never fail: an unknown component or an
// unparseable version simply yields no finding. The KB runs early in the
// pipeline so obviously outdated stacks surface even when the slower
// online CVE lookup is skipped or unavailable.
package vulnkb

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/siteprobe/siteprobe/pkg/finding"
)

// entry is one KB record: a component, the version range it applies to,
// and the finding template emitted on a match.
type entry struct {
	component  string
	constraint string
	finding    finding.Finding

	compiled *semver.Constraints
}

// KB is a compiled knowledge base. The zero value is not usable; call New.
type KB struct {
	entries map[string][]entry
}

// New compiles the builtin catalog. Constraint expressions are fixed at
// build time, so a parse failure is a programmer error and panics.
func New() *KB {
	kb := &KB{entries: make(map[string][]entry, len(catalog))}
	for _, e := range catalog {
		e.compiled = mustConstraint(e.constraint)
		kb.entries[e.component] = append(kb.entries[e.component], e)
	}
	return kb
}

// Lookup returns a finding when the named component at the given version
// matches a KB entry, or nil when nothing is known about it. When several
// entries match the same version the most severe one wins.
func (kb *KB) Lookup(name, version string) *finding.Finding {
	comp := canonicalComponent(name)
	if comp == "" {
		return nil
	}
	v := parseVersion(version)
	if v == nil {
		return nil
	}

	var best *entry
	for i := range kb.entries[comp] {
		e := &kb.entries[comp][i]
		if !e.compiled.Check(v) {
			continue
		}
		if best == nil || e.finding.Severity.Score() > best.finding.Severity.Score() {
			best = e
		}
	}
	if best == nil {
		return nil
	}

	f := best.finding
	f.ComponentVersion = v.Original()
	f.Probe = "kb"
	return &f
}

// Len reports the number of catalog entries, across all components.
func (kb *KB) Len() int {
	n := 0
	for _, es := range kb.entries {
		n += len(es)
	}
	return n
}

// componentAliases folds fingerprint spellings onto catalog keys.
var componentAliases = map[string]string{
	"httpd":              "apache",
	"apache2":            "apache",
	"apache httpd":       "apache",
	"apache http server": "apache",
	"apache tomcat":      "tomcat",
	"microsoft-iis":      "iis",
	"microsoft iis":      "iis",
	"jquery ui":          "jquery-ui",
	"jqueryui":           "jquery-ui",
}

// canonicalComponent lowercases the detected name and resolves aliases.
// Server tokens of the form "nginx/1.18.0" keep only the product part.
func canonicalComponent(name string) string {
	c := strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(c, '/'); i >= 0 {
		c = c[:i]
	}
	if alias, ok := componentAliases[c]; ok {
		return alias
	}
	return c
}

// parseVersion turns a detected version string into a comparable version.
// Detected versions carry platform noise ("1.18.0 (Ubuntu)", "v2.4.49",
// "7.4.3-4ubuntu2") that semver parsing would either reject or treat as a
// prerelease, so everything after the leading digits-and-dots run is cut.
// Returns nil when no usable version remains.
func parseVersion(raw string) *semver.Version {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "v")
	s = strings.TrimPrefix(s, "V")
	if i := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	}); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, ".")
	if s == "" {
		return nil
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil
	}
	return v
}

func mustConstraint(expr string) *semver.Constraints {
	c, err := semver.NewConstraint(expr)
	if err != nil {
		panic("vulnkb: bad constraint " + expr + ": " + err.Error())
	}
	return c
}
