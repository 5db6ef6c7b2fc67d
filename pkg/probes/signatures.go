package probes

import (
	"regexp"

	"github.com/siteprobe/siteprobe/pkg/regexcache"
)

// techSignature describes how one technology shows up in a response.
// A nil header or meta pattern matches on presence alone.
type techSignature struct {
	name     string
	category string
	headers  map[string]*regexp.Regexp
	cookies  []string
	html     []*regexp.Regexp
	scripts  []*regexp.Regexp
	meta     map[string]*regexp.Regexp
}

// Confidence contributions per signal source. Any single signal clears
// the reporting threshold; corroborating signals push towards 100.
const (
	confHeader = 40
	confScript = 35
	confMeta   = 35
	confHTML   = 30
	confCookie = 30
)

func re(pattern string) *regexp.Regexp {
	return regexcache.MustGet(pattern)
}

// techSignatures is the builtin detection table. Wappalyzer-style, kept
// to technologies that matter for a security posture scan.
func techSignatures() []techSignature {
	return []techSignature{
		{
			name:     "WordPress",
			category: "CMS",
			html:     []*regexp.Regexp{re(`(?i)wp-content|wp-includes`)},
			meta:     map[string]*regexp.Regexp{"generator": re(`(?i)wordpress`)},
		},
		{
			name:     "Drupal",
			category: "CMS",
			html:     []*regexp.Regexp{re(`(?i)/sites/default/files|drupal-settings-json`)},
			meta:     map[string]*regexp.Regexp{"generator": re(`(?i)drupal`)},
		},
		{
			name:     "Joomla",
			category: "CMS",
			html:     []*regexp.Regexp{re(`(?i)/media/jui/|com_content`)},
			meta:     map[string]*regexp.Regexp{"generator": re(`(?i)joomla`)},
		},
		{
			name:     "React",
			category: "JavaScript Framework",
			html:     []*regexp.Regexp{re(`(?i)data-reactroot|_reactRootContainer`)},
			scripts:  []*regexp.Regexp{re(`(?i)react(?:\.production)?(?:\.min)?\.js|react-dom`)},
		},
		{
			name:     "Vue.js",
			category: "JavaScript Framework",
			html:     []*regexp.Regexp{re(`(?i)\bv-cloak\b|\bdata-v-[0-9a-f]{8}\b`)},
			scripts:  []*regexp.Regexp{re(`(?i)vue(?:\.runtime)?(?:\.global)?(?:\.min)?\.js|vue@`)},
		},
		{
			name:     "Angular",
			category: "JavaScript Framework",
			html:     []*regexp.Regexp{re(`(?i)\bng-app\b|\bng-controller\b|\bng-version=`)},
			scripts:  []*regexp.Regexp{re(`(?i)angular(?:\.min)?\.js`)},
		},
		{
			name:    "jQuery",
			category: "JavaScript Library",
			scripts: []*regexp.Regexp{re(`(?i)jquery[.-]\d|jquery(?:\.slim)?(?:\.min)?\.js`)},
		},
		{
			name:     "Bootstrap",
			category: "CSS Framework",
			html:     []*regexp.Regexp{re(`(?i)class="[^"]*\b(?:navbar|btn-primary|col-md-)`)},
			scripts:  []*regexp.Regexp{re(`(?i)bootstrap(?:\.bundle)?(?:\.min)?\.js`)},
		},
		{
			name:     "Next.js",
			category: "Web Framework",
			html:     []*regexp.Regexp{re(`(?i)__NEXT_DATA__|/_next/static`)},
			headers:  map[string]*regexp.Regexp{"X-Powered-By": re(`(?i)next\.js`)},
		},
		{
			name:     "Nuxt.js",
			category: "Web Framework",
			html:     []*regexp.Regexp{re(`(?i)__NUXT__|/_nuxt/`)},
		},
		{
			name:     "Laravel",
			category: "Web Framework",
			cookies:  []string{"laravel_session"},
			headers:  map[string]*regexp.Regexp{"X-Powered-By": re(`(?i)laravel`)},
		},
		{
			name:     "Django",
			category: "Web Framework",
			cookies:  []string{"csrftoken", "django_language"},
		},
		{
			name:     "Express",
			category: "Web Framework",
			headers:  map[string]*regexp.Regexp{"X-Powered-By": re(`(?i)express`)},
		},
		{
			name:     "Ruby on Rails",
			category: "Web Framework",
			headers:  map[string]*regexp.Regexp{"X-Powered-By": re(`(?i)phusion|rails`)},
			cookies:  []string{"_session_id"},
		},
		{
			name:     "ASP.NET",
			category: "Web Framework",
			headers:  map[string]*regexp.Regexp{"X-Powered-By": re(`(?i)asp\.net`), "X-AspNet-Version": nil},
			cookies:  []string{"ASP.NET_SessionId"},
		},
		{
			name:     "PHP",
			category: "Programming Language",
			headers:  map[string]*regexp.Regexp{"X-Powered-By": re(`(?i)php`)},
			cookies:  []string{"PHPSESSID"},
		},
		{
			name:     "nginx",
			category: "Web Server",
			headers:  map[string]*regexp.Regexp{"Server": re(`(?i)nginx`)},
		},
		{
			name:     "Apache",
			category: "Web Server",
			headers:  map[string]*regexp.Regexp{"Server": re(`(?i)apache`)},
		},
		{
			name:     "Cloudflare",
			category: "CDN",
			headers:  map[string]*regexp.Regexp{"CF-Ray": nil, "CF-Cache-Status": nil},
			cookies:  []string{"__cf_bm"},
		},
		{
			name:     "Varnish",
			category: "Cache",
			headers:  map[string]*regexp.Regexp{"Via": re(`(?i)varnish`), "X-Varnish": nil},
		},
	}
}

// serverProducts maps Server-header substrings to canonical product
// names. Ordered so more specific tokens win ("Apache Tomcat" must not
// resolve to Apache).
var serverProducts = []struct {
	key     string
	product string
}{
	{"tomcat", "Apache Tomcat"},
	{"coyote", "Apache Tomcat"},
	{"openresty", "OpenResty"},
	{"nginx", "nginx"},
	{"apache", "Apache"},
	{"iis", "Microsoft IIS"},
	{"caddy", "Caddy"},
	{"litespeed", "LiteSpeed"},
	{"gunicorn", "Gunicorn"},
	{"cloudflare", "Cloudflare"},
}

// poweredByProducts maps X-Powered-By substrings to canonical names.
var poweredByProducts = map[string]string{
	"php":       "PHP",
	"asp.net":   "ASP.NET",
	"express":   "Express",
	"next.js":   "Next.js",
	"django":    "Django",
	"rails":     "Ruby on Rails",
	"laravel":   "Laravel",
	"wordpress": "WordPress",
}

// eolBanners flags product lines that are end of life no matter the
// exact patch level. Key is a case-insensitive banner prefix.
var eolBanners = []struct {
	prefix  string
	product string
}{
	{"apache/1.", "Apache HTTP Server 1.x"},
	{"apache/2.0", "Apache HTTP Server 2.0"},
	{"apache/2.2", "Apache HTTP Server 2.2"},
	{"nginx/0.", "nginx 0.x"},
	{"microsoft-iis/6.0", "Microsoft IIS 6.0"},
	{"microsoft-iis/7.0", "Microsoft IIS 7.0"},
	{"microsoft-iis/7.5", "Microsoft IIS 7.5"},
	{"php/5.", "PHP 5"},
	{"php/4.", "PHP 4"},
}
