// Package defaults: OWASP Top 10 2021 reference data. Findings carry a
// bare category code ("A02:2021"); reports resolve it to a name and
// link through these tables.
package defaults

// OWASPCategory is one OWASP Top 10 2021 category.
type OWASPCategory struct {
	Code string
	Name string
	URL  string
}

// OWASPTop10 indexes the 2021 categories by code.
var OWASPTop10 = map[string]OWASPCategory{
	"A01:2021": {
		Code: "A01:2021",
		Name: "Broken Access Control",
		URL:  "https://owasp.org/Top10/A01_2021-Broken_Access_Control/",
	},
	"A02:2021": {
		Code: "A02:2021",
		Name: "Cryptographic Failures",
		URL:  "https://owasp.org/Top10/A02_2021-Cryptographic_Failures/",
	},
	"A03:2021": {
		Code: "A03:2021",
		Name: "Injection",
		URL:  "https://owasp.org/Top10/A03_2021-Injection/",
	},
	"A04:2021": {
		Code: "A04:2021",
		Name: "Insecure Design",
		URL:  "https://owasp.org/Top10/A04_2021-Insecure_Design/",
	},
	"A05:2021": {
		Code: "A05:2021",
		Name: "Security Misconfiguration",
		URL:  "https://owasp.org/Top10/A05_2021-Security_Misconfiguration/",
	},
	"A06:2021": {
		Code: "A06:2021",
		Name: "Vulnerable and Outdated Components",
		URL:  "https://owasp.org/Top10/A06_2021-Vulnerable_and_Outdated_Components/",
	},
	"A07:2021": {
		Code: "A07:2021",
		Name: "Identification and Authentication Failures",
		URL:  "https://owasp.org/Top10/A07_2021-Identification_and_Authentication_Failures/",
	},
	"A08:2021": {
		Code: "A08:2021",
		Name: "Software and Data Integrity Failures",
		URL:  "https://owasp.org/Top10/A08_2021-Software_and_Data_Integrity_Failures/",
	},
	"A09:2021": {
		Code: "A09:2021",
		Name: "Security Logging and Monitoring Failures",
		URL:  "https://owasp.org/Top10/A09_2021-Security_Logging_and_Monitoring_Failures/",
	},
	"A10:2021": {
		Code: "A10:2021",
		Name: "Server-Side Request Forgery",
		URL:  "https://owasp.org/Top10/A10_2021-Server-Side_Request_Forgery_%28SSRF%29/",
	},
}

// OWASPName returns the category name for a code, or the code itself
// when unrecognized, so unmapped codes still render.
func OWASPName(code string) string {
	if cat, ok := OWASPTop10[code]; ok {
		return cat.Name
	}
	return code
}
