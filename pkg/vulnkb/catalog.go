package vulnkb

import "github.com/siteprobe/siteprobe/pkg/finding"

// catalog is the builtin record set. Severity is set directly rather than
// derived from CVSS: several old entries predate CVSS v3 scoring, and the
// outdated-branch entries have no single CVE at all.
var catalog = []entry{
	{
		component:  "apache",
		constraint: "= 2.4.49",
		finding: finding.Finding{
			Title:          "Apache 2.4.49 Path Traversal",
			Description:    "Apache HTTP Server 2.4.49 is vulnerable to a path traversal attack that can map URLs to files outside the document root, and to remote code execution when CGI scripts are enabled.",
			Severity:       finding.High,
			Recommendation: "Upgrade to Apache HTTP Server 2.4.51 or later.",
			CVE:            "CVE-2021-41773",
			CWE:            "CWE-22",
			OWASP:          "A01:2021",
			CVSS:           7.5,
			Component:      "Apache HTTP Server",
		},
	},
	{
		component:  "apache",
		constraint: "= 2.4.50",
		finding: finding.Finding{
			Title:          "Apache 2.4.50 Path Traversal and RCE",
			Description:    "The fix for CVE-2021-41773 in Apache HTTP Server 2.4.50 was incomplete. Path traversal and remote code execution remain possible on this version.",
			Severity:       finding.Critical,
			Recommendation: "Upgrade to Apache HTTP Server 2.4.51 or later.",
			CVE:            "CVE-2021-42013",
			CWE:            "CWE-22",
			OWASP:          "A01:2021",
			CVSS:           9.8,
			Component:      "Apache HTTP Server",
		},
	},
	{
		component:  "apache",
		constraint: "< 2.4.41",
		finding: finding.Finding{
			Title:          "Outdated Apache HTTP Server",
			Description:    "The detected Apache HTTP Server release is several years old and affected by multiple published vulnerabilities fixed in later 2.4.x releases.",
			Severity:       finding.Medium,
			Recommendation: "Upgrade to the latest Apache HTTP Server 2.4.x release.",
			CWE:            "CWE-1104",
			OWASP:          "A06:2021",
			Component:      "Apache HTTP Server",
		},
	},
	{
		component:  "nginx",
		constraint: ">= 1.3.9, <= 1.4.0",
		finding: finding.Finding{
			Title:          "nginx Chunked Encoding Buffer Overflow",
			Description:    "nginx 1.3.9 through 1.4.0 contains a stack buffer overflow in chunked transfer decoding that allows remote code execution via a crafted request.",
			Severity:       finding.High,
			Recommendation: "Upgrade to nginx 1.4.1 or later.",
			CVE:            "CVE-2013-2028",
			CWE:            "CWE-787",
			OWASP:          "A06:2021",
			Component:      "nginx",
		},
	},
	{
		component:  "nginx",
		constraint: "< 1.20.0",
		finding: finding.Finding{
			Title:          "Outdated nginx",
			Description:    "The detected nginx release predates the 1.20 stable branch and no longer receives fixes. Later releases address DNS resolver and HTTP request smuggling issues.",
			Severity:       finding.Medium,
			Recommendation: "Upgrade to the latest nginx stable release.",
			CWE:            "CWE-1104",
			OWASP:          "A06:2021",
			Component:      "nginx",
		},
	},
	{
		component:  "php",
		constraint: "< 7.4.0",
		finding: finding.Finding{
			Title:          "End-of-Life PHP Branch",
			Description:    "The detected PHP branch reached end of life and receives no security fixes. Known unfixed issues accumulate against unsupported branches.",
			Severity:       finding.High,
			Recommendation: "Upgrade to a supported PHP release.",
			CWE:            "CWE-1104",
			OWASP:          "A06:2021",
			Component:      "PHP",
		},
	},
	{
		component:  "tomcat",
		constraint: ">= 9.0.0, < 9.0.31",
		finding: finding.Finding{
			Title:          "Apache Tomcat Ghostcat File Inclusion",
			Description:    "Apache Tomcat before 9.0.31 allows reading and, under some deployments, including arbitrary web application files through the AJP connector.",
			Severity:       finding.Critical,
			Recommendation: "Upgrade to Apache Tomcat 9.0.31 or later and disable the AJP connector if unused.",
			CVE:            "CVE-2020-1938",
			CWE:            "CWE-552",
			OWASP:          "A01:2021",
			CVSS:           9.8,
			Component:      "Apache Tomcat",
		},
	},
	{
		component:  "tomcat",
		constraint: ">= 8.5.0, < 8.5.51",
		finding: finding.Finding{
			Title:          "Apache Tomcat Ghostcat File Inclusion",
			Description:    "Apache Tomcat before 8.5.51 allows reading and, under some deployments, including arbitrary web application files through the AJP connector.",
			Severity:       finding.Critical,
			Recommendation: "Upgrade to Apache Tomcat 8.5.51 or later and disable the AJP connector if unused.",
			CVE:            "CVE-2020-1938",
			CWE:            "CWE-552",
			OWASP:          "A01:2021",
			CVSS:           9.8,
			Component:      "Apache Tomcat",
		},
	},
	{
		component:  "wordpress",
		constraint: "< 5.8.3",
		finding: finding.Finding{
			Title:          "WordPress SQL Injection via WP_Query",
			Description:    "WordPress before 5.8.3 allows SQL injection through plugins and themes that pass certain data to WP_Query.",
			Severity:       finding.High,
			Recommendation: "Upgrade to WordPress 5.8.3 or later.",
			CVE:            "CVE-2022-21661",
			CWE:            "CWE-89",
			OWASP:          "A03:2021",
			CVSS:           8.0,
			Component:      "WordPress",
		},
	},
	{
		component:  "drupal",
		constraint: ">= 8.0.0, < 8.5.1",
		finding: finding.Finding{
			Title:          "Drupal Remote Code Execution (Drupalgeddon2)",
			Description:    "Drupal 8 before 8.5.1 allows remote attackers to execute arbitrary code via crafted form API requests.",
			Severity:       finding.Critical,
			Recommendation: "Upgrade to Drupal 8.5.1 or later.",
			CVE:            "CVE-2018-7600",
			CWE:            "CWE-94",
			OWASP:          "A03:2021",
			CVSS:           9.8,
			Component:      "Drupal",
		},
	},
	{
		component:  "jquery",
		constraint: "< 3.5.0",
		finding: finding.Finding{
			Title:          "jQuery Cross-Site Scripting via htmlPrefilter",
			Description:    "jQuery before 3.5.0 may execute untrusted code when HTML from untrusted sources is passed to DOM manipulation methods, even after sanitization.",
			Severity:       finding.Medium,
			Recommendation: "Upgrade to jQuery 3.5.0 or later.",
			CVE:            "CVE-2020-11022",
			CWE:            "CWE-79",
			OWASP:          "A03:2021",
			CVSS:           6.1,
			Component:      "jQuery",
		},
	},
	{
		component:  "jquery-ui",
		constraint: "< 1.13.0",
		finding: finding.Finding{
			Title:          "jQuery UI Cross-Site Scripting",
			Description:    "jQuery UI before 1.13.0 does not escape option values in several widgets, allowing cross-site scripting through untrusted option sources.",
			Severity:       finding.Medium,
			Recommendation: "Upgrade to jQuery UI 1.13.0 or later.",
			CVE:            "CVE-2021-41182",
			CWE:            "CWE-79",
			OWASP:          "A03:2021",
			CVSS:           6.1,
			Component:      "jQuery UI",
		},
	},
	{
		component:  "bootstrap",
		constraint: "< 3.4.1",
		finding: finding.Finding{
			Title:          "Bootstrap Cross-Site Scripting in Tooltips",
			Description:    "Bootstrap before 3.4.1 allows cross-site scripting through the data-template, data-container and data-viewport attributes of tooltips and popovers.",
			Severity:       finding.Medium,
			Recommendation: "Upgrade to Bootstrap 3.4.1, 4.3.1 or later.",
			CVE:            "CVE-2019-8331",
			CWE:            "CWE-79",
			OWASP:          "A03:2021",
			CVSS:           6.1,
			Component:      "Bootstrap",
		},
	},
	{
		component:  "iis",
		constraint: "< 10.0.0",
		finding: finding.Finding{
			Title:          "Outdated Microsoft IIS",
			Description:    "The detected IIS release ships with a Windows Server version that is out of mainstream support. Several published vulnerabilities affect older IIS releases.",
			Severity:       finding.Medium,
			Recommendation: "Migrate to a supported Windows Server release with IIS 10 or later.",
			CWE:            "CWE-1104",
			OWASP:          "A06:2021",
			Component:      "Microsoft IIS",
		},
	},
	{
		component:  "openssh",
		constraint: "< 7.7",
		finding: finding.Finding{
			Title:          "Outdated OpenSSH",
			Description:    "OpenSSH before 7.7 allows username enumeration through malformed authentication requests (CVE-2018-15473), and older releases carry further published weaknesses.",
			Severity:       finding.Medium,
			Recommendation: "Upgrade OpenSSH to 7.7 or later.",
			CVE:            "CVE-2018-15473",
			CWE:            "CWE-200",
			OWASP:          "A06:2021",
			CVSS:           5.3,
			Component:      "OpenSSH",
		},
	},
	// The tls pseudo-component lets banner-derived protocol versions go
	// through the same lookup path as real software. The certificate
	// probe raises the equivalent finding from the handshake; identical
	// titles collapse in aggregation.
	{
		component:  "tls",
		constraint: "< 1.2.0",
		finding: finding.Finding{
			Title:          "Outdated TLS Version",
			Description:    "The endpoint negotiates TLS 1.1 or older. These protocol versions are formally deprecated and vulnerable to downgrade and padding-oracle attacks.",
			Severity:       finding.Critical,
			Recommendation: "Disable TLS 1.0 and 1.1; require TLS 1.2 or later.",
			CWE:            "CWE-326",
			OWASP:          "A02:2021",
			Component:      "TLS",
		},
	},
}
