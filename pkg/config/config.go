// Package config holds the runtime configuration for the siteprobe
// binary: flags first, an optional YAML file underneath, built-in
// defaults at the bottom.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/siteprobe/siteprobe/pkg/defaults"
	"github.com/siteprobe/siteprobe/pkg/duration"
)

// Config holds all runtime options.
type Config struct {
	// Serve mode settings.
	Addr        string        `yaml:"addr"`
	MaxScans    int           `yaml:"maxConcurrentScans"`
	Retention   time.Duration `yaml:"retention"`
	MetricsOn   bool          `yaml:"metrics"`
	MetricsPath string        `yaml:"metricsPath"`

	// One-shot mode settings.
	Target  string `yaml:"-"`
	JSONOut bool   `yaml:"-"`

	// Probe settings.
	TemplatesDir       string        `yaml:"templatesDir"`
	FingerprintTimeout time.Duration `yaml:"fingerprintTimeout"`
	PortsTimeout       time.Duration `yaml:"portsTimeout"`
	CertTimeout        time.Duration `yaml:"certTimeout"`
	TemplatesTimeout   time.Duration `yaml:"templatesTimeout"`
	CVETimeout         time.Duration `yaml:"cveTimeout"`
	PortConcurrency    int           `yaml:"portConcurrency"`
	RateLimit          int           `yaml:"rateLimit"`
	BrowserTLS         bool          `yaml:"browserTls"`

	// CVE lookup settings. The API key may also come from the
	// SITEPROBE_NVD_KEY environment variable.
	NVDBaseURL string `yaml:"nvdBaseUrl"`
	NVDAPIKey  string `yaml:"nvdApiKey"`

	// Observability.
	OTLPEndpoint string `yaml:"otlpEndpoint"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:               ":8080",
		MaxScans:           defaults.MaxConcurrentScans,
		Retention:          duration.ScanRetention,
		MetricsOn:          true,
		MetricsPath:        "/metrics",
		FingerprintTimeout: duration.ProbeFingerprint,
		PortsTimeout:       duration.ProbePorts,
		CertTimeout:        duration.ProbeCertificate,
		TemplatesTimeout:   duration.ProbeTemplates,
		CVETimeout:         duration.ProbeCVELookup,
		PortConcurrency:    defaults.ConcurrencyPorts,
		RateLimit:          defaults.RateLimitMedium,
		BrowserTLS:         true,
	}
}

// ParseFlags builds the configuration from the command line, layered
// over an optional -config YAML file, over Default. Flags win.
func ParseFlags(args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("siteprobe", flag.ContinueOnError)
	configFile := fs.String("config", "", "YAML config file")

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "API listen address")
	fs.IntVar(&cfg.MaxScans, "max-scans", cfg.MaxScans, "Max concurrently running scans")
	fs.DurationVar(&cfg.Retention, "retention", cfg.Retention, "How long finished scans stay queryable")
	fs.BoolVar(&cfg.MetricsOn, "metrics", cfg.MetricsOn, "Expose Prometheus metrics")
	fs.StringVar(&cfg.MetricsPath, "metrics-path", cfg.MetricsPath, "Metrics endpoint path")

	fs.StringVar(&cfg.Target, "target", "", "Run one scan against this URL and exit (one-shot mode)")
	fs.BoolVar(&cfg.JSONOut, "json", false, "One-shot mode: print the report as JSON")

	fs.StringVar(&cfg.TemplatesDir, "templates", cfg.TemplatesDir, "Vulnerability template directory (empty = embedded set)")
	fs.DurationVar(&cfg.FingerprintTimeout, "timeout-fingerprint", cfg.FingerprintTimeout, "Fingerprint probe timeout")
	fs.DurationVar(&cfg.PortsTimeout, "timeout-ports", cfg.PortsTimeout, "Port sweep timeout")
	fs.DurationVar(&cfg.CertTimeout, "timeout-cert", cfg.CertTimeout, "Certificate probe timeout")
	fs.DurationVar(&cfg.TemplatesTimeout, "timeout-templates", cfg.TemplatesTimeout, "Template probe timeout")
	fs.DurationVar(&cfg.CVETimeout, "timeout-cve", cfg.CVETimeout, "CVE lookup timeout")
	fs.IntVar(&cfg.PortConcurrency, "port-concurrency", cfg.PortConcurrency, "Parallel port dials")
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Probe requests per second")
	fs.BoolVar(&cfg.BrowserTLS, "browser-tls", cfg.BrowserTLS, "Use browser TLS fingerprints for HTTP probes")

	fs.StringVar(&cfg.NVDBaseURL, "nvd-url", cfg.NVDBaseURL, "NVD API base URL override")
	fs.StringVar(&cfg.NVDAPIKey, "nvd-key", cfg.NVDAPIKey, "NVD API key")
	fs.StringVar(&cfg.OTLPEndpoint, "otlp", cfg.OTLPEndpoint, "OTLP trace endpoint (empty = tracing off)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// The file fills whatever the flags left at their defaults.
	// Explicitly-set flags are captured before the overlay and
	// re-applied after it, so flags always win over the file.
	if *configFile != "" {
		explicit := make(map[string]string)
		fs.Visit(func(f *flag.Flag) {
			explicit[f.Name] = f.Value.String()
		})
		if err := cfg.LoadFile(*configFile); err != nil {
			return nil, err
		}
		for name, value := range explicit {
			_ = fs.Set(name, value)
		}
	}

	if cfg.NVDAPIKey == "" {
		cfg.NVDAPIKey = os.Getenv("SITEPROBE_NVD_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays a YAML file onto the configuration.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

// Validate rejects nonsensical settings before anything starts.
func (c *Config) Validate() error {
	if c.Addr == "" && c.Target == "" {
		return fmt.Errorf("%w: addr", ErrMissingRequired)
	}
	if c.MaxScans < 1 {
		return fmt.Errorf("%w: max-scans must be at least 1, got %d", ErrInvalidConfig, c.MaxScans)
	}
	if c.Retention <= 0 {
		return fmt.Errorf("%w: retention must be positive, got %s", ErrInvalidConfig, c.Retention)
	}
	if c.PortConcurrency < 1 {
		return fmt.Errorf("%w: port-concurrency must be at least 1, got %d", ErrInvalidConfig, c.PortConcurrency)
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("%w: rate-limit must be at least 1, got %d", ErrInvalidConfig, c.RateLimit)
	}
	for name, timeout := range map[string]time.Duration{
		"timeout-fingerprint": c.FingerprintTimeout,
		"timeout-ports":       c.PortsTimeout,
		"timeout-cert":        c.CertTimeout,
		"timeout-templates":   c.TemplatesTimeout,
		"timeout-cve":         c.CVETimeout,
	} {
		if timeout <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, name, timeout)
		}
	}
	return nil
}
