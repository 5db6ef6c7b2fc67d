// Command siteprobe runs the web security scan service.
//
// Default mode serves the HTTP API. With -target it runs a single scan
// against that URL, prints the report, and exits non-zero when the
// target grades D or F.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/siteprobe/siteprobe/pkg/api"
	"github.com/siteprobe/siteprobe/pkg/browsertls"
	"github.com/siteprobe/siteprobe/pkg/config"
	"github.com/siteprobe/siteprobe/pkg/defaults"
	"github.com/siteprobe/siteprobe/pkg/duration"
	"github.com/siteprobe/siteprobe/pkg/httpclient"
	"github.com/siteprobe/siteprobe/pkg/jsonutil"
	"github.com/siteprobe/siteprobe/pkg/orchestrator"
	"github.com/siteprobe/siteprobe/pkg/output/dispatcher"
	"github.com/siteprobe/siteprobe/pkg/output/hooks"
	"github.com/siteprobe/siteprobe/pkg/probes"
	"github.com/siteprobe/siteprobe/pkg/scan"
	"github.com/siteprobe/siteprobe/pkg/target"
	"github.com/siteprobe/siteprobe/pkg/ui"
	"github.com/siteprobe/siteprobe/pkg/vulnkb"
)

func main() {
	cfg, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(defaults.ExitSuccess)
		}
		fmt.Fprintf(os.Stderr, "siteprobe: %v\n", err)
		os.Exit(defaults.ExitUserError)
	}

	if cfg.Target != "" {
		os.Exit(runOneShot(cfg))
	}
	if err := runServe(cfg); err != nil {
		log.Fatalf("[main] FATAL  err=%v", err)
	}
}

// stack is the assembled scan pipeline shared by both modes.
type stack struct {
	store        *scan.Store
	admission    *scan.Admission
	validator    *target.Validator
	orchestrator *orchestrator.Orchestrator
	dispatcher   *dispatcher.Dispatcher
	prometheus   *hooks.PrometheusHook
}

// buildStack wires probes, knowledge base, and output hooks from the
// configuration.
func buildStack(cfg *config.Config) (*stack, error) {
	probeClient := httpclient.New(httpclient.Config{
		Timeout:   duration.HTTPScanning,
		UserAgent: defaults.UABot,
	})
	if cfg.BrowserTLS {
		// CDNs fingerprint the TLS handshake; probing with a real
		// browser ClientHello keeps responses representative.
		probeClient = &http.Client{
			Transport: browsertls.NewTransport(nil),
			Timeout:   duration.HTTPScanning,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	templateProber := probes.NewTemplateProber(probeClient)
	templateProber.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	if cfg.TemplatesDir != "" {
		tmpls, err := probes.LoadTemplatesDir(cfg.TemplatesDir)
		if err != nil {
			return nil, fmt.Errorf("load templates: %w", err)
		}
		log.Printf("[main] TEMPLATES  loaded=%d dir=%s", len(tmpls), cfg.TemplatesDir)
		templateProber.Templates = tmpls
	}

	portScanner := probes.NewPortScanner()
	portScanner.Concurrency = cfg.PortConcurrency
	portScanner.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)

	cveClient := probes.NewCVEClient(httpclient.New(httpclient.Config{
		Timeout: duration.HTTPAPI,
	}))
	if cfg.NVDBaseURL != "" {
		cveClient.BaseURL = cfg.NVDBaseURL
	}
	if cfg.NVDAPIKey != "" {
		cveClient.APIKey = cfg.NVDAPIKey
	}

	d := dispatcher.New()
	d.RegisterHook(hooks.NewLogHook())

	var promHook *hooks.PrometheusHook
	if cfg.MetricsOn {
		hook, err := hooks.NewPrometheusHook()
		if err != nil {
			return nil, fmt.Errorf("prometheus hook: %w", err)
		}
		d.RegisterHook(hook)
		promHook = hook
	}
	if cfg.OTLPEndpoint != "" {
		hook, err := hooks.NewOTelHook(hooks.OTelOptions{
			Endpoint: cfg.OTLPEndpoint,
			Insecure: true,
		})
		if err != nil {
			return nil, fmt.Errorf("otel hook: %w", err)
		}
		d.RegisterHook(hook)
		log.Printf("[main] TRACING  endpoint=%s", cfg.OTLPEndpoint)
	}

	store := scan.NewStore(cfg.Retention)
	admission := scan.NewAdmission(cfg.MaxScans)
	kb := vulnkb.New()

	// Target validation re-resolves every submitted hostname; route it
	// through the shared DNS cache.
	validator := target.NewValidator()
	validator.LookupIP = httpclient.GetDNSCache().LookupHost

	orch := orchestrator.New(store, admission, orchestrator.Probes{
		Fingerprint: probes.NewFingerprintProber(probeClient),
		Ports:       portScanner,
		Certificate: probes.NewCertProber(),
		Templates:   templateProber,
		CVE:         cveClient,
	}, kb, d, orchestrator.Timeouts{
		Fingerprint: cfg.FingerprintTimeout,
		Ports:       cfg.PortsTimeout,
		Certificate: cfg.CertTimeout,
		Templates:   cfg.TemplatesTimeout,
		CVE:         cfg.CVETimeout,
	})

	return &stack{
		store:        store,
		admission:    admission,
		validator:    validator,
		orchestrator: orch,
		dispatcher:   d,
		prometheus:   promHook,
	}, nil
}

// shutdown tears the stack down in dependency order.
func (s *stack) shutdown(ctx context.Context) {
	if err := s.orchestrator.Stop(ctx); err != nil {
		log.Printf("[main] SHUTDOWN  orchestrator err=%v", err)
	}
	s.store.Stop()
	if err := s.dispatcher.Close(); err != nil {
		log.Printf("[main] SHUTDOWN  dispatcher err=%v", err)
	}
}

// runServe starts the HTTP API and blocks until SIGINT/SIGTERM.
func runServe(cfg *config.Config) error {
	s, err := buildStack(cfg)
	if err != nil {
		return err
	}

	apiCfg := api.Config{
		Store:        s.store,
		Admission:    s.admission,
		Validator:    s.validator,
		Orchestrator: s.orchestrator,
		MetricsPath:  cfg.MetricsPath,
	}
	if s.prometheus != nil {
		apiCfg.Metrics = s.prometheus.Registry()
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.NewServer(apiCfg),
		ReadTimeout:  duration.ServerRead,
		WriteTimeout: duration.ServerWrite,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[main] LISTENING  addr=%s version=%s", cfg.Addr, defaults.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("[main] SHUTDOWN  signal=%s", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration.ServerShutdown)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] SHUTDOWN  server err=%v", err)
	}
	s.shutdown(ctx)
	return nil
}

// runOneShot scans a single target and prints the report.
func runOneShot(cfg *config.Config) int {
	s, err := buildStack(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "siteprobe: %v\n", err)
		return defaults.ExitInternalError
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), duration.ServerShutdown)
		defer cancel()
		s.shutdown(ctx)
	}()

	ctx := context.Background()
	tgt, err := s.validator.Validate(ctx, cfg.Target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "siteprobe: %v\n", err)
		return defaults.ExitUserError
	}

	job, err := s.store.Create(cfg.Target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "siteprobe: %v\n", err)
		return defaults.ExitInternalError
	}
	if ok, _, _ := s.admission.TryAdmit(); !ok {
		fmt.Fprintf(os.Stderr, "siteprobe: %v\n", scan.ErrCapacity)
		return defaults.ExitInternalError
	}

	started := time.Now()
	s.orchestrator.Launch(job, tgt)
	job.WaitTerminal(ctx, duration.ContextMedium)

	snap := job.Snapshot()
	switch snap.Status {
	case scan.StatusCompleted:
	case scan.StatusFailed:
		fmt.Fprintf(os.Stderr, "siteprobe: scan failed: %s\n", snap.Error)
		return defaults.ExitNetworkError
	default:
		fmt.Fprintf(os.Stderr, "siteprobe: scan did not finish (status %s)\n", snap.Status)
		return defaults.ExitInternalError
	}

	if cfg.JSONOut {
		data, err := jsonutil.MarshalIndent(snap.Report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "siteprobe: %v\n", err)
			return defaults.ExitInternalError
		}
		fmt.Println(string(data))
	} else {
		ui.RenderReport(os.Stdout, snap.Report, time.Since(started))
	}

	if !snap.Report.Passing() {
		return defaults.ExitFailingGrade
	}
	return defaults.ExitSuccess
}
