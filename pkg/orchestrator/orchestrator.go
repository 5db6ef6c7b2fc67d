// Package orchestrator drives one scan job through the probe pipeline:
// sequential fingerprinting, a local knowledge-base pass, a parallel
// network-probe fan-out, CVE lookup, and final aggregation.
//
// Probe failures are isolated: a probe that errors, times out, or
// panics contributes an empty finding list and an entry in the report's
// probeErrors map, never a failed job. Only a failure of the pipeline
// itself (aggregation, a bug) transitions the job to failed.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/siteprobe/siteprobe/pkg/aggregate"
	"github.com/siteprobe/siteprobe/pkg/duration"
	"github.com/siteprobe/siteprobe/pkg/finding"
	"github.com/siteprobe/siteprobe/pkg/output/dispatcher"
	"github.com/siteprobe/siteprobe/pkg/output/events"
	"github.com/siteprobe/siteprobe/pkg/probes"
	"github.com/siteprobe/siteprobe/pkg/scan"
	"github.com/siteprobe/siteprobe/pkg/target"
)

// FingerprintProbe detects the software stack behind a target.
type FingerprintProbe interface {
	Fingerprint(ctx context.Context, tgt *target.Target) (*probes.Fingerprint, error)
}

// PortProbe sweeps the target's TCP ports.
type PortProbe interface {
	ScanPorts(ctx context.Context, tgt *target.Target) (*probes.PortScanResult, error)
}

// CertificateProbe grades the target's TLS deployment.
type CertificateProbe interface {
	GradeCertificate(ctx context.Context, tgt *target.Target) (*probes.CertResult, error)
}

// TemplateProbe runs vulnerability templates against the target.
type TemplateProbe interface {
	RunTemplates(ctx context.Context, tgt *target.Target) (*probes.TemplateResult, error)
}

// CVEProbe looks up published CVEs for fingerprinted components.
type CVEProbe interface {
	Lookup(ctx context.Context, components []probes.Library) ([]finding.Finding, error)
}

// KnowledgeBase answers synchronous local vulnerability lookups.
type KnowledgeBase interface {
	Lookup(name, version string) *finding.Finding
}

// Probes bundles the five probe collaborators a pipeline consumes.
type Probes struct {
	Fingerprint FingerprintProbe
	Ports       PortProbe
	Certificate CertificateProbe
	Templates   TemplateProbe
	CVE         CVEProbe
}

// Timeouts are the per-probe hard deadlines. There is no job-level
// watchdog: total job duration is bounded by fingerprint + max of the
// three parallel probes + CVE lookup.
type Timeouts struct {
	Fingerprint time.Duration
	Ports       time.Duration
	Certificate time.Duration
	Templates   time.Duration
	CVE         time.Duration
}

// DefaultTimeouts returns the canonical per-probe deadlines.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Fingerprint: duration.ProbeFingerprint,
		Ports:       duration.ProbePorts,
		Certificate: duration.ProbeCertificate,
		Templates:   duration.ProbeTemplates,
		CVE:         duration.ProbeCVELookup,
	}
}

// Phase progress reference points. Rescaling is allowed by the scoring
// contract as long as ordering and monotonicity hold; these are the
// canonical values.
const (
	progressDetection = 10
	progressKB        = 20
	progressParallel  = 30
	progressCVE       = 85
	progressAggregate = 95
	progressFinal     = 98
)

// parallelSteps are the progress values after each of the three
// parallel probes settles, in completion order.
var parallelSteps = [3]int{48, 66, 85}

// Orchestrator launches and tracks scan pipelines. One goroutine per
// job; Stop waits for all of them.
type Orchestrator struct {
	store      *scan.Store
	admission  *scan.Admission
	probes     Probes
	kb         KnowledgeBase
	dispatcher *dispatcher.Dispatcher
	timeouts   Timeouts

	wg sync.WaitGroup
}

// New wires an orchestrator. The dispatcher may be nil (no hooks);
// everything else is required.
func New(store *scan.Store, admission *scan.Admission, p Probes, kb KnowledgeBase, d *dispatcher.Dispatcher, timeouts Timeouts) *Orchestrator {
	if timeouts == (Timeouts{}) {
		timeouts = DefaultTimeouts()
	}
	return &Orchestrator{
		store:      store,
		admission:  admission,
		probes:     p,
		kb:         kb,
		dispatcher: d,
		timeouts:   timeouts,
	}
}

// Launch runs the pipeline for an admitted job in its own goroutine.
// The job's admission slot is released exactly once, on every exit
// path, including a panicking pipeline.
func (o *Orchestrator) Launch(job *scan.Job, tgt *target.Target) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.admission.Release()
		defer func() {
			if r := recover(); r != nil {
				msg := fmt.Sprintf("scan pipeline panic: %v", r)
				o.store.Fail(job.ID, msg)
				o.dispatch(events.NewFailedEvent(job.ID, job.Target, msg))
			}
		}()
		o.run(job, tgt)
	}()
}

// Stop waits for in-flight scans to finish or the context to expire.
func (o *Orchestrator) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("orchestrator: shutdown with scans still running: %w", ctx.Err())
	}
}

// run is the pipeline body. Probe failures become data; anything that
// escapes is caught by Launch's recover and fails the job.
func (o *Orchestrator) run(job *scan.Job, tgt *target.Target) {
	ctx := context.Background()
	start := time.Now()

	o.store.Start(job.ID)
	o.dispatch(events.NewStartedEvent(job.ID, job.Target))

	probeErrors := make(map[string]string)
	var all []finding.Finding

	// Phase 1: sequential fingerprint. Non-fatal on failure; the rest
	// of the pipeline runs with an empty fingerprint.
	o.phase(job.ID, "detection", progressDetection)
	fp := &probes.Fingerprint{}
	out := o.runProbe(ctx, "detection", o.timeouts.Fingerprint, func(pctx context.Context) ([]finding.Finding, error) {
		res, err := o.probes.Fingerprint.Fingerprint(pctx, tgt)
		if err != nil {
			return nil, err
		}
		fp = res
		return res.VulnerableComponents, nil
	})
	o.settleProbe(job.ID, out, probeErrors)
	all = append(all, out.findings...)

	// Phase 2: local knowledge base. Synchronous, no network, cannot
	// fail the job.
	o.phase(job.ID, "local-kb", progressKB)
	if o.kb != nil {
		for _, comp := range fp.Components() {
			if f := o.kb.Lookup(comp.Name, comp.Version); f != nil {
				all = append(all, *f)
			}
		}
	}

	// Phase 3: parallel network probes. Fan out, join all three; each
	// completion bumps progress one step regardless of arrival order.
	o.phase(job.ID, "parallel-scans", progressParallel)
	results := make(chan outcome, 3)
	go func() {
		results <- o.runProbe(ctx, "ports", o.timeouts.Ports, func(pctx context.Context) ([]finding.Finding, error) {
			res, err := o.probes.Ports.ScanPorts(pctx, tgt)
			if err != nil {
				return nil, err
			}
			return res.Findings, nil
		})
	}()
	go func() {
		results <- o.runProbe(ctx, "certificate", o.timeouts.Certificate, func(pctx context.Context) ([]finding.Finding, error) {
			res, err := o.probes.Certificate.GradeCertificate(pctx, tgt)
			if err != nil {
				return nil, err
			}
			return res.Findings, nil
		})
	}()
	go func() {
		results <- o.runProbe(ctx, "templates", o.timeouts.Templates, func(pctx context.Context) ([]finding.Finding, error) {
			res, err := o.probes.Templates.RunTemplates(pctx, tgt)
			if err != nil {
				return nil, err
			}
			return res.Findings, nil
		})
	}()

	parallel := make(map[string][]finding.Finding, 3)
	for i := 0; i < 3; i++ {
		out := <-results
		o.settleProbe(job.ID, out, probeErrors)
		parallel[out.name] = out.findings
		o.progress(job.ID, parallelSteps[i])
	}
	// Concatenate in fixed order so the report is deterministic no
	// matter which probe finished first.
	all = append(all, parallel["ports"]...)
	all = append(all, parallel["certificate"]...)
	all = append(all, parallel["templates"]...)

	// Phase 4: CVE lookup from fingerprint data. Isolated, non-fatal.
	o.phase(job.ID, "cve-lookup", progressCVE)
	out = o.runProbe(ctx, "cve", o.timeouts.CVE, func(pctx context.Context) ([]finding.Finding, error) {
		return o.probes.CVE.Lookup(pctx, fp.Components())
	})
	o.settleProbe(job.ID, out, probeErrors)
	all = append(all, out.findings...)
	o.progress(job.ID, progressAggregate)

	if tgt.Plaintext {
		all = append(all, plaintextTransportFinding())
	}

	// Phase 5: aggregate and complete.
	o.phase(job.ID, "aggregate", progressAggregate)
	report := aggregate.Aggregate(aggregate.Input{
		TargetURL:   job.Target,
		ScannedAt:   start,
		Findings:    all,
		Technology:  fp,
		ProbeErrors: probeErrors,
	})
	o.progress(job.ID, progressFinal)

	o.store.Complete(job.ID, report)
	o.dispatch(events.NewCompletedEvent(job.ID, job.Target,
		report.Score, report.Grade, report.TotalIssues,
		severityCounts(report), len(probeErrors), time.Since(start).Seconds()))
}

// outcome is one probe's settled result: findings on success, a reason
// string on isolated failure, never both.
type outcome struct {
	name     string
	findings []finding.Finding
	err      string
}

// runProbe invokes one probe under its own deadline and converts every
// failure mode — error, timeout, panic — into data.
func (o *Orchestrator) runProbe(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) ([]finding.Finding, error)) (out outcome) {
	out.name = name
	defer func() {
		if r := recover(); r != nil {
			out.findings = nil
			out.err = fmt.Sprintf("probe panic: %v", r)
		}
	}()

	pctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	fs, err := fn(pctx)
	if err != nil {
		if errors.Is(pctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %v", finding.ErrTimeout, timeout, err)
		}
		out.err = err.Error()
		return out
	}
	out.findings = fs
	return out
}

// settleProbe records an isolated failure and emits the probe event.
func (o *Orchestrator) settleProbe(jobID string, out outcome, probeErrors map[string]string) {
	if out.err != "" {
		probeErrors[out.name] = out.err
	}
	o.dispatch(events.NewProbeEvent(jobID, out.name, len(out.findings), out.err))
}

// phase records a phase transition in the store and emits the event.
func (o *Orchestrator) phase(jobID, phase string, progress int) {
	o.store.Apply(jobID, scan.Update{Phase: &phase, Progress: &progress})
	o.dispatch(events.NewPhaseEvent(jobID, phase, progress))
}

// progress bumps the progress percentage without a phase change.
func (o *Orchestrator) progress(jobID string, progress int) {
	o.store.Apply(jobID, scan.Update{Progress: &progress})
}

// dispatch forwards an event when a dispatcher is wired.
func (o *Orchestrator) dispatch(e events.Event) {
	if o.dispatcher != nil {
		o.dispatcher.Dispatch(context.Background(), e)
	}
}

// plaintextTransportFinding is synthesized for every http target: the
// transport itself is the issue, independent of what the probes found.
func plaintextTransportFinding() finding.Finding {
	return finding.Finding{
		Title:          "Unencrypted HTTP Transport",
		Description:    "The target is served over plaintext HTTP. All traffic, including credentials and session tokens, can be read and modified in transit.",
		Severity:       finding.High,
		Recommendation: "Serve the site exclusively over HTTPS and redirect HTTP to HTTPS.",
		CWE:            "CWE-319",
		OWASP:          "A02:2021",
		Probe:          "transport",
	}
}

// severityCounts flattens the report's typed severity map for events.
func severityCounts(r *aggregate.Report) map[string]int {
	out := make(map[string]int, len(r.SeverityCounts))
	for severity, count := range r.SeverityCounts {
		if count > 0 {
			out[string(severity)] = count
		}
	}
	return out
}
