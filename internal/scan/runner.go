// Package scan runs a selection of probes against one target and hands the
// collected findings to a publisher.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/recorder"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/registry"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/scanners"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/transport"
)

// Publisher receives the results of a run exactly once.
type Publisher interface {
	Publish(summary schema.RunSummary, findings []schema.Finding) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(schema.RunSummary, []schema.Finding) error

func (f PublisherFunc) Publish(s schema.RunSummary, fs []schema.Finding) error { return f(s, fs) }

// Runner executes probes sequentially in the order given.
type Runner struct {
	BaseURL   string
	Registry  *registry.Registry
	Client    *transport.Client
	Publisher Publisher
	Logger    *zerolog.Logger
	Clock     func() time.Time
}

// Run executes probes and publishes the result. A failing probe is logged
// and skipped; only a publish error is returned.
func (r *Runner) Run(ctx context.Context, probes []scanners.Probe) (schema.ScanResult, error) {
	if r.Registry == nil {
		r.Registry = registry.Default()
	}
	if r.Client == nil {
		r.Client = transport.NewClient(transport.DefaultTimeout)
	}
	logger := log.Logger
	if r.Logger != nil {
		logger = *r.Logger
	}
	now := time.Now
	if r.Clock != nil {
		now = r.Clock
	}

	rec := recorder.New().WithLogger(logger)
	summary := schema.RunSummary{
		Target:         r.BaseURL,
		StartedAt:      now(),
		ServicesTested: []string{},
	}
	env := scanners.Env{
		BaseURL:  r.BaseURL,
		Registry: r.Registry,
		Client:   r.Client,
		Recorder: rec,
		Logger:   logger,
	}

	logger.Info().Str("target", r.BaseURL).Int("probes", len(probes)).Msg("Starting security test suite")
	seen := make(map[registry.ServiceID]bool)
	for _, p := range probes {
		start := time.Now()
		out, err := runProbe(ctx, p, env)
		summary.FindingsFound = rec.Len()
		if err != nil {
			logger.Error().Err(err).Str("probe", p.Name()).Msg("Test failed")
			continue
		}
		summary.TestsRun++
		for _, id := range p.Services(r.Registry) {
			if !seen[id] {
				seen[id] = true
				summary.ServicesTested = append(summary.ServicesTested, string(id))
			}
		}
		logger.Debug().
			Str("probe", p.Name()).
			Int("attempts", out.Attempts).
			Int("skipped", out.Skipped).
			Int("findings", out.Findings).
			Dur("took", time.Since(start)).
			Msg("Test completed")
	}

	result := schema.ScanResult{Summary: summary, Findings: rec.All()}
	if r.Publisher == nil {
		return result, errors.New("scan: no publisher configured")
	}
	if err := r.Publisher.Publish(result.Summary, result.Findings); err != nil {
		return result, fmt.Errorf("publish report: %w", err)
	}
	return result, nil
}

func runProbe(ctx context.Context, p scanners.Probe, env scanners.Env) (out scanners.Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("probe %s panicked: %v", p.Name(), rec)
		}
	}()
	return p.Run(ctx, env)
}
