package loadtest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/transport"
)

// Options selects what to run and for how long.
type Options struct {
	Profile  *Profile      `validate:"required"`
	Users    int           `validate:"gt=0"`
	Duration time.Duration `validate:"gt=0"`
	// RateLimit caps requests per second across all users; 0 disables it.
	RateLimit float64 `validate:"gte=0"`
	// Seed makes task selection reproducible; 0 picks a random seed.
	Seed uint64
}

// Runner starts one goroutine per virtual user.
type Runner struct {
	Client  *transport.Client
	Metrics *Metrics
	Logger  *zerolog.Logger
}

var validate = validator.New()

// Run drives opts.Users users until opts.Duration elapses or ctx is done.
func (r *Runner) Run(ctx context.Context, opts Options) (Summary, error) {
	if err := validate.Struct(opts); err != nil {
		return Summary{}, fmt.Errorf("invalid load options: %w", err)
	}
	if err := opts.Profile.Validate(); err != nil {
		return Summary{}, err
	}
	if r.Client == nil {
		r.Client = transport.NewClient(transport.DefaultTimeout)
	}
	logger := log.Logger
	if r.Logger != nil {
		logger = *r.Logger
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	stats := NewStats()
	sinks := Sinks{stats, NewListener(logger)}
	if r.Metrics != nil {
		sinks = append(sinks, r.Metrics)
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(opts.RateLimit)))
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	logger.Info().
		Str("profile", opts.Profile.Name).
		Str("host", opts.Profile.Host).
		Int("users", opts.Users).
		Dur("duration", opts.Duration).
		Msg("Starting load test")

	p := pool.New().WithMaxGoroutines(opts.Users)
	for i := 0; i < opts.Users; i++ {
		rng := rand.New(rand.NewPCG(seed, uint64(i)))
		s := &Session{
			ID:      uuid.NewString(),
			Rand:    rng,
			Fake:    gofakeit.NewFaker(rng, false),
			host:    opts.Profile.Host,
			profile: opts.Profile,
			client:  r.Client,
			sink:    sinks,
			limiter: limiter,
			sleep:   sleepCtx,
		}
		p.Go(func() { r.loop(ctx, logger, s) })
	}
	p.Wait()

	sum := stats.Summary()
	logger.Info().
		Int("requests", sum.Requests).
		Int("failures", sum.Failures).
		Float64("avg_ms", ms(sum.Average)).
		Float64("p95_ms", ms(sum.P95)).
		Msg("Load test completed")
	return sum, nil
}

func (r *Runner) loop(ctx context.Context, logger zerolog.Logger, s *Session) {
	if r.Metrics != nil {
		r.Metrics.activeUsers.Inc()
		defer r.Metrics.activeUsers.Dec()
	}
	l := logger.With().Str("user", s.ID).Logger()

	if s.profile.Setup != nil {
		s.task = "setup"
		if !runStep(ctx, l, s, s.profile.Setup) {
			return
		}
	}
	for ctx.Err() == nil {
		t := s.profile.pick(s.Rand)
		s.task = t.Name
		if !runStep(ctx, l, s, t.Run) {
			return
		}
		if !s.Wait(ctx) {
			return
		}
	}
}

// runStep stops the user if the step panics.
func runStep(ctx context.Context, l zerolog.Logger, s *Session, step Step) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			l.Error().Str("task", s.task).Interface("panic", rec).Msg("Virtual user stopped")
			ok = false
		}
	}()
	step(ctx, s)
	return true
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
