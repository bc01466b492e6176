package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/config"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/loadtest"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/transport"
	"github.com/yorozuya-cybersecurity/ecomprobe/pkg/utils"
)

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "load",
		Short:   "Drive weighted virtual-user load against the user service",
		Example: "ecomprobe load --profile realistic --host http://localhost:8700 --users 20 --duration 5m",
		RunE:    runLoad,
	}

	cmd.Flags().String("profile", "realistic", "Profile: "+strings.Join(loadtest.ProfileNames(), ", "))
	cmd.Flags().String("host", loadtest.DefaultHost, "User service base URL")
	cmd.Flags().Int("users", 10, "Concurrent virtual users")
	cmd.Flags().Duration("duration", time.Minute, "How long to run")
	cmd.Flags().Float64("rps", 0, "Global request rate limit, 0 for none")
	cmd.Flags().Duration("timeout", transport.DefaultTimeout, "Per-request timeout")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9091)")
	_ = viper.BindPFlag("load.profile", cmd.Flags().Lookup("profile"))
	_ = viper.BindPFlag("load.host", cmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("load.users", cmd.Flags().Lookup("users"))
	_ = viper.BindPFlag("load.duration", cmd.Flags().Lookup("duration"))
	_ = viper.BindPFlag("load.rps", cmd.Flags().Lookup("rps"))
	_ = viper.BindPFlag("load.timeout", cmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("load.metrics_addr", cmd.Flags().Lookup("metrics-addr"))

	return cmd
}

// loadReport is the persisted form of a load-test summary.
type loadReport struct {
	Profile   string              `json:"profile"`
	Host      string              `json:"host"`
	Users     int                 `json:"users"`
	Duration  string              `json:"duration"`
	Requests  int                 `json:"total_requests"`
	Failures  int                 `json:"total_failures"`
	AverageMS float64             `json:"avg_response_time_ms"`
	P95MS     float64             `json:"p95_response_time_ms"`
	Endpoints []loadEndpointStats `json:"endpoints"`
}

type loadEndpointStats struct {
	Method    string  `json:"method"`
	Name      string  `json:"name"`
	Requests  int     `json:"requests"`
	Failures  int     `json:"failures"`
	AverageMS float64 `json:"avg_response_time_ms"`
}

func newLoadReport(cfg config.Load, sum loadtest.Summary) loadReport {
	r := loadReport{
		Profile:   cfg.Profile,
		Host:      cfg.Host,
		Users:     cfg.Users,
		Duration:  cfg.Duration.String(),
		Requests:  sum.Requests,
		Failures:  sum.Failures,
		AverageMS: millis(sum.Average),
		P95MS:     millis(sum.P95),
		Endpoints: []loadEndpointStats{},
	}
	for _, e := range sum.Endpoints {
		r.Endpoints = append(r.Endpoints, loadEndpointStats{
			Method:    e.Method,
			Name:      e.Name,
			Requests:  e.Requests,
			Failures:  e.Failures,
			AverageMS: millis(e.Average),
		})
	}
	return r
}

func runLoad(cmd *cobra.Command, _ []string) error {
	cfg, err := config.GetLoad()
	if err != nil {
		return err
	}
	profile, err := loadtest.LookupProfile(cfg.Profile)
	if err != nil {
		return err
	}
	profile.Host = cfg.Host

	ctx := cmd.Context()
	var metrics *loadtest.Metrics
	if cfg.MetricsAddr != "" {
		metrics = loadtest.NewMetrics()
		mctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(mctx, cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	runner := &loadtest.Runner{Client: transport.NewClient(cfg.Timeout), Metrics: metrics}
	sum, err := runner.Run(ctx, loadtest.Options{
		Profile:   profile,
		Users:     cfg.Users,
		Duration:  cfg.Duration,
		RateLimit: cfg.RPS,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printLoadSummary(out, profile, sum)
	file, err := utils.SaveJSON(newLoadReport(cfg, sum), cfg.Output, "load", cfg.Profile, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Load summary saved to %s\n", file)
	return nil
}
