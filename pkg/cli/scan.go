package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/config"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/registry"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/report"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/scan"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/transport"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scan",
		Short:   "Run the security test suite against a target",
		Example: "ecomprobe scan --url http://34.44.242.122:8080 --test sql",
		RunE:    runScan,
	}

	cmd.Flags().String("url", "http://34.44.242.122:8080", "Target base URL")
	cmd.Flags().String("test", scan.SuiteAll, "Test to run: "+strings.Join(scan.SuiteNames(), ", "))
	cmd.Flags().String("registry", "", "YAML file overriding service paths")
	cmd.Flags().Duration("timeout", transport.DefaultTimeout, "Per-request timeout")
	_ = viper.BindPFlag("scan.url", cmd.Flags().Lookup("url"))
	_ = viper.BindPFlag("scan.test", cmd.Flags().Lookup("test"))
	_ = viper.BindPFlag("scan.registry", cmd.Flags().Lookup("registry"))
	_ = viper.BindPFlag("scan.timeout", cmd.Flags().Lookup("timeout"))

	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := config.GetScan()
	if err != nil {
		return err
	}

	reg := registry.Default()
	if cfg.Registry != "" {
		if reg, err = registry.LoadFile(cfg.Registry); err != nil {
			return err
		}
	}
	probes, err := scan.Suite(cfg.Test)
	if err != nil {
		return err
	}

	pub := &report.FilePublisher{Dir: cfg.Output}
	runner := &scan.Runner{
		BaseURL:   cfg.URL,
		Registry:  reg,
		Client:    transport.NewClient(cfg.Timeout),
		Publisher: pub,
	}
	res, err := runner.Run(cmd.Context(), probes)
	if err != nil {
		return err
	}

	printScanSummary(cmd.OutOrStdout(), res, pub.Paths)
	return nil
}
