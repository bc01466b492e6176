package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/config"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/logging"
)

var (
	Version = "0.1.0"
	rootCmd *cobra.Command

	logCloser io.Closer
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "ecomprobe",
		Short: "Security probes and load tests for the e-commerce microservices",
		Long: "ecomprobe probes a deployed e-commerce microservices system for common web vulnerabilities, " +
			"writes HTML and JSON reports, and drives weighted load against the user service.",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if logCloser != nil {
				_ = logCloser.Close()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("output", "o", "security-reports", "Output directory")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./.ecomprobe.yaml)")
	rootCmd.PersistentFlags().String("log-file", "security-tests.log", "Log file, empty for console only")
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))

	// Environment variable support (ECOMPROBE_OUTPUT, ECOMPROBE_SCAN_URL, etc.)
	viper.SetEnvPrefix("ECOMPROBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Subcommands
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newLoadCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func setup(*cobra.Command, []string) error {
	if err := config.LoadConfig(viper.GetString("config")); err != nil {
		return err
	}
	closer, err := logging.ConsoleAndFileLog(viper.GetString("log.file"), viper.GetBool("debug"))
	if err != nil {
		log.Warn().Err(err).Msg("Logging to console only")
	}
	logCloser = closer
	return nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
