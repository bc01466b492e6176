package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/config"
	reportpkg "github.com/yorozuya-cybersecurity/ecomprobe/internal/report"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Short:   "Re-render the HTML/PDF report from a JSON scan report",
		Example: "ecomprobe report --from ./security-reports/security_report_20261016_090000.json --format html,pdf",
		RunE:    runReport,
	}

	cmd.Flags().String("from", "", "JSON report written by scan")
	cmd.Flags().String("format", "html", "Output formats: html,pdf,json (json just points to the source file)")

	_ = viper.BindPFlag("report.from", cmd.Flags().Lookup("from"))
	_ = viper.BindPFlag("report.format", cmd.Flags().Lookup("format"))
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := config.GetReport()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	res, err := reportpkg.LoadScanResult(cfg.From)
	if err != nil {
		return err
	}
	docs, err := reportpkg.Render(res.Summary, res.Findings, time.Now())
	if err != nil {
		return err
	}
	htmlPath := strings.TrimSuffix(cfg.From, ".json") + ".html"
	if err := os.WriteFile(htmlPath, docs.HTML, 0644); err != nil {
		return fmt.Errorf("write html report: %w", err)
	}
	fmt.Fprintf(out, "HTML report: %s\n", htmlPath)

	// Optional PDF (Chromedp-based)
	if slices.Contains(cfg.Formats, "pdf") {
		pdfPath, err := reportpkg.GeneratePDF(cmd.Context(), htmlPath)
		if err != nil {
			fmt.Fprintf(out, "PDF generation failed: %v\n", err)
		} else {
			fmt.Fprintf(out, "PDF report:  %s\n", pdfPath)
		}
	}

	// Optional JSON passthrough
	if slices.Contains(cfg.Formats, "json") {
		fmt.Fprintf(out, "JSON already exists at: %s\n", cfg.From)
	}

	return nil
}
