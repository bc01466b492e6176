package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/loadtest"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/recorder"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/report"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
)

var severityColors = map[schema.Severity]*color.Color{
	schema.SeverityHigh:   color.New(color.FgRed, color.Bold),
	schema.SeverityMedium: color.New(color.FgYellow),
	schema.SeverityLow:    color.New(color.FgCyan),
}

func paint(sev schema.Severity) string {
	if c, ok := severityColors[sev]; ok {
		return c.Sprint(sev.String())
	}
	return sev.String()
}

func printScanSummary(w io.Writer, res schema.ScanResult, paths report.Paths) {
	counts := recorder.CountBySeverity(res.Findings)

	fmt.Fprintln(w)
	fmt.Fprintln(w, color.New(color.Bold).Sprint("SECURITY TEST SUMMARY"))
	fmt.Fprintln(w, strings.Repeat("=", 24))
	fmt.Fprintf(w, "Target: %s\n", res.Summary.Target)
	fmt.Fprintf(w, "Tests Run: %d\n", res.Summary.TestsRun)
	fmt.Fprintf(w, "Total Issues: %d\n", len(res.Findings))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Risk", "Issues"})
	table.SetBorder(true)
	for _, sev := range schema.Severities() {
		table.Append([]string{paint(sev), strconv.Itoa(counts[sev])})
	}
	table.Render()

	if paths.HTML != "" {
		fmt.Fprintf(w, "HTML: %s\n", paths.HTML)
		fmt.Fprintf(w, "JSON: %s\n", paths.JSON)
	}
}

func printLoadSummary(w io.Writer, p *loadtest.Profile, sum loadtest.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, color.New(color.Bold).Sprint("LOAD TEST SUMMARY"))
	fmt.Fprintln(w, strings.Repeat("=", 24))
	fmt.Fprintf(w, "Profile: %s\n", p.Name)
	fmt.Fprintf(w, "Target host: %s\n", p.Host)
	fmt.Fprintf(w, "Total requests: %d\n", sum.Requests)
	failures := strconv.Itoa(sum.Failures)
	if sum.Failures > 0 {
		failures = color.RedString(failures)
	}
	fmt.Fprintf(w, "Total failures: %s\n", failures)
	fmt.Fprintf(w, "Average response time: %.2fms\n", millis(sum.Average))
	fmt.Fprintf(w, "95th percentile: %.2fms\n", millis(sum.P95))

	if len(sum.Endpoints) == 0 {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Method", "Name", "Requests", "Failures", "Avg (ms)"})
	table.SetBorder(true)
	for _, e := range sum.Endpoints {
		table.Append([]string{
			e.Method,
			e.Name,
			strconv.Itoa(e.Requests),
			strconv.Itoa(e.Failures),
			strconv.FormatFloat(millis(e.Average), 'f', 2, 64),
		})
	}
	table.Render()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
