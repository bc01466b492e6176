package report

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/recorder"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
)

//go:embed templates/report.html
var reportHTMLTemplate string

var reportTmpl = template.Must(template.New("report").Parse(reportHTMLTemplate))

// StampLayout formats the timestamp suffix of report file names.
const StampLayout = "20060102_150405"

// ---------- Public API ----------

// Documents are the two renderings of one run.
type Documents struct {
	HTML []byte
	JSON []byte
}

// Paths locates written documents.
type Paths struct {
	HTML string
	JSON string
}

// Render builds both documents from the same finding list. Output depends
// only on the inputs.
func Render(summary schema.RunSummary, findings []schema.Finding, generatedAt time.Time) (Documents, error) {
	if findings == nil {
		findings = []schema.Finding{}
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, buildViewModel(summary, findings, generatedAt)); err != nil {
		return Documents{}, fmt.Errorf("execute template: %w", err)
	}

	data, err := json.MarshalIndent(schema.ScanResult{Summary: summary, Findings: findings}, "", "  ")
	if err != nil {
		return Documents{}, fmt.Errorf("encode results: %w", err)
	}

	return Documents{HTML: buf.Bytes(), JSON: data}, nil
}

// Write stores docs as security_report_<stamp>.{html,json} inside dir.
func Write(dir, stamp string, docs Documents) (Paths, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Paths{}, fmt.Errorf("create out dir: %w", err)
	}
	base := filepath.Join(dir, "security_report_"+stamp)
	p := Paths{HTML: base + ".html", JSON: base + ".json"}

	if err := os.WriteFile(p.HTML, docs.HTML, 0644); err != nil {
		return Paths{}, fmt.Errorf("write html report: %w", err)
	}
	if err := os.WriteFile(p.JSON, docs.JSON, 0644); err != nil {
		return Paths{}, fmt.Errorf("write json report: %w", err)
	}
	return p, nil
}

// LoadScanResult reads back a machine document.
func LoadScanResult(path string) (schema.ScanResult, error) {
	var res schema.ScanResult
	data, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return res, nil
}

// GeneratePDF prints htmlPath to a PDF next to it using headless Chrome.
func GeneratePDF(ctx context.Context, htmlPath string) (string, error) {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return "", err
	}
	pdfPath := strings.TrimSuffix(abs, ".html") + ".pdf"

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)...)
	defer cancelAlloc()
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("file://"+filepath.ToSlash(abs)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("chrome print to pdf: %w", err)
	}
	if err := os.WriteFile(pdfPath, pdf, 0644); err != nil {
		return "", fmt.Errorf("write pdf report: %w", err)
	}
	return pdfPath, nil
}

// ---------- View Model & helpers ----------

type viewModel struct {
	Target        string
	ScanTime      string
	GeneratedAt   string
	TestsRun      int
	Services      []string
	TotalFindings int
	HasHigh       bool
	Score         int
	Grade         string
	Groups        []severityGroup
	Generator     string
	Year          int
}

type severityGroup struct {
	Label    string
	Class    string
	Count    int
	Findings []findingRow
}

type findingRow struct {
	Category    string
	Description string
	Endpoint    string
	Payload     string
	HasPayload  bool
	Timestamp   string
}

func buildViewModel(summary schema.RunSummary, findings []schema.Finding, generatedAt time.Time) viewModel {
	// Stable sort keeps insertion order within a severity.
	sorted := make([]schema.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
	})

	groups := make([]severityGroup, 0, 3)
	index := make(map[schema.Severity]int, 3)
	for _, sev := range schema.Severities() {
		index[sev] = len(groups)
		groups = append(groups, severityGroup{
			Label: sev.String(),
			Class: strings.ToLower(sev.String()),
		})
	}
	for _, f := range sorted {
		i, ok := index[f.Severity]
		if !ok {
			continue
		}
		payload, has := f.PayloadValue()
		groups[i].Findings = append(groups[i].Findings, findingRow{
			Category:    f.Category,
			Description: f.Description,
			Endpoint:    f.Endpoint,
			Payload:     payload,
			HasPayload:  has,
			Timestamp:   f.Timestamp.Format(time.RFC3339),
		})
		groups[i].Count++
	}

	counts := recorder.CountBySeverity(findings)
	score := riskScore(counts)

	return viewModel{
		Target:        summary.Target,
		ScanTime:      summary.StartedAt.Format(time.RFC3339),
		GeneratedAt:   generatedAt.Format("2006-01-02 15:04:05"),
		TestsRun:      summary.TestsRun,
		Services:      summary.ServicesTested,
		TotalFindings: len(findings),
		HasHigh:       counts[schema.SeverityHigh] > 0,
		Score:         score,
		Grade:         gradeFor(score),
		Groups:        groups,
		Generator:     "ecomprobe",
		Year:          generatedAt.Year(),
	}
}

// riskScore maps findings to 0..100, lower meaning more severe findings.
func riskScore(counts map[schema.Severity]int) int {
	total, weighted := 0, 0
	for sev, c := range counts {
		total += c
		weighted += sev.Rank() * c
	}
	if total == 0 {
		return 100
	}
	maxRank := schema.SeverityHigh.Rank()
	return 100 - min(100, (weighted*100)/(total*maxRank))
}

// gradeBands are checked in order; a score takes the first band it reaches.
var gradeBands = []struct {
	floor int
	grade string
}{
	{90, "A"},
	{80, "B"},
	{70, "C"},
	{60, "D"},
}

func gradeFor(score int) string {
	for _, b := range gradeBands {
		if score >= b.floor {
			return b.grade
		}
	}
	return "F"
}
