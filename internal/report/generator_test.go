package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
)

func fixedTime(min int) time.Time {
	return time.Date(2026, 10, 16, 9, min, 0, 0, time.UTC)
}

func finding(sev schema.Severity, desc string, payload *string, min int) schema.Finding {
	return schema.Finding{
		Timestamp:   fixedTime(min),
		Severity:    sev,
		Category:    "Category " + desc,
		Description: desc,
		Endpoint:    "http://10.0.0.1:8080/app/api/" + desc,
		Payload:     payload,
	}
}

func ptr(s string) *string { return &s }

func testInput() (schema.RunSummary, []schema.Finding) {
	findings := []schema.Finding{
		finding(schema.SeverityLow, "low-1", nil, 1),
		finding(schema.SeverityHigh, "high-1", ptr("' OR '1'='1"), 2),
		finding(schema.SeverityMedium, "medium-1", ptr("null"), 3),
		finding(schema.SeverityLow, "low-2", nil, 4),
		finding(schema.SeverityHigh, "high-2", ptr("TRACE"), 5),
	}
	summary := schema.RunSummary{
		Target:         "http://10.0.0.1:8080",
		StartedAt:      fixedTime(0),
		TestsRun:       8,
		FindingsFound:  len(findings),
		ServicesTested: []string{"product_service", "auth_endpoint"},
	}
	return summary, findings
}

func TestRenderSeverityOrdering(t *testing.T) {
	summary, findings := testInput()
	docs, err := Render(summary, findings, fixedTime(30))
	require.NoError(t, err)
	html := string(docs.HTML)

	pos := func(s string) int {
		i := strings.Index(html, "<p><strong>Description:</strong> "+s+"</p>")
		require.GreaterOrEqual(t, i, 0, s)
		return i
	}
	order := []string{"high-1", "high-2", "medium-1", "low-1", "low-2"}
	for i := 1; i < len(order); i++ {
		assert.Less(t, pos(order[i-1]), pos(order[i]), "%s before %s", order[i-1], order[i])
	}

	assert.Contains(t, html, "HIGH Risk Vulnerabilities (2)")
	assert.Contains(t, html, "MEDIUM Risk Vulnerabilities (1)")
	assert.Contains(t, html, "LOW Risk Vulnerabilities (2)")
	assert.Contains(t, html, "<h3>5</h3>")
	assert.Contains(t, html, "High-risk vulnerabilities found")
	assert.Contains(t, html, "product_service, auth_endpoint")
}

func TestRenderEscapesPayloads(t *testing.T) {
	summary, _ := testInput()
	findings := []schema.Finding{finding(schema.SeverityHigh, "xss", ptr("<script>alert('XSS')</script>"), 1)}
	summary.FindingsFound = 1

	docs, err := Render(summary, findings, fixedTime(30))
	require.NoError(t, err)
	assert.NotContains(t, string(docs.HTML), "<script>alert")
	assert.Contains(t, string(docs.HTML), "&lt;script&gt;")
}

func TestRenderNoFindings(t *testing.T) {
	summary := schema.RunSummary{Target: "http://t", StartedAt: fixedTime(0)}
	docs, err := Render(summary, nil, fixedTime(1))
	require.NoError(t, err)
	assert.Contains(t, string(docs.HTML), "No high-risk vulnerabilities detected")
	assert.NotContains(t, string(docs.HTML), "Risk Vulnerabilities (")
	assert.Contains(t, string(docs.JSON), `"vulnerabilities": []`)
}

func TestRenderDeterministic(t *testing.T) {
	summary, findings := testInput()
	a, err := Render(summary, findings, fixedTime(30))
	require.NoError(t, err)
	b, err := Render(summary, findings, fixedTime(30))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Render(summary, findings, fixedTime(31))
	require.NoError(t, err)
	assert.Equal(t, a.JSON, c.JSON)
	assert.NotEqual(t, a.HTML, c.HTML)
}

func TestMachineDocumentRoundTrip(t *testing.T) {
	summary, findings := testInput()
	docs, err := Render(summary, findings, fixedTime(30))
	require.NoError(t, err)

	paths, err := Write(t.TempDir(), "20261016_090000", docs)
	require.NoError(t, err)
	assert.Equal(t, "security_report_20261016_090000.html", filepath.Base(paths.HTML))
	assert.Equal(t, "security_report_20261016_090000.json", filepath.Base(paths.JSON))

	res, err := LoadScanResult(paths.JSON)
	require.NoError(t, err)
	assert.Equal(t, summary, res.Summary)
	assert.Equal(t, findings, res.Findings)
	assert.Nil(t, res.Findings[0].Payload)
	assert.Equal(t, res.Summary.FindingsFound, len(res.Findings))
}

func TestMachineDocumentKeepsLiveTimestamps(t *testing.T) {
	summary, _ := testInput()
	findings := []schema.Finding{
		schema.NewFinding(schema.SeverityHigh, "SQL Injection", "Possible SQL injection", "http://t/app/api/products", "' OR '1'='1"),
		schema.NewFinding(schema.SeverityLow, "Missing Security Header", "Missing Referrer-Policy header", "http://t/app/api/products", ""),
	}
	summary.FindingsFound = len(findings)
	docs, err := Render(summary, findings, time.Now())
	require.NoError(t, err)
	paths, err := Write(t.TempDir(), "20261016_090000", docs)
	require.NoError(t, err)

	res, err := LoadScanResult(paths.JSON)
	require.NoError(t, err)
	require.Len(t, res.Findings, len(findings))
	for i, want := range findings {
		got := res.Findings[i]
		assert.True(t, want.Timestamp.Equal(got.Timestamp), "timestamp %d: %v != %v", i, want.Timestamp, got.Timestamp)
		assert.Equal(t, want.Severity, got.Severity)
		assert.Equal(t, want.Category, got.Category)
		assert.Equal(t, want.Description, got.Description)
		assert.Equal(t, want.Endpoint, got.Endpoint)
		assert.Equal(t, want.Payload, got.Payload)
	}
}

func TestWriteFailsWhenDirIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := Write(file, "stamp", Documents{})
	assert.Error(t, err)
}

func TestRiskScore(t *testing.T) {
	assert.Equal(t, 100, riskScore(map[schema.Severity]int{}))
	assert.Equal(t, 0, riskScore(map[schema.Severity]int{schema.SeverityHigh: 3}))
}

func TestGradeFor(t *testing.T) {
	tests := map[int]string{100: "A", 90: "A", 89: "B", 80: "B", 75: "C", 60: "D", 59: "F", 0: "F"}
	for score, want := range tests {
		assert.Equal(t, want, gradeFor(score), score)
	}
}
