package schema

import "time"

// Severity of a finding. Values match the report wording.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Severities returns all severities, most severe first.
func Severities() []Severity {
	return []Severity{SeverityHigh, SeverityMedium, SeverityLow}
}

// Rank orders severities: HIGH=3, MEDIUM=2, LOW=1, unknown=0.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

func (s Severity) String() string {
	return string(s)
}

// Finding is one suspected vulnerability observed against the target.
// Findings are values; nothing mutates one after NewFinding returns.
type Finding struct {
	Timestamp   time.Time `json:"timestamp"`
	Severity    Severity  `json:"severity"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Endpoint    string    `json:"endpoint"`
	Payload     *string   `json:"payload"`
}

// NewFinding stamps a finding with the current time. An empty payload is
// recorded as absent.
func NewFinding(sev Severity, category, description, endpoint, payload string) Finding {
	f := Finding{
		Timestamp:   time.Now(),
		Severity:    sev,
		Category:    category,
		Description: description,
		Endpoint:    endpoint,
	}
	if payload != "" {
		p := payload
		f.Payload = &p
	}
	return f
}

// PayloadValue returns the payload and whether one was recorded.
func (f Finding) PayloadValue() (string, bool) {
	if f.Payload == nil {
		return "", false
	}
	return *f.Payload, true
}

// RunSummary holds the aggregate counters for one scan run.
type RunSummary struct {
	Target         string    `json:"target"`
	StartedAt      time.Time `json:"timestamp"`
	TestsRun       int       `json:"tests_run"`
	FindingsFound  int       `json:"vulnerabilities_found"`
	ServicesTested []string  `json:"services_tested"`
}

// ScanResult is the machine-readable document for one run.
type ScanResult struct {
	Summary  RunSummary `json:"test_results"`
	Findings []Finding  `json:"vulnerabilities"`
}
