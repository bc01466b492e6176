package recorder

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
)

// Recorder accumulates findings for one run in insertion order.
// It is not safe for concurrent use; probes run one at a time.
type Recorder struct {
	findings []schema.Finding
	logger   zerolog.Logger
}

func New() *Recorder {
	return &Recorder{logger: log.Logger}
}

// WithLogger replaces the logger used to announce new findings.
func (r *Recorder) WithLogger(l zerolog.Logger) *Recorder {
	r.logger = l
	return r
}

// Record appends f.
func (r *Recorder) Record(f schema.Finding) {
	r.findings = append(r.findings, f)

	ev := r.logger.Warn().
		Str("severity", f.Severity.String()).
		Str("category", f.Category).
		Str("endpoint", f.Endpoint)
	if p, ok := f.PayloadValue(); ok {
		ev = ev.Str("payload", p)
	}
	ev.Msg(f.Description)
}

// Len returns the number of findings recorded so far.
func (r *Recorder) Len() int {
	return len(r.findings)
}

// All returns a copy of the findings in insertion order.
func (r *Recorder) All() []schema.Finding {
	out := make([]schema.Finding, len(r.findings))
	copy(out, r.findings)
	return out
}

// CountsBySeverity returns a count for every known severity, including zeros.
func (r *Recorder) CountsBySeverity() map[schema.Severity]int {
	return CountBySeverity(r.findings)
}

// CountBySeverity tallies findings; every known severity is present.
func CountBySeverity(findings []schema.Finding) map[schema.Severity]int {
	counts := make(map[schema.Severity]int, 3)
	for _, s := range schema.Severities() {
		counts[s] = 0
	}
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}
