package scanners

import (
	"net/http"
	"slices"
	"strings"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/registry"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
)

// Observation is one response together with the trial that produced it.
type Observation struct {
	Service registry.ServiceID
	Method  string
	URL     string
	// Payload is the attack input of the trial, if any.
	Payload string
	// Field is the request field or path the payload was placed in.
	Field  string
	Status int
	Header http.Header
	Body   []byte
	// JSON holds the decoded body for probes that need it.
	JSON map[string]any
}

// Predicate classifies an observation.
type Predicate func(Observation) bool

// Rule maps a predicate to the finding it produces.
type Rule struct {
	Name     string
	Match    Predicate
	Severity schema.Severity
	Category string
	Describe func(Observation) string
	// Evidence selects the recorded payload. Nil records Observation.Payload;
	// a func returning "" records no payload.
	Evidence func(Observation) string
}

// Finding builds the finding for o.
func (r Rule) Finding(o Observation) schema.Finding {
	payload := o.Payload
	if r.Evidence != nil {
		payload = r.Evidence(o)
	}
	return schema.NewFinding(r.Severity, r.Category, r.Describe(o), o.URL, payload)
}

// Rules are evaluated in order; the first match wins.
type Rules []Rule

func (rs Rules) Evaluate(o Observation) (Rule, bool) {
	for _, r := range rs {
		if r.Match(o) {
			return r, true
		}
	}
	return Rule{}, false
}

func describe(s string) func(Observation) string {
	return func(Observation) string { return s }
}

func noEvidence(Observation) string { return "" }

func statusIn(codes ...int) Predicate {
	return func(o Observation) bool { return slices.Contains(codes, o.Status) }
}

func statusNotIn(codes ...int) Predicate {
	in := statusIn(codes...)
	return func(o Observation) bool { return !in(o) }
}

// bodyContainsAny matches case-folded body text against lower-case keywords.
func bodyContainsAny(keywords ...string) Predicate {
	return func(o Observation) bool {
		body := strings.ToLower(string(o.Body))
		for _, k := range keywords {
			if strings.Contains(body, k) {
				return true
			}
		}
		return false
	}
}

func methodIn(methods ...string) Predicate {
	return func(o Observation) bool { return slices.Contains(methods, o.Method) }
}

func jsonHasAnyKey(keys ...string) Predicate {
	return func(o Observation) bool {
		for _, k := range keys {
			if _, ok := o.JSON[k]; ok {
				return true
			}
		}
		return false
	}
}

func all(preds ...Predicate) Predicate {
	return func(o Observation) bool {
		for _, p := range preds {
			if !p(o) {
				return false
			}
		}
		return true
	}
}
