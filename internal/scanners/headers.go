package scanners

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/registry"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
)

// requiredHeader names a response header every service must send. Only
// headers with an Accepted set get a weak-value check.
type requiredHeader struct {
	Name     string
	Accepted []string
}

var requiredHeaders = []requiredHeader{
	// Expected to be nosniff, checked for presence only.
	{"X-Content-Type-Options", nil},
	{"X-Frame-Options", []string{"DENY", "SAMEORIGIN"}},
	// Expected to be "1; mode=block", checked for presence only.
	{"X-XSS-Protection", nil},
	{"Strict-Transport-Security", nil},
	{"Content-Security-Policy", nil},
	{"Referrer-Policy", nil},
}

func (h requiredHeader) value(o Observation) string {
	return strings.TrimSpace(o.Header.Get(h.Name))
}

func (h requiredHeader) rules() Rules {
	rules := Rules{
		{
			Name:     "missing-" + strings.ToLower(h.Name),
			Match:    func(o Observation) bool { return h.value(o) == "" },
			Severity: schema.SeverityLow,
			Category: "Missing Security Header",
			Describe: func(o Observation) string {
				return fmt.Sprintf("Missing %s header on %s", h.Name, o.Service)
			},
			Evidence: noEvidence,
		},
	}
	if len(h.Accepted) > 0 {
		rules = append(rules, Rule{
			Name:     "weak-" + strings.ToLower(h.Name),
			Match:    func(o Observation) bool { return !slices.Contains(h.Accepted, h.value(o)) },
			Severity: schema.SeverityLow,
			Category: "Weak Security Header",
			Describe: func(o Observation) string {
				return fmt.Sprintf("Weak %s value on %s", h.Name, o.Service)
			},
			Evidence: h.value,
		})
	}
	return rules
}

var headerRules = func() []Rules {
	out := make([]Rules, 0, len(requiredHeaders))
	for _, h := range requiredHeaders {
		out = append(out, h.rules())
	}
	return out
}()

// SecurityHeaders fetches each service once and checks its response headers.
type SecurityHeaders struct{}

func (SecurityHeaders) Name() string { return "security-headers" }

func (SecurityHeaders) Services(reg *registry.Registry) []registry.ServiceID {
	return reg.Services()
}

func (p SecurityHeaders) Run(ctx context.Context, env Env) (Outcome, error) {
	var out Outcome
	l := env.probeLogger(p)
	l.Info().Msg("Testing security headers")

	for _, id := range env.Registry.Services() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		u, err := env.Registry.URL(env.BaseURL, id)
		if err != nil {
			return out, err
		}
		res, ok := env.send(ctx, &out, l, getRequest(u))
		if !ok {
			continue
		}
		o := observe(id, http.MethodGet, u, res)
		for _, rules := range headerRules {
			env.evaluate(&out, rules, o)
		}
	}
	return out, nil
}
