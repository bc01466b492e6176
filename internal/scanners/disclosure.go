package scanners

import (
	"context"
	"fmt"
	"net/http"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/registry"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
)

// Paths are relative to the gateway root, not to any service.
var sensitivePaths = []string{
	"/actuator/health",
	"/actuator/env",
	"/actuator/configprops",
	"/actuator/mappings",
	"/swagger-ui.html",
	"/v2/api-docs",
	"/api/v1/swagger.json",
	"/health",
	"/info",
	"/metrics",
	"/trace",
	"/dump",
	"/.env",
	"/config",
	"/admin",
	"/debug",
}

var sensitiveKeywords = []string{"password", "secret", "key", "token", "database", "config"}

var disclosureRules = Rules{
	{
		Name:     "sensitive-content",
		Match:    all(statusIn(http.StatusOK), bodyContainsAny(sensitiveKeywords...)),
		Severity: schema.SeverityMedium,
		Category: "Information Disclosure",
		Describe: func(o Observation) string {
			return fmt.Sprintf("Sensitive information exposed at %s", o.Field)
		},
		Evidence: noEvidence,
	},
}

// InfoDisclosure requests well-known management and debug paths.
type InfoDisclosure struct{}

func (InfoDisclosure) Name() string { return "info-disclosure" }

func (InfoDisclosure) Services(*registry.Registry) []registry.ServiceID { return nil }

func (p InfoDisclosure) Run(ctx context.Context, env Env) (Outcome, error) {
	var out Outcome
	l := env.probeLogger(p)
	l.Info().Msg("Testing information disclosure")

	for _, path := range sensitivePaths {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		u, err := registry.JoinURL(env.BaseURL, path)
		if err != nil {
			return out, err
		}
		res, ok := env.send(ctx, &out, l, getRequest(u))
		if !ok {
			continue
		}
		o := observe("", http.MethodGet, u, res)
		o.Field = path
		if env.evaluate(&out, disclosureRules, o) {
			continue
		}
		if o.Status == http.StatusOK {
			l.Info().Str("path", path).Msg("Accessible endpoint found")
		}
	}
	return out, nil
}
