package scanners

import (
	"context"
	"fmt"
	"net/http"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/registry"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/transport"
)

const corsCategory = "CORS Misconfiguration"

var disallowedOrigins = []string{
	"http://malicious-site.com",
	"https://evil.com",
	"http://localhost:3000",
	"null",
}

func allowOrigin(o Observation) string {
	return o.Header.Get("Access-Control-Allow-Origin")
}

var corsRules = Rules{
	{
		Name:     "wildcard-origin",
		Match:    func(o Observation) bool { return allowOrigin(o) == "*" },
		Severity: schema.SeverityMedium,
		Category: corsCategory,
		Describe: func(o Observation) string {
			return fmt.Sprintf("CORS allows all origins (*) for %s", o.Service)
		},
		Evidence: noEvidence,
	},
	{
		Name:     "reflected-origin",
		Match:    func(o Observation) bool { return allowOrigin(o) == o.Payload },
		Severity: schema.SeverityMedium,
		Category: corsCategory,
		Describe: func(o Observation) string {
			return fmt.Sprintf("CORS allows malicious origin %s for %s", o.Payload, o.Service)
		},
	},
}

// CORS sends preflight requests from disallowed origins to every service.
// Every origin is tried on every endpoint.
type CORS struct{}

func (CORS) Name() string { return "cors" }

func (CORS) Services(reg *registry.Registry) []registry.ServiceID {
	return reg.Except(registry.AuthEndpoint)
}

func (p CORS) Run(ctx context.Context, env Env) (Outcome, error) {
	var out Outcome
	l := env.probeLogger(p)
	l.Info().Msg("Testing CORS misconfiguration")

	for _, id := range p.Services(env.Registry) {
		u, err := env.Registry.URL(env.BaseURL, id)
		if err != nil {
			return out, err
		}
		for _, origin := range disallowedOrigins {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			req := transport.Request{
				Method: http.MethodOptions,
				URL:    u,
				Header: http.Header{
					"Origin":                         {origin},
					"Access-Control-Request-Method":  {http.MethodPost},
					"Access-Control-Request-Headers": {"Content-Type"},
				},
			}
			res, ok := env.send(ctx, &out, l, req)
			if !ok {
				continue
			}
			o := observe(id, req.Method, u, res)
			o.Payload = origin
			env.evaluate(&out, corsRules, o)
		}
	}
	return out, nil
}
