package scanners

import (
	"context"
	"fmt"
	"net/http"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/registry"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/transport"
)

var weakCredentials = []credentials{
	{"admin", "admin"},
	{"admin", "password"},
	{"admin", "123456"},
	{"admin", "admin123"},
	{"root", "root"},
	{"test", "test"},
	{"user", "user"},
	{"guest", "guest"},
	{"", ""},
	{"admin", ""},
}

var weakCredentialRules = Rules{
	{
		Name:     "weak-credentials",
		Match:    all(statusIn(http.StatusOK), jsonHasAnyKey("jwtToken", "token")),
		Severity: schema.SeverityHigh,
		Category: "Weak Authentication",
		Describe: func(o Observation) string {
			return fmt.Sprintf("Weak credentials accepted: %s", o.Payload)
		},
	},
}

// AuthBypass tries default and empty credentials against the login endpoint.
type AuthBypass struct{}

func (AuthBypass) Name() string { return "auth-bypass" }

func (AuthBypass) Services(*registry.Registry) []registry.ServiceID {
	return []registry.ServiceID{registry.AuthEndpoint}
}

func (p AuthBypass) Run(ctx context.Context, env Env) (Outcome, error) {
	var out Outcome
	l := env.probeLogger(p)
	l.Info().Msg("Testing authentication bypass")

	authURL, err := env.Registry.URL(env.BaseURL, registry.AuthEndpoint)
	if err != nil {
		return out, err
	}
	for _, cred := range weakCredentials {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		req := jsonRequest(http.MethodPost, authURL, cred)
		res, ok := env.send(ctx, &out, l, req)
		if !ok {
			continue
		}
		o := observe(registry.AuthEndpoint, req.Method, authURL, res)
		o.Payload = cred.Username + ":" + cred.Password
		if o.Status == http.StatusOK {
			if res = res.DecodeJSON(&o.JSON); res.Kind != transport.OK {
				env.skip(&out, l, res, req)
				continue
			}
		}
		env.evaluate(&out, weakCredentialRules, o)
	}
	return out, nil
}

var protectedServices = []registry.ServiceID{
	registry.UserService,
	registry.OrderService,
	registry.PaymentService,
	registry.CredentialService,
}

var unauthenticatedRules = Rules{
	{
		Name:     "unauthenticated-access",
		Match:    statusIn(http.StatusOK),
		Severity: schema.SeverityHigh,
		Category: "Authorization Bypass",
		Describe: describe("Protected endpoint accessible without authentication"),
	},
}

// AuthorizationBypass requests protected collections without credentials.
type AuthorizationBypass struct{}

func (AuthorizationBypass) Name() string { return "authorization-bypass" }

func (AuthorizationBypass) Services(*registry.Registry) []registry.ServiceID {
	return protectedServices
}

func (p AuthorizationBypass) Run(ctx context.Context, env Env) (Outcome, error) {
	var out Outcome
	l := env.probeLogger(p)
	l.Info().Msg("Testing authorization bypass")

	for _, id := range protectedServices {
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
		if env.evaluate(&out, unauthenticatedRules, o) {
			continue
		}
		if o.Status != http.StatusUnauthorized && o.Status != http.StatusForbidden {
			l.Info().Int("status", o.Status).Str("url", u).Msg("Unexpected response")
		}
	}
	return out, nil
}
