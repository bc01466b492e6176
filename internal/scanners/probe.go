package scanners

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/recorder"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/registry"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/transport"
)

// Probe checks one vulnerability category against the target.
type Probe interface {
	Name() string
	// Services lists the registry entries the probe exercises.
	Services(reg *registry.Registry) []registry.ServiceID
	Run(ctx context.Context, env Env) (Outcome, error)
}

// Env is everything a probe may touch. Probes only append to Recorder.
type Env struct {
	BaseURL  string
	Registry *registry.Registry
	Client   *transport.Client
	Recorder *recorder.Recorder
	Logger   zerolog.Logger
}

// Outcome counts what a probe did.
type Outcome struct {
	Attempts int
	Skipped  int
	Findings int
}

// All returns every probe in the order a full run executes them.
func All() []Probe {
	return []Probe{
		SQLInjection{},
		XSS{},
		AuthBypass{},
		AuthorizationBypass{},
		CORS{},
		InfoDisclosure{},
		HTTPMethods{},
		SecurityHeaders{},
	}
}

func (e Env) probeLogger(p Probe) zerolog.Logger {
	return e.Logger.With().Str("probe", p.Name()).Logger()
}

// send performs one trial. Failed trials are logged at debug level, counted
// as skipped and reported with ok=false.
func (e Env) send(ctx context.Context, out *Outcome, l zerolog.Logger, req transport.Request) (transport.Result, bool) {
	out.Attempts++
	res := e.Client.Do(ctx, req)
	if res.Kind != transport.OK {
		e.skip(out, l, res, req)
		return res, false
	}
	return res, true
}

func (e Env) skip(out *Outcome, l zerolog.Logger, res transport.Result, req transport.Request) {
	out.Skipped++
	l.Debug().
		Err(res.Err).
		Str("kind", res.Kind.String()).
		Str("method", req.Method).
		Str("url", req.URL).
		Msg("Attempt skipped")
}

// evaluate records a finding when a rule matches o.
func (e Env) evaluate(out *Outcome, rules Rules, o Observation) bool {
	rule, ok := rules.Evaluate(o)
	if !ok {
		return false
	}
	e.Recorder.Record(rule.Finding(o))
	out.Findings++
	return true
}

func observe(id registry.ServiceID, method, url string, res transport.Result) Observation {
	return Observation{
		Service: id,
		Method:  method,
		URL:     url,
		Status:  res.Response.Status,
		Header:  res.Response.Header,
		Body:    res.Response.Body,
	}
}

func jsonRequest(method, url string, body any) transport.Request {
	return transport.Request{Method: method, URL: url, JSON: body}
}

func getRequest(url string) transport.Request {
	return transport.Request{Method: http.MethodGet, URL: url}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
