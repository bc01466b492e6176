package scanners

import (
	"context"
	"fmt"
	"net/http"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/registry"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/transport"
)

var dangerousMethods = []string{"TRACE", "TRACK", http.MethodDelete, http.MethodPut, http.MethodPatch}

// Statuses that mean the method is refused.
var refusedStatuses = []int{http.StatusMethodNotAllowed, http.StatusNotImplemented, http.StatusNotFound}

func describeMethod(o Observation) string {
	return fmt.Sprintf("Dangerous HTTP method %s allowed on %s", o.Method, o.Service)
}

var methodRules = Rules{
	{
		Name:     "trace-enabled",
		Match:    all(methodIn("TRACE", "TRACK"), statusNotIn(refusedStatuses...)),
		Severity: schema.SeverityHigh,
		Category: "HTTP Method",
		Describe: describeMethod,
	},
	{
		Name:     "write-method-enabled",
		Match:    statusNotIn(refusedStatuses...),
		Severity: schema.SeverityMedium,
		Category: "HTTP Method",
		Describe: describeMethod,
	},
}

// HTTPMethods checks whether each service accepts tracing or write methods
// on its collection path.
type HTTPMethods struct{}

func (HTTPMethods) Name() string { return "http-methods" }

func (HTTPMethods) Services(reg *registry.Registry) []registry.ServiceID {
	return reg.Services()
}

func (p HTTPMethods) Run(ctx context.Context, env Env) (Outcome, error) {
	var out Outcome
	l := env.probeLogger(p)
	l.Info().Msg("Testing dangerous HTTP methods")

	for _, id := range env.Registry.Services() {
		u, err := env.Registry.URL(env.BaseURL, id)
		if err != nil {
			return out, err
		}
		for _, method := range dangerousMethods {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			res, ok := env.send(ctx, &out, l, transport.Request{Method: method, URL: u})
			if !ok {
				continue
			}
			o := observe(id, method, u, res)
			o.Payload = method
			env.evaluate(&out, methodRules, o)
		}
	}
	return out, nil
}
