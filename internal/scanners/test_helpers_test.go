package scanners

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/recorder"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/registry"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/transport"
)

func newTarget(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func newEnv(baseURL string) (Env, *recorder.Recorder) {
	rec := recorder.New().WithLogger(zerolog.Nop())
	return Env{
		BaseURL:  baseURL,
		Registry: registry.Default(),
		Client:   transport.NewClient(2 * time.Second),
		Recorder: rec,
		Logger:   zerolog.Nop(),
	}, rec
}

func decodeCredentials(t *testing.T, r *http.Request) credentials {
	t.Helper()
	var c credentials
	body, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(body, &c)
	return c
}

func bySeverity(findings []schema.Finding, sev schema.Severity) []schema.Finding {
	var out []schema.Finding
	for _, f := range findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

// stripTimes zeroes timestamps so finding sets can be compared.
func stripTimes(findings []schema.Finding) []schema.Finding {
	out := make([]schema.Finding, len(findings))
	for i, f := range findings {
		f.Timestamp = time.Time{}
		out[i] = f
	}
	return out
}
