package scanners

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/registry"
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
)

func TestSQLInjectionAuthBypass(t *testing.T) {
	srv := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/app/api/authenticate" {
			if decodeCredentials(t, r).Username == "' OR '1'='1" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	env, rec := newEnv(srv.URL)

	out, err := SQLInjection{}.Run(context.Background(), env)
	require.NoError(t, err)

	findings := rec.All()
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, schema.SeverityHigh, f.Severity)
	assert.Equal(t, "SQL Injection", f.Category)
	assert.Equal(t, srv.URL+"/app/api/authenticate", f.Endpoint)
	p, ok := f.PayloadValue()
	require.True(t, ok)
	assert.Equal(t, "' OR '1'='1", p)

	assert.Equal(t, len(sqlPayloads)+11*sqlQueryPayloads, out.Attempts)
	assert.Equal(t, 1, out.Findings)
}

func TestSQLInjectionErrorDisclosure(t *testing.T) {
	srv := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/app/api/authenticate":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("java.sql.SQLSyntaxErrorException near 'OR'"))
		case r.URL.Path == "/product-service/api/products" && r.URL.Query().Get("id") != "":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("PostgreSQL ERROR: unterminated quoted string"))
		case r.URL.Path == "/order-service/api/orders":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("NullPointerException"))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	env, rec := newEnv(srv.URL)

	_, err := SQLInjection{}.Run(context.Background(), env)
	require.NoError(t, err)

	findings := rec.All()
	require.Len(t, findings, len(sqlPayloads)+sqlQueryPayloads)
	for _, f := range findings {
		assert.Equal(t, schema.SeverityMedium, f.Severity)
	}
	assert.Equal(t, "SQL error disclosed in response", findings[0].Description)

	last := findings[len(findings)-1]
	assert.Equal(t, "SQL error disclosed in product_service", last.Description)
	assert.True(t, strings.HasPrefix(last.Endpoint, srv.URL+"/product-service/api/products?id="))
}

func TestXSSReflected(t *testing.T) {
	srv := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var form map[string]string
		_ = json.Unmarshal(body, &form)
		switch r.URL.Path {
		case "/user-service/api/users":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprintf(w, "<p>Hello %s</p>", form["lastName"])
		case "/product-service/api/products":
			// Reflected but not HTML.
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)
		case "/user-service/api/address":
			// HTML but entity-encoded.
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(html.EscapeString(form["fullAddress"])))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	env, rec := newEnv(srv.URL)

	out, err := XSS{}.Run(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, 5*xssActivePayloads, out.Attempts)

	findings := rec.All()
	require.Len(t, findings, xssActivePayloads)
	for i, f := range findings {
		assert.Equal(t, schema.SeverityHigh, f.Severity)
		assert.Equal(t, "Reflected XSS in lastName", f.Description)
		p, _ := f.PayloadValue()
		assert.Equal(t, xssPayloads[i], p)
	}
}

func TestAuthBypassWeakCredentials(t *testing.T) {
	srv := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		c := decodeCredentials(t, r)
		switch {
		case c.Username == "admin" && c.Password == "admin":
			_, _ = w.Write([]byte(`{"jwtToken":"eyJ..."}`))
		case c.Username == "guest":
			_, _ = w.Write([]byte(`{"token":"abc"}`))
		case c.Username == "root":
			_, _ = w.Write([]byte(`<html>login page</html>`))
		case c.Username == "test":
			_, _ = w.Write([]byte(`{"message":"welcome"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	env, rec := newEnv(srv.URL)

	out, err := AuthBypass{}.Run(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, len(weakCredentials), out.Attempts)
	assert.Equal(t, 1, out.Skipped)

	findings := rec.All()
	require.Len(t, findings, 2)
	assert.Equal(t, "Weak credentials accepted: admin:admin", findings[0].Description)
	assert.Equal(t, "Weak Authentication", findings[0].Category)
	p, _ := findings[1].PayloadValue()
	assert.Equal(t, "guest:guest", p)
}

func TestAuthorizationBypass(t *testing.T) {
	srv := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/order-service/api/orders":
			w.WriteHeader(http.StatusOK)
		case "/payment-service/api/payments":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	env, rec := newEnv(srv.URL)

	_, err := AuthorizationBypass{}.Run(context.Background(), env)
	require.NoError(t, err)

	findings := rec.All()
	require.Len(t, findings, 1)
	assert.Equal(t, srv.URL+"/order-service/api/orders", findings[0].Endpoint)
	assert.Equal(t, "Authorization Bypass", findings[0].Category)
	_, hasPayload := findings[0].PayloadValue()
	assert.False(t, hasPayload)
}

func TestCORSCrossProduct(t *testing.T) {
	srv := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodOptions, r.Method)
		switch r.URL.Path {
		case "/product-service/api/products":
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case "/user-service/api/users":
			w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
		case "/app/api/authenticate":
			t.Errorf("auth endpoint must not be probed")
		}
		w.WriteHeader(http.StatusOK)
	})
	env, rec := newEnv(srv.URL)

	out, err := CORS{}.Run(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, 11*len(disallowedOrigins), out.Attempts)

	findings := rec.All()
	require.Len(t, findings, 2*len(disallowedOrigins))
	for _, f := range findings[:len(disallowedOrigins)] {
		assert.Equal(t, "CORS allows all origins (*) for product_service", f.Description)
		_, ok := f.PayloadValue()
		assert.False(t, ok)
	}
	for i, f := range findings[len(disallowedOrigins):] {
		p, ok := f.PayloadValue()
		require.True(t, ok)
		assert.Equal(t, disallowedOrigins[i], p)
		assert.Equal(t, schema.SeverityMedium, f.Severity)
	}
}

func TestInfoDisclosureIdempotent(t *testing.T) {
	srv := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/actuator/env":
			_, _ = w.Write([]byte(`{"spring.datasource.PASSWORD":"******"}`))
		case "/.env":
			_, _ = w.Write([]byte("DB_SECRET=hunter2"))
		case "/actuator/health":
			_, _ = w.Write([]byte(`{"status":"UP"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	run := func() []schema.Finding {
		env, rec := newEnv(srv.URL + "/some/base")
		_, err := InfoDisclosure{}.Run(context.Background(), env)
		require.NoError(t, err)
		return rec.All()
	}

	first := run()
	require.Len(t, first, 2)
	assert.Equal(t, srv.URL+"/actuator/env", first[0].Endpoint)
	assert.Equal(t, "Sensitive information exposed at /.env", first[1].Description)
	assert.Equal(t, stripTimes(first), stripTimes(run()))
}

func TestHTTPMethods(t *testing.T) {
	srv := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "TRACE" && r.URL.Path == "/product-service/api/products" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
	env, rec := newEnv(srv.URL)

	out, err := HTTPMethods{}.Run(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, 12*len(dangerousMethods), out.Attempts)

	findings := rec.All()
	require.Len(t, findings, 1)
	assert.Equal(t, schema.SeverityHigh, findings[0].Severity)
	p, _ := findings[0].PayloadValue()
	assert.Equal(t, "TRACE", p)
}

func TestHTTPMethodsSeverity(t *testing.T) {
	tests := []struct {
		method string
		status int
		want   []schema.Severity
	}{
		{http.MethodDelete, http.StatusMethodNotAllowed, nil},
		{http.MethodDelete, http.StatusNotFound, nil},
		{http.MethodPut, http.StatusNotImplemented, nil},
		{"TRACE", http.StatusOK, []schema.Severity{schema.SeverityHigh}},
		{"TRACK", http.StatusBadRequest, []schema.Severity{schema.SeverityHigh}},
		{http.MethodPatch, http.StatusForbidden, []schema.Severity{schema.SeverityMedium}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%d", tt.method, tt.status), func(t *testing.T) {
			o := Observation{Service: registry.CartService, Method: tt.method, Status: tt.status, Payload: tt.method}
			rule, ok := methodRules.Evaluate(o)
			if tt.want == nil {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want[0], rule.Severity)
		})
	}
}

func TestSecurityHeadersAllMissing(t *testing.T) {
	srv := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	env, rec := newEnv(srv.URL)

	_, err := SecurityHeaders{}.Run(context.Background(), env)
	require.NoError(t, err)

	findings := rec.All()
	require.Len(t, findings, 12*len(requiredHeaders))
	perEndpoint := map[string]int{}
	for _, f := range findings {
		assert.Equal(t, schema.SeverityLow, f.Severity)
		assert.Equal(t, "Missing Security Header", f.Category)
		perEndpoint[f.Endpoint]++
	}
	for endpoint, n := range perEndpoint {
		assert.Equal(t, len(requiredHeaders), n, endpoint)
	}
}

func TestSecurityHeadersWeakValues(t *testing.T) {
	srv := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "ALLOW-FROM https://example.com")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Referrer-Policy", "no-referrer")
	})
	env, rec := newEnv(srv.URL)

	_, err := SecurityHeaders{}.Run(context.Background(), env)
	require.NoError(t, err)

	findings := rec.All()
	require.Len(t, findings, 12)
	for _, f := range findings {
		assert.Equal(t, "Weak Security Header", f.Category)
		p, _ := f.PayloadValue()
		assert.Equal(t, "ALLOW-FROM https://example.com", p)
	}
}

func TestSecurityHeadersExactValuesOnlyNeedPresence(t *testing.T) {
	srv := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "sniff-away")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "0")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Referrer-Policy", "no-referrer")
	})
	env, rec := newEnv(srv.URL)

	_, err := SecurityHeaders{}.Run(context.Background(), env)
	require.NoError(t, err)
	assert.Zero(t, rec.Len())
}

func TestProbesSurviveUnreachableTarget(t *testing.T) {
	srv := newTarget(t, http.NotFound)
	base := srv.URL
	srv.Close()

	for _, p := range All() {
		t.Run(p.Name(), func(t *testing.T) {
			env, rec := newEnv(base)
			out, err := p.Run(context.Background(), env)
			require.NoError(t, err)
			assert.Zero(t, rec.Len())
			assert.Equal(t, out.Attempts, out.Skipped)
			assert.Positive(t, out.Attempts)
		})
	}
}

func TestProbeStopsOnCancelledContext(t *testing.T) {
	srv := newTarget(t, http.NotFound)
	env, _ := newEnv(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := HTTPMethods{}.Run(ctx, env)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAllProbesHaveUniqueNames(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range All() {
		assert.False(t, seen[p.Name()], p.Name())
		seen[p.Name()] = true
	}
	assert.Len(t, seen, 8)
}
