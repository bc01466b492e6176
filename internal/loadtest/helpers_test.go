package loadtest

import (
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/transport"
)

// userService is an in-memory stand-in for the user service.
type userService struct {
	mu     sync.Mutex
	nextID int
	users  map[int]map[string]any
	hits   map[string]int
}

func newUserService(t *testing.T) (*userService, *httptest.Server) {
	t.Helper()
	us := &userService{nextID: 1, users: map[int]map[string]any{}, hits: map[string]int{}}
	srv := httptest.NewServer(us)
	t.Cleanup(srv.Close)
	return us, srv
}

func (us *userService) count(method, path string) int {
	us.mu.Lock()
	defer us.mu.Unlock()
	return us.hits[method+" "+path]
}

func (us *userService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	us.mu.Lock()
	defer us.mu.Unlock()
	us.hits[r.Method+" "+r.URL.Path]++

	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	rest, isUsers := strings.CutPrefix(r.URL.Path, usersPath)
	switch {
	case isUsers && rest == "" && r.Method == http.MethodGet:
		list := make([]map[string]any, 0, len(us.users))
		for _, u := range us.users {
			list = append(list, u)
		}
		reply(http.StatusOK, map[string]any{"data": list})
	case isUsers && rest == "" && r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		var u map[string]any
		if json.Unmarshal(body, &u) != nil {
			reply(http.StatusBadRequest, map[string]any{"error": "malformed"})
			return
		}
		cred, _ := u["credentialDto"].(map[string]any)
		if name, _ := cred["username"].(string); name == "" {
			reply(http.StatusBadRequest, map[string]any{"error": "invalid"})
			return
		}
		id := us.nextID
		us.nextID++
		u["userId"] = id
		us.users[id] = u
		reply(http.StatusCreated, map[string]any{"data": u})
	case isUsers && rest == "" && r.Method == http.MethodPut:
		reply(http.StatusOK, map[string]any{"data": map[string]any{}})
	case isUsers && strings.HasPrefix(rest, "/username/"):
		reply(http.StatusNotFound, map[string]any{"error": "not found"})
	case isUsers:
		id, err := strconv.Atoi(strings.TrimPrefix(rest, "/"))
		u, ok := us.users[id]
		if err != nil || !ok {
			reply(http.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		if r.Method == http.MethodDelete {
			delete(us.users, id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		reply(http.StatusOK, map[string]any{"data": u})
	case r.URL.Path == credentialsPath, r.URL.Path == addressPath:
		reply(http.StatusOK, map[string]any{"data": []any{}})
	default:
		reply(http.StatusNotFound, map[string]any{"error": "not found"})
	}
}

// recordingSink keeps every sample.
type recordingSink struct {
	mu      sync.Mutex
	samples []Sample
}

func (r *recordingSink) Observe(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func (r *recordingSink) failures() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sample
	for _, s := range r.samples {
		if s.Failed() {
			out = append(out, s)
		}
	}
	return out
}

// newTestSession returns a session whose pauses return immediately.
func newTestSession(host string, p *Profile, sink Sink) *Session {
	rng := rand.New(rand.NewPCG(1, 2))
	return &Session{
		ID:      "test",
		Rand:    rng,
		Fake:    gofakeit.NewFaker(rng, false),
		host:    host,
		profile: p,
		client:  transport.NewClient(time.Second),
		sink:    sink,
		sleep:   func(ctx context.Context, _ time.Duration) bool { return ctx.Err() == nil },
	}
}
