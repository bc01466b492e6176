package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/time/rate"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/transport"
)

// Session is the state owned by one virtual user. Steps receive it
// explicitly; nothing in it is shared with other users.
type Session struct {
	ID           string
	Token        string
	UserID       int
	UserIDs      []int
	CreatedUsers []int
	Username     string
	Templates    []UserPayload
	Rand         *rand.Rand
	// Fake draws from Rand, so a seeded run generates the same users.
	Fake *gofakeit.Faker

	host    string
	profile *Profile
	client  *transport.Client
	sink    Sink
	limiter *rate.Limiter
	task    string
	sleep   func(context.Context, time.Duration) bool
}

// Expectation decides whether a response counts as a success. A non-nil
// error marks the request failed with that message.
type Expectation func(*transport.Response) error

// Call is one request issued by a step.
type Call struct {
	Method string
	Path   string
	// Name groups requests in stats; defaults to Path.
	Name   string
	Query  url.Values
	Header http.Header
	JSON   any
	Body   []byte
	Expect Expectation
}

func (c Call) name() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Path
}

// Do sends c and records the outcome. The response is nil when the request
// never completed. ok reports whether the expectation held.
func (s *Session) Do(ctx context.Context, c Call) (resp *transport.Response, ok bool) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, false
		}
	}

	header := c.Header.Clone()
	if s.Token != "" {
		if header == nil {
			header = http.Header{}
		}
		header.Set("Authorization", "Bearer "+s.Token)
	}

	start := time.Now()
	res := s.client.Do(ctx, transport.Request{
		Method: c.Method,
		URL:    s.url(c.Path, c.Query),
		Header: header,
		JSON:   c.JSON,
		Body:   c.Body,
	})
	sample := Sample{
		Task:     s.task,
		Name:     c.name(),
		Method:   c.Method,
		Duration: time.Since(start),
	}
	if res.Kind != transport.OK {
		if ctx.Err() != nil {
			// The run ended mid-flight; not a failure of the target.
			return nil, false
		}
		sample.Err = res.Err
		s.sink.Observe(sample)
		return nil, false
	}

	resp = res.Response
	sample.Status = resp.Status
	sample.Bytes = len(resp.Body)
	expect := c.Expect
	if expect == nil {
		expect = expectOK
	}
	sample.Err = expect(resp)
	s.sink.Observe(sample)
	return resp, sample.Err == nil
}

func (s *Session) url(path string, q url.Values) string {
	u := strings.TrimRight(s.host, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// Wait sleeps for the profile's think time. It returns false once ctx is done.
func (s *Session) Wait(ctx context.Context) bool {
	return s.sleep(ctx, s.profile.waitTime(s.Rand))
}

// Pause sleeps for a uniform duration in [lo, hi].
func (s *Session) Pause(ctx context.Context, lo, hi time.Duration) bool {
	return s.sleep(ctx, uniform(s.Rand, lo, hi))
}

func (s *Session) forget(id int) {
	s.UserIDs = slices.DeleteFunc(s.UserIDs, func(v int) bool { return v == id })
}

func uniform(r *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.Int64N(int64(hi-lo)))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// expectOK fails on any 4xx or 5xx status.
func expectOK(r *transport.Response) error {
	if r.Status >= http.StatusBadRequest {
		return fmt.Errorf("HTTP %d", r.Status)
	}
	return nil
}

// expectStatus accepts only the listed codes.
func expectStatus(codes ...int) Expectation {
	return func(r *transport.Response) error {
		if slices.Contains(codes, r.Status) {
			return nil
		}
		return fmt.Errorf("unexpected status %d", r.Status)
	}
}

// expectData requires status and a JSON body whose "data" member holds keys.
func expectData(status int, keys ...string) Expectation {
	return func(r *transport.Response) error {
		if r.Status != status {
			return fmt.Errorf("unexpected status %d", r.Status)
		}
		var body map[string]json.RawMessage
		if err := json.Unmarshal(r.Body, &body); err != nil {
			return errors.New("invalid JSON response")
		}
		data, ok := body["data"]
		if !ok {
			return errors.New("response missing 'data' field")
		}
		if len(keys) == 0 {
			return nil
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return errors.New("response missing user data")
		}
		for _, k := range keys {
			if _, ok := fields[k]; !ok {
				return errors.New("response missing user data")
			}
		}
		return nil
	}
}

// userID extracts data.userId from a user service response.
func userID(r *transport.Response) (int, error) {
	var env struct {
		Data struct {
			UserID *int `json:"userId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return 0, fmt.Errorf("decode user: %w", err)
	}
	if env.Data.UserID == nil {
		return 0, errors.New("decode user: missing userId")
	}
	return *env.Data.UserID, nil
}
