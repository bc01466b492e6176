package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/transport"
)

// databaseProfile issues query-heavy reads and concurrent inserts.
func databaseProfile() *Profile {
	return &Profile{
		Name:    "database",
		Host:    DefaultHost,
		WaitMin: 500 * time.Millisecond,
		WaitMax: 2 * time.Second,
		Tasks: []Task{
			{Name: "search_users_by_name", Weight: 4, Run: searchUsers},
			{Name: "paginated_user_listing", Weight: 3, Run: paginateUsers},
			{Name: "concurrent_user_creation", Weight: 2, Run: concurrentCreate},
		},
	}
}

func searchUsers(ctx context.Context, s *Session) {
	s.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   usersPath,
		Query:  url.Values{"search": {pick(s.Rand, searchTerms)}},
		Expect: expectStatus(http.StatusOK, http.StatusNotFound),
	})
}

func paginateUsers(ctx context.Context, s *Session) {
	s.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   usersPath,
		Query: url.Values{
			"page": {strconv.Itoa(between(s.Rand, 0, 10))},
			"size": {strconv.Itoa(pick(s.Rand, []int{10, 20, 50}))},
		},
		Expect: expectStatus(http.StatusOK),
	})
}

func concurrentCreate(ctx context.Context, s *Session) {
	u := newUser(s.Fake, fmt.Sprintf("concurrent_user_%d", between(s.Rand, 100000, 999999)), "password123")
	var id int
	s.Do(ctx, Call{
		Method: http.MethodPost,
		Path:   usersPath,
		JSON:   u,
		Expect: func(r *transport.Response) error {
			if r.Status != http.StatusCreated {
				return fmt.Errorf("creation failed: %d", r.Status)
			}
			var err error
			if id, err = userID(r); err != nil {
				return errors.New("invalid response format")
			}
			return nil
		},
	})
	if id != 0 {
		s.CreatedUsers = append(s.CreatedUsers, id)
	}
}

// memoryProfile churns short-lived users and oversized bodies.
func memoryProfile() *Profile {
	return &Profile{
		Name:    "memory",
		Host:    DefaultHost,
		WaitMin: 100 * time.Millisecond,
		WaitMax: 500 * time.Millisecond,
		Tasks: []Task{
			{Name: "rapid_user_creation_and_deletion", Weight: 5, Run: createAndDelete},
			{Name: "large_payload_requests", Weight: 3, Run: largePayload},
		},
	}
}

func createAndDelete(ctx context.Context, s *Session) {
	u := newUser(s.Fake, fmt.Sprintf("leak_test_%d", between(s.Rand, 1000000, 9999999)), "test123")
	resp, _ := s.Do(ctx, Call{Method: http.MethodPost, Path: usersPath, JSON: u})
	if resp == nil || resp.Status != http.StatusCreated {
		return
	}
	id, err := userID(resp)
	if err != nil {
		return
	}
	s.Do(ctx, Call{Method: http.MethodDelete, Path: userPath(id), Name: usersPath + "/[id]"})
}

func largePayload(ctx context.Context, s *Session) {
	s.Do(ctx, Call{Method: http.MethodPost, Path: usersPath, JSON: largeUser(s.Rand)})
}

// errorsProfile sends requests the service must reject.
func errorsProfile() *Profile {
	return &Profile{
		Name:    "errors",
		Host:    DefaultHost,
		WaitMin: 200 * time.Millisecond,
		WaitMax: time.Second,
		Tasks: []Task{
			{Name: "invalid_user_requests", Weight: 3, Run: invalidUser},
			{Name: "nonexistent_resource_requests", Weight: 2, Run: nonexistentResource},
			{Name: "malformed_requests", Weight: 1, Run: malformedRequest},
		},
	}
}

func invalidUser(ctx context.Context, s *Session) {
	s.Do(ctx, Call{
		Method: http.MethodPost,
		Path:   usersPath,
		JSON:   pick(s.Rand, invalidUsers),
		Expect: expectStatus(http.StatusBadRequest),
	})
}

func nonexistentResource(ctx context.Context, s *Session) {
	missing := func() string { return strconv.Itoa(between(s.Rand, 99999, 999999)) }
	scenarios := []struct{ method, path, name string }{
		{http.MethodGet, usersPath + "/" + missing(), usersPath + "/[id]"},
		{http.MethodPut, usersPath + "/" + missing(), usersPath + "/[id]"},
		{http.MethodDelete, usersPath + "/" + missing(), usersPath + "/[id]"},
		{http.MethodGet, credentialsPath + "/" + missing(), credentialsPath + "/[id]"},
		{http.MethodGet, addressPath + "/" + missing(), addressPath + "/[id]"},
	}
	sc := pick(s.Rand, scenarios)
	s.Do(ctx, Call{Method: sc.method, Path: sc.path, Name: sc.name, Expect: expectStatus(http.StatusNotFound)})
}

func malformedRequest(ctx context.Context, s *Session) {
	s.Do(ctx, Call{
		Method: http.MethodPost,
		Path:   usersPath,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(pick(s.Rand, malformedBodies)),
		Expect: expectStatus(http.StatusBadRequest),
	})
}

// realisticProfile follows a human paced registration and browsing flow.
func realisticProfile() *Profile {
	return &Profile{
		Name:    "realistic",
		Host:    DefaultHost,
		WaitMin: 2 * time.Second,
		WaitMax: 5 * time.Second,
		Setup: func(_ context.Context, s *Session) {
			s.Username = fmt.Sprintf("business_user_%d", between(s.Rand, 1000, 9999))
		},
		Tasks: []Task{
			{Name: "complete_user_registration_flow", Weight: 10, Run: completeRegistration},
			{Name: "user_profile_management", Weight: 5, Run: manageProfile},
			{Name: "admin_user_browsing", Weight: 3, Run: adminBrowsing},
		},
	}
}

func completeRegistration(ctx context.Context, s *Session) {
	name := fmt.Sprintf("new_user_%d", between(s.Rand, 10000, 99999))
	s.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   credentialsPath + "/username/" + name,
		Name:   credentialsPath + "/username/[username]",
	})
	if !s.Pause(ctx, time.Second, 3*time.Second) {
		return
	}

	resp, _ := s.Do(ctx, Call{Method: http.MethodPost, Path: usersPath, JSON: newUser(s.Fake, name, "securepassword123")})
	if resp != nil && resp.Status == http.StatusCreated {
		if id, err := userID(resp); err == nil {
			s.UserID = id
		}
	}
	if !s.Pause(ctx, time.Second, 2*time.Second) {
		return
	}

	if s.UserID != 0 {
		s.Do(ctx, Call{Method: http.MethodGet, Path: userPath(s.UserID), Name: usersPath + "/[id]"})
	}
}

func manageProfile(ctx context.Context, s *Session) {
	if s.UserID == 0 {
		return
	}
	s.Do(ctx, Call{Method: http.MethodGet, Path: userPath(s.UserID), Name: usersPath + "/[id]"})
	if !s.Pause(ctx, 2*time.Second, 4*time.Second) {
		return
	}
	if s.Rand.Float64() < 0.3 {
		u := person(s.Fake)
		id := s.UserID
		u.UserID = &id
		s.Do(ctx, Call{Method: http.MethodPut, Path: usersPath, JSON: u})
	}
}

func adminBrowsing(ctx context.Context, s *Session) {
	s.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   usersPath,
		Query:  url.Values{"page": {strconv.Itoa(between(s.Rand, 0, 5))}, "size": {"20"}},
	})
	if !s.Pause(ctx, 3*time.Second, 6*time.Second) {
		return
	}
	for n := between(s.Rand, 1, 3); n > 0; n-- {
		s.Do(ctx, Call{Method: http.MethodGet, Path: userPath(between(s.Rand, 1, 50)), Name: usersPath + "/[id]"})
		if !s.Pause(ctx, time.Second, 2*time.Second) {
			return
		}
	}
	if s.Rand.Float64() < 0.4 {
		s.Do(ctx, Call{Method: http.MethodGet, Path: credentialsPath})
	}
}
