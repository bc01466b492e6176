package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/transport"
)

const (
	usersPath       = "/user-service/api/users"
	credentialsPath = "/user-service/api/credentials"
	addressPath     = "/user-service/api/address"
)

func userPath(id int) string { return usersPath + "/" + strconv.Itoa(id) }

func usersProfile() *Profile {
	return &Profile{
		Name:    "users",
		Host:    DefaultHost,
		WaitMin: time.Second,
		WaitMax: 3 * time.Second,
		Setup:   seedTemplates,
		Tasks: []Task{
			{Name: "get_all_users", Weight: 3, Run: getAllUsers},
			{Name: "create_user", Weight: 2, Run: createUser},
			{Name: "get_user_by_id", Weight: 2, Run: getUserByID},
			{Name: "update_user", Weight: 1, Run: updateUser},
			{Name: "get_user_by_username", Weight: 1, Run: getUserByUsername},
		},
	}
}

func seedTemplates(_ context.Context, s *Session) {
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("test_user_%d_%d", between(s.Rand, 1000, 9999), i)
		s.Templates = append(s.Templates, newUser(s.Fake, name, "test123"))
	}
}

func getAllUsers(ctx context.Context, s *Session) {
	s.Do(ctx, Call{Method: http.MethodGet, Path: usersPath, Expect: expectData(http.StatusOK)})
}

func createUser(ctx context.Context, s *Session) {
	if len(s.Templates) == 0 {
		return
	}
	u := pick(s.Rand, s.Templates).clone()
	u.Credential.Username = fmt.Sprintf("user_%d", between(s.Rand, 10000, 99999))

	resp, ok := s.Do(ctx, Call{
		Method: http.MethodPost,
		Path:   usersPath,
		JSON:   u,
		Expect: expectData(http.StatusCreated, "userId"),
	})
	if !ok {
		return
	}
	if id, err := userID(resp); err == nil {
		s.UserIDs = append(s.UserIDs, id)
	}
}

func getUserByID(ctx context.Context, s *Session) {
	if len(s.UserIDs) == 0 {
		createUser(ctx, s)
		if len(s.UserIDs) == 0 {
			return
		}
	}
	id := pick(s.Rand, s.UserIDs)
	found := expectData(http.StatusOK)
	s.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   userPath(id),
		Name:   usersPath + "/[id]",
		Expect: func(r *transport.Response) error {
			if r.Status == http.StatusNotFound {
				s.forget(id)
				return errors.New("user not found")
			}
			return found(r)
		},
	})
}

func updateUser(ctx context.Context, s *Session) {
	if len(s.UserIDs) == 0 {
		return
	}
	id := pick(s.Rand, s.UserIDs)
	u := person(s.Fake)
	u.UserID = &id
	s.Do(ctx, Call{Method: http.MethodPut, Path: usersPath, JSON: u, Expect: expectStatus(http.StatusOK)})
}

func getUserByUsername(ctx context.Context, s *Session) {
	if len(s.Templates) == 0 {
		return
	}
	name := fmt.Sprintf("test_user_%d", between(s.Rand, 1000, 9999))
	s.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   usersPath + "/username/" + name,
		Name:   usersPath + "/username/[username]",
		// Most generated names do not exist.
		Expect: expectStatus(http.StatusOK, http.StatusNotFound),
	})
}

func credentialsProfile() *Profile {
	return &Profile{
		Name:    "credentials",
		Host:    DefaultHost,
		WaitMin: time.Second,
		WaitMax: 2 * time.Second,
		Tasks: []Task{
			{Name: "get_all_credentials", Weight: 2, Run: getAllCredentials},
			{Name: "get_credential_by_username", Weight: 1, Run: getCredentialByUsername},
		},
	}
}

func getAllCredentials(ctx context.Context, s *Session) {
	s.Do(ctx, Call{Method: http.MethodGet, Path: credentialsPath, Expect: expectStatus(http.StatusOK)})
}

func getCredentialByUsername(ctx context.Context, s *Session) {
	name := fmt.Sprintf("test_user_%d", between(s.Rand, 1, 100))
	s.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   credentialsPath + "/username/" + name,
		Name:   credentialsPath + "/username/[username]",
		Expect: expectStatus(http.StatusOK, http.StatusNotFound),
	})
}

func addressesProfile() *Profile {
	return &Profile{
		Name:    "addresses",
		Host:    DefaultHost,
		WaitMin: time.Second,
		WaitMax: 2 * time.Second,
		Tasks: []Task{
			{Name: "get_all_addresses", Weight: 3, Run: getAllAddresses},
		},
	}
}

func getAllAddresses(ctx context.Context, s *Session) {
	s.Do(ctx, Call{Method: http.MethodGet, Path: addressPath, Expect: expectStatus(http.StatusOK)})
}

func mixedProfile() *Profile {
	return &Profile{
		Name:    "mixed",
		Host:    DefaultHost,
		WaitMin: 500 * time.Millisecond,
		WaitMax: 2 * time.Second,
		Setup: func(_ context.Context, s *Session) {
			s.Username = fmt.Sprintf("mixed_user_%d", between(s.Rand, 10000, 99999))
			s.Templates = []UserPayload{newUser(s.Fake, s.Username, "test123")}
		},
		Tasks: []Task{
			{Name: "browse_users", Weight: 5, Run: browseUsers},
			{Name: "user_registration_flow", Weight: 2, Run: registrationFlow},
			{Name: "admin_operations", Weight: 1, Run: adminOperations},
		},
	}
}

func browseUsers(ctx context.Context, s *Session) {
	s.Do(ctx, Call{Method: http.MethodGet, Path: usersPath})
	if !s.Wait(ctx) {
		return
	}
	s.Do(ctx, Call{Method: http.MethodGet, Path: userPath(between(s.Rand, 1, 10)), Name: usersPath + "/[id]"})
}

func registrationFlow(ctx context.Context, s *Session) {
	s.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   credentialsPath + "/username/" + s.Username,
		Name:   credentialsPath + "/username/[username]",
	})
	if len(s.Templates) > 0 {
		s.Do(ctx, Call{Method: http.MethodPost, Path: usersPath, JSON: s.Templates[0]})
	}
}

func adminOperations(ctx context.Context, s *Session) {
	s.Do(ctx, Call{Method: http.MethodGet, Path: credentialsPath})
	s.Do(ctx, Call{Method: http.MethodGet, Path: addressPath})
}
