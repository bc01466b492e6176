package loadtest

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

var searchTerms = []string{
	"john", "jane", "admin", "user", "test",
	"smith", "doe", "johnson", "brown", "davis",
}

const maxPhoneLen = 15

const roleUser = "ROLE_USER"

// CredentialPayload is the credentialDto body accepted by the user service.
type CredentialPayload struct {
	Username                string `json:"username"`
	Password                string `json:"password"`
	RoleBasedAuthority      string `json:"roleBasedAuthority"`
	IsEnabled               bool   `json:"isEnabled"`
	IsAccountNonExpired     bool   `json:"isAccountNonExpired"`
	IsAccountNonLocked      bool   `json:"isAccountNonLocked"`
	IsCredentialsNonExpired bool   `json:"isCredentialsNonExpired"`
}

// UserPayload is the user body for create and update calls.
type UserPayload struct {
	UserID     *int               `json:"userId,omitempty"`
	FirstName  string             `json:"firstName"`
	LastName   string             `json:"lastName"`
	Email      string             `json:"email"`
	Phone      string             `json:"phone"`
	Credential *CredentialPayload `json:"credentialDto,omitempty"`
}

// clone returns a copy that shares nothing with u.
func (u UserPayload) clone() UserPayload {
	if u.Credential != nil {
		c := *u.Credential
		u.Credential = &c
	}
	if u.UserID != nil {
		id := *u.UserID
		u.UserID = &id
	}
	return u
}

func pick[T any](r *rand.Rand, xs []T) T {
	return xs[r.IntN(len(xs))]
}

// between returns a uniform int in [lo, hi].
func between(r *rand.Rand, lo, hi int) int {
	return lo + r.IntN(hi-lo+1)
}

// person returns a fake profile with no credentials attached. The email
// carries a uuid fragment so repeated runs do not collide.
func person(f *gofakeit.Faker) UserPayload {
	local, domain, _ := strings.Cut(f.Email(), "@")
	return UserPayload{
		FirstName: f.FirstName(),
		LastName:  f.LastName(),
		Email:     fmt.Sprintf("%s.%s@%s", local, uuid.NewString()[:8], domain),
		Phone:     truncate(f.Phone(), maxPhoneLen),
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// newUser returns a fake enabled user with the given login.
func newUser(f *gofakeit.Faker, username, password string) UserPayload {
	u := person(f)
	u.Credential = &CredentialPayload{
		Username:                username,
		Password:                password,
		RoleBasedAuthority:      roleUser,
		IsEnabled:               true,
		IsAccountNonExpired:     true,
		IsAccountNonLocked:      true,
		IsCredentialsNonExpired: true,
	}
	return u
}

// largeUser inflates every field to exercise request body handling.
func largeUser(r *rand.Rand) UserPayload {
	return UserPayload{
		FirstName: strings.Repeat("A", 100),
		LastName:  strings.Repeat("B", 100),
		Email:     strings.Repeat("test", 20) + "@example.com",
		Phone:     strings.Repeat("1234567890", 5),
		Credential: &CredentialPayload{
			Username:                fmt.Sprintf("large_payload_user_%d", between(r, 100000, 999999)),
			Password:                strings.Repeat("password123", 10),
			RoleBasedAuthority:      roleUser,
			IsEnabled:               true,
			IsAccountNonExpired:     true,
			IsAccountNonLocked:      true,
			IsCredentialsNonExpired: true,
		},
	}
}

// Bodies the user service must reject with 400.
var (
	invalidUsers = []map[string]any{
		{"firstName": "Test", "lastName": "User", "email": "invalid-email", "phone": "123456789"},
		{"firstName": "", "lastName": "", "email": "", "phone": ""},
		{
			"firstName": "Test", "lastName": "User", "email": "test@example.com", "phone": "123456789",
			"credentialDto": map[string]any{"username": "", "password": "", "roleBasedAuthority": "INVALID_ROLE"},
		},
	}
	malformedBodies = []string{
		`{"firstName": "Test", "lastName":}`,
		`{"firstName": 123, "lastName": true}`,
		`{"wrong": "structure"}`,
	}
)
