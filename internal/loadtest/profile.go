// Package loadtest drives weighted virtual-user workloads against the user
// service and reports request statistics.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"
)

// DefaultHost is the user service address the profiles target.
const DefaultHost = "http://localhost:8700"

var ErrUnknownProfile = errors.New("loadtest: unknown profile")

// Step is one unit of user behaviour. Request outcomes are recorded by the
// session, so steps do not return errors.
type Step func(ctx context.Context, s *Session)

// Task is a step picked with probability Weight / sum(weights).
type Task struct {
	Name   string
	Weight int
	Run    Step
}

// Profile describes one kind of virtual user.
type Profile struct {
	Name    string
	Host    string
	WaitMin time.Duration
	WaitMax time.Duration
	// Setup runs once per user before its first task.
	Setup Step
	Tasks []Task
}

// Validate checks the profile can be scheduled.
func (p *Profile) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("profile %s: no host", p.Name)
	}
	if len(p.Tasks) == 0 {
		return fmt.Errorf("profile %s: no tasks", p.Name)
	}
	for _, t := range p.Tasks {
		if t.Weight <= 0 {
			return fmt.Errorf("profile %s: task %s has weight %d", p.Name, t.Name, t.Weight)
		}
		if t.Run == nil {
			return fmt.Errorf("profile %s: task %s has no step", p.Name, t.Name)
		}
	}
	if p.WaitMin < 0 || p.WaitMax < p.WaitMin {
		return fmt.Errorf("profile %s: bad wait range %s..%s", p.Name, p.WaitMin, p.WaitMax)
	}
	return nil
}

func (p *Profile) pick(r *rand.Rand) Task {
	total := 0
	for _, t := range p.Tasks {
		total += t.Weight
	}
	n := r.IntN(total)
	for _, t := range p.Tasks {
		if n < t.Weight {
			return t
		}
		n -= t.Weight
	}
	return p.Tasks[len(p.Tasks)-1]
}

func (p *Profile) waitTime(r *rand.Rand) time.Duration {
	return uniform(r, p.WaitMin, p.WaitMax)
}

var profiles = map[string]func() *Profile{
	"users":       usersProfile,
	"credentials": credentialsProfile,
	"addresses":   addressesProfile,
	"mixed":       mixedProfile,
	"database":    databaseProfile,
	"memory":      memoryProfile,
	"errors":      errorsProfile,
	"realistic":   realisticProfile,
}

// ProfileNames lists the built-in profiles in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupProfile returns a fresh copy of a built-in profile.
func LookupProfile(name string) (*Profile, error) {
	build, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return build(), nil
}
