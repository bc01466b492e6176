package loadtest

import (
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sample is one completed request.
type Sample struct {
	Task     string
	Name     string
	Method   string
	Status   int
	Duration time.Duration
	Bytes    int
	// Err is set when the request failed or its expectation did not hold.
	Err error
}

func (s Sample) Failed() bool { return s.Err != nil }

// Sink consumes samples. Implementations must be safe for concurrent use.
type Sink interface {
	Observe(Sample)
}

// Sinks fans a sample out to every member.
type Sinks []Sink

func (ss Sinks) Observe(s Sample) {
	for _, sink := range ss {
		sink.Observe(s)
	}
}

// EndpointStats aggregates one method and request name.
type EndpointStats struct {
	Method   string
	Name     string
	Requests int
	Failures int
	Average  time.Duration
}

// Summary is the end-of-run report.
type Summary struct {
	Requests  int
	Failures  int
	Average   time.Duration
	P95       time.Duration
	Endpoints []EndpointStats
}

type endpointKey struct{ method, name string }

type endpointAcc struct {
	requests, failures int
	total              time.Duration
}

// Stats collects request latencies for the whole run.
type Stats struct {
	mu        sync.Mutex
	durations []time.Duration
	failures  int
	endpoints map[endpointKey]*endpointAcc
}

func NewStats() *Stats {
	return &Stats{endpoints: make(map[endpointKey]*endpointAcc)}
}

func (st *Stats) Observe(s Sample) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.durations = append(st.durations, s.Duration)
	k := endpointKey{s.Method, s.Name}
	acc, ok := st.endpoints[k]
	if !ok {
		acc = &endpointAcc{}
		st.endpoints[k] = acc
	}
	acc.requests++
	acc.total += s.Duration
	if s.Failed() {
		st.failures++
		acc.failures++
	}
}

// Summary returns totals, mean and 95th percentile latency.
func (st *Stats) Summary() Summary {
	st.mu.Lock()
	defer st.mu.Unlock()

	sum := Summary{Requests: len(st.durations), Failures: st.failures}
	if sum.Requests > 0 {
		var total time.Duration
		for _, d := range st.durations {
			total += d
		}
		sum.Average = total / time.Duration(sum.Requests)
		sum.P95 = percentile(st.durations, 0.95)
	}

	for k, acc := range st.endpoints {
		sum.Endpoints = append(sum.Endpoints, EndpointStats{
			Method:   k.method,
			Name:     k.name,
			Requests: acc.requests,
			Failures: acc.failures,
			Average:  acc.total / time.Duration(acc.requests),
		})
	}
	sort.Slice(sum.Endpoints, func(i, j int) bool {
		a, b := sum.Endpoints[i], sum.Endpoints[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Method < b.Method
	})
	return sum
}

// percentile uses the nearest-rank method.
func percentile(ds []time.Duration, p float64) time.Duration {
	sorted := slices.Clone(ds)
	slices.Sort(sorted)
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return sorted[rank]
}

const (
	slowRequest   = 5 * time.Second
	largeResponse = 100 * 1024
)

// Listener logs failed, slow and large requests.
type Listener struct {
	logger zerolog.Logger
}

func NewListener(l zerolog.Logger) *Listener {
	return &Listener{logger: l}
}

func (l *Listener) Observe(s Sample) {
	if s.Failed() {
		l.logger.Error().Err(s.Err).Str("task", s.Task).Str("name", s.Name).Msg("Request failed")
	}
	if s.Duration > slowRequest {
		l.logger.Warn().Str("name", s.Name).Dur("took", s.Duration).Msg("Slow request detected")
	}
	if s.Bytes > largeResponse {
		l.logger.Info().Str("name", s.Name).Int("bytes", s.Bytes).Msg("Large response")
	}
}
