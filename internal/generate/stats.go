package generate

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"
)

// Outcome classifies a single generation attempt.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeEmpty     Outcome = "empty"     // provider answered with blank text
	OutcomeRetryable Outcome = "retryable" // 429/5xx, retried unless attempts ran out
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
)

// OutcomeOf maps the result of one provider call to its Outcome.
func OutcomeOf(text string, err error) Outcome {
	switch {
	case err == nil && strings.TrimSpace(text) == "":
		return OutcomeEmpty
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case IsRetryable(err):
		return OutcomeRetryable
	default:
		return OutcomeFailed
	}
}

type attempt struct {
	at         time.Time
	model      string
	durationMs int64
	outcome    Outcome
}

// LatencySummary aggregates attempt durations.
type LatencySummary struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// StatsSnapshot is a point-in-time view of recent generation attempts:
// overall latency, latency per model and counts per outcome.
type StatsSnapshot struct {
	LatencySummary
	Models   map[string]LatencySummary `json:"models"`
	Outcomes map[Outcome]int           `json:"outcomes"`
}

// LLMStats keeps generation attempts seen within a rolling window.
type LLMStats struct {
	mu       sync.Mutex
	attempts []attempt
	maxAge   time.Duration
	now      func() time.Time
}

func NewLLMStats(maxAge time.Duration) *LLMStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &LLMStats{
		attempts: make([]attempt, 0, 256),
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Record adds one attempt against model. Negative durations count as 0.
func (s *LLMStats) Record(model string, d time.Duration, outcome Outcome) {
	ms := max(d.Milliseconds(), 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.attempts = append(s.attempts, attempt{at: now, model: model, durationMs: ms, outcome: outcome})
}

func (s *LLMStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	snap := StatsSnapshot{
		Models:   map[string]LatencySummary{},
		Outcomes: map[Outcome]int{},
	}
	all := make([]int64, 0, len(s.attempts))
	byModel := map[string][]int64{}
	for _, a := range s.attempts {
		all = append(all, a.durationMs)
		byModel[a.model] = append(byModel[a.model], a.durationMs)
		snap.Outcomes[a.outcome]++
	}
	snap.LatencySummary = summarize(all)
	for model, values := range byModel {
		snap.Models[model] = summarize(values)
	}
	return snap
}

func (s *LLMStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	s.attempts = slices.DeleteFunc(s.attempts, func(a attempt) bool {
		return a.at.Before(cutoff)
	})
}

func summarize(values []int64) LatencySummary {
	if len(values) == 0 {
		return LatencySummary{}
	}
	slices.Sort(values)
	var sum int64
	for _, v := range values {
		sum += v
	}
	return LatencySummary{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

// percentile interpolates linearly between the two nearest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	rank := float64(len(sorted)-1) * pct / 100
	lo := int(rank)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}
