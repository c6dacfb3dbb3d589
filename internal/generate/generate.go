// Package generate drafts specification content from a prompt using a
// hosted language model.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
)

// ErrEmptyContent is returned when a model answers with no usable text.
var ErrEmptyContent = errors.New("model returned empty content")

// MaxRetries bounds the attempts GenerateWithRetry makes.
const MaxRetries = 3

// Generator turns a prompt into draft document content.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// Retrier calls a Generator with backoff on transient errors and records
// the latency and outcome of every attempt.
type Retrier struct {
	gen   Generator
	stats *LLMStats
	log   *slog.Logger
	wait  func(attempt int) time.Duration
}

func NewRetrier(gen Generator, stats *LLMStats, log *slog.Logger) *Retrier {
	return &Retrier{gen: gen, stats: stats, log: log, wait: Backoff}
}

// Model reports the wrapped generator's model.
func (r *Retrier) Model() string { return r.gen.Model() }

// Generate implements Generator. Blank responses fail with ErrEmptyContent.
func (r *Retrier) Generate(ctx context.Context, prompt string) (string, error) {
	var text string
	var lastErr error
	for attempt := range MaxRetries {
		start := time.Now()
		text, lastErr = r.gen.Generate(ctx, prompt)
		if r.stats != nil {
			r.stats.Record(r.gen.Model(), time.Since(start), OutcomeOf(text, lastErr))
		}
		if lastErr == nil || !IsRetryable(lastErr) || attempt == MaxRetries-1 {
			break
		}
		r.log.Warn("retryable generation error", "model", r.gen.Model(), "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(r.wait(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
