package retry

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Class buckets the outcome of a single fetch attempt. Transient outcomes are
// retried with backoff; permanent outcomes stop the loop immediately.
type Class int

const (
	ClassOK Class = iota
	ClassTransient
	ClassPermanent
)

// Classifier maps an attempt error to a Class. A nil error is always ClassOK
// regardless of the classifier.
type Classifier func(error) Class

// Config configures retry behavior with exponential backoff
type Config struct {
	MaxRetries int           `json:"max_retries"` // Retry attempts after the first (default: 4)
	BaseDelay  time.Duration `json:"base_delay"`  // Delay before the first retry (default: 1s)
	MaxDelay   time.Duration `json:"max_delay"`   // Upper bound on any single delay (default: 8s)
	Multiplier float64       `json:"multiplier"`  // Exponential backoff multiplier (default: 2.0)
	Jitter     bool          `json:"jitter"`      // Add random jitter to each delay (default: false)
}

// Result contains information about the retry operation
type Result struct {
	Attempts      int           `json:"attempts"`       // Total number of attempts made
	TotalDuration time.Duration `json:"total_duration"` // Total time spent on all attempts
	LastError     error         `json:"-"`              // Last error encountered
	LastClass     Class         `json:"last_class"`     // Class of the last attempt's outcome
	Success       bool          `json:"success"`        // Whether the operation eventually succeeded
	Reasons       []string      `json:"reasons"`        // Reason recorded for each failed attempt
}

// Err returns the terminal error of a failed operation, nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return r.LastError
}

// DefaultConfig returns the fetch retry configuration: four retries at
// 1s/2s/4s/8s with no jitter, so repeated runs back off identically.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 4,
		BaseDelay:  1 * time.Second,
		MaxDelay:   8 * time.Second,
		Multiplier: 2.0,
		Jitter:     false,
	}
}

// LLMConfig returns a retry configuration for language-model requests, which
// run longer and tolerate jitter.
func LLMConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.5,
		Jitter:     true,
	}
}

// Do executes op with exponential backoff until it succeeds, a permanent
// outcome occurs, retries are exhausted, or ctx is cancelled. classify decides
// whether a failed attempt is worth retrying; nil falls back to
// ClassifyByMessage. The zero value of T is returned alongside a failed Result.
func Do[T any](ctx context.Context, cfg Config, classify Classifier, log zerolog.Logger, op func(context.Context) (T, error)) (T, Result) {
	startTime := time.Now()

	if classify == nil {
		classify = ClassifyByMessage
	}

	var zero T
	result := Result{Reasons: make([]string, 0)}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		value, err := op(ctx)
		if err == nil {
			result.Success = true
			result.LastClass = ClassOK
			result.TotalDuration = time.Since(startTime)
			if attempt > 0 {
				log.Debug().Int("attempts", result.Attempts).Dur("total", result.TotalDuration).Msg("operation succeeded after retries")
			}
			return value, result
		}

		result.LastError = err
		result.Reasons = append(result.Reasons, err.Error())

		// A cancelled context aborts regardless of classification.
		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			result.LastClass = ClassPermanent
			result.TotalDuration = time.Since(startTime)
			log.Debug().Err(ctx.Err()).Int("attempt", result.Attempts).Msg("operation cancelled")
			return zero, result
		}

		class := classify(err)
		result.LastClass = class
		if class != ClassTransient {
			result.TotalDuration = time.Since(startTime)
			log.Debug().Err(err).Int("attempt", result.Attempts).Msg("permanent failure, not retrying")
			return zero, result
		}

		if attempt >= cfg.MaxRetries {
			result.TotalDuration = time.Since(startTime)
			log.Warn().Err(err).Int("attempts", result.Attempts).Dur("total", result.TotalDuration).Msg("retries exhausted")
			return zero, result
		}

		delay := Delay(cfg, attempt)
		log.Debug().Err(err).Int("attempt", result.Attempts).Dur("delay", delay).Msg("transient failure, backing off")

		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.LastClass = ClassPermanent
			result.TotalDuration = time.Since(startTime)
			log.Debug().Err(ctx.Err()).Msg("operation cancelled during backoff")
			return zero, result
		case <-time.After(delay):
		}
	}

	result.TotalDuration = time.Since(startTime)
	return zero, result
}

// Delay computes the backoff delay after the given zero-based attempt. Pure:
// same config and attempt always yield the same delay unless Jitter is set.
func Delay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))

	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter {
		// Up to 10% random jitter either way.
		jitterRange := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
		if delay < 0 {
			delay = float64(cfg.BaseDelay)
		}
	}

	return time.Duration(delay)
}

// ClassifyByMessage is the fallback classifier: it scans the error text for
// failure modes that are typically worth retrying. Domain packages should
// install a typed classifier instead; this exists for errors that cross an
// API boundary as bare strings.
func ClassifyByMessage(err error) Class {
	if err == nil {
		return ClassOK
	}

	errStr := strings.ToLower(err.Error())

	transientMarkers := []string{
		"connection refused",
		"connection reset",
		"connection timeout",
		"timeout",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"rate limit",
		"429",
		"502",
		"503",
		"504",
		"dns lookup failed",
		"no such host",
		"network unreachable",
		"broken pipe",
	}

	for _, marker := range transientMarkers {
		if strings.Contains(errStr, marker) {
			return ClassTransient
		}
	}

	return ClassPermanent
}
