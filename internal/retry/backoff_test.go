package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func alwaysTransient(error) Class { return ClassTransient }

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.MaxRetries != 4 {
		t.Errorf("Expected MaxRetries=4, got %d", config.MaxRetries)
	}

	if config.BaseDelay != time.Second {
		t.Errorf("Expected BaseDelay=1s, got %v", config.BaseDelay)
	}

	if config.MaxDelay != 8*time.Second {
		t.Errorf("Expected MaxDelay=8s, got %v", config.MaxDelay)
	}

	if config.Multiplier != 2.0 {
		t.Errorf("Expected Multiplier=2.0, got %f", config.Multiplier)
	}

	if config.Jitter {
		t.Error("Expected Jitter=false")
	}
}

func TestLLMConfig(t *testing.T) {
	config := LLMConfig()

	if config.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries=3, got %d", config.MaxRetries)
	}

	if config.BaseDelay != 2*time.Second {
		t.Errorf("Expected BaseDelay=2s, got %v", config.BaseDelay)
	}

	if config.MaxDelay != 60*time.Second {
		t.Errorf("Expected MaxDelay=60s, got %v", config.MaxDelay)
	}

	if config.Multiplier != 2.5 {
		t.Errorf("Expected Multiplier=2.5, got %f", config.Multiplier)
	}
}

func TestDo_Success(t *testing.T) {
	config := Config{
		MaxRetries: 2,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
		Multiplier: 2.0,
	}

	value, result := Do(context.Background(), config, alwaysTransient, zerolog.Nop(), func(ctx context.Context) (string, error) {
		return "payload", nil
	})

	if !result.Success {
		t.Error("Expected success=true")
	}

	if value != "payload" {
		t.Errorf("Expected value to pass through, got %q", value)
	}

	if result.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", result.Attempts)
	}

	if result.Err() != nil {
		t.Errorf("Expected no error, got %v", result.Err())
	}

	if len(result.Reasons) != 0 {
		t.Errorf("Expected no failure reasons, got %d", len(result.Reasons))
	}
}

func TestDo_EventualSuccess(t *testing.T) {
	config := Config{
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
		Multiplier: 2.0,
	}

	attempts := 0
	value, result := Do(context.Background(), config, alwaysTransient, zerolog.Nop(), func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("temporary failure")
		}
		return 42, nil
	})

	if !result.Success {
		t.Error("Expected success=true")
	}

	if value != 42 {
		t.Errorf("Expected 42, got %d", value)
	}

	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}

	if len(result.Reasons) != 2 {
		t.Errorf("Expected 2 failure reasons, got %d", len(result.Reasons))
	}

	if result.TotalDuration == 0 {
		t.Error("Expected non-zero total duration")
	}
}

func TestDo_TransientExhaustion(t *testing.T) {
	config := Config{
		MaxRetries: 2,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
		Multiplier: 2.0,
	}

	expectedError := errors.New("persistent failure")
	_, result := Do(context.Background(), config, alwaysTransient, zerolog.Nop(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, expectedError
	})

	if result.Success {
		t.Error("Expected success=false")
	}

	if result.Attempts != 3 { // MaxRetries + 1
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}

	if result.Err() != expectedError {
		t.Errorf("Expected last error to be %v, got %v", expectedError, result.Err())
	}

	if result.LastClass != ClassTransient {
		t.Errorf("Expected last class ClassTransient, got %v", result.LastClass)
	}

	if len(result.Reasons) != 3 {
		t.Errorf("Expected 3 failure reasons, got %d", len(result.Reasons))
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	config := Config{
		MaxRetries: 5,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
		Multiplier: 2.0,
	}

	classify := func(err error) Class { return ClassPermanent }

	attempts := 0
	_, result := Do(context.Background(), config, classify, zerolog.Nop(), func(ctx context.Context) (struct{}, error) {
		attempts++
		return struct{}{}, errors.New("access forbidden")
	})

	if result.Success {
		t.Error("Expected success=false")
	}

	if attempts != 1 {
		t.Errorf("Expected exactly 1 attempt for a permanent failure, got %d", attempts)
	}

	if result.LastClass != ClassPermanent {
		t.Errorf("Expected last class ClassPermanent, got %v", result.LastClass)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	config := Config{
		MaxRetries: 5,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, result := Do(ctx, config, alwaysTransient, zerolog.Nop(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, errors.New("always fails")
	})

	if result.Success {
		t.Error("Expected success=false due to context cancellation")
	}

	if result.Err() != context.DeadlineExceeded {
		t.Errorf("Expected context.DeadlineExceeded, got %v", result.Err())
	}

	// Should fail quickly due to the context timeout.
	if result.Attempts > 2 {
		t.Errorf("Expected few attempts due to quick timeout, got %d", result.Attempts)
	}
}

func TestDelay(t *testing.T) {
	config := DefaultConfig()

	// The documented fetch backoff sequence.
	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}

	for attempt, want := range expected {
		if got := Delay(config, attempt); got != want {
			t.Errorf("Expected delay for attempt %d to be %v, got %v", attempt, want, got)
		}
	}

	// Beyond the sequence the cap holds.
	if got := Delay(config, 10); got != 8*time.Second {
		t.Errorf("Expected delay to cap at 8s, got %v", got)
	}
}

func TestDelay_WithJitter(t *testing.T) {
	config := Config{
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}

	delay1a := Delay(config, 1)
	delay1b := Delay(config, 1)
	delay1c := Delay(config, 1)

	// Should be close to 2s but with some variation.
	expectedBase := 2 * time.Second
	tolerance := 200 * time.Millisecond

	if absDuration(delay1a-expectedBase) > tolerance {
		t.Errorf("delay1a %v too far from expected %v", delay1a, expectedBase)
	}

	if delay1a == delay1b && delay1b == delay1c {
		t.Error("Expected some variation with jitter enabled")
	}
}

func TestClassifyByMessage(t *testing.T) {
	transientErrors := []error{
		errors.New("connection refused"),
		errors.New("connection timeout"),
		errors.New("temporary failure"),
		errors.New("HTTP 429 Too Many Requests"),
		errors.New("HTTP 502 Bad Gateway"),
		errors.New("HTTP 503 Service Unavailable"),
		errors.New("DNS lookup failed"),
	}

	for _, err := range transientErrors {
		if ClassifyByMessage(err) != ClassTransient {
			t.Errorf("Expected %v to classify as transient", err)
		}
	}

	permanentErrors := []error{
		errors.New("invalid input"),
		errors.New("permission denied"),
		errors.New("HTTP 400 Bad Request"),
		errors.New("HTTP 401 Unauthorized"),
		errors.New("HTTP 404 Not Found"),
	}

	for _, err := range permanentErrors {
		if ClassifyByMessage(err) != ClassPermanent {
			t.Errorf("Expected %v to classify as permanent", err)
		}
	}

	if ClassifyByMessage(nil) != ClassOK {
		t.Error("Expected nil error to classify as OK")
	}
}

func TestDo_NilClassifierFallsBack(t *testing.T) {
	config := Config{
		MaxRetries: 2,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
		Multiplier: 2.0,
	}

	attempts := 0
	_, result := Do(context.Background(), config, nil, zerolog.Nop(), func(ctx context.Context) (struct{}, error) {
		attempts++
		if attempts == 1 {
			return struct{}{}, errors.New("service unavailable")
		}
		return struct{}{}, nil
	})

	if !result.Success {
		t.Error("Expected success via message-based classification")
	}

	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

// Helper to compare durations regardless of sign.
func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
