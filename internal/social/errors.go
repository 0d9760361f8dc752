package social

import (
	"errors"
	"fmt"

	"github.com/engagelens/internal/retry"
)

// FatalConfigError aborts the run: the mandatory credential is invalid or the
// target account cannot be resolved. Nothing downstream can recover from it.
type FatalConfigError struct {
	Reason string
	Err    error
}

func (e *FatalConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("fatal: %s", e.Reason)
}

func (e *FatalConfigError) Unwrap() error { return e.Err }

// CapabilityUnavailable marks a source whose credential capability is absent
// (likes without the delegated token). The source degrades to zero output.
type CapabilityUnavailable struct {
	Source     string
	Capability string
}

func (e *CapabilityUnavailable) Error() string {
	return fmt.Sprintf("source %s unavailable: missing %s", e.Source, e.Capability)
}

// TransientFetchError covers network failures, 5xx responses and rate
// limiting. Callers retry these with backoff before escalating.
type TransientFetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient fetch failure on %s (HTTP %d): %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient fetch failure on %s: %v", e.Source, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// SourceRejected is a permanent per-source rejection (4xx other than auth).
// The source's whole contribution is zeroed and the run continues.
type SourceRejected struct {
	Source     string
	StatusCode int
	Detail     string
}

func (e *SourceRejected) Error() string {
	return fmt.Sprintf("source %s rejected (HTTP %d): %s", e.Source, e.StatusCode, e.Detail)
}

// EmptyResultError means collection completed but found no interaction
// partners at all, which leaves nothing to rank or analyze.
type EmptyResultError struct {
	Target string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no interaction partners found for %s", e.Target)
}

// RetryClass classifies fetch errors for the backoff loop: transient fetch
// failures are retried, everything else stops the attempt chain.
func RetryClass(err error) retry.Class {
	if err == nil {
		return retry.ClassOK
	}
	var transient *TransientFetchError
	if errors.As(err, &transient) {
		return retry.ClassTransient
	}
	return retry.ClassPermanent
}
