package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")

	// ErrTransientMiss marks host lookups that failed for an item that may
	// simply not exist yet. Units carrying it are dropped without retry.
	ErrTransientMiss = errors.New("transient miss")
	// ErrPollTimeout marks items whose streams never became valid within the
	// poll budget. The item is still enqueued.
	ErrPollTimeout = errors.New("poll timeout")
	// ErrProviderFetch marks metadata or translation provider failures.
	ErrProviderFetch = errors.New("provider fetch failure")
	// ErrPersistence marks relational or override store write failures.
	ErrPersistence = errors.New("persistence failure")
	// ErrUnitFatal marks conditions that abort the whole unit of work.
	ErrUnitFatal = errors.New("unit fatal")
	// ErrCancelled is returned when a stop was requested mid-run.
	ErrCancelled = errors.New("cancelled")
)

// Disposition describes what the orchestrator does with a failed unit.
type Disposition string

const (
	DispositionDrop   Disposition = "drop"
	DispositionReview Disposition = "review"
	DispositionFailed Disposition = "failed"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Cancelled converts context errors into ErrCancelled, leaving other errors untouched.
func Cancelled(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCancelled) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return err
}

// FailureDisposition maps a unit error to the orchestrator's follow-up action.
func FailureDisposition(err error) Disposition {
	switch {
	case err == nil:
		return DispositionFailed
	case errors.Is(err, ErrCancelled):
		return DispositionDrop
	case errors.Is(err, ErrTransientMiss), errors.Is(err, ErrNotFound):
		return DispositionDrop
	case errors.Is(err, ErrProviderFetch), errors.Is(err, ErrUnitFatal),
		errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return DispositionReview
	default:
		return DispositionFailed
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
