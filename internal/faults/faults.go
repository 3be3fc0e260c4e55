// Package faults defines the shared error taxonomy for the analysis pipeline.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when a component is used before Initialize.
	ErrNotInitialized = errors.New("not initialized")
	// ErrEmptyInput is returned when an operation receives nothing to work on.
	ErrEmptyInput = errors.New("empty input")
	// ErrMissingCorpus is returned when the corpus directory does not exist.
	ErrMissingCorpus = errors.New("corpus directory missing")
	// ErrEmptyCorpus is returned when no reference document could be loaded.
	ErrEmptyCorpus = errors.New("no documents loaded from corpus")
)

// ExternalServiceError wraps a failure from an external provider (OCR, embedding,
// generation). Provider and Op identify the call site; Err carries the cause.
type ExternalServiceError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// NewExternalServiceError wraps err as a provider failure.
func NewExternalServiceError(provider, op string, err error) *ExternalServiceError {
	return &ExternalServiceError{Provider: provider, Op: op, Err: err}
}

// BuildError signals a failed vector index build. No partial index is usable;
// initialization must abort.
type BuildError struct {
	Batch int
	Err   error
}

func (e *BuildError) Error() string {
	if e.Batch >= 0 {
		return fmt.Sprintf("index build failed at batch %d: %v", e.Batch, e.Err)
	}
	return fmt.Sprintf("index build failed: %v", e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
