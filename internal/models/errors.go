package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExtractionFailure means the extractor failed or produced unusable output
	ErrExtractionFailure = errors.New("extraction failed")
	// ErrDependencyUnavailable means the muxer could not be resolved in time
	ErrDependencyUnavailable = errors.New("muxer unavailable")
	// ErrFormatUnavailable means no viable format was offered
	ErrFormatUnavailable = errors.New("format unavailable")
	// ErrVerificationFailure means the output is missing or implausibly small
	ErrVerificationFailure = errors.New("verification failed")
	// ErrAllTiersExhausted means every download tier failed
	ErrAllTiersExhausted = errors.New("all download attempts failed")
	// ErrJobNotFound means no job is stored under the requested id
	ErrJobNotFound = errors.New("job not found")
)

// TierFailure records why a tier did not produce a file
type TierFailure struct {
	State DownloadState
	Err   error
}

// AllTiersExhaustedError aggregates the failures of every attempted tier
type AllTiersExhaustedError struct {
	URL      string
	Failures []TierFailure
}

func (e *AllTiersExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.State, f.Err))
	}
	return fmt.Sprintf("%s for %s (%s)", ErrAllTiersExhausted, e.URL, strings.Join(parts, "; "))
}

// Is matches ErrAllTiersExhausted
func (e *AllTiersExhaustedError) Is(target error) bool {
	return target == ErrAllTiersExhausted
}

// Unwrap exposes every tier error
func (e *AllTiersExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
