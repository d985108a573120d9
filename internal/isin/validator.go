// Package isin checks that an ISIN has been issued, using the public
// registry of the Czech central securities depository.
package isin

import (
	"context"
	"errors"
	"fmt"
)

// Validator accepts or rejects an ISIN
type Validator interface {
	Validate(ctx context.Context, isin string) error
}

// ValidatorFunc adapts a function to Validator
type ValidatorFunc func(ctx context.Context, isin string) error

func (f ValidatorFunc) Validate(ctx context.Context, isin string) error { return f(ctx, isin) }

// Disabled accepts every ISIN
type Disabled struct{}

func (Disabled) Validate(context.Context, string) error { return nil }

// ErrNotIssued is matched by every RejectedError
var ErrNotIssued = errors.New("isin not issued")

// RejectedError is returned when the registry does not know the ISIN
type RejectedError struct {
	ISIN string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("ISIN %s is not found in the central depository.", e.ISIN)
}

func (e *RejectedError) Is(target error) bool { return target == ErrNotIssued }

// UpstreamError is returned when the registry answers with an error status
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("API request error: %d", e.StatusCode)
}
