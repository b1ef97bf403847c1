package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProviderUnavailable covers network failures, timeouts, non-success
	// statuses and open circuit breakers.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrMissingCredentials is returned before any I/O by a client that has
	// no API key configured.
	ErrMissingCredentials = fmt.Errorf("%w: no credentials configured", ErrProviderUnavailable)

	// ErrMalformedResponse means the provider answered with a payload that
	// could not be decoded or failed schema checks.
	ErrMalformedResponse = errors.New("provider returned malformed response")

	ErrInvalidLocation = errors.New("invalid location")
)

// InvalidLocationError lists every problem found on a Location.
type InvalidLocationError struct {
	Problems []string
}

func (e *InvalidLocationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidLocation, strings.Join(e.Problems, "; "))
}

func (e *InvalidLocationError) Unwrap() error {
	return ErrInvalidLocation
}

// Malformed wraps a decode or schema failure so it matches ErrMalformedResponse.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// Unavailable wraps err so it matches ErrProviderUnavailable.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrProviderUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
}
