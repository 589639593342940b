package config

import (
	"errors"
	"fmt"
)

// ErrMissingRequiredField indicates a required environment variable was
// empty or unset.
var ErrMissingRequiredField = errors.New("missing required configuration value")

// ValidationError wraps a configuration problem with the field (or list of
// fields) it came from. loadScraperConfig names every missing scraper
// variable in one ValidationError; Load itself returns on the first
// component that fails.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
