package config

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingVar matches any *MissingVarError.
	ErrMissingVar = errors.New("required environment variable not set")

	// ErrInvalidValue is returned for malformed or out of range settings.
	ErrInvalidValue = errors.New("invalid configuration value")
)

// MissingVarError reports a required environment variable that is not set.
type MissingVarError struct {
	Name string
}

func (e *MissingVarError) Error() string {
	return fmt.Sprintf("environment variable %s is not set", e.Name)
}

// Is makes errors.Is(err, ErrMissingVar) true.
func (e *MissingVarError) Is(target error) bool {
	return target == ErrMissingVar
}
