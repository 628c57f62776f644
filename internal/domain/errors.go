package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned by mutations when no owner can be resolved.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidInput wraps every validation failure.
	ErrInvalidInput = errors.New("invalid input")
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
