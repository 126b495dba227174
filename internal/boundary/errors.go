package boundary

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches any *ConfigurationError.
	ErrConfiguration = errors.New("boundary: invalid configuration")
	// ErrSerialization matches any *SerializationError.
	ErrSerialization = errors.New("boundary: serialization failed")
)

// ConfigurationError is returned by New when a Config cannot produce a
// scanner.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "boundary: invalid configuration: " + e.Reason
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// SerializationError is returned by a PostProcessor when a response value
// cannot be converted to text. Field is empty when the whole response was
// being serialized.
type SerializationError struct {
	Field string
	Err   error
}

func (e *SerializationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("boundary: serialize response: %v", e.Err)
	}
	return fmt.Sprintf("boundary: serialize response field %q: %v", e.Field, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }
