package errors

import (
	"errors"
	"fmt"
)

// Wrap adds context to err at a package boundary. It returns nil when err is
// nil, so it can be used inline.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is re-exports errors.Is so callers importing this package under the name
// "errors" keep access to it.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
