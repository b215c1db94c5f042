package spatial

import (
	"errors"
	"fmt"
)

// ErrExtensionUnavailable is returned when the runtime does not advertise a
// required extension. It is not retryable.
var ErrExtensionUnavailable = errors.New("spatial extension unavailable")

// ErrDecode is returned when a marker payload is not valid text.
var ErrDecode = errors.New("marker payload is not valid text")

// BackendError is a non-success result from a runtime call or an async
// completion.
type BackendError struct {
	Op   string
	Code Result
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

// Is matches another BackendError carrying the same code, ignoring Op.
func (e *BackendError) Is(target error) bool {
	t, ok := target.(*BackendError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// MissingExtension wraps ErrExtensionUnavailable with the extension name.
func MissingExtension(name string) error {
	return fmt.Errorf("%w: %s", ErrExtensionUnavailable, name)
}
