package api

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned when the backend rejects the request with
// 401. Callers redirect the user to login instead of showing the message.
var ErrUnauthenticated = errors.New("not authenticated")

// Error is a non-401 backend rejection carrying the server-supplied message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// IsUnauthenticated reports whether err is (or wraps) ErrUnauthenticated.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}
