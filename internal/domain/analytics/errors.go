package analytics

import (
	"errors"
	"fmt"
)

// ValidationError is returned for a missing or malformed request parameter.
// Nothing is computed when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrNotAuthorized is wrapped by every AuthorizationError.
var ErrNotAuthorized = errors.New("administrative access required")

// AuthorizationError is returned when the caller's AuthContext lacks the
// administrative role. It is raised before any ledger access.
type AuthorizationError struct {
	UserID string
}

func (e *AuthorizationError) Error() string {
	if e.UserID == "" {
		return ErrNotAuthorized.Error()
	}
	return fmt.Sprintf("user %s: %s", e.UserID, ErrNotAuthorized)
}

func (e *AuthorizationError) Unwrap() error { return ErrNotAuthorized }

// UpstreamDataError wraps a ledger failure. The wrapped error carries storage
// diagnostics and must not be shown to the caller.
type UpstreamDataError struct {
	Op  string
	Err error
}

func (e *UpstreamDataError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *UpstreamDataError) Unwrap() error { return e.Err }

func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamDataError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamDataError{Op: op, Err: err}
}
