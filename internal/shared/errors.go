package shared

import "errors"

// Error kinds. Domain errors wrap one of these so the transport layer can map
// them to a status without knowing every package's sentinels.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates malformed or rejected client input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthenticated indicates the request carries no valid session.
	ErrUnauthenticated = errors.New("unauthorized")
	// ErrForbidden indicates the session is not allowed to perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// KindError is a sentinel error carrying a public message and an error kind.
type KindError struct {
	kind error
	msg  string
}

// NewKindError builds a sentinel whose errors.Is also matches kind.
func NewKindError(kind error, msg string) *KindError {
	return &KindError{kind: kind, msg: msg}
}

func (e *KindError) Error() string { return e.msg }

// Unwrap exposes the kind.
func (e *KindError) Unwrap() error { return e.kind }

// Kind returns the error kind.
func (e *KindError) Kind() error { return e.kind }

// UserSafeMessage returns a message that can be shown to API clients.
func UserSafeMessage(err error) string {
	var kindErr *KindError
	if errors.As(err, &kindErr) {
		return kindErr.msg
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthorized"
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrCSRFTokenMissing), errors.Is(err, ErrCSRFTokenMismatch):
		return "forbidden"
	}
	return "internal error"
}
