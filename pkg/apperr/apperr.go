// Package apperr defines the error taxonomy shared by every layer of the
// chat backend. Each failure an operation can report is one of the sentinel
// errors below, possibly wrapped with context via fmt.Errorf("...: %w").
//
// Callers classify with errors.Is; Message returns the stable text that is
// safe to show to end users.
package apperr

import "errors"

var (
	// ErrConflict is returned when a unique key already exists.
	ErrConflict = errors.New("conflict")

	// ErrInvalidCredentials is returned for any login failure. It is
	// deliberately identical for unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated is returned when an operation requires a verified
	// identity and none was presented.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is reserved for ownership checks.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidOperation is returned for semantically illegal requests
	// such as sending a direct message to yourself.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrStoreUnavailable wraps any failure of the underlying table.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Kind is the tag of a classified error.
type Kind string

const (
	KindNone               Kind = ""
	KindConflict           Kind = "conflict"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUnauthenticated    Kind = "unauthenticated"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindInvalidOperation   Kind = "invalid_operation"
	KindStoreUnavailable   Kind = "store_unavailable"
	KindInternal           Kind = "internal"
)

var kinds = []struct {
	err     error
	kind    Kind
	message string
}{
	{ErrConflict, KindConflict, "Resource already exists"},
	{ErrInvalidCredentials, KindInvalidCredentials, "Invalid username or password"},
	{ErrUnauthenticated, KindUnauthenticated, "Authentication required"},
	{ErrForbidden, KindForbidden, "You are not allowed to do that"},
	{ErrNotFound, KindNotFound, "Not found"},
	{ErrInvalidOperation, KindInvalidOperation, "Invalid operation"},
	{ErrStoreUnavailable, KindStoreUnavailable, "Service temporarily unavailable"},
}

// KindOf returns the tag of err. Errors outside the taxonomy are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Message returns the user-facing text for err. It never includes the
// wrapped cause, so infrastructure detail does not leak to callers.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.message
		}
	}
	return "Internal server error"
}
