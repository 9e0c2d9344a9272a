package store

import "fmt"

// Error is a store error carrying a stable machine-readable kind.
// Callers branch on the sentinel values below via errors.Is; the kind also
// reaches logs unchanged.
type Error struct {
	Kind    string // stable identifier: "not_found", "conflict", ...
	Message string // human-facing message
	Err     error  // underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so wrapped copies still satisfy
// errors.Is against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// WithMessage returns a copy with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Message: msg, Err: e.Err}
}

// WithCause returns a copy wrapping an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: err}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Kind:    "not_found",
		Message: "entity not found",
	}

	ErrAlreadyExists = &Error{
		Kind:    "conflict",
		Message: "entity already exists",
	}

	ErrInvalidInput = &Error{
		Kind:    "invalid_input",
		Message: "invalid input",
	}

	ErrMalformedKey = &Error{
		Kind:    "malformed_key",
		Message: "malformed key",
	}

	// ErrRedirectCycle marks a cyclic merge mapping. Resolution reports it
	// instead of looping; diagnostics surface the offending chain.
	ErrRedirectCycle = &Error{
		Kind:    "redirect_cycle",
		Message: "redirect chain does not terminate",
	}
)
