package domain

import "errors"

// Error kinds. Match them with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrDelivery         = errors.New("delivery error")
	ErrPermissionDenied = errors.New("permission denied")
)

// Error carries a kind sentinel, a user-facing message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Kind.Error() + ": " + e.Err.Error()
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Code is consumed by the handler summary logger as err_code.
func (e *Error) Code() string {
	switch e.Kind {
	case ErrValidation:
		return "validation"
	case ErrNotFound:
		return "not_found"
	case ErrAlreadyExists:
		return "already_exists"
	case ErrDelivery:
		return "delivery"
	case ErrPermissionDenied:
		return "permission_denied"
	}
	return "internal"
}

// ValidationError reports bad user input; the message is shown to the user.
func ValidationError(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// NotFoundError reports a missing entity.
func NotFoundError(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// AlreadyExistsError reports a rejected duplicate insert.
func AlreadyExistsError(msg string) error {
	return &Error{Kind: ErrAlreadyExists, Message: msg}
}

// DeliveryError wraps a failed outbound message.
func DeliveryError(msg string, err error) error {
	return &Error{Kind: ErrDelivery, Message: msg, Err: err}
}

// PermissionDenied reports a gated action attempted by an unauthorized user.
func PermissionDenied(msg string) error {
	return &Error{Kind: ErrPermissionDenied, Message: msg}
}

// UserMessage returns the user-facing text of a domain error, if any.
func UserMessage(err error) (string, bool) {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message, true
	}
	return "", false
}
