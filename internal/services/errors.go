package services

import "errors"

// Kind classifies an auth failure so the HTTP layer can map it to a status
// code without inspecting messages.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuthentication
	KindAuthorization
	KindExpired
)

// Error is a caller-visible auth failure. Its message is safe to return in
// the response envelope.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func validationError(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func conflictError(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

func authenticationError(message string) error {
	return &Error{Kind: KindAuthentication, Message: message}
}

func authorizationError(message string) error {
	return &Error{Kind: KindAuthorization, Message: message}
}

func expiredError(message string) error {
	return &Error{Kind: KindExpired, Message: message}
}

// KindOf extracts the failure kind from err. Anything that is not a
// services.Error is an unexpected fault and reports KindInternal.
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}
