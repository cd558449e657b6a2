package domain

import "errors"

// Clases de error expuestas a los llamadores.
var (
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not found")
	ErrAuthentication = errors.New("authentication error")
)

// InvalidCredentialsMessage es el unico mensaje de autenticacion; no revela si la cuenta existe.
const InvalidCredentialsMessage = "invalid credentials"

// Error asocia un mensaje para el cliente con una clase de error.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// Unauthenticated siempre lleva el mensaje generico.
func Unauthenticated() error {
	return &Error{Kind: ErrAuthentication, Message: InvalidCredentialsMessage}
}

// Message devuelve el mensaje de cliente de err, o "" si no es un *Error.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Error()
	}
	return ""
}
