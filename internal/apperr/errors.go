// Package apperr porte la taxonomie d'erreurs de l'API et son mapping HTTP.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnauthenticated   Kind = "Unauthenticated"
	KindForbidden         Kind = "Forbidden"
	KindNotFound          Kind = "NotFound"
	KindValidation        Kind = "ValidationError"
	KindConflict          Kind = "Conflict"
	KindInsufficientStock Kind = "InsufficientStock"
	KindEmptyCart         Kind = "EmptyCart"
	KindInvalidTransition Kind = "InvalidTransition"
	KindRateLimited       Kind = "RateLimited"
	KindTimeout           Kind = "Timeout"
	KindInternal          Kind = "Internal"
)

// Error est l'erreur métier renvoyée par les services.
// BookID est renseigné pour les échecs de commande liés à un livre précis.
type Error struct {
	Kind    Kind
	Message string
	BookID  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is compare par Kind, ce qui permet errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinelles comparables avec errors.Is.
var (
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrEmptyCart         = &Error{Kind: KindEmptyCart}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrTimeout           = &Error{Kind: KindTimeout}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Unauthenticated(msg string) *Error { return New(KindUnauthenticated, msg) }
func Forbidden(msg string) *Error       { return New(KindForbidden, msg) }
func NotFound(msg string) *Error        { return New(KindNotFound, msg) }
func Validation(msg string) *Error      { return New(KindValidation, msg) }
func Conflict(msg string) *Error        { return New(KindConflict, msg) }

func InsufficientStock(bookID string) *Error {
	return &Error{Kind: KindInsufficientStock, Message: "insufficient stock for book " + bookID, BookID: bookID}
}

// PlacementFailed enveloppe la cause d'un échec de commande en gardant sa Kind.
func PlacementFailed(bookID string, cause error) *Error {
	kind := KindOf(cause)
	msg := "order placement failed"
	if bookID != "" {
		msg += " for book " + bookID
	}
	if kind != KindInternal {
		var ae *Error
		if errors.As(cause, &ae) && ae.Message != "" {
			msg += ": " + ae.Message
		}
	}
	return &Error{Kind: kind, Message: msg, BookID: bookID, Err: cause}
}

// KindOf retrouve la Kind d'une erreur quelconque. Les dépassements de délai donnent Timeout,
// tout ce qui n'est pas une *Error donne Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Kind == KindInternal && errors.Is(ae.Err, context.DeadlineExceeded) {
			return KindTimeout
		}
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindEmptyCart:
		return http.StatusBadRequest
	case KindConflict, KindInsufficientStock, KindInvalidTransition:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage ne divulgue jamais la cause d'une erreur interne.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case KindInternal:
		return "internal server error"
	case KindTimeout:
		var ae *Error
		if errors.As(err, &ae) && ae.Kind == KindTimeout && ae.Message != "" {
			return ae.Message
		}
		return "request timed out"
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return string(KindOf(err))
}

// BookIDOf renvoie le livre en cause s'il y en a un.
func BookIDOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.BookID
	}
	return ""
}
