package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
	KindDependency ErrorKind = "dependency"
	KindConfig     ErrorKind = "config"
	KindIntegrity  ErrorKind = "integrity"
	KindInternal   ErrorKind = "internal"
)

// Error carries the category of a failure so transports can map it without
// string matching.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind ErrorKind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(format string, args ...any) *Error {
	return NewError(KindValidation, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) *Error {
	return NewError(KindConflict, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the outermost domain error in the chain.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

var (
	ErrOrderNotFound      = NewError(KindNotFound, "order not found")
	ErrProductNotFound    = NewError(KindNotFound, "product not found")
	ErrCouponNotFound     = NewError(KindNotFound, "coupon not found")
	ErrInsufficientStock  = NewError(KindConflict, "insufficient stock")
	ErrCouponExhausted    = NewError(KindConflict, "coupon usage limit reached")
	ErrAlreadyRefunded    = NewError(KindConflict, "order already refunded")
	ErrNotPaid            = NewError(KindConflict, "order is not paid")
	ErrRefundRequired     = NewError(KindConflict, "order is paid, refund it instead of cancelling")
	ErrInvalidTransition  = NewError(KindConflict, "invalid status transition")
	ErrStaleOrder         = NewError(KindConflict, "order was modified concurrently")
	ErrOrderExpired       = NewError(KindConflict, "order payment window has expired")
	ErrNotPayable         = NewError(KindConflict, "order is no longer payable")
	ErrDuplicateRequest   = NewError(KindConflict, "duplicate request")
	ErrReconcilerBusy     = NewError(KindConflict, "expiry reconciler already running")
	ErrMissingStockTarget = NewError(KindIntegrity, "order item references a missing product")
)
