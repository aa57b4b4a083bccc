package domain

import (
	"errors"
	"fmt"
)

// ErrorKind tags every business-rule failure so transports can map status
// codes without comparing message text.
type ErrorKind string

const (
	KindUnauthorized      ErrorKind = "unauthorized"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindNotFound          ErrorKind = "not_found"
	KindOutOfStock        ErrorKind = "out_of_stock"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindEmptyCart         ErrorKind = "empty_cart"
	KindStorage           ErrorKind = "storage_failure"
)

// Error carries the kind plus, for stock violations, the offending product
// so the caller can render an actionable message.
type Error struct {
	Kind        ErrorKind
	Message     string
	ProductID   int64
	ProductName string
}

func (e *Error) Error() string {
	return e.Message
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func OutOfStockError(productID int64, name string) *Error {
	return &Error{
		Kind:        KindOutOfStock,
		Message:     fmt.Sprintf("product %q is out of stock", name),
		ProductID:   productID,
		ProductName: name,
	}
}

func InsufficientStockError(productID int64, name string, requested, available int32) *Error {
	return &Error{
		Kind:        KindInsufficientStock,
		Message:     fmt.Sprintf("insufficient stock for %q: requested %d, available %d", name, requested, available),
		ProductID:   productID,
		ProductName: name,
	}
}

// KindOf extracts the kind from any error in the chain; unknown errors are
// reported as storage failures (rolled back, safe to retry).
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}

	return KindStorage
}
