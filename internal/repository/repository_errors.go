package repository

import "errors"

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrCartLineNotFound     = errors.New("cart line not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
)
