package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("could not validate credentials")
	ErrForbidden      = errors.New("the user doesn't have enough privileges")
	ErrBadCredentials = errors.New("incorrect email or password")

	ErrDuplicateEmail = errors.New("user email already registered")
	ErrDuplicatePhone = errors.New("user phone already registered")
	ErrDuplicateName  = errors.New("product already registered")

	ErrUserNotFound    = errors.New("user not found")
	ErrProductNotFound = errors.New("product not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrEmptyCart       = errors.New("cart or items not found")
	ErrOrderNotFound   = errors.New("order not found")
)

// InsufficientStockError is returned when a product cannot cover the
// requested quantity.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
