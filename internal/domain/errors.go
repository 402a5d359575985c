package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrNetwork     = errors.New("network error")
	ErrPersistence = errors.New("persistence error")

	ErrNotAuthenticated = fmt.Errorf("%w: user is not authenticated", ErrValidation)
	ErrEmptyCart        = fmt.Errorf("%w: cart is empty, nothing to submit", ErrValidation)
	ErrInvalidProductID = fmt.Errorf("%w: product id is not numeric", ErrValidation)
)

// NetworkError is a transport failure or an unexpected response from the
// remote carts service. StatusCode is 0 when no response was received.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: remote responded with status %d", e.Op, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": network error"
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// PersistenceError reports unreadable or unwritable local storage.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
