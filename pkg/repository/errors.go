package repository

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrContextClosed is returned by every lookup after Context.Close.
	ErrContextClosed = errors.New("repository: context closed")
	// ErrNoFactory means neither a per-type, default nor registered
	// factory could create a repository.
	ErrNoFactory = errors.New("repository: no factory available")
	// ErrNotBound is returned by a Crud that was not created by a factory.
	ErrNotBound = errors.New("repository: not bound to a context")
)

// RegistrationError reports a rejected repository registration.
type RegistrationError struct {
	Type   reflect.Type
	Reason string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("repository: register %s: %s", e.Type, e.Reason)
}

// UnsupportedOperationError is returned when a call matches no route.
type UnsupportedOperationError struct {
	Repository string
	Method     string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("repository: method %s is not a valid %s method", e.Method, e.Repository)
}
