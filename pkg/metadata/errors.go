package metadata

import (
	"errors"
	"fmt"
	"reflect"
)

var errNilEntity = errors.New("nil entity")

// MetadataError reports an entity or repository shape that cannot be
// mapped to storage.
type MetadataError struct {
	Type   reflect.Type
	Reason string
	Err    error
}

func (e *MetadataError) Error() string {
	name := "<nil>"
	if e.Type != nil {
		name = e.Type.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("metadata: %s: %s: %v", name, e.Reason, e.Err)
	}
	return fmt.Sprintf("metadata: %s: %s", name, e.Reason)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// IdentifierError is returned when an entity carries no resolvable identifier.
type IdentifierError struct {
	Type   reflect.Type
	Reason string
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("metadata: %s: no resolvable identifier: %s", e.Type, e.Reason)
}
