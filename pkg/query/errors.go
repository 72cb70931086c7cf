package query

import "fmt"

// ParseError is returned when a method name carries no known action prefix.
type ParseError struct {
	Method string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("query: cannot parse method %q: no action prefix (find, delete, count, exists, update)", e.Method)
}
