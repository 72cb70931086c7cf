package query

import (
	"fmt"
	"strings"
)

// Condition is one field predicate extracted from a method name.
type Condition struct {
	Field          string
	Operator       Operator
	ParameterIndex int
	Logical        Logical
}

func (c Condition) String() string {
	if !c.Operator.TakesValue() {
		return fmt.Sprintf("%s %s", c.Field, c.Operator)
	}
	return fmt.Sprintf("%s %s $%d", c.Field, c.Operator, c.ParameterIndex)
}

// ParsedMethod is the compiled form of a repository method name. It is
// never mutated after Parse returns it.
type ParsedMethod struct {
	Name       string
	Action     Action
	Conditions []Condition
	// Logicals holds the connectors between consecutive conditions, so
	// len(Logicals) == len(Conditions)-1 whenever there is at least one
	// condition.
	Logicals []Logical
}

// Arity is the number of positional arguments the conditions bind. Null
// checks take no argument.
func (m *ParsedMethod) Arity() int {
	n := 0
	for _, c := range m.Conditions {
		if c.Operator.TakesValue() {
			n++
		}
	}
	return n
}

func (m *ParsedMethod) String() string {
	var b strings.Builder
	b.WriteString(m.Action.String())
	for i, c := range m.Conditions {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" ")
			b.WriteString(c.Logical.String())
			b.WriteString(" ")
		}
		b.WriteString(c.String())
	}
	return b.String()
}
