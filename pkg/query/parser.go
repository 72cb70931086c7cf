// Package query compiles repository method names such as
// findByEmailAndAgeGreaterThan into a structured ParsedMethod.
//
// Connectors are matched as literal substrings, so a field whose name
// contains "And" or "Or" (Android, OrderId) is split at that point.
package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const byToken = "By"

// Parse compiles methodName. The only failure is an unknown action prefix.
func Parse(methodName string) (*ParsedMethod, error) {
	action, ok := ActionFor(methodName)
	if !ok {
		return nil, &ParseError{Method: methodName}
	}

	pm := &ParsedMethod{
		Name:       methodName,
		Action:     action,
		Conditions: []Condition{},
		Logicals:   []Logical{},
	}

	idx := strings.Index(methodName, byToken)
	if idx < 0 {
		return pm, nil
	}
	remainder := methodName[idx+len(byToken):]
	if remainder == "" {
		return pm, nil
	}

	tokens, connectors := tokenize(remainder)
	for i, token := range tokens {
		field, op := splitOperator(token)
		logical := And
		if i > 0 {
			logical = connectors[i-1]
		}
		pm.Conditions = append(pm.Conditions, Condition{
			Field:          LowerFirst(field),
			Operator:       op,
			ParameterIndex: i,
			Logical:        logical,
		})
	}
	pm.Logicals = connectors
	return pm, nil
}

// MustParse is like Parse but panics on error. Intended for static tables.
func MustParse(methodName string) *ParsedMethod {
	pm, err := Parse(methodName)
	if err != nil {
		panic(err)
	}
	return pm
}

// tokenize splits s on every literal "And" and "Or", returning the tokens
// and the connector found between each adjacent pair.
func tokenize(s string) ([]string, []Logical) {
	var (
		tokens     []string
		connectors = []Logical{}
		start      int
	)
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "And"):
			tokens = append(tokens, s[start:i])
			connectors = append(connectors, And)
			i += len("And")
			start = i
		case strings.HasPrefix(s[i:], "Or"):
			tokens = append(tokens, s[start:i])
			connectors = append(connectors, Or)
			i += len("Or")
			start = i
		default:
			i++
		}
	}
	tokens = append(tokens, s[start:])
	return tokens, connectors
}

// LowerFirst lower-cases the first rune and leaves the rest untouched.
func LowerFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}
