package query

import "strings"

// Operator is the comparison applied by a single condition.
type Operator int

const (
	OpEq Operator = iota
	OpNe
	OpGt
	OpLt
	OpGte
	OpLte
	OpLike
	OpNotLike
	OpIn
	OpNotIn
	OpBetween
	OpIsNull
	OpIsNotNull
)

var operatorNames = [...]string{
	OpEq:        "EQ",
	OpNe:        "NE",
	OpGt:        "GT",
	OpLt:        "LT",
	OpGte:       "GTE",
	OpLte:       "LTE",
	OpLike:      "LIKE",
	OpNotLike:   "NOT_LIKE",
	OpIn:        "IN",
	OpNotIn:     "NOT_IN",
	OpBetween:   "BETWEEN",
	OpIsNull:    "IS_NULL",
	OpIsNotNull: "IS_NOT_NULL",
}

func (o Operator) String() string {
	if o < 0 || int(o) >= len(operatorNames) {
		return "UNKNOWN"
	}
	return operatorNames[o]
}

// TakesValue reports whether the operator compares against a bound argument.
func (o Operator) TakesValue() bool {
	return o != OpIsNull && o != OpIsNotNull
}

// operatorSuffix maps a method-name keyword to its operator.
type operatorSuffix struct {
	keyword  string
	operator Operator
}

// operatorSuffixes is ordered longest first: GreaterThanEqual must match
// before GreaterThan, NotIn before In.
var operatorSuffixes = []operatorSuffix{
	{"GreaterThanEqual", OpGte},
	{"LessThanEqual", OpLte},
	{"GreaterThan", OpGt},
	{"IsNotNull", OpIsNotNull},
	{"LessThan", OpLt},
	{"NotLike", OpNotLike},
	{"Between", OpBetween},
	{"IsNull", OpIsNull},
	{"NotIn", OpNotIn},
	{"Like", OpLike},
	{"Not", OpNe},
	{"In", OpIn},
}

// splitOperator strips a known operator keyword from the end of token.
func splitOperator(token string) (string, Operator) {
	for _, s := range operatorSuffixes {
		if strings.HasSuffix(token, s.keyword) {
			return strings.TrimSuffix(token, s.keyword), s.operator
		}
	}
	return token, OpEq
}

// Logical joins a condition to the one before it.
type Logical int

const (
	And Logical = iota
	Or
)

func (l Logical) String() string {
	if l == Or {
		return "OR"
	}
	return "AND"
}
