package query

import "strings"

// Action is the top-level operation a method name requests.
type Action int

const (
	ActionFind Action = iota
	ActionDelete
	ActionCount
	ActionExists
	ActionUpdate
)

var actionNames = [...]string{
	ActionFind:   "FIND",
	ActionDelete: "DELETE",
	ActionCount:  "COUNT",
	ActionExists: "EXISTS",
	ActionUpdate: "UPDATE",
}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return "UNKNOWN"
	}
	return actionNames[a]
}

// actionPrefix pairs a lower-cased method prefix with its action.
type actionPrefix struct {
	prefix string
	action Action
}

// actionPrefixes are tried in order. "exist" follows "exists" so the
// longer spelling wins when both match.
var actionPrefixes = []actionPrefix{
	{"find", ActionFind},
	{"delete", ActionDelete},
	{"count", ActionCount},
	{"exists", ActionExists},
	{"exist", ActionExists},
	{"update", ActionUpdate},
}

// ActionFor resolves the action encoded in the method name's prefix.
func ActionFor(methodName string) (Action, bool) {
	lower := strings.ToLower(methodName)
	for _, p := range actionPrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return p.action, true
		}
	}
	return 0, false
}

// Mutates reports whether the action changes stored rows.
func (a Action) Mutates() bool {
	return a == ActionDelete || a == ActionUpdate
}
