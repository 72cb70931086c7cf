package metadata

import (
	"strings"
	"unicode"
)

// NamingStrategy derives table and column names when none is declared.
type NamingStrategy interface {
	TableName(typeName string) string
	ColumnName(attribute string) string
}

// DefaultNaming lower-cases type names for tables and lower-camel-cases
// attribute names for columns (Email -> email, ZipCode -> zipCode,
// ID -> id).
type DefaultNaming struct{}

func (DefaultNaming) TableName(typeName string) string {
	return strings.ToLower(typeName)
}

func (DefaultNaming) ColumnName(attribute string) string {
	return LowerCamel(attribute)
}

// LowerCamel lower-cases the leading upper-case run of s, keeping the last
// letter of an acronym when it starts the next word (URLPath -> urlPath).
func LowerCamel(s string) string {
	runes := []rune(s)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	switch {
	case n == 0:
		return s
	case n == 1 || n == len(runes):
		return strings.ToLower(string(runes[:n])) + string(runes[n:])
	case !unicode.IsLetter(runes[n]):
		return strings.ToLower(string(runes[:n])) + string(runes[n:])
	}
	return strings.ToLower(string(runes[:n-1])) + string(runes[n-1:])
}

// SnakeCaseNaming maps UserProfile to user_profile and ZipCode to zip_code.
type SnakeCaseNaming struct{}

func (SnakeCaseNaming) TableName(typeName string) string {
	return SnakeCase(typeName)
}

func (SnakeCaseNaming) ColumnName(attribute string) string {
	return SnakeCase(attribute)
}

// NamingByName resolves a strategy from its configuration name.
func NamingByName(name string) NamingStrategy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "snake", "snake_case", "snakecase":
		return SnakeCaseNaming{}
	default:
		return DefaultNaming{}
	}
}

// SnakeCase converts CamelCase identifiers, keeping acronyms together
// (HTTPServer -> http_server, UserID -> user_id).
func SnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
