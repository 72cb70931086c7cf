package metadata

import (
	"fmt"
	"strconv"
	"strings"
)

// TagKey is the struct tag consulted for column declarations.
const TagKey = "repo"

// applyTag merges a repo:"..." declaration into col.
func applyTag(tag string, col *ColumnProperty) error {
	for _, item := range strings.Split(tag, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, value, hasValue := strings.Cut(item, "=")
		switch key {
		case "id":
			col.Identifier = true
		case "nullable":
			col.Nullable = true
		case "unique":
			col.Unique = true
		case "name":
			if value != "" {
				col.Name = value
			}
		case "default":
			if hasValue {
				col.DefaultValue = value
			}
		case "length", "precision", "scale":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("tag %s: %w", key, err)
			}
			switch key {
			case "length":
				col.Length = positive(n)
			case "precision":
				col.Precision = positive(n)
			default:
				col.Scale = positive(n)
			}
		default:
			return fmt.Errorf("unknown tag option %q", key)
		}
	}
	return nil
}
