package pull

import (
	"encoding/json"
	"strings"
	"unicode"
)

// overrides maps an entity type to a per-field override of the mechanical
// camelCase→snake_case rule, for cloud field names that don't transform
// cleanly (abbreviations, acronyms, renamed columns).
var overrides = map[string]map[string]string{
	"products": {
		"basePrice": "base_price",
		"taxId":     "tax_id",
	},
	"sale": {
		"orderType": "order_type",
	},
}

// ColumnName returns the local store column name for a cloud field name,
// checking the entity's override map before falling back to the mechanical
// camelCase→snake_case rule.
func ColumnName(entityType, field string) string {
	if m, ok := overrides[entityType]; ok {
		if col, ok := m[field]; ok {
			return col
		}
	}
	return toSnakeCase(field)
}

// toSnakeCase converts a camelCase or PascalCase identifier to snake_case.
// Consecutive uppercase letters (an acronym) are treated as one unit, so
// "orderID" becomes "order_id", not "order_i_d".
func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (nextLower && i > 0 && unicode.IsUpper(runes[i-1])) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CoerceValue normalizes a decoded JSON value for storage in a TEXT/INTEGER
// SQLite column: booleans become 0/1, and arrays/objects are re-encoded as
// their JSON string form so they can live in a TEXT column.
func CoerceValue(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return 1
		}
		return 0
	case map[string]any, []any:
		encoded, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(encoded)
	default:
		return val
	}
}
