package postgres

import (
	"strings"
	"unicode"
)

// Table holds the per-entity metadata the translators are driven by: the
// physical table name, the ordered select list, and the irregular
// field↔column mappings that the mechanical case conversion cannot produce.
type Table struct {
	// Name is the physical table name.
	Name string
	// Entity is the document name used in error messages ("user", "wallet").
	Entity string
	// Columns is the ordered select list every fetch uses.
	Columns []string
	// FieldColumns maps irregular document fields to columns
	// (e.g. "_id" → "id", "password" → "password_hash").
	FieldColumns map[string]string
	// ColumnFields maps columns back to fields where the mechanical
	// snake→camel walk would produce the wrong name. Explicit entries take
	// precedence over the mechanical rule.
	ColumnFields map[string]string
}

// Column translates a document field name to its column name. Total and
// stable: an irregular entry wins, otherwise the field is snake-cased.
// Filter, sort and select-list construction all go through here so the
// three stay consistent.
func (t Table) Column(field string) string {
	if col, ok := t.FieldColumns[field]; ok {
		return col
	}
	return camelToSnake(field)
}

// Field translates a column name back to its document field name.
// Explicit inverse entries take precedence; "id" maps to "_id" by default.
func (t Table) Field(column string) string {
	if f, ok := t.ColumnFields[column]; ok {
		return f
	}
	if column == "id" {
		return "_id"
	}
	return snakeToCamel(column)
}

// camelToSnake converts camelCase to snake_case: "createdAt" → "created_at",
// "txHash" → "tx_hash". Runs of capitals are treated letter by letter.
func camelToSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// snakeToCamel converts snake_case to camelCase: "created_at" → "createdAt".
func snakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.Grow(len(s))
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
