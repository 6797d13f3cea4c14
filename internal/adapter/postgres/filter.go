package postgres

import (
	"reflect"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"
)

// Filter is a document-style query predicate: a mapping from field name to
// either a literal (equality), an operator map ($gte, $in, ...), or, under
// the key "$or", a list of alternative sub-filters.
type Filter map[string]any

// Update is a document-style update description. Only the narrow subset a
// façade declares support for translates; everything else is
// ErrUnsupported.
type Update map[string]any

// translateFilter converts a Filter into a squirrel predicate. Field clauses
// are AND-composed; fields are visited in sorted order so the generated SQL
// is stable. An empty filter returns nil (no WHERE clause). Unknown
// operators return an UnsupportedError instead of silently widening the
// result set.
func translateFilter(t Table, f Filter) (squirrel.Sqlizer, error) {
	if len(f) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conj := make(squirrel.And, 0, len(keys))
	for _, key := range keys {
		v := f[key]

		if key == "$or" {
			clause, err := translateOr(t, v)
			if err != nil {
				return nil, err
			}
			conj = append(conj, clause)
			continue
		}
		if len(key) > 0 && key[0] == '$' {
			return nil, unsupported("filter", key)
		}

		col := t.Column(key)

		if nested, ok := v.(Filter); ok {
			v = map[string]any(nested)
		}
		if ops, ok := v.(map[string]any); ok {
			clauses, err := translateOperators(col, ops)
			if err != nil {
				return nil, err
			}
			conj = append(conj, clauses...)
			continue
		}

		// Literal: nil means IS NULL, everything else is an equality.
		conj = append(conj, squirrel.Eq{col: normalizeValue(v)})
	}

	if len(conj) == 1 {
		return conj[0], nil
	}
	return conj, nil
}

// translateOr builds a disjunction from a list of alternative sub-filters.
// Each alternative is translated as its own conjunction.
func translateOr(t Table, v any) (squirrel.Sqlizer, error) {
	alts, err := orAlternatives(v)
	if err != nil {
		return nil, err
	}

	disj := make(squirrel.Or, 0, len(alts))
	for _, alt := range alts {
		clause, err := translateFilter(t, alt)
		if err != nil {
			return nil, err
		}
		if clause == nil {
			// An empty alternative matches everything, so the whole
			// disjunction does too.
			return squirrel.Expr("TRUE"), nil
		}
		disj = append(disj, clause)
	}
	return disj, nil
}

// orAlternatives normalizes the $or operand into a []Filter.
func orAlternatives(v any) ([]Filter, error) {
	switch list := v.(type) {
	case []Filter:
		return list, nil
	case []map[string]any:
		alts := make([]Filter, len(list))
		for i, m := range list {
			alts[i] = Filter(m)
		}
		return alts, nil
	case []any:
		alts := make([]Filter, 0, len(list))
		for _, e := range list {
			switch m := e.(type) {
			case Filter:
				alts = append(alts, m)
			case map[string]any:
				alts = append(alts, Filter(m))
			default:
				return nil, unsupported("filter", "$or")
			}
		}
		return alts, nil
	default:
		return nil, unsupported("filter", "$or")
	}
}

// translateOperators converts one field's operator map into predicates.
// A map with several operators narrows via conjunction. Operators are
// visited in sorted order for stable SQL.
func translateOperators(col string, ops map[string]any) ([]squirrel.Sqlizer, error) {
	keys := make([]string, 0, len(ops))
	for k := range ops {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]squirrel.Sqlizer, 0, len(keys))
	for _, op := range keys {
		v := ops[op]
		switch op {
		case "$gte":
			clauses = append(clauses, squirrel.GtOrEq{col: normalizeValue(v)})
		case "$lte":
			clauses = append(clauses, squirrel.LtOrEq{col: normalizeValue(v)})
		case "$gt":
			clauses = append(clauses, squirrel.Gt{col: normalizeValue(v)})
		case "$lt":
			clauses = append(clauses, squirrel.Lt{col: normalizeValue(v)})
		case "$ne":
			// nil operand turns into IS NOT NULL via squirrel.NotEq.
			clauses = append(clauses, squirrel.NotEq{col: normalizeValue(v)})
		case "$in":
			clauses = append(clauses, squirrel.Eq{col: inOperand(v)})
		case "$regex":
			pattern, ok := v.(string)
			if !ok {
				return nil, unsupported("filter", "$regex")
			}
			if opts, _ := ops["$options"].(string); containsFold(opts, 'i') {
				clauses = append(clauses, squirrel.Expr(col+" ~* ?", pattern))
			} else {
				clauses = append(clauses, squirrel.Expr(col+" ~ ?", pattern))
			}
		case "$options":
			// Consumed together with $regex.
			if _, ok := ops["$regex"]; !ok {
				return nil, unsupported("filter", "$options")
			}
		default:
			return nil, unsupported("filter", op)
		}
	}
	return clauses, nil
}

// inOperand normalizes the $in operand into a slice: a non-sequence operand
// is wrapped into a one-element sequence.
func inOperand(v any) []any {
	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return []any{normalizeValue(v)}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = normalizeValue(rv.Index(i).Interface())
	}
	return out
}

// normalizeValue puts a filter value into its storage-native form:
// timestamps become UTC at microsecond precision (the timestamptz
// resolution, so comparisons sort the same in SQL and in memory), and named
// string kinds (domain enums) decay to plain strings.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.UTC().Truncate(time.Microsecond)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Truncate(time.Microsecond)
	case string:
		return val
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return v
}

func containsFold(s string, c byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == c || s[i] == c-('a'-'A') {
			return true
		}
	}
	return false
}
