package postgres

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SortDir is a sort direction in document convention: +1 ascending,
// -1 descending.
type SortDir int

const (
	SortAsc  SortDir = 1
	SortDesc SortDir = -1
)

// SortField is one entry of a sort specification.
type SortField struct {
	Field string
	Dir   SortDir
}

// SortSpec is an ordered document-style sort specification.
type SortSpec []SortField

// ParseSortDir accepts the document-store direction spellings: 1/-1 in any
// numeric type, or "asc"/"desc"/"ascending"/"descending".
func ParseSortDir(v any) (SortDir, error) {
	switch d := v.(type) {
	case SortDir:
		if d == SortAsc || d == SortDesc {
			return d, nil
		}
	case int:
		return parseNumericDir(float64(d))
	case int32:
		return parseNumericDir(float64(d))
	case int64:
		return parseNumericDir(float64(d))
	case float64:
		return parseNumericDir(d)
	case string:
		switch strings.ToLower(d) {
		case "asc", "ascending":
			return SortAsc, nil
		case "desc", "descending":
			return SortDesc, nil
		}
	}
	return 0, unsupported("sort", fmt.Sprint(v))
}

func parseNumericDir(f float64) (SortDir, error) {
	switch f {
	case 1:
		return SortAsc, nil
	case -1:
		return SortDesc, nil
	}
	return 0, unsupported("sort", fmt.Sprint(f))
}

// splitSort partitions a sort spec into relational ORDER BY clauses and the
// deferred part. A dotted field addresses a path inside a nested structure
// (a JSON column) and cannot be pushed into ORDER BY; it is applied as a
// stable in-memory sort after the rows are fetched. Spec order is preserved
// on both sides.
func splitSort(t Table, s SortSpec) (orderBy []string, deferred SortSpec) {
	for _, f := range s {
		if strings.Contains(f.Field, ".") {
			deferred = append(deferred, f)
			continue
		}
		dir := "ASC"
		if f.Dir == SortDesc {
			dir = "DESC"
		}
		orderBy = append(orderBy, t.Column(f.Field)+" "+dir)
	}
	return orderBy, deferred
}

// applySort runs the deferred part of a sort spec as a stable in-memory
// sort, so ties keep their fetch order and the relational fetch order is
// irrelevant to the final ordering. resolve maps a (possibly dotted) field
// to a value on the document; an unresolved field sorts as nil, and nil
// sorts below everything: first ascending, last descending.
func applySort[T any](docs []*T, deferred SortSpec, resolve func(*T, string) (any, bool)) {
	if len(deferred) == 0 {
		return
	}

	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range deferred {
			av, _ := resolve(docs[i], f.Field)
			bv, _ := resolve(docs[j], f.Field)

			c := compareValues(av, bv)
			if c == 0 {
				continue
			}
			if f.Dir == SortDesc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareValues orders two document values: nil below everything, numerics
// coerced to float64, timestamps chronologically, bools false<true, strings
// byte-wise. Values of incomparable types fall back to their string forms.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}

	if at, aok := toTime(a); aok {
		if bt, bok := toTime(b); bok {
			return at.Compare(bt)
		}
	}

	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case !ab && bb:
				return -1
			case ab && !bb:
				return 1
			default:
				return 0
			}
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if !aok || !bok {
		as, bs = fmt.Sprint(a), fmt.Sprint(b)
	}
	return strings.Compare(as, bs)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}

// LookupPath walks a dotted path inside a nested map. Façade field
// resolvers use it for values stored in JSON columns.
func LookupPath(m map[string]any, path string) (any, bool) {
	cur := any(m)
	for _, seg := range strings.Split(path, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
