package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Pipeline is a document-style aggregation pipeline: an ordered list of
// stages. The emulator recognizes a small closed set of shapes (count,
// group-by-day, group-by-field, group-by-pair) and evaluates them by
// pulling the matching rows and grouping in memory; any other shape is
// ErrUnsupported, never a silently empty result.
type Pipeline []Stage

// Stage is one pipeline stage, e.g. {"$match": {...}}.
type Stage map[string]any

// Result is one aggregation output row.
type Result map[string]any

// ---------------------------------------------------------------------------
// Pipeline shape recognition
// ---------------------------------------------------------------------------

type aggKind int

const (
	aggCount aggKind = iota
	aggGroupByDay
	aggGroupByField
	aggGroupByPair
)

// aggPlan is the recognized shape of a pipeline: which emulation strategy
// applies and the pieces it needs.
type aggPlan struct {
	kind      aggKind
	match     Filter
	countName string // $count output name

	dayField   string // group-by-day timestamp field
	groupField string // group-by-field key field

	pairNames  [2]string // group-by-pair output key names, in given order
	pairFields [2]string // the referenced document fields

	accCount string // accumulator name holding {$sum: 1}
	accSum   string // accumulator name holding {$sum: "$field"}, "" if none
	sumField string

	sortByCountDesc bool
	limit           *int
}

// parsePipeline matches a pipeline against the supported shapes. It is a
// shape matcher, not a general evaluator: an optional leading $match,
// then either $count or $group, then optional $sort (by count, descending)
// and $limit stages.
func parsePipeline(p Pipeline) (*aggPlan, error) {
	if len(p) == 0 {
		return nil, unsupported("aggregate", "empty pipeline")
	}

	plan := &aggPlan{}
	i := 0

	if v, ok := stageOp(p[i], "$match"); ok {
		f, ok := asFilter(v)
		if !ok {
			return nil, unsupported("aggregate", "$match")
		}
		plan.match = f
		i++
	}
	if i >= len(p) {
		return nil, unsupported("aggregate", "$match-only pipeline")
	}

	if v, ok := stageOp(p[i], "$count"); ok {
		name, ok := v.(string)
		if !ok || name == "" {
			return nil, unsupported("aggregate", "$count")
		}
		if i+1 != len(p) {
			return nil, unsupported("aggregate", stageName(p[i+1]))
		}
		plan.kind = aggCount
		plan.countName = name
		return plan, nil
	}

	v, ok := stageOp(p[i], "$group")
	if !ok {
		return nil, unsupported("aggregate", stageName(p[i]))
	}
	group, ok := asFilter(v)
	if !ok {
		return nil, unsupported("aggregate", "$group")
	}
	if err := parseGroup(plan, group); err != nil {
		return nil, err
	}
	i++

	for ; i < len(p); i++ {
		if v, ok := stageOp(p[i], "$sort"); ok {
			if err := parseCountSort(plan, v); err != nil {
				return nil, err
			}
			continue
		}
		if v, ok := stageOp(p[i], "$limit"); ok {
			n, ok := toFloat(v)
			if !ok || n < 0 {
				return nil, unsupported("aggregate", "$limit")
			}
			lim := int(n)
			plan.limit = &lim
			continue
		}
		return nil, unsupported("aggregate", stageName(p[i]))
	}

	return plan, nil
}

// parseGroup recognizes the supported $group keys: a day derivation, a
// single "$field" reference, or a two-field composite.
func parseGroup(plan *aggPlan, group map[string]any) error {
	id, ok := group["_id"]
	if !ok {
		return unsupported("aggregate", "$group without _id")
	}

	switch key := id.(type) {
	case string:
		field, ok := fieldRef(key)
		if !ok {
			return unsupported("aggregate", key)
		}
		plan.kind = aggGroupByField
		plan.groupField = field

	case map[string]any:
		if day, ok := parseDayKey(key); ok {
			plan.kind = aggGroupByDay
			plan.dayField = day
			break
		}
		if len(key) == 2 {
			names := make([]string, 0, 2)
			for name := range key {
				names = append(names, name)
			}
			sort.Strings(names)
			for j, name := range names {
				ref, _ := key[name].(string)
				field, ok := fieldRef(ref)
				if !ok {
					return unsupported("aggregate", fmt.Sprint(key[name]))
				}
				plan.pairNames[j] = name
				plan.pairFields[j] = field
			}
			plan.kind = aggGroupByPair
			break
		}
		return unsupported("aggregate", "$group _id")

	default:
		return unsupported("aggregate", "$group _id")
	}

	return parseAccumulators(plan, group)
}

// parseAccumulators reads the non-_id keys of a $group stage. Supported:
// {$sum: 1} (running count) and {$sum: "$field"} (running numeric sum).
func parseAccumulators(plan *aggPlan, group map[string]any) error {
	names := make([]string, 0, len(group))
	for name := range group {
		if name != "_id" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		acc, ok := asFilter(group[name])
		if !ok || len(acc) != 1 {
			return unsupported("aggregate", name)
		}
		operand, ok := acc["$sum"]
		if !ok {
			return unsupported("aggregate", name)
		}
		if n, ok := toFloat(operand); ok && n == 1 {
			plan.accCount = name
			continue
		}
		if ref, ok := operand.(string); ok {
			if field, ok := fieldRef(ref); ok {
				plan.accSum = name
				plan.sumField = field
				continue
			}
		}
		return unsupported("aggregate", name)
	}

	if plan.accCount == "" {
		return unsupported("aggregate", "$group without count accumulator")
	}
	return nil
}

// parseDayKey recognizes the two calendar-day derivations the platform
// issues: {$dateToString: {format: "%Y-%m-%d", date: "$f"}} and
// {$substr: ["$f", 0, 10]}.
func parseDayKey(key map[string]any) (string, bool) {
	if len(key) != 1 {
		return "", false
	}
	if raw, ok := key["$dateToString"]; ok {
		spec, ok := asFilter(raw)
		if !ok {
			return "", false
		}
		if format, _ := spec["format"].(string); format != "%Y-%m-%d" {
			return "", false
		}
		ref, _ := spec["date"].(string)
		return fieldRef(ref)
	}
	if raw, ok := key["$substr"]; ok {
		args, ok := raw.([]any)
		if !ok || len(args) != 3 {
			return "", false
		}
		from, fok := toFloat(args[1])
		length, lok := toFloat(args[2])
		if !fok || !lok || from != 0 || length != 10 {
			return "", false
		}
		ref, _ := args[0].(string)
		return fieldRef(ref)
	}
	return "", false
}

// parseCountSort accepts only a sort-by-count-descending stage.
func parseCountSort(plan *aggPlan, v any) error {
	spec, ok := asFilter(v)
	if !ok || len(spec) != 1 {
		return unsupported("aggregate", "$sort")
	}
	dirRaw, ok := spec[plan.accCount]
	if !ok {
		return unsupported("aggregate", "$sort")
	}
	dir, err := ParseSortDir(dirRaw)
	if err != nil || dir != SortDesc {
		return unsupported("aggregate", "$sort")
	}
	plan.sortByCountDesc = true
	return nil
}

func stageOp(s Stage, op string) (any, bool) {
	if len(s) != 1 {
		return nil, false
	}
	v, ok := s[op]
	return v, ok
}

func stageName(s Stage) string {
	for k := range s {
		return k
	}
	return "empty stage"
}

func asFilter(v any) (Filter, bool) {
	switch m := v.(type) {
	case Filter:
		return m, true
	case map[string]any:
		return m, true
	case Stage:
		return map[string]any(m), true
	}
	return nil, false
}

// fieldRef strips the "$" prefix of a field reference.
func fieldRef(s string) (string, bool) {
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}
	return s[1:], true
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

// Aggregate evaluates a pipeline against the collection. Grouping happens
// in memory over the rows the optional $match bounds; the count-only shape
// is answered with a direct row-count query.
func (c *Collection[T]) Aggregate(ctx context.Context, p Pipeline) ([]Result, error) {
	plan, err := parsePipeline(p)
	if err != nil {
		return nil, err
	}

	if plan.kind == aggCount {
		n, err := c.Count(ctx, plan.match)
		if err != nil {
			return nil, err
		}
		return []Result{{plan.countName: n}}, nil
	}

	if c.resolve == nil {
		return nil, unsupported("aggregate", "$group")
	}

	// Group stages must see every matching row, so no window applies here.
	docs, err := c.fetch(ctx, plan.match, nil, nil, 0)
	if err != nil {
		return nil, err
	}

	switch plan.kind {
	case aggGroupByDay:
		return c.groupByDay(plan, docs), nil
	case aggGroupByField:
		return c.groupByField(plan, docs), nil
	default:
		return c.groupByPair(plan, docs), nil
	}
}

// groupByDay buckets rows by the first 10 characters of the timestamp's
// RFC 3339 UTC serialization (YYYY-MM-DD), ascending by day.
func (c *Collection[T]) groupByDay(plan *aggPlan, docs []*T) []Result {
	counts := make(map[string]int64)
	for _, doc := range docs {
		v, ok := c.resolve(doc, plan.dayField)
		if !ok {
			continue
		}
		ts, ok := toTime(v)
		if !ok {
			continue
		}
		counts[ts.UTC().Format("2006-01-02")]++
	}

	days := make([]string, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Strings(days)

	results := make([]Result, len(days))
	for i, day := range days {
		results[i] = Result{"_id": day, plan.accCount: counts[day]}
	}
	return results
}

type groupBucket struct {
	id    any
	count int64
	sum   float64
}

// groupByField buckets rows by a literal field with a running count and an
// optional running numeric sum. Default order is ascending lexicographic by
// group key; a $sort stage reorders by count descending before the optional
// $limit truncates.
func (c *Collection[T]) groupByField(plan *aggPlan, docs []*T) []Result {
	buckets := make(map[string]*groupBucket)
	for _, doc := range docs {
		v, _ := c.resolve(doc, plan.groupField)
		key := groupKeyString(v)

		b, ok := buckets[key]
		if !ok {
			b = &groupBucket{id: v}
			buckets[key] = b
		}
		b.count++

		if plan.sumField != "" {
			if sv, ok := c.resolve(doc, plan.sumField); ok {
				if f, ok := toFloat(sv); ok {
					b.sum += f
				}
			}
		}
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if plan.sortByCountDesc {
		sort.SliceStable(keys, func(i, j int) bool {
			return buckets[keys[i]].count > buckets[keys[j]].count
		})
	}
	if plan.limit != nil && len(keys) > *plan.limit {
		keys = keys[:*plan.limit]
	}

	results := make([]Result, len(keys))
	for i, key := range keys {
		b := buckets[key]
		r := Result{"_id": b.id, plan.accCount: b.count}
		if plan.accSum != "" {
			r[plan.accSum] = b.sum
		}
		results[i] = r
	}
	return results
}

// groupByPair tallies rows by a two-field composite key, ascending by the
// pair for determinism.
func (c *Collection[T]) groupByPair(plan *aggPlan, docs []*T) []Result {
	type pairBucket struct {
		id    map[string]any
		count int64
	}

	buckets := make(map[string]*pairBucket)
	for _, doc := range docs {
		a, _ := c.resolve(doc, plan.pairFields[0])
		b, _ := c.resolve(doc, plan.pairFields[1])
		key := groupKeyString(a) + "\x00" + groupKeyString(b)

		bucket, ok := buckets[key]
		if !ok {
			bucket = &pairBucket{id: map[string]any{
				plan.pairNames[0]: a,
				plan.pairNames[1]: b,
			}}
			buckets[key] = bucket
		}
		bucket.count++
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]Result, len(keys))
	for i, key := range keys {
		results[i] = Result{"_id": buckets[key].id, plan.accCount: buckets[key].count}
	}
	return results
}

// groupKeyString renders a group key value for bucketing and ordering.
func groupKeyString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if ts, ok := toTime(v); ok {
		return ts.UTC().Format("2006-01-02T15:04:05.999999Z07:00")
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	s := fmt.Sprint(v)
	return strings.TrimSpace(s)
}
