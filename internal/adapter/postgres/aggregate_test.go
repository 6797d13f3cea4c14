package postgres

import (
	"errors"
	"testing"
)

func TestParsePipeline_Count(t *testing.T) {
	t.Parallel()

	plan, err := parsePipeline(Pipeline{
		{"$match": map[string]any{"name": "alice"}},
		{"$count": "total"},
	})
	if err != nil {
		t.Fatalf("parsePipeline: %v", err)
	}
	if plan.kind != aggCount {
		t.Errorf("kind = %v, want aggCount", plan.kind)
	}
	if plan.countName != "total" {
		t.Errorf("countName = %q, want %q", plan.countName, "total")
	}
	if plan.match["name"] != "alice" {
		t.Errorf("match = %v, want the $match filter", plan.match)
	}
}

func TestParsePipeline_CountWithoutMatch(t *testing.T) {
	t.Parallel()

	plan, err := parsePipeline(Pipeline{{"$count": "n"}})
	if err != nil {
		t.Fatalf("parsePipeline: %v", err)
	}
	if plan.kind != aggCount || plan.countName != "n" || plan.match != nil {
		t.Errorf("plan = %+v, want bare count", plan)
	}
}

func TestParsePipeline_GroupByDay(t *testing.T) {
	t.Parallel()

	shapes := []Pipeline{
		{
			{"$group": map[string]any{
				"_id": map[string]any{
					"$dateToString": map[string]any{"format": "%Y-%m-%d", "date": "$createdAt"},
				},
				"count": map[string]any{"$sum": 1},
			}},
		},
		{
			{"$group": map[string]any{
				"_id":   map[string]any{"$substr": []any{"$createdAt", 0, 10}},
				"count": map[string]any{"$sum": 1},
			}},
		},
	}

	for _, p := range shapes {
		plan, err := parsePipeline(p)
		if err != nil {
			t.Fatalf("parsePipeline: %v", err)
		}
		if plan.kind != aggGroupByDay {
			t.Errorf("kind = %v, want aggGroupByDay", plan.kind)
		}
		if plan.dayField != "createdAt" {
			t.Errorf("dayField = %q, want %q", plan.dayField, "createdAt")
		}
		if plan.accCount != "count" {
			t.Errorf("accCount = %q, want %q", plan.accCount, "count")
		}
	}
}

func TestParsePipeline_GroupByFieldWithSumSortLimit(t *testing.T) {
	t.Parallel()

	plan, err := parsePipeline(Pipeline{
		{"$match": map[string]any{"status": "confirmed"}},
		{"$group": map[string]any{
			"_id":   "$currency",
			"count": map[string]any{"$sum": 1},
			"total": map[string]any{"$sum": "$amount"},
		}},
		{"$sort": map[string]any{"count": -1}},
		{"$limit": 5},
	})
	if err != nil {
		t.Fatalf("parsePipeline: %v", err)
	}

	if plan.kind != aggGroupByField {
		t.Errorf("kind = %v, want aggGroupByField", plan.kind)
	}
	if plan.groupField != "currency" {
		t.Errorf("groupField = %q", plan.groupField)
	}
	if plan.accCount != "count" || plan.accSum != "total" || plan.sumField != "amount" {
		t.Errorf("accumulators = %q/%q/%q", plan.accCount, plan.accSum, plan.sumField)
	}
	if !plan.sortByCountDesc {
		t.Error("sortByCountDesc not recognized")
	}
	if plan.limit == nil || *plan.limit != 5 {
		t.Errorf("limit = %v, want 5", plan.limit)
	}
}

func TestParsePipeline_GroupByPair(t *testing.T) {
	t.Parallel()

	plan, err := parsePipeline(Pipeline{
		{"$group": map[string]any{
			"_id":   map[string]any{"action": "$action", "network": "$network"},
			"count": map[string]any{"$sum": 1},
		}},
	})
	if err != nil {
		t.Fatalf("parsePipeline: %v", err)
	}

	if plan.kind != aggGroupByPair {
		t.Errorf("kind = %v, want aggGroupByPair", plan.kind)
	}
	// Pair names are visited in sorted order for determinism.
	if plan.pairNames != [2]string{"action", "network"} {
		t.Errorf("pairNames = %v", plan.pairNames)
	}
	if plan.pairFields != [2]string{"action", "network"} {
		t.Errorf("pairFields = %v", plan.pairFields)
	}
}

func TestParsePipeline_Unsupported(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    Pipeline
	}{
		{"empty pipeline", Pipeline{}},
		{"match only", Pipeline{{"$match": map[string]any{}}}},
		{"unknown stage", Pipeline{{"$facet": map[string]any{}}}},
		{"group without _id", Pipeline{
			{"$group": map[string]any{"count": map[string]any{"$sum": 1}}},
		}},
		{"group without count accumulator", Pipeline{
			{"$group": map[string]any{"_id": "$currency"}},
		}},
		{"avg accumulator", Pipeline{
			{"$group": map[string]any{
				"_id": "$currency",
				"avg": map[string]any{"$avg": "$amount"},
			}},
		}},
		{"dateToString with other format", Pipeline{
			{"$group": map[string]any{
				"_id": map[string]any{
					"$dateToString": map[string]any{"format": "%Y-%m", "date": "$createdAt"},
				},
				"count": map[string]any{"$sum": 1},
			}},
		}},
		{"sort by key ascending", Pipeline{
			{"$group": map[string]any{"_id": "$currency", "count": map[string]any{"$sum": 1}}},
			{"$sort": map[string]any{"_id": 1}},
		}},
		{"stage after count", Pipeline{
			{"$count": "n"},
			{"$limit": 1},
		}},
		{"three-field composite key", Pipeline{
			{"$group": map[string]any{
				"_id":   map[string]any{"a": "$a", "b": "$b", "c": "$c"},
				"count": map[string]any{"$sum": 1},
			}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := parsePipeline(tt.p)
			if !errors.Is(err, ErrUnsupported) {
				t.Fatalf("err = %v, want ErrUnsupported", err)
			}
			var ue *UnsupportedError
			if !errors.As(err, &ue) {
				t.Fatalf("err = %v, want *UnsupportedError", err)
			}
		})
	}
}
