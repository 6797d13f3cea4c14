package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Materialization defaults shared by every entity façade. A document never
// surfaces a NULL column: absent timestamps materialize to "now", absent
// flags and enums to the entity's documented default, absent embedded
// collections to empty sequences. Materialization itself performs no I/O.

// Now returns the current instant in storage-native form: UTC at
// microsecond precision, matching timestamptz resolution so round-tripped
// values compare equal.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// TextOr returns the column value, or def when the column is NULL.
func TextOr(t pgtype.Text, def string) string {
	if t.Valid {
		return t.String
	}
	return def
}

// TextPtr returns a *string (nil when NULL).
func TextPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}

// BoolOr returns the column value, or the entity's domain default when NULL.
func BoolOr(b pgtype.Bool, def bool) bool {
	if b.Valid {
		return b.Bool
	}
	return def
}

// IntOr returns the column value, or def when NULL.
func IntOr(n pgtype.Int4, def int) int {
	if n.Valid {
		return int(n.Int32)
	}
	return def
}

// TimeOrNow returns the column value in UTC, or "now" when NULL.
func TimeOrNow(t pgtype.Timestamptz) time.Time {
	if t.Valid {
		return t.Time.UTC()
	}
	return Now()
}

// TimePtr returns a *time.Time in UTC (nil when NULL).
func TimePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

// JSONMap unmarshals a jsonb column into a map. NULL and empty blobs
// materialize to a nil map, which the sort comparator treats as absent.
func JSONMap(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal json column: %w", err)
	}
	return m, nil
}

// JSONValue marshals a map for a jsonb column. A nil map stores as NULL.
func JSONValue(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return raw, nil
}
