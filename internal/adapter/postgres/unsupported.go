package postgres

import (
	"errors"
	"fmt"
)

// ErrUnsupported marks a document query the engine cannot express in SQL:
// an unknown filter operator, an unmatched aggregation pipeline shape, an
// update document outside the supported subset, or an unregistered populate
// field. Callers can distinguish "no matches" from "the engine could not
// translate this query" by checking errors.Is(err, ErrUnsupported).
var ErrUnsupported = errors.New("unsupported query shape")

// UnsupportedError carries the operation and the offending token.
type UnsupportedError struct {
	Op    string // "filter", "sort", "aggregate", "update", "populate"
	Token string // the operator, stage or field that failed to translate
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: unsupported token %q", e.Op, e.Token)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

func unsupported(op, token string) error {
	return &UnsupportedError{Op: op, Token: token}
}
