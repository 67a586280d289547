package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/synthnet/internal/ir"
)

// Predicate filters the rows of a listing. Only the types in this file
// implement it, so compilePredicate switches over them exhaustively.
type Predicate interface {
	predicateNode()
}

// Equals matches rows whose field equals Value.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// And matches rows that satisfy every predicate. An empty And matches
// every row.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// ErrUnknownField is returned for a filter on a field the listing does not
// have.
var ErrUnknownField = errors.New("unknown filter field")

// Filterable fields per listing, mapped to their columns.
var (
	networkFields = map[string]string{
		"id":   "id",
		"name": "name",
		"hash": "hash",
		"seq":  "seq",
	}
	pluginFields = map[string]string{
		"path":      "path",
		"index":     "idx",
		"unique_id": "unique_id",
		"label":     "label",
		"name":      "name",
		"maker":     "maker",
		"type_name": "type_name",
		"broken":    "broken",
	}
)

// compileWhere renders p as a WHERE clause over fields, or "" for a nil
// predicate. Values are always bound as parameters.
func compileWhere(p Predicate, fields map[string]string) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	sql, params, err := compilePredicate(p, fields)
	if err != nil {
		return "", nil, err
	}
	return " WHERE " + sql, params, nil
}

func compilePredicate(p Predicate, fields map[string]string) (string, []any, error) {
	switch pred := p.(type) {
	case Equals:
		return compileEquals(pred, fields)
	case *Equals:
		return compileEquals(*pred, fields)
	case And:
		return compileAnd(pred, fields)
	case *And:
		return compileAnd(*pred, fields)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals, fields map[string]string) (string, []any, error) {
	col, ok := fields[eq.Field]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownField, eq.Field)
	}
	param, err := valueParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("filter %s: %w", eq.Field, err)
	}
	return col + " = ?", []any{param}, nil
}

func compileAnd(and And, fields map[string]string) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, p := range and.Predicates {
		sql, ps, err := compilePredicate(p, fields)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

// valueParam converts a scalar value to a driver parameter. NULL never
// compares equal in SQL, so Null is rejected rather than matching nothing.
func valueParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.Str:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Real:
		return float64(val), nil
	case ir.Bool:
		return bool(val), nil
	case ir.Null, nil:
		return nil, errors.New("null cannot be compared")
	default:
		return nil, fmt.Errorf("%T cannot be used as a filter value", v)
	}
}
