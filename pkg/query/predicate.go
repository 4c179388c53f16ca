package query

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"time"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
)

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// Predicate is one filter condition of a query.
type Predicate interface {
	fmt.Stringer
	render(s *scope) (string, error)
}

type equals struct {
	path  Path
	value any
}

// Equals matches rows whose path equals value. A nil value matches NULL.
func Equals(path Path, value any) Predicate {
	return equals{path: path, value: value}
}

func (p equals) String() string {
	return fmt.Sprintf("%s = %v", p.path, p.value)
}

func (p equals) render(s *scope) (string, error) {
	col, err := s.resolve(p.path)
	if err != nil {
		return "", err
	}
	if isNil(p.value) {
		return s.sb.IsNull(col.expr), nil
	}
	if err := checkValue(col, p.value); err != nil {
		return "", err
	}
	return s.sb.Equal(col.expr, p.value), nil
}

type in struct {
	path   Path
	values []any
}

// In matches rows whose path is one of values. Nil elements are ignored and
// an empty set matches nothing.
func In(path Path, values []any) Predicate {
	return in{path: path, values: append([]any(nil), values...)}
}

// Values widens a typed slice for In.
func Values[V any](values []V) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func (p in) String() string {
	return fmt.Sprintf("%s IN %v", p.path, p.values)
}

func (p in) render(s *scope) (string, error) {
	col, err := s.resolve(p.path)
	if err != nil {
		return "", err
	}

	values := make([]any, 0, len(p.values))
	for _, v := range p.values {
		if isNil(v) {
			continue
		}
		if err := checkValue(col, v); err != nil {
			return "", err
		}
		values = append(values, v)
	}

	if len(values) == 0 {
		return "1 = 0", nil
	}
	return s.sb.In(col.expr, values...), nil
}

type compare struct {
	path      Path
	op        Comparator
	threshold any
}

// Compare matches rows where path op threshold holds.
func Compare(path Path, op Comparator, threshold any) Predicate {
	return compare{path: path, op: op, threshold: threshold}
}

func (p compare) String() string {
	return fmt.Sprintf("%s %s %v", p.path, p.op, p.threshold)
}

func (p compare) render(s *scope) (string, error) {
	if !p.op.Valid() {
		return "", apperrors.InvalidArgument("unknown comparator %d", int(p.op))
	}
	col, err := s.resolve(p.path)
	if err != nil {
		return "", err
	}
	if !isOrdered(col.field.Type) {
		return "", apperrors.InvalidArgument("%s is a %s and cannot be ordered", p.path, col.field.Type)
	}
	if isNil(p.threshold) {
		return "", apperrors.InvalidArgument("comparison on %s needs a threshold", p.path)
	}
	if err := checkValue(col, p.threshold); err != nil {
		return "", err
	}
	return p.op.expr(s.sb, col.expr, p.threshold), nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func deref(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func isOrdered(t reflect.Type) bool {
	t = deref(t)
	if t == timeType {
		return true
	}
	return isNumeric(t.Kind()) || t.Kind() == reflect.String
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// checkValue rejects values that cannot be compared with the column's Go type.
func checkValue(col column, value any) error {
	target := deref(col.field.Type)
	vt := deref(reflect.TypeOf(value))

	switch {
	case vt.AssignableTo(target):
		return nil
	case isNumeric(vt.Kind()) && isNumeric(target.Kind()):
		return nil
	case vt.Kind() == reflect.String && target.Kind() == reflect.String:
		return nil
	case vt.Kind() == reflect.Bool && target.Kind() == reflect.Bool:
		return nil
	case reflect.PointerTo(target).Implements(scannerType) || reflect.TypeOf(value).Implements(valuerType):
		return nil
	}
	return apperrors.InvalidArgument("value %v of type %s does not match %s (%s)", value, vt, col.expr, col.field.Type)
}
