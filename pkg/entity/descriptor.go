package entity

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/reflectx"
)

const DefaultIDColumn = "id"

var (
	validate = validator.New(validator.WithRequiredStructEnabled())
	mapper   = reflectx.NewMapperFunc("db", strings.ToLower)

	timeType    = reflect.TypeOf(time.Time{})
	timePtrType = reflect.TypeOf(&time.Time{})
)

// Field is one mapped column of an entity.
type Field struct {
	Name   string
	Column string
	Type   reflect.Type
	Index  []int
}

// JoinTable links two tables in a many-to-many relationship.
type JoinTable struct {
	Table        string `validate:"required"`
	LocalColumn  string `validate:"required"`
	RemoteColumn string `validate:"required"`
}

// Relationship is a hop from one descriptor to another. Without a join table
// the hop joins on local.LocalColumn = target.RemoteColumn. With one it joins
// local.LocalColumn = through.LocalColumn and through.RemoteColumn =
// target.RemoteColumn.
type Relationship struct {
	Target       *Descriptor `validate:"required"`
	LocalColumn  string      `validate:"required"`
	RemoteColumn string      `validate:"required"`
	Through      *JoinTable
}

// HistorySpec names the temporal columns of a historical entity. An empty
// BusinessKey makes every row its own chain.
type HistorySpec struct {
	BusinessKey string
	EffectiveAt string `validate:"required"`
	ExpiredAt   string `validate:"required"`
}

// Descriptor is the mapping of one entity type onto one table.
type Descriptor struct {
	Table    string `validate:"required"`
	IDColumn string `validate:"required"`
	Type     reflect.Type
	History  *HistorySpec

	fields        []Field
	byColumn      map[string]Field
	relationships map[string]Relationship
}

type Option func(*Descriptor)

// WithIDColumn overrides the identifier column, "id" by default.
func WithIDColumn(column string) Option {
	return func(d *Descriptor) {
		d.IDColumn = column
	}
}

// WithHistory marks the entity as historical.
func WithHistory(businessKey, effectiveAt, expiredAt string) Option {
	return func(d *Descriptor) {
		d.History = &HistorySpec{
			BusinessKey: businessKey,
			EffectiveAt: effectiveAt,
			ExpiredAt:   expiredAt,
		}
	}
}

// Describe maps T's db tagged fields onto table.
func Describe[T any](table string, opts ...Option) (*Descriptor, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity %s must be a struct", t)
	}

	d := &Descriptor{
		Table:         table,
		IDColumn:      DefaultIDColumn,
		Type:          t,
		byColumn:      make(map[string]Field),
		relationships: make(map[string]Relationship),
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, fi := range mapper.TypeMap(t).Index {
		if fi.Embedded || fi.Name == "" || strings.Contains(fi.Path, ".") {
			continue
		}
		f := Field{
			Name:   fi.Field.Name,
			Column: fi.Name,
			Type:   fi.Field.Type,
			Index:  fi.Index,
		}
		d.fields = append(d.fields, f)
		d.byColumn[f.Column] = f
	}

	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// MustDescribe is Describe for package level descriptors.
func MustDescribe[T any](table string, opts ...Option) *Descriptor {
	d, err := Describe[T](table, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Descriptor) validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid descriptor for %s: %w", d.Type, err)
	}
	if _, ok := d.byColumn[d.IDColumn]; !ok {
		return fmt.Errorf("entity %s has no %q column", d.Type, d.IDColumn)
	}
	if d.History == nil {
		return nil
	}
	if err := validate.Struct(d.History); err != nil {
		return fmt.Errorf("invalid history for %s: %w", d.Type, err)
	}
	if f, ok := d.byColumn[d.History.EffectiveAt]; !ok || f.Type != timeType {
		return fmt.Errorf("entity %s needs a time.Time %q column", d.Type, d.History.EffectiveAt)
	}
	if f, ok := d.byColumn[d.History.ExpiredAt]; !ok || f.Type != timePtrType {
		return fmt.Errorf("entity %s needs a *time.Time %q column", d.Type, d.History.ExpiredAt)
	}
	if d.History.BusinessKey != "" {
		if _, ok := d.byColumn[d.History.BusinessKey]; !ok {
			return fmt.Errorf("entity %s has no business key column %q", d.Type, d.History.BusinessKey)
		}
	}
	return nil
}

// Relate registers a named relationship. Relationships are added after
// construction so descriptors can refer to each other.
func (d *Descriptor) Relate(name string, rel Relationship) error {
	if name == "" {
		return fmt.Errorf("relationship on %s needs a name", d.Table)
	}
	if err := validate.Struct(rel); err != nil {
		return fmt.Errorf("invalid relationship %s.%s: %w", d.Table, name, err)
	}
	if rel.Through != nil {
		if err := validate.Struct(rel.Through); err != nil {
			return fmt.Errorf("invalid join table for %s.%s: %w", d.Table, name, err)
		}
	}
	if _, ok := d.byColumn[rel.LocalColumn]; !ok {
		return fmt.Errorf("relationship %s.%s: no local column %q", d.Table, name, rel.LocalColumn)
	}
	if _, ok := rel.Target.byColumn[rel.RemoteColumn]; !ok {
		return fmt.Errorf("relationship %s.%s: no column %q on %s", d.Table, name, rel.RemoteColumn, rel.Target.Table)
	}
	d.relationships[name] = rel
	return nil
}

// MustRelate is Relate for package level wiring.
func (d *Descriptor) MustRelate(name string, rel Relationship) *Descriptor {
	if err := d.Relate(name, rel); err != nil {
		panic(err)
	}
	return d
}

func (d *Descriptor) Relationship(name string) (Relationship, bool) {
	rel, ok := d.relationships[name]
	return rel, ok
}

// Field looks a column up by name.
func (d *Descriptor) Field(column string) (Field, bool) {
	f, ok := d.byColumn[column]
	return f, ok
}

// Fields returns the mapped columns in declaration order.
func (d *Descriptor) Fields() []Field {
	return append([]Field(nil), d.fields...)
}

// Columns returns the mapped column names in declaration order.
func (d *Descriptor) Columns() []string {
	cols := make([]string, len(d.fields))
	for i, f := range d.fields {
		cols[i] = f.Column
	}
	return cols
}

func (d *Descriptor) IsHistorical() bool {
	return d.History != nil
}

// Values reads the mapped column values of v, which must be a T or *T.
func (d *Descriptor) Values(v any) ([]any, error) {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Type() != d.Type {
		return nil, fmt.Errorf("descriptor for %s cannot read %T", d.Type, v)
	}
	values := make([]any, len(d.fields))
	for i, f := range d.fields {
		values[i] = reflectx.FieldByIndexesReadOnly(rv, f.Index).Interface()
	}
	return values, nil
}

// Value reads one column of v.
func (d *Descriptor) Value(v any, column string) (any, error) {
	f, ok := d.byColumn[column]
	if !ok {
		return nil, fmt.Errorf("entity %s has no column %q", d.Type, column)
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Type() != d.Type {
		return nil, fmt.Errorf("descriptor for %s cannot read %T", d.Type, v)
	}
	return reflectx.FieldByIndexesReadOnly(rv, f.Index).Interface(), nil
}

// SetValue writes one column of v, which must be a *T.
func (d *Descriptor) SetValue(v any, column string, value any) error {
	f, ok := d.byColumn[column]
	if !ok {
		return fmt.Errorf("entity %s has no column %q", d.Type, column)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.Elem().Type() != d.Type {
		return fmt.Errorf("descriptor for %s cannot write %T", d.Type, v)
	}
	target := reflectx.FieldByIndexes(rv.Elem(), f.Index)
	val := reflect.ValueOf(value)
	if !val.IsValid() {
		target.Set(reflect.Zero(f.Type))
		return nil
	}
	if !val.Type().AssignableTo(f.Type) {
		return fmt.Errorf("cannot assign %T to %s.%s", value, d.Table, column)
	}
	target.Set(val)
	return nil
}
