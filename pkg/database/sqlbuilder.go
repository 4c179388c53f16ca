package database

import (
	"fmt"

	"github.com/huandu/go-sqlbuilder"
)

// Flavor renders every statement with postgres placeholders.
var Flavor = sqlbuilder.PostgreSQL

func NewSelectBuilder() *sqlbuilder.SelectBuilder {
	return Flavor.NewSelectBuilder()
}

// InsertRow renders a single-row insert, returning the given columns.
func InsertRow(table string, cols []string, values []any, returning ...string) (string, []any) {
	ib := Flavor.NewInsertBuilder()
	ib.InsertInto(table).Cols(cols...).Values(values...)
	if len(returning) > 0 {
		ib.Returning(returning...)
	}
	return ib.Build()
}

// UpsertRow renders a single-row insert that overwrites every column but key
// when a row with the same key already exists.
func UpsertRow(table, key string, cols []string, values []any, returning ...string) (string, []any) {
	ib := Flavor.NewInsertBuilder()
	ib.InsertInto(table).Cols(cols...).Values(values...)

	ub := Flavor.NewUpdateBuilder()
	assignments := make([]string, 0, len(cols))
	for _, col := range cols {
		if col == key {
			continue
		}
		assignments = append(assignments, ub.Assign(col, sqlbuilder.Raw("EXCLUDED."+col)))
	}
	ub.Set(assignments...)
	ib.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE %s", key, ib.Var(ub)))

	if len(returning) > 0 {
		ib.Returning(returning...)
	}
	return ib.Build()
}

// DeleteRow renders a delete of the rows whose key equals value.
func DeleteRow(table, key string, value any) (string, []any) {
	db := Flavor.NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(db.Equal(key, value))
	return db.Build()
}

// ExpireRows renders an update stamping column with at on the rows whose key
// is one of ids.
func ExpireRows(table, column string, at any, key string, ids []any) (string, []any) {
	ub := Flavor.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(ub.Assign(column, at))
	ub.Where(ub.In(key, ids...))
	return ub.Build()
}
