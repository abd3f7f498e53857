package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// Excluded is the row an upsert proposed, usable on the right of an ON CONFLICT assignment
func Excluded(column string) any {
	return sqlbuilder.Raw("EXCLUDED." + column)
}

// InsertBuilder adds Postgres upserts to the go-sqlbuilder insert
type InsertBuilder struct {
	*sqlbuilder.InsertBuilder
}

func NewInsertBuilder() *InsertBuilder {
	return &InsertBuilder{sqlbuilder.PostgreSQL.NewInsertBuilder()}
}

// OnConflict turns the insert into an upsert on the unique columns. Fill the returned builder's SET list.
func (b *InsertBuilder) OnConflict(columns ...string) *UpdateBuilder {
	set := NewUpdateBuilder()
	b.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE %s", strings.Join(columns, ", "), b.Var(set)))
	return set
}

// OnConflictDoNothing keeps the existing row
func (b *InsertBuilder) OnConflictDoNothing() {
	b.SQL("ON CONFLICT DO NOTHING")
}

type UpdateBuilder struct {
	*sqlbuilder.UpdateBuilder
}

func NewUpdateBuilder() *UpdateBuilder {
	return &UpdateBuilder{sqlbuilder.PostgreSQL.NewUpdateBuilder()}
}

type SelectBuilder struct {
	*sqlbuilder.SelectBuilder
}

func NewSelectBuilder() *SelectBuilder {
	return &SelectBuilder{sqlbuilder.PostgreSQL.NewSelectBuilder()}
}
