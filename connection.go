package relorm

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/table"

	"github.com/golobby/relorm/qb"
)

type Connection struct {
	Name    string
	Dialect *qb.Dialect
	DB      *sql.DB

	db               ExecQuerier
	registry         *registry
	logger           Logger
	eagerConcurrency int
}

// WithExecutor returns a Connection sharing c's schemas that runs statements
// on exec, typically a *sql.Tx.
func (c *Connection) WithExecutor(exec ExecQuerier) *Connection {
	cp := *c
	cp.db = exec
	return &cp
}

func (c *Connection) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

func (c *Connection) Logger() Logger { return c.logger }

func (c *Connection) getSchema(table string) (*schema, error) {
	s, ok := c.registry.schemas[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return s, nil
}

// Relation returns the descriptor declared on table under name.
func (c *Connection) Relation(table, name string) (Relation, error) {
	s, err := c.getSchema(table)
	if err != nil {
		return nil, err
	}
	return s.relation(name)
}

func (c *Connection) pkOf(table string) string {
	if s, ok := c.registry.schemas[table]; ok {
		return s.pk
	}
	return ""
}

type queryIDKey struct{}

func withQueryID(ctx context.Context) context.Context {
	if _, ok := ctx.Value(queryIDKey{}).(string); ok {
		return ctx
	}
	return context.WithValue(ctx, queryIDKey{}, uuid.NewString())
}

func queryID(ctx context.Context) string {
	id, _ := ctx.Value(queryIDKey{}).(string)
	return id
}

// fetch runs a select statement and scans it as rows of table.
func (c *Connection) fetch(ctx context.Context, table string, stmt qb.Statement) (*RowSet, error) {
	c.logger.Debugf("[%s] %s %v", queryID(ctx), stmt.SQL, stmt.Args)
	rows, err := c.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, c.queryError(ctx, stmt, err)
	}
	set, err := scanRows(rows, table, c.pkOf(table))
	if err != nil {
		return nil, c.queryError(ctx, stmt, err)
	}
	return set, nil
}

func (c *Connection) exec(ctx context.Context, stmt qb.Statement) (sql.Result, error) {
	c.logger.Debugf("[%s] %s %v", queryID(ctx), stmt.SQL, stmt.Args)
	res, err := c.db.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, c.queryError(ctx, stmt, err)
	}
	return res, nil
}

func (c *Connection) queryError(ctx context.Context, stmt qb.Statement, err error) error {
	c.logger.Errorf("[%s] %s %v: %v", queryID(ctx), stmt.SQL, stmt.Args, err)
	return &QueryError{SQL: stmt.SQL, Args: stmt.Args, Err: err}
}

// Query renders b as a select and returns its rows.
func (c *Connection) Query(ctx context.Context, b *qb.Builder) (*RowSet, error) {
	stmt, err := b.Render(qb.Operation_Select)
	if err != nil {
		return nil, err
	}
	return c.fetch(withQueryID(ctx), b.TableName(), stmt)
}

// Exec renders b for op and executes it.
func (c *Connection) Exec(ctx context.Context, b *qb.Builder, op qb.Operation) (sql.Result, error) {
	stmt, err := b.Render(op)
	if err != nil {
		return nil, err
	}
	return c.exec(withQueryID(ctx), stmt)
}

// Schematic prints the registered tables and their relations.
func (c *Connection) Schematic(out io.Writer) {
	fmt.Fprintf(out, "SQL Dialect: %s\n", c.Dialect.DriverName)
	for _, t := range c.registry.order {
		s := c.registry.schemas[t]
		fmt.Fprintf(out, "Table: %s\n", t)
		w := table.NewWriter()
		w.AppendHeader(table.Row{"SQL Name", "Field", "Is Primary Key"})
		for _, f := range s.fields {
			w.AppendRow(table.Row{f.Name, f.FieldName, f.IsPK})
		}
		if len(s.fields) == 0 {
			w.AppendRow(table.Row{s.pk, "", true})
		}
		fmt.Fprintln(out, w.Render())

		if len(s.names) > 0 {
			rw := table.NewWriter()
			rw.AppendHeader(table.Row{"Relation", "Kind", "Table", "Keys", "Morph"})
			for _, rel := range s.Relations() {
				rw.AppendRow(table.Row{rel.RelationName(), kindOf(rel), rel.TargetTable(), keysOf(rel), morphOf(rel)})
			}
			fmt.Fprintln(out, rw.Render())
		}
		fmt.Fprintln(out, "")
	}
}

func keysOf(rel Relation) string {
	switch r := rel.(type) {
	case BelongsTo:
		return fmt.Sprintf("%s.%s = %s.%s", r.Table, r.ForeignKey, r.Related, r.OwnerKey)
	case HasOneOrMany:
		return fmt.Sprintf("%s.%s = %s.%s", r.Table, r.LocalKey, r.Related, r.ForeignKey)
	case BelongsToMany:
		return fmt.Sprintf("%s.%s = %s.%s, %s.%s = %s.%s",
			r.Table, r.LocalKey, r.Pivot, r.PivotLocalKey,
			r.Pivot, r.PivotRelatedKey, r.Related, r.RelatedKey)
	}
	return ""
}

func morphOf(rel Relation) string {
	var morphs []Morph
	switch r := rel.(type) {
	case BelongsTo:
		morphs = []Morph{r.Morph}
	case HasOneOrMany:
		morphs = []Morph{r.Morph}
	case BelongsToMany:
		morphs = []Morph{r.LocalMorph, r.RelatedMorph}
	}
	var out string
	for _, m := range morphs {
		if !m.Active() {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += fmt.Sprintf("%s = %v", m.Column, m.Value)
	}
	return out
}
