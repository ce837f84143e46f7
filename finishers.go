package relorm

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/golobby/relorm/qb"
)

// Query is a statement builder bound to a registered table. Builder methods
// mutate it in place, so a Query can be built up over several statements:
//
//	q := conn.Table("posts")
//	q.Where("published", true).With("comments")
//	posts, err := q.Get(ctx)
type Query struct {
	*qb.Builder
	conn   *Connection
	schema *schema
	err    error
}

func (c *Connection) Table(name string) *Query {
	s, err := c.getSchema(name)
	return &Query{Builder: qb.New(c.Dialect, name), conn: c, schema: s, err: err}
}

// Scope applies fn to the underlying builder and returns q for chaining.
func (q *Query) Scope(fn qb.Callback) *Query {
	if out := fn(q.Builder); out != nil {
		q.Builder = out
	}
	return q
}

func (q *Query) Clone() *Query {
	return &Query{Builder: q.Builder.Clone(), conn: q.conn, schema: q.schema, err: q.err}
}

// Get runs the select and resolves every registered eager load on the
// result.
func (q *Query) Get(ctx context.Context) (*RowSet, error) {
	if q.err != nil {
		return nil, q.err
	}
	ctx = withQueryID(ctx)
	stmt, err := q.Render(qb.Operation_Select)
	if err != nil {
		return nil, err
	}
	set, err := q.conn.fetch(ctx, q.schema.table, stmt)
	if err != nil {
		return nil, err
	}
	if loads := q.EagerLoads(); len(loads) > 0 && set.Len() > 0 {
		if err := q.conn.newResolver().loadAll(ctx, set, loads); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// First returns the first row or a *NotFoundError.
func (q *Query) First(ctx context.Context) (*Row, error) {
	return q.first(ctx, nil)
}

// Find returns the row whose primary key is id or a *NotFoundError. The key
// predicate is combined with the query's own conditions as
// "pk in (id) and (conditions)".
func (q *Query) Find(ctx context.Context, id interface{}) (*Row, error) {
	if q.err != nil {
		return nil, q.err
	}
	cp := q.Clone()
	cp.ScopeWhereIn(q.schema.pk, []interface{}{id})
	return cp.first(ctx, id)
}

func (q *Query) first(ctx context.Context, id interface{}) (*Row, error) {
	cp := q.Clone()
	cp.Limit(1)
	set, err := cp.Get(ctx)
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 {
		return nil, &NotFoundError{table: q.TableName(), id: id}
	}
	return set.First(), nil
}

func (q *Query) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	cp := q.Builder.Clone()
	cp.Grammar().Clear(qb.ClauseType_OrderBy, qb.ClauseType_Limit)
	cp.Grammar().Set(qb.ClauseType_Select, "count(*) as aggregate")
	stmt, err := cp.Render(qb.Operation_Select)
	if err != nil {
		return 0, err
	}
	set, err := q.conn.fetch(withQueryID(ctx), q.schema.table, stmt)
	if err != nil {
		return 0, err
	}
	if set.Len() == 0 {
		return 0, nil
	}
	return toInt64(set.First().Get("aggregate"))
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("relorm: cannot read %T as a count", v)
}

// Insert writes one row built from values.
func (q *Query) Insert(ctx context.Context, values map[string]interface{}) (sql.Result, error) {
	if q.err != nil {
		return nil, q.err
	}
	stmt, err := qb.New(q.Dialect(), q.schema.table).InsertMap(values).Render(qb.Operation_Insert)
	if err != nil {
		return nil, err
	}
	return q.conn.exec(withQueryID(ctx), stmt)
}

// Update sets values on every row the query matches and returns the number
// of affected rows.
func (q *Query) Update(ctx context.Context, values map[string]interface{}) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	stmt, err := q.Builder.Clone().Data(values).Render(qb.Operation_Update)
	if err != nil {
		return 0, err
	}
	res, err := q.conn.exec(withQueryID(ctx), stmt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Query) Delete(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	stmt, err := q.Render(qb.Operation_Delete)
	if err != nil {
		return 0, err
	}
	res, err := q.conn.exec(withQueryID(ctx), stmt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Future is the pending result of GetAsync.
type Future struct {
	done chan struct{}
	set  *RowSet
	err  error
}

// GetAsync runs Get on its own goroutine against a snapshot of q.
func (q *Query) GetAsync(ctx context.Context) *Future {
	f := &Future{done: make(chan struct{})}
	cp := q.Clone()
	go func() {
		defer close(f.done)
		f.set, f.err = cp.Get(ctx)
	}()
	return f
}

func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the query finished or ctx is done.
func (f *Future) Wait(ctx context.Context) (*RowSet, error) {
	select {
	case <-f.done:
		return f.set, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
