package qb

import (
	"fmt"
	"sort"
	"strings"
)

// Builder is the fluent façade over a Grammar. It is not safe for
// concurrent mutation; Clone it to reuse it as a template.
type Builder struct {
	grammar *Grammar
	eager   []EagerLoad
	limit   int
	offset  int
	err     error
}

func New(dialect *Dialect, table string) *Builder {
	return &Builder{
		grammar: NewGrammar(dialect, table),
		limit:   -1,
	}
}

func (b *Builder) Grammar() *Grammar { return b.grammar }
func (b *Builder) Dialect() *Dialect { return b.grammar.dialect }
func (b *Builder) TableName() string { return b.grammar.table }

// Err returns the first misuse recorded while building.
func (b *Builder) Err() error { return b.err }

func (b *Builder) Quote(ident string) string {
	return b.grammar.dialect.Quote(ident)
}

func (b *Builder) fail(format string, args ...interface{}) *Builder {
	if b.err == nil {
		b.err = &BuildError{Reason: fmt.Sprintf(format, args...)}
	}
	return b
}

// Clone returns a builder whose clauses, args and eager loads can be
// changed without touching b.
func (b *Builder) Clone() *Builder {
	return &Builder{
		grammar: b.grammar.DeepCopy(),
		eager:   append([]EagerLoad(nil), b.eager...),
		limit:   b.limit,
		offset:  b.offset,
		err:     b.err,
	}
}

func (b *Builder) Render(op Operation) (Statement, error) {
	if b.err != nil {
		return Statement{}, b.err
	}
	return b.grammar.Render(op)
}

func (b *Builder) ToSql() (string, []interface{}, error) {
	stmt, err := b.Render(Operation_Select)
	if err != nil {
		return "", nil, err
	}
	return stmt.SQL, stmt.Args, nil
}

func (b *Builder) compile(op Operation) (string, []interface{}, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	return b.grammar.compile(op)
}

func (b *Builder) Table(name string) *Builder {
	b.grammar.table = name
	return b
}

func (b *Builder) From(expr string, args ...interface{}) *Builder {
	b.grammar.Set(ClauseType_From, expr, args...)
	return b
}

func (b *Builder) FromSub(sub *Builder, alias string) *Builder {
	sql, args, err := sub.compile(Operation_Select)
	if err != nil {
		b.err = err
		return b
	}
	return b.From(fmt.Sprintf("(%s) as %s", sql, alias), args...)
}

func (b *Builder) Select(columns ...string) *Builder {
	for _, c := range columns {
		b.grammar.AddSmart(ClauseType_Select, c, ", ")
	}
	return b
}

func (b *Builder) SelectRaw(expr string, args ...interface{}) *Builder {
	b.grammar.AddSmart(ClauseType_Select, expr, ", ", args...)
	return b
}

func (b *Builder) Distinct() *Builder {
	b.grammar.distinct = true
	return b
}

func (b *Builder) join(kind, table, first, op, second string) *Builder {
	if !validOperator(op) {
		return b.fail("invalid join operator %q", op)
	}
	b.grammar.Add(ClauseType_Join, fmt.Sprintf("%s join %s on %s %s %s", kind, table, first, op, second))
	return b
}

func (b *Builder) Join(table, first, op, second string) *Builder {
	return b.join("inner", table, first, op, second)
}

func (b *Builder) LeftJoin(table, first, op, second string) *Builder {
	return b.join("left", table, first, op, second)
}

func (b *Builder) RightJoin(table, first, op, second string) *Builder {
	return b.join("right", table, first, op, second)
}

func (b *Builder) JoinRaw(expr string, args ...interface{}) *Builder {
	b.grammar.Add(ClauseType_Join, expr, args...)
	return b
}

func (b *Builder) GroupBy(columns ...string) *Builder {
	for _, c := range columns {
		b.grammar.AddSmart(ClauseType_GroupBy, c, ", ")
	}
	return b
}

func (b *Builder) having(boolean, column, op string, value interface{}) *Builder {
	if !validOperator(op) {
		return b.fail("invalid having operator %q", op)
	}
	b.grammar.AddSmart(ClauseType_Having, fmt.Sprintf("%s %s ?", column, op), " "+boolean+" ", value)
	return b
}

func (b *Builder) Having(column, op string, value interface{}) *Builder {
	return b.having("and", column, op, value)
}

func (b *Builder) OrHaving(column, op string, value interface{}) *Builder {
	return b.having("or", column, op, value)
}

func (b *Builder) HavingRaw(expr string, args ...interface{}) *Builder {
	b.grammar.AddSmart(ClauseType_Having, expr, " and ", args...)
	return b
}

func (b *Builder) OrderBy(column string, direction string) *Builder {
	direction = strings.ToLower(direction)
	if direction != "asc" && direction != "desc" {
		return b.fail("invalid order direction %q", direction)
	}
	b.grammar.AddSmart(ClauseType_OrderBy, column+" "+direction, ", ")
	return b
}

func (b *Builder) OrderByDesc(column string) *Builder {
	return b.OrderBy(column, "desc")
}

func (b *Builder) OrderByRaw(expr string, args ...interface{}) *Builder {
	b.grammar.AddSmart(ClauseType_OrderBy, expr, ", ", args...)
	return b
}

func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b.setLimit()
}

func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b.setLimit()
}

func (b *Builder) setLimit() *Builder {
	if s := b.grammar.dialect.LimitOffset(b.limit, b.offset); s != "" {
		b.grammar.Set(ClauseType_Limit, s)
	} else {
		delete(b.grammar.clauses, ClauseType_Limit)
	}
	return b
}

func (b *Builder) lock(mode LockMode) *Builder {
	if s := b.grammar.dialect.Lock(mode); s != "" {
		b.grammar.Set(ClauseType_Lock, s)
	}
	return b
}

func (b *Builder) LockForUpdate() *Builder { return b.lock(LockMode_ForUpdate) }
func (b *Builder) SharedLock() *Builder    { return b.lock(LockMode_Shared) }

// ForceIndex and IgnoreIndex are dropped on dialects without index hints.
func (b *Builder) ForceIndex(indexes ...string) *Builder {
	return b.indexHint(ClauseType_ForceIndex, indexes)
}

func (b *Builder) IgnoreIndex(indexes ...string) *Builder {
	return b.indexHint(ClauseType_IgnoreIndex, indexes)
}

func (b *Builder) indexHint(t ClauseType, indexes []string) *Builder {
	if !b.grammar.dialect.SupportsIndexHints {
		return b
	}
	for _, idx := range indexes {
		b.grammar.AddSmart(t, idx, ", ")
	}
	return b
}

func (b *Builder) union(keyword string, other *Builder) *Builder {
	sql, args, err := other.compile(Operation_Select)
	if err != nil {
		b.err = err
		return b
	}
	if b.grammar.dialect.ParenthesizeUnion {
		sql = "(" + sql + ")"
	}
	b.grammar.Add(ClauseType_Union, keyword+" "+sql, args...)
	return b
}

func (b *Builder) Union(other *Builder) *Builder    { return b.union("union", other) }
func (b *Builder) UnionAll(other *Builder) *Builder { return b.union("union all", other) }

func (b *Builder) Columns(columns ...string) *Builder {
	for _, c := range columns {
		b.grammar.AddSmart(ClauseType_Column, c, ",")
	}
	return b
}

// Values appends one value tuple.
func (b *Builder) Values(values ...interface{}) *Builder {
	phs := make([]string, len(values))
	for i := range values {
		phs[i] = "?"
	}
	b.grammar.AddSmart(ClauseType_Value, "("+strings.Join(phs, ",")+")", ",", values...)
	return b
}

// InsertMap sets columns and a single value tuple from m, in key order.
func (b *Builder) InsertMap(m map[string]interface{}) *Builder {
	keys := sortedKeys(m)
	values := make([]interface{}, len(keys))
	for i, k := range keys {
		values[i] = m[k]
	}
	return b.Columns(keys...).Values(values...)
}

func (b *Builder) Set(column string, value interface{}) *Builder {
	b.grammar.AddSmart(ClauseType_Data, column+" = ?", ", ", value)
	return b
}

func (b *Builder) Data(m map[string]interface{}) *Builder {
	for _, k := range sortedKeys(m) {
		b.Set(k, m[k])
	}
	return b
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
