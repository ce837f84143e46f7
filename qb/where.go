package qb

import (
	"fmt"
	"reflect"
	"strings"
)

var operators = map[string]struct{}{
	"=": {}, "<": {}, ">": {}, "<=": {}, ">=": {}, "<>": {}, "!=": {},
	"like": {}, "not like": {}, "ilike": {},
}

func validOperator(op string) bool {
	_, ok := operators[strings.ToLower(op)]
	return ok
}

// Where adds an and-joined predicate. It accepts either a value, compared
// with =, or an operator followed by a value. A nil value renders as
// is null, a *Builder value as a sub query.
func (b *Builder) Where(column string, parts ...interface{}) *Builder {
	return b.where("and", column, parts)
}

func (b *Builder) OrWhere(column string, parts ...interface{}) *Builder {
	return b.where("or", column, parts)
}

func (b *Builder) where(boolean string, column string, parts []interface{}) *Builder {
	var op string
	var value interface{}
	switch len(parts) {
	case 1:
		op, value = "=", parts[0]
	case 2:
		s, ok := parts[0].(string)
		if !ok {
			return b.fail("where on %s expects a string operator, got %T", column, parts[0])
		}
		op, value = strings.ToLower(s), parts[1]
	default:
		return b.fail("where on %s expects a value or an operator and a value, got %d arguments", column, len(parts))
	}

	switch op {
	case "in":
		return b.whereIn(boolean, column, value, false)
	case "not in":
		return b.whereIn(boolean, column, value, true)
	}
	if !validOperator(op) {
		return b.fail("invalid where operator %q", op)
	}

	switch v := value.(type) {
	case nil:
		switch op {
		case "=":
			return b.addWhere(boolean, column+" is null")
		case "!=", "<>":
			return b.addWhere(boolean, column+" is not null")
		}
		return b.fail("operator %q cannot compare with null", op)
	case *Builder:
		sql, args, err := v.compile(Operation_Select)
		if err != nil {
			b.err = err
			return b
		}
		return b.addWhere(boolean, fmt.Sprintf("%s %s (%s)", column, op, sql), args...)
	}
	return b.addWhere(boolean, fmt.Sprintf("%s %s ?", column, op), value)
}

func (b *Builder) addWhere(boolean string, fragment string, args ...interface{}) *Builder {
	b.grammar.AddSmart(ClauseType_Where, fragment, " "+boolean+" ", args...)
	return b
}

// WhereIn accepts any slice. An empty slice matches nothing.
func (b *Builder) WhereIn(column string, values interface{}) *Builder {
	return b.whereIn("and", column, values, false)
}

func (b *Builder) OrWhereIn(column string, values interface{}) *Builder {
	return b.whereIn("or", column, values, false)
}

// WhereNotIn accepts any slice. An empty slice matches everything.
func (b *Builder) WhereNotIn(column string, values interface{}) *Builder {
	return b.whereIn("and", column, values, true)
}

func (b *Builder) whereIn(boolean string, column string, values interface{}, not bool) *Builder {
	if sub, ok := values.(*Builder); ok {
		return b.whereInSub(boolean, column, sub, not)
	}
	args := toArgs(values)
	if len(args) == 0 {
		if not {
			return b.addWhere(boolean, "1 = 1")
		}
		return b.addWhere(boolean, "0 = 1")
	}
	kw := "in"
	if not {
		kw = "not in"
	}
	phs := mySQLPlaceHolder(len(args))
	return b.addWhere(boolean, fmt.Sprintf("%s %s (%s)", column, kw, strings.Join(phs, ",")), args...)
}

func (b *Builder) WhereInSub(column string, sub *Builder) *Builder {
	return b.whereInSub("and", column, sub, false)
}

func (b *Builder) whereInSub(boolean string, column string, sub *Builder, not bool) *Builder {
	sql, args, err := sub.compile(Operation_Select)
	if err != nil {
		b.err = err
		return b
	}
	kw := "in"
	if not {
		kw = "not in"
	}
	return b.addWhere(boolean, fmt.Sprintf("%s %s (%s)", column, kw, sql), args...)
}

func (b *Builder) WhereNull(column string) *Builder {
	return b.addWhere("and", column+" is null")
}

func (b *Builder) OrWhereNull(column string) *Builder {
	return b.addWhere("or", column+" is null")
}

func (b *Builder) WhereNotNull(column string) *Builder {
	return b.addWhere("and", column+" is not null")
}

func (b *Builder) OrWhereNotNull(column string) *Builder {
	return b.addWhere("or", column+" is not null")
}

func (b *Builder) WhereBetween(column string, from, to interface{}) *Builder {
	return b.addWhere("and", column+" between ? and ?", from, to)
}

func (b *Builder) WhereRaw(expr string, args ...interface{}) *Builder {
	return b.addWhere("and", expr, args...)
}

func (b *Builder) OrWhereRaw(expr string, args ...interface{}) *Builder {
	return b.addWhere("or", expr, args...)
}

// WhereGroup parenthesizes the predicates fn adds.
func (b *Builder) WhereGroup(fn Callback) *Builder {
	return b.whereGroup("and", fn)
}

func (b *Builder) OrWhereGroup(fn Callback) *Builder {
	return b.whereGroup("or", fn)
}

func (b *Builder) whereGroup(boolean string, fn Callback) *Builder {
	sub := New(b.grammar.dialect, b.grammar.table)
	if out := fn(sub); out != nil {
		sub = out
	}
	if sub.grammar.IsEmpty(ClauseType_Where) {
		return b
	}
	sql, args, err := sub.compile(Operation_SubQuery)
	if err != nil {
		b.err = err
		return b
	}
	return b.addWhere(boolean, "("+sql+")", args...)
}

func (b *Builder) WhereExists(sub *Builder) *Builder {
	return b.exists("exists", sub)
}

func (b *Builder) WhereNotExists(sub *Builder) *Builder {
	return b.exists("not exists", sub)
}

func (b *Builder) exists(kw string, sub *Builder) *Builder {
	sql, args, err := sub.compile(Operation_Select)
	if err != nil {
		b.err = err
		return b
	}
	return b.addWhere("and", fmt.Sprintf("%s (%s)", kw, sql), args...)
}

// ScopeWhereIn restricts b to rows whose column is in values. Predicates
// already present are parenthesized behind the restriction so an or chain
// cannot widen it.
func (b *Builder) ScopeWhereIn(column string, values interface{}) *Builder {
	if b.grammar.IsEmpty(ClauseType_Where) {
		return b.WhereIn(column, values)
	}
	existing, args := b.grammar.join(ClauseType_Where)
	delete(b.grammar.clauses, ClauseType_Where)
	b.WhereIn(column, values)
	b.grammar.AddSmart(ClauseType_Where, "("+existing+")", " and ", args...)
	return b
}

func toArgs(values interface{}) []interface{} {
	switch v := values.(type) {
	case nil:
		return nil
	case []interface{}:
		return v
	case []byte:
		return []interface{}{v}
	}
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []interface{}{values}
	}
	args := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		args[i] = rv.Index(i).Interface()
	}
	return args
}
