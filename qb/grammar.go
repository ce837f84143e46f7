package qb

import (
	"fmt"
	"strings"
)

type ClauseType string

const (
	ClauseType_Table       ClauseType = "TABLE"
	ClauseType_Select      ClauseType = "SELECT"
	ClauseType_From        ClauseType = "FROM"
	ClauseType_ForceIndex  ClauseType = "FORCE INDEX"
	ClauseType_IgnoreIndex ClauseType = "IGNORE INDEX"
	ClauseType_Column      ClauseType = "COLUMN"
	ClauseType_Value       ClauseType = "VALUE"
	ClauseType_Data        ClauseType = "DATA"
	ClauseType_Join        ClauseType = "JOIN"
	ClauseType_Where       ClauseType = "WHERE"
	ClauseType_GroupBy     ClauseType = "GROUP BY"
	ClauseType_Having      ClauseType = "HAVING"
	ClauseType_OrderBy     ClauseType = "ORDER BY"
	ClauseType_Limit       ClauseType = "LIMIT"
	ClauseType_Lock        ClauseType = "LOCK"
	ClauseType_Union       ClauseType = "UNION"
)

type Operation string

const (
	Operation_Select   Operation = "SELECT"
	Operation_Insert   Operation = "INSERT"
	Operation_Update   Operation = "UPDATE"
	Operation_Delete   Operation = "DELETE"
	Operation_Replace  Operation = "REPLACE"
	Operation_SubQuery Operation = "SUB_QUERY"
)

// Clause is one fragment of a clause kind. Separator is written before the
// fragment when it is not the first one of its kind.
type Clause struct {
	Type      ClauseType
	Fragment  string
	Separator string
	Args      []interface{}
}

// Statement is the rendered output of a Grammar.
type Statement struct {
	SQL  string
	Args []interface{}
}

func (s Statement) String() string {
	return fmt.Sprintf("%s %v", s.SQL, s.Args)
}

// Grammar stores clause fragments per kind and renders them per operation.
type Grammar struct {
	dialect  *Dialect
	table    string
	distinct bool
	clauses  map[ClauseType][]Clause
}

func NewGrammar(dialect *Dialect, table string) *Grammar {
	return &Grammar{
		dialect: dialect,
		table:   table,
		clauses: map[ClauseType][]Clause{},
	}
}

func (g *Grammar) Dialect() *Dialect { return g.dialect }
func (g *Grammar) Table() string     { return g.table }

func (g *Grammar) Add(t ClauseType, fragment string, args ...interface{}) {
	g.clauses[t] = append(g.clauses[t], Clause{Type: t, Fragment: fragment, Args: args})
}

func (g *Grammar) AddFirst(t ClauseType, fragment string, args ...interface{}) {
	g.clauses[t] = append([]Clause{{Type: t, Fragment: fragment, Args: args}}, g.clauses[t]...)
}

// AddSmart appends fragment, writing separator in front of it only when the
// clause kind already has content.
func (g *Grammar) AddSmart(t ClauseType, fragment string, separator string, args ...interface{}) {
	c := Clause{Type: t, Fragment: fragment, Args: args}
	if !g.IsEmpty(t) {
		c.Separator = separator
	}
	g.clauses[t] = append(g.clauses[t], c)
}

func (g *Grammar) Set(t ClauseType, fragment string, args ...interface{}) {
	g.clauses[t] = []Clause{{Type: t, Fragment: fragment, Args: args}}
}

// Clear drops every fragment of the given kinds.
func (g *Grammar) Clear(types ...ClauseType) {
	for _, t := range types {
		delete(g.clauses, t)
	}
}

func (g *Grammar) IsEmpty(t ClauseType) bool {
	_, exists := g.clauses[t]
	return !exists
}

// Args returns the bound values of one clause kind in insertion order.
func (g *Grammar) Args(t ClauseType) []interface{} {
	var args []interface{}
	for _, c := range g.clauses[t] {
		args = append(args, c.Args...)
	}
	return args
}

func (g *Grammar) DeepCopy() *Grammar {
	cp := &Grammar{
		dialect:  g.dialect,
		table:    g.table,
		distinct: g.distinct,
		clauses:  make(map[ClauseType][]Clause, len(g.clauses)),
	}
	for t, list := range g.clauses {
		copied := make([]Clause, len(list))
		for i, c := range list {
			c.Args = append([]interface{}(nil), c.Args...)
			copied[i] = c
		}
		cp.clauses[t] = copied
	}
	return cp
}

// Render assembles the statement for op, rewriting placeholders into the
// dialect form.
func (g *Grammar) Render(op Operation) (Statement, error) {
	sql, args, err := g.compile(op)
	if err != nil {
		return Statement{}, err
	}
	if op != Operation_SubQuery {
		sql = g.rewritePlaceholders(sql)
	}
	return Statement{SQL: sql, Args: args}, nil
}

func (g *Grammar) join(t ClauseType) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}
	for i, c := range g.clauses[t] {
		if i > 0 {
			if c.Separator == "" {
				sb.WriteString(" ")
			} else {
				sb.WriteString(c.Separator)
			}
		}
		sb.WriteString(c.Fragment)
		args = append(args, c.Args...)
	}
	return sb.String(), args
}

func (g *Grammar) orDefault(t ClauseType, def string) (string, []interface{}) {
	if g.IsEmpty(t) {
		return def, nil
	}
	return g.join(t)
}

// compile keeps ? placeholders so the result can be nested in other statements.
func (g *Grammar) compile(op Operation) (string, []interface{}, error) {
	var sections []string
	var args []interface{}
	push := func(s string, a []interface{}) {
		if s == "" {
			return
		}
		sections = append(sections, s)
		args = append(args, a...)
	}

	switch op {
	case Operation_Insert, Operation_Replace:
		verb := "insert"
		if op == Operation_Replace {
			if !g.dialect.SupportsReplace {
				return "", nil, &BuildError{Op: op, Reason: fmt.Sprintf("%s does not support replace", g.dialect.DriverName)}
			}
			verb = "replace"
		}
		table, tableArgs := g.orDefault(ClauseType_Table, g.table)
		columns, _ := g.orDefault(ClauseType_Column, "")
		values, valueArgs := g.orDefault(ClauseType_Value, "()")
		args = append(args, tableArgs...)
		args = append(args, valueArgs...)
		return fmt.Sprintf("%s into %s(%s) values%s", verb, table, columns, values), args, nil

	case Operation_Update:
		if g.IsEmpty(ClauseType_Data) {
			return "", nil, &BuildError{Op: op, Reason: "no data to update"}
		}
		table, tableArgs := g.orDefault(ClauseType_Table, g.table)
		push("update "+table, tableArgs)
		push(g.indexHints())
		data, dataArgs := g.join(ClauseType_Data)
		push("set "+data, dataArgs)
		g.trailing(push, true)

	case Operation_Select:
		list, listArgs := g.orDefault(ClauseType_Select, "*")
		if g.distinct {
			list = "distinct " + list
		}
		push("select "+list, listArgs)
		from, fromArgs := g.orDefault(ClauseType_From, g.table)
		push("from "+from, fromArgs)
		push(g.indexHints())
		g.trailing(push, true)
		if !g.IsEmpty(ClauseType_Union) {
			base := strings.Join(sections, " ")
			if g.dialect.ParenthesizeUnion {
				base = "(" + base + ")"
			}
			unions, unionArgs := g.join(ClauseType_Union)
			return base + " " + unions, append(args, unionArgs...), nil
		}

	case Operation_Delete:
		from, fromArgs := g.orDefault(ClauseType_From, g.table)
		push("delete from "+from, fromArgs)
		push(g.indexHints())
		g.trailing(push, true)

	case Operation_SubQuery:
		g.trailing(push, false)

	default:
		return "", nil, &BuildError{Op: op, Reason: "unknown operation"}
	}

	return strings.Join(sections, " "), args, nil
}

func (g *Grammar) trailing(push func(string, []interface{}), keywords bool) {
	kw := func(k string, s string) string {
		if !keywords || s == "" {
			return s
		}
		return k + " " + s
	}
	push(g.join(ClauseType_Join))
	where, whereArgs := g.join(ClauseType_Where)
	push(kw("where", where), whereArgs)
	group, groupArgs := g.join(ClauseType_GroupBy)
	if group != "" {
		group = "group by " + group
	}
	push(group, groupArgs)
	having, havingArgs := g.join(ClauseType_Having)
	push(kw("having", having), havingArgs)
	order, orderArgs := g.join(ClauseType_OrderBy)
	if order != "" {
		order = "order by " + order
	}
	push(order, orderArgs)
	push(g.join(ClauseType_Limit))
	push(g.join(ClauseType_Lock))
}

func (g *Grammar) indexHints() (string, []interface{}) {
	var hints []string
	if s, _ := g.join(ClauseType_ForceIndex); s != "" {
		hints = append(hints, fmt.Sprintf("force index (%s)", s))
	}
	if s, _ := g.join(ClauseType_IgnoreIndex); s != "" {
		hints = append(hints, fmt.Sprintf("ignore index (%s)", s))
	}
	return strings.Join(hints, " "), nil
}

// rewritePlaceholders replaces every ? outside of string literals and quoted
// identifiers with the dialect placeholder.
func (g *Grammar) rewritePlaceholders(sql string) string {
	if !g.dialect.IncludeIndexInPlaceholder {
		return sql
	}
	phs := g.dialect.PlaceHolderGenerator(strings.Count(sql, "?"))
	var sb strings.Builder
	var literal, ident bool
	for _, r := range sql {
		switch {
		case r == '\'' && !ident:
			literal = !literal
			sb.WriteRune(r)
		case r == '"' && !literal:
			ident = !ident
			sb.WriteRune(r)
		case r == '?' && !literal && !ident:
			sb.WriteString(pop(&phs))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func pop(phs *[]string) string {
	top := (*phs)[0]
	*phs = (*phs)[1:]
	return top
}
