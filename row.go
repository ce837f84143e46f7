package relorm

import "sync"

// Row is a fetched row. Its column values are a snapshot taken at fetch time
// and are never changed by relation resolution.
type Row struct {
	table   string
	columns []string
	values  map[string]interface{}
	pk      interface{}
	pivot   *Row

	mu        sync.RWMutex
	relations map[string]interface{}
}

func newRow(table string, columns []string, values map[string]interface{}, pk string) *Row {
	return &Row{
		table:     table,
		columns:   columns,
		values:    values,
		pk:        values[pk],
		relations: map[string]interface{}{},
	}
}

func (r *Row) Table() string { return r.table }

// PK is the primary key value read when the row was fetched.
func (r *Row) PK() interface{} { return r.pk }

// Pivot returns the pivot row a belongs to many relation attached this row
// through, or nil.
func (r *Row) Pivot() *Row { return r.pivot }

func (r *Row) Columns() []string {
	return append([]string(nil), r.columns...)
}

func (r *Row) Get(column string) interface{} {
	return r.values[column]
}

func (r *Row) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

func (r *Row) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}

// Related returns the value attached under name: a *Row (possibly nil) for
// single relations, a []*Row for many relations.
func (r *Row) Related(name string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.relations[name]
	return v, ok
}

func (r *Row) One(name string) *Row {
	v, _ := r.Related(name)
	row, _ := v.(*Row)
	return row
}

func (r *Row) Many(name string) []*Row {
	v, _ := r.Related(name)
	rows, _ := v.([]*Row)
	return rows
}

func (r *Row) setRelation(name string, v interface{}) {
	r.mu.Lock()
	r.relations[name] = v
	r.mu.Unlock()
}

// clone copies the snapshot without any attached relations.
func (r *Row) clone() *Row {
	return &Row{
		table:     r.table,
		columns:   r.columns,
		values:    r.values,
		pk:        r.pk,
		pivot:     r.pivot,
		relations: map[string]interface{}{},
	}
}

// withPivot copies r, relations included, and attaches pivot to the copy.
func (r *Row) withPivot(pivot *Row) *Row {
	c := r.clone()
	r.mu.RLock()
	for k, v := range r.relations {
		c.relations[k] = v
	}
	r.mu.RUnlock()
	c.pivot = pivot
	return c
}

// RowSet is an ordered list of rows of one table.
type RowSet struct {
	table   string
	columns []string
	rows    []*Row

	mu      sync.Mutex
	related map[string][]*Row
}

func newRowSet(table string, columns []string, rows []*Row) *RowSet {
	return &RowSet{table: table, columns: columns, rows: rows, related: map[string][]*Row{}}
}

func (s *RowSet) Table() string { return s.table }
func (s *RowSet) Len() int      { return len(s.rows) }

func (s *RowSet) Columns() []string {
	return append([]string(nil), s.columns...)
}

func (s *RowSet) Rows() []*Row {
	return append([]*Row(nil), s.rows...)
}

func (s *RowSet) At(i int) *Row {
	return s.rows[i]
}

func (s *RowSet) First() *Row {
	if len(s.rows) == 0 {
		return nil
	}
	return s.rows[0]
}

// Keys returns the distinct non nil values of column in row order.
func (s *RowSet) Keys(column string) []interface{} {
	var keys []interface{}
	seen := map[string]bool{}
	for _, r := range s.rows {
		v := r.Get(column)
		k, ok := keyOf(v)
		if !ok || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, v)
	}
	return keys
}

// Related flattens the rows attached under name across the set. The result
// is memoized until name is resolved again.
func (s *RowSet) Related(name string) []*Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rows, ok := s.related[name]; ok {
		return rows
	}
	var out []*Row
	for _, r := range s.rows {
		switch v := r.relationValue(name).(type) {
		case *Row:
			if v != nil {
				out = append(out, v)
			}
		case []*Row:
			out = append(out, v...)
		}
	}
	s.related[name] = out
	return out
}

func (r *Row) relationValue(name string) interface{} {
	v, _ := r.Related(name)
	return v
}

func (s *RowSet) forget(name string) {
	s.mu.Lock()
	delete(s.related, name)
	s.mu.Unlock()
}

func (s *RowSet) clone() *RowSet {
	rows := make([]*Row, len(s.rows))
	for i, r := range s.rows {
		rows[i] = r.clone()
	}
	return newRowSet(s.table, s.columns, rows)
}
