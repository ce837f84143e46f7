package relorm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/golobby/relorm/qb"
)

// fetchCache lets identical statements issued during one resolution hit the
// database once. Every caller gets its own copy of the rows.
type fetchCache struct {
	group singleflight.Group
	mu    sync.Mutex
	sets  map[string]*RowSet
}

func newFetchCache() *fetchCache {
	return &fetchCache{sets: map[string]*RowSet{}}
}

func (fc *fetchCache) fetch(ctx context.Context, conn *Connection, table string, stmt qb.Statement) (*RowSet, error) {
	key := fmt.Sprintf("%s\x00%s\x00%#v", table, stmt.SQL, stmt.Args)
	fc.mu.Lock()
	set, ok := fc.sets[key]
	fc.mu.Unlock()
	if ok {
		return set.clone(), nil
	}
	v, err, _ := fc.group.Do(key, func() (interface{}, error) {
		fc.mu.Lock()
		set, ok := fc.sets[key]
		fc.mu.Unlock()
		if ok {
			return set, nil
		}
		set, err := conn.fetch(ctx, table, stmt)
		if err != nil {
			return nil, err
		}
		fc.mu.Lock()
		fc.sets[key] = set
		fc.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RowSet).clone(), nil
}

type resolver struct {
	conn  *Connection
	cache *fetchCache
}

func (c *Connection) newResolver() *resolver {
	return &resolver{conn: c, cache: newFetchCache()}
}

// LoadEager resolves loads on every row of set.
func (c *Connection) LoadEager(ctx context.Context, set *RowSet, loads []qb.EagerLoad) error {
	if set == nil || len(loads) == 0 {
		return nil
	}
	return c.newResolver().loadAll(withQueryID(ctx), set, loads)
}

// Load resolves the named relations, dotted names included, on set.
func (c *Connection) Load(ctx context.Context, set *RowSet, names ...string) error {
	return c.LoadEager(ctx, set, qb.New(c.Dialect, set.Table()).With(names...).EagerLoads())
}

// LoadRow is Load for a single row.
func (c *Connection) LoadRow(ctx context.Context, row *Row, names ...string) error {
	return c.Load(ctx, newRowSet(row.table, row.columns, []*Row{row}), names...)
}

func (r *resolver) loadAll(ctx context.Context, set *RowSet, loads []qb.EagerLoad) error {
	s, err := r.conn.getSchema(set.table)
	if err != nil {
		return err
	}
	rels := make([]Relation, len(loads))
	for i, l := range loads {
		if rels[i], err = s.relation(l.Name); err != nil {
			return err
		}
	}

	if r.conn.eagerConcurrency < 2 || len(loads) < 2 {
		for i := range loads {
			if err := r.resolve(ctx, set, rels[i], loads[i]); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.conn.eagerConcurrency)
	for i := range loads {
		i := i
		g.Go(func() error {
			return r.resolve(gctx, set, rels[i], loads[i])
		})
	}
	return g.Wait()
}

func (r *resolver) resolve(ctx context.Context, set *RowSet, rel Relation, load qb.EagerLoad) error {
	var err error
	switch rel := rel.(type) {
	case BelongsTo:
		err = r.belongsTo(ctx, set, rel, load)
	case HasOneOrMany:
		err = r.hasOneOrMany(ctx, set, rel, load)
	case BelongsToMany:
		err = r.belongsToMany(ctx, set, rel, load)
	default:
		err = fmt.Errorf("relorm: unsupported relation %T", rel)
	}
	set.forget(rel.RelationName())
	return err
}

// target builds the related query: the caller's callbacks first, then the
// key restriction in front of whatever they added.
func (r *resolver) target(table string, load qb.EagerLoad, key string, keys []interface{}) *qb.Builder {
	return load.Apply(qb.New(r.conn.Dialect, table)).ScopeWhereIn(key, keys)
}

// fetchRelated runs b and resolves the eager loads registered on it.
func (r *resolver) fetchRelated(ctx context.Context, b *qb.Builder) (*RowSet, error) {
	stmt, err := b.Render(qb.Operation_Select)
	if err != nil {
		return nil, err
	}
	set, err := r.cache.fetch(ctx, r.conn, b.TableName(), stmt)
	if err != nil {
		return nil, err
	}
	if nested := b.EagerLoads(); len(nested) > 0 && set.Len() > 0 {
		if err := r.loadAll(ctx, set, nested); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (r *resolver) belongsTo(ctx context.Context, set *RowSet, rel BelongsTo, load qb.EagerLoad) error {
	var keys []interface{}
	seen := map[string]bool{}
	for _, p := range set.rows {
		if !rel.Morph.matches(p) {
			continue
		}
		v := p.Get(rel.ForeignKey)
		if k, ok := keyOf(v); ok && !seen[k] {
			seen[k] = true
			keys = append(keys, v)
		}
	}

	owners := map[string]*Row{}
	if len(keys) > 0 {
		related, err := r.fetchRelated(ctx, r.target(rel.Related, load, rel.OwnerKey, keys))
		if err != nil {
			return err
		}
		for _, row := range related.rows {
			if k, ok := keyOf(row.Get(rel.OwnerKey)); ok {
				if _, exists := owners[k]; !exists {
					owners[k] = row
				}
			}
		}
	}

	for _, p := range set.rows {
		var owner *Row
		if rel.Morph.matches(p) {
			if k, ok := keyOf(p.Get(rel.ForeignKey)); ok {
				owner = owners[k]
			}
		}
		p.setRelation(rel.Name, owner)
	}
	return nil
}

func (r *resolver) hasOneOrMany(ctx context.Context, set *RowSet, rel HasOneOrMany, load qb.EagerLoad) error {
	children := map[string][]*Row{}
	if keys := set.Keys(rel.LocalKey); len(keys) > 0 {
		b := r.target(rel.Related, load, rel.ForeignKey, keys)
		if rel.Morph.Active() {
			b.Where(rel.Morph.Column, rel.Morph.Value)
		}
		related, err := r.fetchRelated(ctx, b)
		if err != nil {
			return err
		}
		for _, child := range related.rows {
			if !rel.Morph.matches(child) {
				continue
			}
			if k, ok := keyOf(child.Get(rel.ForeignKey)); ok {
				children[k] = append(children[k], child)
			}
		}
	}

	for _, p := range set.rows {
		var matched []*Row
		if k, ok := keyOf(p.Get(rel.LocalKey)); ok {
			matched = children[k]
		}
		if rel.Many {
			p.setRelation(rel.Name, append([]*Row{}, matched...))
			continue
		}
		var one *Row
		if len(matched) > 0 {
			one = matched[0]
		}
		p.setRelation(rel.Name, one)
	}
	return nil
}

func (r *resolver) pivotQuery(rel BelongsToMany) *qb.Builder {
	b := qb.New(r.conn.Dialect, rel.Pivot)
	if len(rel.PivotColumns) > 0 {
		b.Select(rel.PivotLocalKey, rel.PivotRelatedKey).Select(rel.PivotColumns...)
	}
	for _, m := range []Morph{rel.LocalMorph, rel.RelatedMorph} {
		if m.Active() {
			b.Where(m.Column, m.Value)
		}
	}
	return b
}

// belongsToMany reads the pivot rows first, then the related rows they point
// at. Every attached row is a copy carrying its own pivot row; attached rows
// keep the order of the related query.
func (r *resolver) belongsToMany(ctx context.Context, set *RowSet, rel BelongsToMany, load qb.EagerLoad) error {
	byOwner := map[string][]*Row{}
	related := newRowSet(rel.Related, nil, nil)

	if keys := set.Keys(rel.LocalKey); len(keys) > 0 {
		pivotB := r.pivotQuery(rel).ScopeWhereIn(rel.PivotLocalKey, keys)
		stmt, err := pivotB.Render(qb.Operation_Select)
		if err != nil {
			return err
		}
		pivots, err := r.cache.fetch(ctx, r.conn, rel.Pivot, stmt)
		if err != nil {
			return err
		}
		for _, pv := range pivots.rows {
			lk, lok := keyOf(pv.Get(rel.PivotLocalKey))
			_, rok := keyOf(pv.Get(rel.PivotRelatedKey))
			if !lok || !rok {
				continue
			}
			byOwner[lk] = append(byOwner[lk], pv)
		}

		if relatedKeys := pivots.Keys(rel.PivotRelatedKey); len(relatedKeys) > 0 {
			related, err = r.fetchRelated(ctx, r.target(rel.Related, load, rel.RelatedKey, relatedKeys))
			if err != nil {
				return err
			}
		}
	}

	// positions of related rows by key
	byKey := map[string][]int{}
	for i, row := range related.rows {
		if rk, ok := keyOf(row.Get(rel.RelatedKey)); ok {
			byKey[rk] = append(byKey[rk], i)
		}
	}

	type match struct {
		pos   int
		pivot *Row
	}
	for _, p := range set.rows {
		var matches []match
		if k, ok := keyOf(p.Get(rel.LocalKey)); ok {
			for _, pv := range byOwner[k] {
				rk, _ := keyOf(pv.Get(rel.PivotRelatedKey))
				for _, pos := range byKey[rk] {
					matches = append(matches, match{pos: pos, pivot: pv})
				}
			}
		}
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })
		attached := make([]*Row, 0, len(matches))
		for _, m := range matches {
			attached = append(attached, related.rows[m.pos].withPivot(m.pivot))
		}
		p.setRelation(rel.Name, attached)
	}
	return nil
}
