package relorm

import (
	"context"
	"fmt"
	"sort"

	"github.com/golobby/relorm/qb"
)

// SyncResult lists the related keys a pivot mutation attached and detached.
type SyncResult struct {
	Attached []interface{}
	Detached []interface{}
}

// Changed is the number of pivot rows inserted or deleted.
func (r SyncResult) Changed() int {
	return len(r.Attached) + len(r.Detached)
}

// Pivot mutations accept as targets a key, a slice of keys, a *Row, a []*Row
// or a *RowSet of related rows. They run several statements; pass a
// Connection bound to a transaction through WithExecutor when they must be
// atomic.

func (c *Connection) pivotOf(parent *Row, name string) (BelongsToMany, interface{}, error) {
	rel, err := c.Relation(parent.Table(), name)
	if err != nil {
		return BelongsToMany{}, nil, err
	}
	btm, ok := rel.(BelongsToMany)
	if !ok {
		return BelongsToMany{}, nil, fmt.Errorf("%w: %s.%s", ErrNotBelongsToMany, parent.Table(), name)
	}
	owner := parent.Get(btm.LocalKey)
	if owner == nil {
		return BelongsToMany{}, nil, fmt.Errorf("relorm: %s row has no value for %s", parent.Table(), btm.LocalKey)
	}
	return btm, owner, nil
}

// pivotScope selects the pivot rows of owner, morph columns included.
func (c *Connection) pivotScope(rel BelongsToMany, owner interface{}) *qb.Builder {
	b := qb.New(c.Dialect, rel.Pivot).Where(rel.PivotLocalKey, owner)
	for _, m := range []Morph{rel.LocalMorph, rel.RelatedMorph} {
		if m.Active() {
			b.Where(m.Column, m.Value)
		}
	}
	return b
}

// currentKeys returns the related keys owner is attached to, by normalized key.
func (c *Connection) currentKeys(ctx context.Context, rel BelongsToMany, owner interface{}) ([]interface{}, map[string]interface{}, error) {
	stmt, err := c.pivotScope(rel, owner).Select(rel.PivotRelatedKey).Render(qb.Operation_Select)
	if err != nil {
		return nil, nil, err
	}
	set, err := c.fetch(ctx, rel.Pivot, stmt)
	if err != nil {
		return nil, nil, err
	}
	keys, index := distinctKeys(set.Keys(rel.PivotRelatedKey))
	return keys, index, nil
}

func (c *Connection) insertPivots(ctx context.Context, rel BelongsToMany, owner interface{}, keys []interface{}, extra map[string]interface{}) (int64, error) {
	columns := []string{rel.PivotLocalKey, rel.PivotRelatedKey}
	var morphValues []interface{}
	for _, m := range []Morph{rel.LocalMorph, rel.RelatedMorph} {
		if m.Active() {
			columns = append(columns, m.Column)
			morphValues = append(morphValues, m.Value)
		}
	}
	reserved := map[string]bool{}
	for _, col := range columns {
		reserved[col] = true
	}
	extraColumns := make([]string, 0, len(extra))
	for col := range extra {
		if !reserved[col] {
			extraColumns = append(extraColumns, col)
		}
	}
	sort.Strings(extraColumns)

	b := qb.New(c.Dialect, rel.Pivot).Columns(columns...).Columns(extraColumns...)
	for _, k := range keys {
		values := append([]interface{}{owner, k}, morphValues...)
		for _, col := range extraColumns {
			values = append(values, extra[col])
		}
		b.Values(values...)
	}
	stmt, err := b.Render(qb.Operation_Insert)
	if err != nil {
		return 0, err
	}
	res, err := c.exec(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return affected(res, len(keys)), nil
}

func (c *Connection) deletePivots(ctx context.Context, rel BelongsToMany, owner interface{}, keys []interface{}) (int64, error) {
	b := c.pivotScope(rel, owner)
	if keys != nil {
		b.WhereIn(rel.PivotRelatedKey, keys)
	}
	stmt, err := b.Render(qb.Operation_Delete)
	if err != nil {
		return 0, err
	}
	res, err := c.exec(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return affected(res, len(keys)), nil
}

func affected(res interface{ RowsAffected() (int64, error) }, fallback int) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return int64(fallback)
	}
	return n
}

// Attach inserts a pivot row for every target parent is not attached to yet
// and returns how many were inserted. extra is written to new rows only.
func (c *Connection) Attach(ctx context.Context, parent *Row, relation string, targets interface{}, extra map[string]interface{}) (int64, error) {
	ctx = withQueryID(ctx)
	rel, owner, err := c.pivotOf(parent, relation)
	if err != nil {
		return 0, err
	}
	keys, _ := distinctKeys(targetKeys(targets, rel.RelatedKey))
	if len(keys) == 0 {
		return 0, nil
	}
	_, existing, err := c.currentKeys(ctx, rel, owner)
	if err != nil {
		return 0, err
	}
	var missing []interface{}
	for _, k := range keys {
		nk, _ := keyOf(k)
		if _, ok := existing[nk]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	return c.insertPivots(ctx, rel, owner, missing, extra)
}

// Detach deletes the pivot rows of parent pointing at targets, or all of its
// pivot rows when targets is nil.
func (c *Connection) Detach(ctx context.Context, parent *Row, relation string, targets interface{}) (int64, error) {
	ctx = withQueryID(ctx)
	rel, owner, err := c.pivotOf(parent, relation)
	if err != nil {
		return 0, err
	}
	if targets == nil {
		return c.deletePivots(ctx, rel, owner, nil)
	}
	keys, _ := distinctKeys(targetKeys(targets, rel.RelatedKey))
	if len(keys) == 0 {
		return 0, nil
	}
	return c.deletePivots(ctx, rel, owner, keys)
}

// Sync makes targets the exact set parent is attached to. Pivot rows that
// stay are left as they are, extra columns included.
func (c *Connection) Sync(ctx context.Context, parent *Row, relation string, targets interface{}, extra map[string]interface{}) (SyncResult, error) {
	ctx = withQueryID(ctx)
	var result SyncResult
	rel, owner, err := c.pivotOf(parent, relation)
	if err != nil {
		return result, err
	}
	keys, wanted := distinctKeys(targetKeys(targets, rel.RelatedKey))
	current, existing, err := c.currentKeys(ctx, rel, owner)
	if err != nil {
		return result, err
	}
	for _, k := range current {
		nk, _ := keyOf(k)
		if _, ok := wanted[nk]; !ok {
			result.Detached = append(result.Detached, k)
		}
	}
	for _, k := range keys {
		nk, _ := keyOf(k)
		if _, ok := existing[nk]; !ok {
			result.Attached = append(result.Attached, k)
		}
	}
	return result, c.apply(ctx, rel, owner, result, extra)
}

// Toggle detaches every target parent is attached to and attaches the rest.
func (c *Connection) Toggle(ctx context.Context, parent *Row, relation string, targets interface{}, extra map[string]interface{}) (SyncResult, error) {
	ctx = withQueryID(ctx)
	var result SyncResult
	rel, owner, err := c.pivotOf(parent, relation)
	if err != nil {
		return result, err
	}
	keys, _ := distinctKeys(targetKeys(targets, rel.RelatedKey))
	if len(keys) == 0 {
		return result, nil
	}
	_, existing, err := c.currentKeys(ctx, rel, owner)
	if err != nil {
		return result, err
	}
	for _, k := range keys {
		nk, _ := keyOf(k)
		if _, ok := existing[nk]; ok {
			result.Detached = append(result.Detached, k)
		} else {
			result.Attached = append(result.Attached, k)
		}
	}
	return result, c.apply(ctx, rel, owner, result, extra)
}

// apply issues at most one delete and one insert.
func (c *Connection) apply(ctx context.Context, rel BelongsToMany, owner interface{}, result SyncResult, extra map[string]interface{}) error {
	if len(result.Detached) > 0 {
		if _, err := c.deletePivots(ctx, rel, owner, result.Detached); err != nil {
			return err
		}
	}
	if len(result.Attached) > 0 {
		if _, err := c.insertPivots(ctx, rel, owner, result.Attached, extra); err != nil {
			return err
		}
	}
	return nil
}
