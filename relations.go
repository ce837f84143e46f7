package relorm

import "fmt"

// Relation is one of BelongsTo, HasOneOrMany or BelongsToMany. Values are
// built once when a Connection is opened and never change afterwards.
type Relation interface {
	RelationName() string
	TargetTable() string
	isRelation()
}

// Morph is an optional discriminator: a relation with a Morph only matches
// rows whose Column holds Value. A zero Morph is inactive.
type Morph struct {
	Column string
	Value  interface{}
}

func (m Morph) Active() bool {
	return m.Column != ""
}

func (m Morph) matches(row *Row) bool {
	if !m.Active() {
		return true
	}
	got, ok := keyOf(row.Get(m.Column))
	want, _ := keyOf(m.Value)
	return ok && got == want
}

func (m Morph) validate() error {
	if m.Column == "" && m.Value != nil {
		return fmt.Errorf("morph value %v has no column", m.Value)
	}
	if m.Column != "" && m.Value == nil {
		return fmt.Errorf("morph column %s has no value", m.Column)
	}
	return nil
}

// BelongsTo matches Table.ForeignKey against Related.OwnerKey. Its Morph is
// checked on the declaring row.
type BelongsTo struct {
	Name       string
	Table      string
	Related    string
	ForeignKey string
	OwnerKey   string
	Morph      Morph
}

// HasOneOrMany matches Table.LocalKey against Related.ForeignKey. Its Morph
// is checked on the related rows.
type HasOneOrMany struct {
	Name       string
	Table      string
	Related    string
	LocalKey   string
	ForeignKey string
	Many       bool
	Morph      Morph
}

// BelongsToMany goes through Pivot: Table.LocalKey = Pivot.PivotLocalKey and
// Pivot.PivotRelatedKey = Related.RelatedKey. LocalMorph and RelatedMorph
// both constrain pivot rows.
//
// An eager load constraint (WithFunc) only reaches the query on Related. The
// pivot query carries the owner keys and morph predicates alone, so filtering
// on pivot columns needs PivotColumns and a check on Row.Pivot, or a raw join
// on the Related query.
type BelongsToMany struct {
	Name            string
	Table           string
	Related         string
	Pivot           string
	LocalKey        string
	PivotLocalKey   string
	PivotRelatedKey string
	RelatedKey      string
	PivotColumns    []string
	LocalMorph      Morph
	RelatedMorph    Morph
}

func (r BelongsTo) RelationName() string     { return r.Name }
func (r HasOneOrMany) RelationName() string  { return r.Name }
func (r BelongsToMany) RelationName() string { return r.Name }

func (r BelongsTo) TargetTable() string     { return r.Related }
func (r HasOneOrMany) TargetTable() string  { return r.Related }
func (r BelongsToMany) TargetTable() string { return r.Related }

func (BelongsTo) isRelation()     {}
func (HasOneOrMany) isRelation()  {}
func (BelongsToMany) isRelation() {}

func kindOf(rel Relation) string {
	switch r := rel.(type) {
	case BelongsTo:
		return "N-1"
	case HasOneOrMany:
		if r.Many {
			return "1-N"
		}
		return "1-1"
	case BelongsToMany:
		return "N-N"
	}
	return "?"
}
