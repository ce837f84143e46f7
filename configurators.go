package relorm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gertd/go-pluralize"
)

// Entity declares a table, its columns and its relations.
type Entity interface {
	ConfigureEntity(e *EntityConfigurator)
}

type relationResolver func(owner *schema, reg *registry) (Relation, error)

type EntityConfigurator struct {
	table            string
	primaryKey       string
	columns          []string
	fields           []*FieldConfigurator
	resolveRelations []relationResolver
}

func newEntityConfigurator() *EntityConfigurator {
	return &EntityConfigurator{}
}

func (ec *EntityConfigurator) Table(name string) *EntityConfigurator {
	ec.table = name
	return ec
}

func (ec *EntityConfigurator) PrimaryKey(column string) *EntityConfigurator {
	ec.primaryKey = column
	return ec
}

// Columns declares columns by their SQL names. Declared columns let Open
// check relation keys.
func (ec *EntityConfigurator) Columns(columns ...string) *EntityConfigurator {
	ec.columns = append(ec.columns, columns...)
	return ec
}

type HasManyConfig struct {
	Name               string
	PropertyTable      string
	PropertyForeignKey string
	LocalKey           string
	Morph              Morph
}

type HasOneConfig struct {
	Name               string
	PropertyTable      string
	PropertyForeignKey string
	LocalKey           string
	Morph              Morph
}

type BelongsToConfig struct {
	Name              string
	OwnerTable        string
	LocalForeignKey   string
	ForeignColumnName string
	Morph             Morph
}

type BelongsToManyConfig struct {
	Name                   string
	ForeignTable           string
	IntermediateTable      string
	IntermediateOwnerID    string
	IntermediatePropertyID string
	OwnerLookupColumn      string
	ForeignLookupColumn    string
	PivotColumns           []string
	OwnerMorph             Morph
	ForeignMorph           Morph
}

func singular(table string) string {
	return pluralize.NewClient().Singular(table)
}

// HasMany declares that rows of property point back at this entity. property
// may be nil when config.PropertyTable is set.
func (ec *EntityConfigurator) HasMany(property Entity, config HasManyConfig) *EntityConfigurator {
	ec.resolveRelations = append(ec.resolveRelations, func(owner *schema, reg *registry) (Relation, error) {
		target, err := reg.schemaOf(property, config.PropertyTable)
		if err != nil {
			return nil, err
		}
		return hasOneOrMany(owner, target, config.Name, target.table, config.PropertyForeignKey, config.LocalKey, config.Morph, true)
	})
	return ec
}

func (ec *EntityConfigurator) HasOne(property Entity, config HasOneConfig) *EntityConfigurator {
	ec.resolveRelations = append(ec.resolveRelations, func(owner *schema, reg *registry) (Relation, error) {
		target, err := reg.schemaOf(property, config.PropertyTable)
		if err != nil {
			return nil, err
		}
		return hasOneOrMany(owner, target, config.Name, singular(target.table), config.PropertyForeignKey, config.LocalKey, config.Morph, false)
	})
	return ec
}

func hasOneOrMany(owner, target *schema, name, defaultName, foreignKey, localKey string, morph Morph, many bool) (Relation, error) {
	if name == "" {
		name = defaultName
	}
	if foreignKey == "" {
		foreignKey = singular(owner.table) + "_id"
	}
	if localKey == "" {
		localKey = owner.pk
	}
	if err := morph.validate(); err != nil {
		return nil, err
	}
	if err := owner.requireColumns(localKey); err != nil {
		return nil, err
	}
	if err := target.requireColumns(foreignKey, morph.Column); err != nil {
		return nil, err
	}
	return HasOneOrMany{
		Name:       name,
		Table:      owner.table,
		Related:    target.table,
		LocalKey:   localKey,
		ForeignKey: foreignKey,
		Many:       many,
		Morph:      morph,
	}, nil
}

func (ec *EntityConfigurator) BelongsTo(owner Entity, config BelongsToConfig) *EntityConfigurator {
	ec.resolveRelations = append(ec.resolveRelations, func(self *schema, reg *registry) (Relation, error) {
		target, err := reg.schemaOf(owner, config.OwnerTable)
		if err != nil {
			return nil, err
		}
		if config.Name == "" {
			config.Name = singular(target.table)
		}
		if config.LocalForeignKey == "" {
			config.LocalForeignKey = singular(target.table) + "_id"
		}
		if config.ForeignColumnName == "" {
			config.ForeignColumnName = target.pk
		}
		if err := config.Morph.validate(); err != nil {
			return nil, err
		}
		if err := self.requireColumns(config.LocalForeignKey, config.Morph.Column); err != nil {
			return nil, err
		}
		if err := target.requireColumns(config.ForeignColumnName); err != nil {
			return nil, err
		}
		return BelongsTo{
			Name:       config.Name,
			Table:      self.table,
			Related:    target.table,
			ForeignKey: config.LocalForeignKey,
			OwnerKey:   config.ForeignColumnName,
			Morph:      config.Morph,
		}, nil
	})
	return ec
}

// BelongsToMany declares a many to many relation through a pivot table. The
// pivot defaults to both singular table names, sorted and joined with _.
func (ec *EntityConfigurator) BelongsToMany(related Entity, config BelongsToManyConfig) *EntityConfigurator {
	ec.resolveRelations = append(ec.resolveRelations, func(self *schema, reg *registry) (Relation, error) {
		target, err := reg.schemaOf(related, config.ForeignTable)
		if err != nil {
			return nil, err
		}
		if config.Name == "" {
			config.Name = target.table
		}
		if config.IntermediateTable == "" {
			names := []string{singular(self.table), singular(target.table)}
			sort.Strings(names)
			config.IntermediateTable = strings.Join(names, "_")
		}
		if config.IntermediateOwnerID == "" {
			config.IntermediateOwnerID = singular(self.table) + "_id"
		}
		if config.IntermediatePropertyID == "" {
			config.IntermediatePropertyID = singular(target.table) + "_id"
		}
		if config.OwnerLookupColumn == "" {
			config.OwnerLookupColumn = self.pk
		}
		if config.ForeignLookupColumn == "" {
			config.ForeignLookupColumn = target.pk
		}
		if config.IntermediateOwnerID == config.IntermediatePropertyID {
			return nil, fmt.Errorf("pivot keys of %s must differ", config.IntermediateTable)
		}
		for _, m := range []Morph{config.OwnerMorph, config.ForeignMorph} {
			if err := m.validate(); err != nil {
				return nil, err
			}
		}
		if err := self.requireColumns(config.OwnerLookupColumn); err != nil {
			return nil, err
		}
		if err := target.requireColumns(config.ForeignLookupColumn); err != nil {
			return nil, err
		}
		return BelongsToMany{
			Name:            config.Name,
			Table:           self.table,
			Related:         target.table,
			Pivot:           config.IntermediateTable,
			LocalKey:        config.OwnerLookupColumn,
			PivotLocalKey:   config.IntermediateOwnerID,
			PivotRelatedKey: config.IntermediatePropertyID,
			RelatedKey:      config.ForeignLookupColumn,
			PivotColumns:    append([]string(nil), config.PivotColumns...),
			LocalMorph:      config.OwnerMorph,
			RelatedMorph:    config.ForeignMorph,
		}, nil
	})
	return ec
}

type FieldConfigurator struct {
	fieldName  string
	primaryKey bool
	column     string
}

// Field declares a column by its Go field name; the column name defaults to
// the snake case form.
func (ec *EntityConfigurator) Field(name string) *FieldConfigurator {
	fc := &FieldConfigurator{fieldName: name}
	ec.fields = append(ec.fields, fc)
	return fc
}

func (fc *FieldConfigurator) IsPrimaryKey() *FieldConfigurator {
	fc.primaryKey = true
	return fc
}

func (fc *FieldConfigurator) ColumnName(name string) *FieldConfigurator {
	fc.column = name
	return fc
}
