package relorm

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type schemaFile struct {
	Entities []entityDecl `yaml:"entities"`
}

type entityDecl struct {
	Table      string         `yaml:"table"`
	PrimaryKey string         `yaml:"primary_key"`
	Columns    []string       `yaml:"columns"`
	Relations  []relationDecl `yaml:"relations"`
}

type morphDecl struct {
	Column string      `yaml:"column"`
	Value  interface{} `yaml:"value"`
}

func (m *morphDecl) morph() Morph {
	if m == nil {
		return Morph{}
	}
	return Morph{Column: m.Column, Value: m.Value}
}

type relationDecl struct {
	Name            string     `yaml:"name"`
	Kind            string     `yaml:"kind"`
	Table           string     `yaml:"table"`
	LocalKey        string     `yaml:"local_key"`
	ForeignKey      string     `yaml:"foreign_key"`
	OwnerKey        string     `yaml:"owner_key"`
	Pivot           string     `yaml:"pivot"`
	PivotLocalKey   string     `yaml:"pivot_local_key"`
	PivotRelatedKey string     `yaml:"pivot_related_key"`
	RelatedKey      string     `yaml:"related_key"`
	PivotColumns    []string   `yaml:"pivot_columns"`
	Morph           *morphDecl `yaml:"morph"`
	RelatedMorph    *morphDecl `yaml:"related_morph"`
}

// ConfigureEntity lets a declaration read from a schema file be registered
// like any other Entity.
func (d entityDecl) ConfigureEntity(e *EntityConfigurator) {
	e.Table(d.Table).Columns(d.Columns...)
	if d.PrimaryKey != "" {
		e.PrimaryKey(d.PrimaryKey)
	}
	for _, r := range d.Relations {
		switch r.Kind {
		case "has_many":
			e.HasMany(nil, HasManyConfig{
				Name:               r.Name,
				PropertyTable:      r.Table,
				PropertyForeignKey: r.ForeignKey,
				LocalKey:           r.LocalKey,
				Morph:              r.Morph.morph(),
			})
		case "has_one":
			e.HasOne(nil, HasOneConfig{
				Name:               r.Name,
				PropertyTable:      r.Table,
				PropertyForeignKey: r.ForeignKey,
				LocalKey:           r.LocalKey,
				Morph:              r.Morph.morph(),
			})
		case "belongs_to":
			e.BelongsTo(nil, BelongsToConfig{
				Name:              r.Name,
				OwnerTable:        r.Table,
				LocalForeignKey:   r.ForeignKey,
				ForeignColumnName: r.OwnerKey,
				Morph:             r.Morph.morph(),
			})
		case "belongs_to_many":
			e.BelongsToMany(nil, BelongsToManyConfig{
				Name:                   r.Name,
				ForeignTable:           r.Table,
				IntermediateTable:      r.Pivot,
				IntermediateOwnerID:    r.PivotLocalKey,
				IntermediatePropertyID: r.PivotRelatedKey,
				OwnerLookupColumn:      r.LocalKey,
				ForeignLookupColumn:    r.RelatedKey,
				PivotColumns:           r.PivotColumns,
				OwnerMorph:             r.Morph.morph(),
				ForeignMorph:           r.RelatedMorph.morph(),
			})
		}
	}
}

// LoadSchemaFile reads entity declarations from a YAML file.
func LoadSchemaFile(path string) ([]Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSchema(f)
}

func ReadSchema(r io.Reader) ([]Entity, error) {
	var file schemaFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("relorm: decode schema: %w", err)
	}
	entities := make([]Entity, 0, len(file.Entities))
	for _, d := range file.Entities {
		for _, rel := range d.Relations {
			switch rel.Kind {
			case "has_many", "has_one", "belongs_to", "belongs_to_many":
			default:
				return nil, &DeclarationError{Table: d.Table, Relation: rel.Name, Reason: fmt.Sprintf("unknown relation kind %q", rel.Kind)}
			}
			if rel.Table == "" {
				return nil, &DeclarationError{Table: d.Table, Relation: rel.Name, Reason: "related table is required"}
			}
		}
		entities = append(entities, d)
	}
	return entities, nil
}
