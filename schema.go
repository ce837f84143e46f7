package relorm

import (
	"errors"
	"fmt"
)

type schema struct {
	table     string
	pk        string
	fields    []*field
	relations map[string]Relation
	names     []string
}

func (s *schema) Columns() []string {
	cols := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		cols = append(cols, f.Name)
	}
	return cols
}

// requireColumns fails when s declares columns and one of cols is missing.
// Empty names are ignored.
func (s *schema) requireColumns(cols ...string) error {
	if len(s.fields) == 0 {
		return nil
	}
	for _, col := range cols {
		if col == "" {
			continue
		}
		found := false
		for _, f := range s.fields {
			if f.Name == col {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("column %s is not declared on %s", col, s.table)
		}
	}
	return nil
}

func (s *schema) relation(name string) (Relation, error) {
	rel, ok := s.relations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, s.table, name)
	}
	return rel, nil
}

func (s *schema) Relations() []Relation {
	rels := make([]Relation, 0, len(s.names))
	for _, n := range s.names {
		rels = append(rels, s.relations[n])
	}
	return rels
}

type registry struct {
	schemas map[string]*schema
	order   []string
}

// schemaOf finds the registered schema for table, or for e when table is
// empty.
func (r *registry) schemaOf(e Entity, table string) (*schema, error) {
	if table == "" {
		if e == nil {
			return nil, errors.New("related entity or table is required")
		}
		ec := newEntityConfigurator()
		e.ConfigureEntity(ec)
		table = ec.table
	}
	s, ok := r.schemas[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return s, nil
}

// buildRegistry configures every entity, then resolves relations once all
// tables are known so declarations may reference each other in any order.
func buildRegistry(entities []Entity) (*registry, error) {
	reg := &registry{schemas: map[string]*schema{}}
	configurators := map[string]*EntityConfigurator{}

	for _, e := range entities {
		ec := newEntityConfigurator()
		e.ConfigureEntity(ec)
		if ec.table == "" {
			return nil, &DeclarationError{Table: fmt.Sprintf("%T", e), Reason: "table name is mandatory for entities"}
		}
		if _, exists := reg.schemas[ec.table]; exists {
			return nil, &DeclarationError{Table: ec.table, Reason: "table is registered twice"}
		}
		s := &schema{
			table:     ec.table,
			fields:    fieldsOf(ec),
			relations: map[string]Relation{},
		}
		pk, err := primaryKeyOf(ec, s.fields)
		if err != nil {
			return nil, &DeclarationError{Table: ec.table, Reason: err.Error()}
		}
		s.pk = pk
		reg.schemas[s.table] = s
		reg.order = append(reg.order, s.table)
		configurators[s.table] = ec
	}

	for _, table := range reg.order {
		s := reg.schemas[table]
		for _, resolve := range configurators[table].resolveRelations {
			rel, err := resolve(s, reg)
			if err != nil {
				return nil, &DeclarationError{Table: table, Reason: err.Error()}
			}
			name := rel.RelationName()
			if _, dup := s.relations[name]; dup {
				return nil, &DeclarationError{Table: table, Relation: name, Reason: "relation is declared twice"}
			}
			s.relations[name] = rel
			s.names = append(s.names, name)
		}
	}
	return reg, nil
}

func primaryKeyOf(ec *EntityConfigurator, fields []*field) (string, error) {
	if ec.primaryKey != "" {
		if len(fields) == 0 {
			return ec.primaryKey, nil
		}
		for _, f := range fields {
			if f.Name == ec.primaryKey {
				return ec.primaryKey, nil
			}
		}
		return "", fmt.Errorf("primary key %s is not a declared column", ec.primaryKey)
	}
	var pk string
	for _, f := range fields {
		if f.IsPK {
			if pk != "" {
				return "", fmt.Errorf("both %s and %s are marked as primary key", pk, f.Name)
			}
			pk = f.Name
		}
	}
	if pk != "" {
		return pk, nil
	}
	if len(fields) == 0 {
		return "id", nil
	}
	for _, f := range fields {
		if f.Name == "id" {
			return "id", nil
		}
	}
	return "", errors.New("primary key is not defined")
}
