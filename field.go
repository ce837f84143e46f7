package relorm

import "github.com/iancoleman/strcase"

type field struct {
	Name      string
	FieldName string
	IsPK      bool
}

func fieldsOf(ec *EntityConfigurator) []*field {
	var fields []*field
	seen := map[string]bool{}
	add := func(f *field) {
		if seen[f.Name] {
			return
		}
		seen[f.Name] = true
		fields = append(fields, f)
	}
	for _, col := range ec.columns {
		add(&field{Name: col, IsPK: col == ec.primaryKey})
	}
	for _, fc := range ec.fields {
		f := &field{FieldName: fc.fieldName, IsPK: fc.primaryKey}
		if fc.column != "" {
			f.Name = fc.column
		} else {
			f.Name = strcase.ToSnake(fc.fieldName)
		}
		if f.Name == ec.primaryKey {
			f.IsPK = true
		}
		add(f)
	}
	return fields
}
