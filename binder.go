package relorm

import "database/sql"

// scanRows reads every row into a RowSet. Values are scanned into *any so
// the driver representation is kept; []byte values are copied because the
// driver may reuse the buffer.
func scanRows(rows *sql.Rows, table string, pk string) (*RowSet, error) {
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []*Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
			m[col] = values[i]
		}
		out = append(out, newRow(table, columns, m, pk))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return newRowSet(table, columns, out), nil
}
