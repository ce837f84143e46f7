package relorm

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// keyOf normalizes a column value so keys compare equal across driver
// representations, e.g. int64(1), []byte("1") and "1".
func keyOf(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case []byte:
		return string(x), true
	case string:
		return x, true
	case int64:
		return strconv.FormatInt(x, 10), true
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), true
	default:
		return fmt.Sprint(x), true
	}
}

// targetKeys flattens pivot targets: a key, a slice of keys, a *Row, a
// []*Row or a *RowSet. Rows contribute the value of column.
func targetKeys(targets interface{}, column string) []interface{} {
	switch t := targets.(type) {
	case nil:
		return nil
	case *Row:
		return []interface{}{t.Get(column)}
	case []*Row:
		keys := make([]interface{}, 0, len(t))
		for _, r := range t {
			keys = append(keys, r.Get(column))
		}
		return keys
	case *RowSet:
		return targetKeys(t.rows, column)
	case []byte:
		return []interface{}{t}
	case []interface{}:
		var keys []interface{}
		for _, item := range t {
			keys = append(keys, targetKeys(item, column)...)
		}
		return keys
	}
	rv := reflect.ValueOf(targets)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		keys := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			keys[i] = rv.Index(i).Interface()
		}
		return keys
	}
	return []interface{}{targets}
}

// distinctKeys drops nil and duplicate keys, keeping first occurrences.
func distinctKeys(keys []interface{}) ([]interface{}, map[string]interface{}) {
	var out []interface{}
	seen := map[string]interface{}{}
	for _, k := range keys {
		nk, ok := keyOf(k)
		if !ok {
			continue
		}
		if _, dup := seen[nk]; dup {
			continue
		}
		seen[nk] = k
		out = append(out, k)
	}
	return out, seen
}

func entitiesAsList(entities []Entity) []string {
	var output []string
	for _, entity := range entities {
		t := reflect.TypeOf(entity)
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		output = append(output, t.Name())
	}
	return output
}
