package qb

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type LockMode int

const (
	LockMode_None LockMode = iota
	LockMode_ForUpdate
	LockMode_Shared
)

// Dialect isolates everything that differs between database products.
type Dialect struct {
	DriverName                string
	PlaceholderChar           string
	IncludeIndexInPlaceholder bool
	PlaceHolderGenerator      func(n int) []string
	QuoteIdentifier           func(name string) string
	LimitOffset               func(limit, offset int) string
	Lock                      func(mode LockMode) string
	SupportsIndexHints        bool
	SupportsReplace           bool
	ParenthesizeUnion         bool
}

var Dialects = &struct {
	MySQL      *Dialect
	PostgreSQL *Dialect
	SQLite3    *Dialect
}{
	MySQL: &Dialect{
		DriverName:                "mysql",
		PlaceholderChar:           "?",
		IncludeIndexInPlaceholder: false,
		PlaceHolderGenerator:      mySQLPlaceHolder,
		QuoteIdentifier:           quoteWith("`"),
		LimitOffset:               mySQLLimit,
		Lock:                      mySQLLock,
		SupportsIndexHints:        true,
		SupportsReplace:           true,
		ParenthesizeUnion:         true,
	},
	PostgreSQL: &Dialect{
		DriverName:                "postgres",
		PlaceholderChar:           "$",
		IncludeIndexInPlaceholder: true,
		PlaceHolderGenerator:      postgresPlaceholder,
		QuoteIdentifier:           pq.QuoteIdentifier,
		LimitOffset:               standardLimit,
		Lock:                      postgresLock,
		ParenthesizeUnion:         true,
	},
	SQLite3: &Dialect{
		DriverName:                "sqlite3",
		PlaceholderChar:           "?",
		IncludeIndexInPlaceholder: false,
		PlaceHolderGenerator:      mySQLPlaceHolder,
		QuoteIdentifier:           quoteWith(`"`),
		LimitOffset:               sqliteLimit,
		Lock:                      func(LockMode) string { return "" },
		SupportsReplace:           true,
	},
}

// DialectFor returns the dialect registered for a database/sql driver name.
func DialectFor(driver string) (*Dialect, error) {
	switch driver {
	case "mysql":
		return Dialects.MySQL, nil
	case "postgres", "pgx":
		return Dialects.PostgreSQL, nil
	case "sqlite", "sqlite3":
		return Dialects.SQLite3, nil
	default:
		return nil, fmt.Errorf("qb: no dialect matched with driver %q", driver)
	}
}

// Quote quotes every dot separated part of ident, leaving * untouched.
func (d *Dialect) Quote(ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		if p == "*" {
			continue
		}
		parts[i] = d.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

type PlaceholderGenerator func(n int) []string

func postgresPlaceholder(n int) []string {
	output := []string{}
	for i := 1; i < n+1; i++ {
		output = append(output, fmt.Sprintf("$%d", i))
	}
	return output
}

func mySQLPlaceHolder(n int) []string {
	output := []string{}
	for i := 0; i < n; i++ {
		output = append(output, "?")
	}

	return output
}

func quoteWith(q string) func(string) string {
	return func(name string) string {
		return q + strings.ReplaceAll(name, q, q+q) + q
	}
}

func mySQLLimit(limit, offset int) string {
	switch {
	case limit >= 0 && offset > 0:
		return fmt.Sprintf("limit %d, %d", offset, limit)
	case limit >= 0:
		return fmt.Sprintf("limit %d", limit)
	case offset > 0:
		// mysql has no standalone offset
		return fmt.Sprintf("limit %d, 18446744073709551615", offset)
	}
	return ""
}

func standardLimit(limit, offset int) string {
	var sections []string
	if limit >= 0 {
		sections = append(sections, fmt.Sprintf("limit %d", limit))
	}
	if offset > 0 {
		sections = append(sections, fmt.Sprintf("offset %d", offset))
	}
	return strings.Join(sections, " ")
}

func sqliteLimit(limit, offset int) string {
	if limit < 0 && offset > 0 {
		return fmt.Sprintf("limit -1 offset %d", offset)
	}
	return standardLimit(limit, offset)
}

func mySQLLock(mode LockMode) string {
	switch mode {
	case LockMode_ForUpdate:
		return "for update"
	case LockMode_Shared:
		return "lock in share mode"
	}
	return ""
}

func postgresLock(mode LockMode) string {
	switch mode {
	case LockMode_ForUpdate:
		return "for update"
	case LockMode_Shared:
		return "for share"
	}
	return ""
}
