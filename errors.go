package relorm

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a required single row fetch finds nothing.
	ErrNotFound = errors.New("relorm: row not found")

	ErrUnknownTable     = errors.New("relorm: table is not registered")
	ErrUnknownRelation  = errors.New("relorm: relation is not declared")
	ErrNotBelongsToMany = errors.New("relorm: relation is not belongs to many")
)

// DeclarationError is returned by Open when an entity or relation is
// declared inconsistently.
type DeclarationError struct {
	Table    string
	Relation string
	Reason   string
}

func (e *DeclarationError) Error() string {
	if e.Relation != "" {
		return fmt.Sprintf("relorm: %s.%s: %s", e.Table, e.Relation, e.Reason)
	}
	return fmt.Sprintf("relorm: %s: %s", e.Table, e.Reason)
}

// QueryError carries the statement that failed to execute.
type QueryError struct {
	SQL  string
	Args []interface{}
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("relorm: %q %v: %v", e.SQL, e.Args, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

type NotFoundError struct {
	table string
	id    any
}

func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("relorm: %s not found (id=%v)", e.table, e.id)
	}
	return fmt.Sprintf("relorm: %s not found", e.table)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

func (e *NotFoundError) Table() string {
	return e.table
}

func (e *NotFoundError) ID() any {
	return e.id
}

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

const (
	pgUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
)

// IsUniqueConstraintError reports whether err comes from a unique index
// violation, for example a pivot row inserted twice by concurrent writers.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
