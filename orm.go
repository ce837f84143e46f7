package relorm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golobby/relorm/qb"
)

// ExecQuerier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type ConnectionConfig struct {
	Name             string
	Driver           string
	ConnectionString string
	DB               *sql.DB
	Dialect          *qb.Dialect
	Entities         []Entity
	Logger           Logger
	// EagerConcurrency bounds how many relations of one eager set resolve
	// at the same time. Values below 2 resolve them one after another.
	EagerConcurrency int
}

// Open validates every entity declaration and returns a Connection bound to
// the configured database.
func Open(conf ConnectionConfig) (*Connection, error) {
	var err error
	dialect := conf.Dialect
	if dialect == nil {
		dialect, err = qb.DialectFor(conf.Driver)
		if err != nil {
			return nil, err
		}
	}
	reg, err := buildRegistry(conf.Entities)
	if err != nil {
		return nil, err
	}
	db := conf.DB
	if db == nil {
		db, err = sql.Open(conf.Driver, conf.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("relorm: open %s: %w", conf.Driver, err)
		}
	}
	logger := conf.Logger
	if logger == nil {
		logger = nopLogger()
	}
	name := conf.Name
	if name == "" {
		name = "default"
	}
	c := &Connection{
		Name:             name,
		Dialect:          dialect,
		DB:               db,
		db:               db,
		registry:         reg,
		logger:           logger,
		eagerConcurrency: conf.EagerConcurrency,
	}
	logger.Debugf("connection %s opened with %s, entities: %v", name, dialect.DriverName, entitiesAsList(conf.Entities))
	return c, nil
}
