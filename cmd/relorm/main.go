// Command relorm inspects relorm schema files and renders statements for a
// chosen SQL dialect.
//
// Usage:
//
//	relorm [--config relorm.yaml] <command>
//
// render and version work without a database. schematic and ping open the
// configured connection.
package main

import (
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

func main() {
	Execute()
}
