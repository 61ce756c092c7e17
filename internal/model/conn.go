package model

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	_ "github.com/mattn/go-sqlite3"    // register sqlite3 driver
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// NewConn opens a go-zero SqlConn for driver and dsn.
func NewConn(driver, dsn string) (sqlx.SqlConn, error) {
	switch driver {
	case "", DriverSQLite:
		return sqlx.NewSqlConn(DriverSQLite, dsn), nil
	case DriverPostgres:
		return sqlx.NewSqlConn(DriverPostgres, dsn), nil
	default:
		return nil, fmt.Errorf("model: unsupported driver %q", driver)
	}
}
