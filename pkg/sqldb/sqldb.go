package sqldb

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type DB struct {
	Database   *sql.DB
	SqlBuilder squirrel.StatementBuilderType
	Driver     string
}

func Open(driver string, dsn string) (*DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver `%s`", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error while opening database with driver `%s`. %w", driver, err)
	}

	if driver == DriverSQLite {
		// one writer at a time; also makes the opt-in open check and insert serial
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	return New(db, driver), nil
}

// New wraps an already opened connection, tests pass a sqlmock handle here.
func New(db *sql.DB, driver string) *DB {
	var placeholder squirrel.PlaceholderFormat = squirrel.Dollar
	if driver == DriverSQLite {
		placeholder = squirrel.Question
	}

	return &DB{
		Database:   db,
		SqlBuilder: squirrel.StatementBuilder.PlaceholderFormat(placeholder),
		Driver:     driver,
	}
}

// SupportsRowLocks reports whether SELECT ... FOR UPDATE is available.
func (d *DB) SupportsRowLocks() bool {
	return d.Driver == DriverPostgres
}

func (d *DB) Close() error {
	if d.Database != nil {
		return d.Database.Close()
	}

	return nil
}
