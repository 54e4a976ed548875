package database

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const sqlitePrefix = "sqlite3://"

//go:embed migrations/*.sql
var migrationsFS embed.FS

type SqlAgriTourRepository struct {
	conn   *sqlx.DB
	driver string
}

// NewSqlAgriTourRepository opens a postgres connection, or a sqlite3 one when
// the DSN starts with "sqlite3://".
func NewSqlAgriTourRepository(dsn string) (*SqlAgriTourRepository, error) {
	driver, source := "postgres", dsn
	if strings.HasPrefix(dsn, sqlitePrefix) {
		driver, source = "sqlite3", strings.TrimPrefix(dsn, sqlitePrefix)
	}

	db, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, err
	}

	if driver == "sqlite3" {
		// every connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &SqlAgriTourRepository{conn: db, driver: driver}, nil
}

func (db *SqlAgriTourRepository) Ping() error {
	return db.conn.Ping()
}

func (db *SqlAgriTourRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Migrate applies the embedded schema migrations over the open connection.
func (db *SqlAgriTourRepository) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	var driver migratedb.Driver
	switch db.driver {
	case "sqlite3":
		driver, err = sqlite3.WithInstance(db.conn.DB, &sqlite3.Config{})
	default:
		driver, err = postgres.WithInstance(db.conn.DB, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, db.driver, driver)
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	return nil
}
