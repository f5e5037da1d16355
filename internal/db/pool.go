// Package db opens the board database and hands out reader/writer handles.
package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/agentboard/agentboard/internal/common/config"
)

const (
	DriverSQLite3  = "sqlite3"
	DriverPostgres = "pgx"
)

// Pool provides separate read and write database connections.
//
// SQLite runs in WAL mode with a single writer connection and a small pool
// of read-only connections. For PostgreSQL both handles are the same *sqlx.DB.
type Pool struct {
	writer *sqlx.DB
	reader *sqlx.DB
}

// NewPool creates a Pool from separate writer and reader connections.
func NewPool(writer, reader *sqlx.DB) *Pool {
	return &Pool{writer: writer, reader: reader}
}

// Open connects to the database selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (*Pool, error) {
	switch cfg.Driver {
	case DriverSQLite3, "":
		writer, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		reader, err := OpenSQLiteReader(cfg.Path)
		if err != nil {
			_ = writer.Close()
			return nil, err
		}
		return NewPool(sqlx.NewDb(writer, DriverSQLite3), sqlx.NewDb(reader, DriverSQLite3)), nil
	case DriverPostgres:
		conn, err := OpenPostgres(cfg.DSN(), cfg.MaxConns, cfg.MinConns)
		if err != nil {
			return nil, err
		}
		x := sqlx.NewDb(conn, DriverPostgres)
		return NewPool(x, x), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Writer returns the handle used for INSERT, UPDATE, DELETE and DDL.
func (p *Pool) Writer() *sqlx.DB { return p.writer }

// Reader returns the handle used for SELECT queries.
func (p *Pool) Reader() *sqlx.DB { return p.reader }

// Driver returns the driver name of the underlying connections.
func (p *Pool) Driver() string { return p.writer.DriverName() }

// Close closes both the writer and reader pools.
func (p *Pool) Close() error {
	wErr := p.writer.Close()
	// Postgres shares one handle for both roles.
	if p.reader != p.writer {
		if rErr := p.reader.Close(); rErr != nil && wErr == nil {
			return rErr
		}
	}
	return wErr
}
