package store

import (
	"context"
	"database/sql"
)

type PostgresStore struct {
	db     *sql.DB
	tables Tables
}

func NewPostgresStore(db *sql.DB, tables Tables) *PostgresStore {
	return &PostgresStore{db: db, tables: tables}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
