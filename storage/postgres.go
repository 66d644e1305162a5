package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/stanleypliu/routemapper/core"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed schema/postgres/schema.sql
var postgresSchema string

// PostgresSessionStore is the session store for deployments where the
// app does not own local disk. Same key/value contract as the SQLite
// store.
type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(dsn string) (*PostgresSessionStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &PostgresSessionStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *PostgresSessionStore) Close() error {
	return s.db.Close()
}

func (s *PostgresSessionStore) initSchema() error {
	_, err := s.db.Exec(postgresSchema)
	return err
}

func (s *PostgresSessionStore) Load(ctx context.Context) (*core.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM session`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(values) == 0 {
		return nil, core.ErrNoSession
	}

	return sessionFromValues(values)
}

func (s *PostgresSessionStore) Save(ctx context.Context, session *core.Session) error {
	if err := validateSession(session); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return err
	}

	insert := `INSERT INTO session (key, value) VALUES ($1, $2)`
	for key, value := range sessionValues(session) {
		if _, err := tx.ExecContext(ctx, insert, key, value); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresSessionStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session`)
	return err
}
