package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"

	"github.com/stanleypliu/routemapper/core"

	_ "modernc.org/sqlite"
)

//go:embed schema/sqlite/schema.sql
var sqliteSchema string

// The three fixed keys the session lives under.
const (
	keyAccessToken  = "accessToken"
	keyRefreshToken = "refreshToken"
	keyExpiresAt    = "expiresAt"
)

// SQLiteSessionStore is the default durable session store: three string
// values under fixed keys, written and cleared atomically.
type SQLiteSessionStore struct {
	db *sql.DB
}

func NewSQLiteSessionStore(dbPath string) (*SQLiteSessionStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteSessionStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteSessionStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteSessionStore) initSchema() error {
	_, err := s.db.Exec(sqliteSchema)
	return err
}

func (s *SQLiteSessionStore) Load(ctx context.Context) (*core.Session, error) {
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

func (s *SQLiteSessionStore) Save(ctx context.Context, session *core.Session) error {
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

	insert := `INSERT INTO session (key, value) VALUES (?, ?)`
	for key, value := range sessionValues(session) {
		if _, err := tx.ExecContext(ctx, insert, key, value); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteSessionStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session`)
	return err
}

// Shared between the SQL-backed stores.

func validateSession(session *core.Session) error {
	if session == nil || session.AccessToken == "" {
		return core.ErrInvalidSession
	}
	// RefreshToken and ExpiresAt travel together.
	if (session.RefreshToken == "") != (session.ExpiresAt == 0) {
		return core.ErrInvalidSession
	}
	return nil
}

func sessionValues(session *core.Session) map[string]string {
	values := map[string]string{
		keyAccessToken: session.AccessToken,
	}
	if session.RefreshToken != "" {
		values[keyRefreshToken] = session.RefreshToken
		values[keyExpiresAt] = strconv.FormatInt(session.ExpiresAt, 10)
	}
	return values
}

func sessionFromValues(values map[string]string) (*core.Session, error) {
	session := &core.Session{
		AccessToken:  values[keyAccessToken],
		RefreshToken: values[keyRefreshToken],
	}

	if raw, ok := values[keyExpiresAt]; ok {
		expiresAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad expiry %q", core.ErrInvalidSession, raw)
		}
		session.ExpiresAt = expiresAt
	}

	if (session.RefreshToken == "") != (session.ExpiresAt == 0) {
		return nil, core.ErrInvalidSession
	}

	return session, nil
}
