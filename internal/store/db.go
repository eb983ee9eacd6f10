package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/christopherklint97/imputr/internal/timely"
)

// FileName is the name of the token cache inside the config directory.
const FileName = "imputr.db"

type DB struct {
	*sql.DB
}

// Open opens (creating when needed) the sqlite database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	store := &DB{db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tokens (
			key TEXT PRIMARY KEY,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			expires_at DATETIME,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	return nil
}

// LoadToken returns the cached token for key, or nil when there is none.
func (db *DB) LoadToken(key string) (*timely.Token, error) {
	var (
		token     timely.Token
		expiresAt sql.NullString
	)
	err := db.QueryRow(
		"SELECT access_token, refresh_token, expires_at FROM tokens WHERE key = ?", key,
	).Scan(&token.AccessToken, &token.RefreshToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}

	if expiresAt.Valid && expiresAt.String != "" {
		t, err := time.Parse(time.RFC3339, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing token expiry: %w", err)
		}
		token.ExpiresAt = t
	}
	return &token, nil
}

// SaveToken stores token under key, replacing any previous one.
func (db *DB) SaveToken(key string, token *timely.Token) error {
	var expiresAt any
	if !token.ExpiresAt.IsZero() {
		expiresAt = token.ExpiresAt.UTC().Format(time.RFC3339)
	}
	_, err := db.Exec(
		`INSERT INTO tokens (key, access_token, refresh_token, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		key, token.AccessToken, token.RefreshToken, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// DeleteToken removes the cached token for key.
func (db *DB) DeleteToken(key string) error {
	if _, err := db.Exec("DELETE FROM tokens WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}
