package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore реализует BlobStore во встроенной SQLite (без cgo).
// Используется одно соединение: SQLite всё равно сериализует запись.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore открывает (или создаёт) базу по пути path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("пустой путь к базе SQLite")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// init включает WAL и создаёт таблицу session_blobs
func (s *SQLiteStore) init() error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS session_blobs (
			blob_key   TEXT    PRIMARY KEY,
			value      BLOB    NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("ошибка инициализации SQLite (%s): %w", stmt, err)
		}
	}
	return nil
}

// Get читает значение ключа
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session_blobs WHERE blob_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ключа %s из SQLite: %w", key, err)
	}
	return value, nil
}

// Put вставляет или заменяет значение ключа
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}

	query := `
		INSERT INTO session_blobs (blob_key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(blob_key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("ошибка сохранения ключа %s в SQLite: %w", key, err)
	}
	return nil
}

// Delete удаляет ключ
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_blobs WHERE blob_key = ?`, key); err != nil {
		return fmt.Errorf("ошибка удаления ключа %s из SQLite: %w", key, err)
	}
	return nil
}

// Close закрывает соединение с базой
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
