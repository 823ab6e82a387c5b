package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MariaStore реализует BlobStore для базы данных MariaDB/MySQL.
// Использует таблицу session_blobs.
type MariaStore struct {
	db *sql.DB
}

// NewMariaStore создает хранилище для MariaDB.
// Автоматически создает таблицу, если она не существует.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
func NewMariaStore(dsn string) (*MariaStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	store := &MariaStore{db: db}

	// Создаем таблицу, если она не существует
	if err := store.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return store, nil
}

// createTable создает таблицу session_blobs, если она не существует.
func (s *MariaStore) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS session_blobs (
			blob_key   VARCHAR(191) PRIMARY KEY,
			value      LONGBLOB     NOT NULL,
			updated_at TIMESTAMP    DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE    CURRENT_TIMESTAMP
		) ENGINE=InnoDB
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка создания таблицы session_blobs: %w", err)
	}
	return nil
}

// Get читает значение ключа
func (s *MariaStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session_blobs WHERE blob_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки ключа %s: %w", key, err)
	}
	return value, nil
}

// Put сохраняет значение ключа.
// Использует INSERT ... ON DUPLICATE KEY UPDATE для обновления существующих записей.
func (s *MariaStore) Put(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}

	query := `
		INSERT INTO session_blobs (blob_key, value)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE
			value = VALUES(value),
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("ошибка сохранения ключа %s: %w", key, err)
	}
	return nil
}

// Delete удаляет ключ
func (s *MariaStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_blobs WHERE blob_key = ?`, key); err != nil {
		return fmt.Errorf("ошибка удаления ключа %s: %w", key, err)
	}
	return nil
}

// Close закрывает соединение с базой данных
func (s *MariaStore) Close() error {
	return s.db.Close()
}
