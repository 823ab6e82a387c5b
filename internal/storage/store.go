package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound возвращается, если ключ отсутствует в хранилище
	ErrNotFound = errors.New("storage: key not found")
	// ErrClosed возвращается при обращении к закрытому хранилищу
	ErrClosed = errors.New("storage: store closed")
	// ErrInvalidKey возвращается для пустого ключа
	ErrInvalidKey = errors.New("storage: invalid key")
)

// BlobStore определяет долговременное хранилище вида "строковый ключ -> blob".
// Сессия игры хранится целиком под одним ключом, поэтому реализациям не нужны
// ни диапазонные запросы, ни транзакции между ключами.
type BlobStore interface {
	// Get возвращает значение по ключу.
	// Возвращает ErrNotFound, если ключ отсутствует.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put записывает значение, полностью заменяя предыдущее.
	Put(ctx context.Context, key string, value []byte) error

	// Delete удаляет ключ. Удаление отсутствующего ключа не является ошибкой.
	Delete(ctx context.Context, key string) error

	// Close освобождает ресурсы хранилища.
	Close() error
}

// validateKey проверяет ключ перед обращением к хранилищу
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	return nil
}

// checkContext проверяет контекст на отмену
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
