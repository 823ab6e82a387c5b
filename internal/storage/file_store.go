package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// FileStore реализует BlobStore в файловой системе: один файл на ключ.
// Запись атомарна: данные пишутся во временный файл и переименовываются.
type FileStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStore создаёт файловое хранилище в каталоге basePath
func NewFileStore(basePath string) (*FileStore, error) {
	// Создаём директорию если её нет
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", basePath, err)
	}

	return &FileStore{basePath: basePath}, nil
}

// Get читает файл ключа
func (fs *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.filename(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ключа %s: %w", key, err)
	}
	return data, nil
}

// Put атомарно перезаписывает файл ключа
func (fs *FileStore) Put(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp, err := os.CreateTemp(fs.basePath, ".tmp-*")
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи ключа %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка синхронизации ключа %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка закрытия файла ключа %s: %w", key, err)
	}

	if err := os.Rename(tmpName, fs.filename(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка переименования файла ключа %s: %w", key, err)
	}
	return nil
}

// Delete удаляет файл ключа
func (fs *FileStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	err := os.Remove(fs.filename(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления ключа %s: %w", key, err)
	}
	return nil
}

// Close ничего не делает: файлы не держатся открытыми
func (fs *FileStore) Close() error {
	return nil
}

// filename возвращает путь к файлу ключа; ключ экранируется, чтобы ':' и '/' были безопасны
func (fs *FileStore) filename(key string) string {
	return filepath.Join(fs.basePath, url.PathEscape(key)+".json")
}
