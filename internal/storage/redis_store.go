package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/geocoin/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisStore хранит blob'ы сессий в Redis
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string // Адрес Redis сервера
	Password  string // Пароль (пустой если не требуется)
	DB        int    // Номер базы данных
	KeyPrefix string // Префикс для ключей
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		Password:  "",
		DB:        0,
		KeyPrefix: "geocoin:",
	}
}

// NewRedisStore подключается к Redis и проверяет соединение
func NewRedisStore(config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("🔴 Connected to Redis at %s", config.Addr)
	return &RedisStore{
		client:    client,
		keyPrefix: config.KeyPrefix,
	}, nil
}

// Get читает значение ключа
func (rs *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	data, err := rs.client.Get(ctx, rs.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	return data, nil
}

// Put записывает значение без TTL
func (rs *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := rs.client.Set(ctx, rs.keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Delete удаляет ключ
func (rs *RedisStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := rs.client.Del(ctx, rs.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// Close закрывает соединение
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
