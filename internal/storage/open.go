package storage

import (
	"fmt"
	"path/filepath"

	"github.com/annel0/geocoin/internal/logging"
)

// Драйверы хранилища сессий
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMySQL  = "mysql"
	DriverMongo  = "mongo"
)

// Config описывает выбор и настройку хранилища сессий
type Config struct {
	Driver     string `yaml:"driver" env:"GEOCOIN_STORAGE_DRIVER"`
	Path       string `yaml:"path" env:"GEOCOIN_STORAGE_PATH"`
	DSN        string `yaml:"dsn" env:"GEOCOIN_STORAGE_DSN"`
	Addr       string `yaml:"addr" env:"GEOCOIN_STORAGE_ADDR"`
	Password   string `yaml:"password" env:"GEOCOIN_STORAGE_PASSWORD"`
	DB         int    `yaml:"db" env:"GEOCOIN_STORAGE_DB"`
	Database   string `yaml:"database" env:"GEOCOIN_STORAGE_DATABASE"`
	Collection string `yaml:"collection" env:"GEOCOIN_STORAGE_COLLECTION"`
	KeyPrefix  string `yaml:"key_prefix" env:"GEOCOIN_STORAGE_KEY_PREFIX"`
	Compress   bool   `yaml:"compress" env:"GEOCOIN_STORAGE_COMPRESS"`
}

// DefaultConfig возвращает настройки файлового хранилища в ./data
func DefaultConfig() Config {
	return Config{
		Driver:    DriverFile,
		Path:      "data",
		KeyPrefix: "geocoin:",
	}
}

// Open создаёт хранилище по конфигурации
func Open(cfg Config) (BlobStore, error) {
	var (
		store BlobStore
		err   error
	)

	switch cfg.Driver {
	case DriverMemory:
		store = NewMemoryStore()
	case DriverFile, "":
		store, err = NewFileStore(cfg.Path)
	case DriverBadger:
		store, err = NewBadgerStore(cfg.Path)
	case DriverSQLite:
		path := cfg.Path
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "geocoin.db")
		}
		store, err = NewSQLiteStore(path)
	case DriverRedis:
		store, err = NewRedisStore(&RedisConfig{
			Addr:      cfg.Addr,
			Password:  cfg.Password,
			DB:        cfg.DB,
			KeyPrefix: cfg.KeyPrefix,
		})
	case DriverMySQL:
		store, err = NewMariaStore(cfg.DSN)
	case DriverMongo:
		store, err = NewMongoStore(MongoConfig{
			URI:        cfg.DSN,
			Database:   cfg.Database,
			Collection: cfg.Collection,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Driver, err)
	}

	if cfg.Compress {
		compressed, err := NewCompressedStore(store)
		if err != nil {
			store.Close()
			return nil, err
		}
		store = compressed
	}

	logging.GetStorageLogger().Info("💾 Session storage ready: driver=%s compress=%v", cfg.Driver, cfg.Compress)
	return store, nil
}
