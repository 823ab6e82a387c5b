package eventbus

import (
	"fmt"
	"time"

	"github.com/annel0/geocoin/internal/logging"
)

// Config выбирает реализацию шины событий
type Config struct {
	Driver         string `yaml:"driver" env:"GEOCOIN_EVENTS_DRIVER"` // memory | nats
	URL            string `yaml:"url" env:"GEOCOIN_EVENTS_URL"`
	Stream         string `yaml:"stream" env:"GEOCOIN_EVENTS_STREAM"`
	RetentionHours int    `yaml:"retention_hours" env:"GEOCOIN_EVENTS_RETENTION_HOURS"`
	Capacity       int    `yaml:"capacity" env:"GEOCOIN_EVENTS_CAPACITY"`
}

// DefaultConfig возвращает in-memory шину
func DefaultConfig() Config {
	return Config{
		Driver:         "memory",
		URL:            "nats://127.0.0.1:4222",
		Stream:         "GEOCOIN_EVENTS",
		RetentionHours: 24,
		Capacity:       1024,
	}
}

// Open создаёт шину событий по конфигурации
func Open(cfg Config) (EventBus, error) {
	switch cfg.Driver {
	case "memory", "":
		capacity := cfg.Capacity
		if capacity <= 0 {
			capacity = 1024
		}
		return NewMemoryBus(capacity), nil
	case "nats":
		bus, err := NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.RetentionHours)*time.Hour)
		if err != nil {
			return nil, err
		}
		logging.Info("📡 EventBus: JetStream %s stream=%s", cfg.URL, cfg.Stream)
		return bus, nil
	default:
		return nil, fmt.Errorf("unknown eventbus driver %q", cfg.Driver)
	}
}
