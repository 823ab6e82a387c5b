package config

import (
	"fmt"
	"os"
	"time"

	"github.com/annel0/geocoin/internal/eventbus"
	"github.com/annel0/geocoin/internal/storage"
	"github.com/annel0/geocoin/internal/vec"
	"github.com/annel0/geocoin/internal/world"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
// Порядок применения: значения по умолчанию -> YAML файл -> переменные окружения.
type Config struct {
	Game      GameConfig      `yaml:"game"`
	Storage   storage.Config  `yaml:"storage"`
	Events    eventbus.Config `yaml:"events"`
	Server    ServerConfig    `yaml:"server"`
	Location  LocationConfig  `yaml:"location"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// GameConfig параметры сетки и генерации тайников
type GameConfig struct {
	OriginLat        float64 `yaml:"origin_lat" env:"GEOCOIN_ORIGIN_LAT"`
	OriginLng        float64 `yaml:"origin_lng" env:"GEOCOIN_ORIGIN_LNG"`
	TileDegrees      float64 `yaml:"tile_degrees" env:"GEOCOIN_TILE_DEGREES"`
	Neighborhood     int     `yaml:"neighborhood" env:"GEOCOIN_NEIGHBORHOOD"`
	SpawnProbability float64 `yaml:"spawn_probability" env:"GEOCOIN_SPAWN_PROBABILITY"`
	ContentScale     int     `yaml:"content_scale" env:"GEOCOIN_CONTENT_SCALE"`
	ContentSeed      string  `yaml:"content_seed" env:"GEOCOIN_CONTENT_SEED"`
	SessionKey       string  `yaml:"session_key" env:"GEOCOIN_SESSION_KEY"`
}

// Origin возвращает точку привязки сетки
func (g GameConfig) Origin() vec.LatLng {
	return vec.LatLng{Lat: g.OriginLat, Lng: g.OriginLng}
}

// ServerConfig параметры REST API. Пустой AuthSecret отключает авторизацию.
type ServerConfig struct {
	RESTPort   int           `yaml:"rest_port" env:"GEOCOIN_REST_PORT"`
	AuthSecret string        `yaml:"auth_secret" env:"GEOCOIN_AUTH_SECRET"`
	TokenTTL   time.Duration `yaml:"token_ttl" env:"GEOCOIN_TOKEN_TTL"`
}

// LocationConfig источник живой геолокации: "websocket" (браузер) или "nats"
type LocationConfig struct {
	Source      string `yaml:"source" env:"GEOCOIN_LOCATION_SOURCE"`
	NATSURL     string `yaml:"nats_url" env:"GEOCOIN_NATS_URL"`
	NATSSubject string `yaml:"nats_subject" env:"GEOCOIN_NATS_SUBJECT"`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"GEOCOIN_LOG_LEVEL"`
	Dir   string `yaml:"dir" env:"GEOCOIN_LOG_DIR"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" env:"GEOCOIN_TELEMETRY_ENABLED"`
	ServiceName string `yaml:"service_name" env:"GEOCOIN_SERVICE_NAME"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Game: GameConfig{
			OriginLat:        36.98949379578401,
			OriginLng:        -122.06277128548504,
			TileDegrees:      world.DefaultTileDegrees,
			Neighborhood:     8,
			SpawnProbability: world.DefaultSpawnProbability,
			ContentScale:     world.DefaultContentScale,
			ContentSeed:      world.DefaultContentSeed,
			SessionKey:       "gameState",
		},
		Storage: storage.DefaultConfig(),
		Events:  eventbus.DefaultConfig(),
		Server: ServerConfig{
			RESTPort: 8088,
			TokenTTL: 24 * time.Hour,
		},
		Location: LocationConfig{
			Source:      "websocket",
			NATSURL:     "nats://127.0.0.1:4222",
			NATSSubject: "geocoin.location",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "geocoin",
		},
	}
}

// Load читает YAML файл конфигурации поверх значений по умолчанию и
// применяет переменные окружения. Если path == "", используется ENV GEOCOIN_CONFIG;
// если и он пуст, файл не читается.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("GEOCOIN_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, без которых игра не может работать
func (c *Config) Validate() error {
	if c.Game.TileDegrees <= 0 {
		return fmt.Errorf("game.tile_degrees must be positive, got %v", c.Game.TileDegrees)
	}
	if c.Game.Neighborhood < 0 {
		return fmt.Errorf("game.neighborhood must not be negative, got %d", c.Game.Neighborhood)
	}
	if c.Game.SpawnProbability < 0 || c.Game.SpawnProbability > 1 {
		return fmt.Errorf("game.spawn_probability must be in [0,1], got %v", c.Game.SpawnProbability)
	}
	if c.Game.ContentScale <= 0 {
		return fmt.Errorf("game.content_scale must be positive, got %d", c.Game.ContentScale)
	}
	if c.Game.SessionKey == "" {
		return fmt.Errorf("game.session_key must not be empty")
	}
	if c.Server.RESTPort <= 0 {
		return fmt.Errorf("server.rest_port must be positive, got %d", c.Server.RESTPort)
	}
	if c.Server.AuthSecret != "" && c.Server.TokenTTL <= 0 {
		return fmt.Errorf("server.token_ttl must be positive, got %v", c.Server.TokenTTL)
	}
	switch c.Location.Source {
	case "websocket", "nats":
	default:
		return fmt.Errorf("location.source must be websocket or nats, got %q", c.Location.Source)
	}
	return nil
}
