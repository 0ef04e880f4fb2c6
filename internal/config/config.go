package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/local.yaml"

type Config struct {
	Env         string        `yaml:"env" env:"ENV" env-default:"local"`
	Storage     string        `yaml:"storage" env:"STORAGE" env-default:"postgres"`
	StoragePath string        `yaml:"storage_path" env:"STORAGE_PATH"`
	RedisAddr   string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	Timezone    string        `yaml:"timezone" env:"TIMEZONE" env-default:"Europe/Paris"`
	LockTTL     time.Duration `yaml:"lock_ttl" env:"LOCK_TTL" env-default:"30s"`
	Recurrence  Recurrence    `yaml:"recurrence"`
	NATS        NATS          `yaml:"nats"`
	HTTPServer  `yaml:"http_server"`
}

type Recurrence struct {
	MaxOccurrences int `yaml:"max_occurrences" env:"RECURRENCE_MAX_OCCURRENCES" env-default:"1000"`
	MaxSpanDays    int `yaml:"max_span_days" env:"RECURRENCE_MAX_SPAN_DAYS" env-default:"731"`
}

type NATS struct {
	URL            string        `yaml:"url" env:"NATS_URL"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"NATS_CONNECT_TIMEOUT" env-default:"5s"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Storage != "postgres" && cfg.Storage != "memory" {
		return nil, fmt.Errorf("%s: unknown storage %q", op, cfg.Storage)
	}

	if cfg.Storage == "postgres" && cfg.StoragePath == "" {
		return nil, fmt.Errorf("%s: storage_path is required for postgres storage", op)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("%s: invalid timezone %q: %w", op, cfg.Timezone, err)
	}

	return &cfg, nil
}

// Location returns the canonical timezone recurrence dates are anchored to.
// Load has already validated the name.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}
