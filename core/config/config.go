package config

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverLevelDB  = "leveldb"
	DriverPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server struct {
		Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
		Port int    `envconfig:"SERVER_PORT" default:"3000"`
	}
	Store struct {
		Driver      string `envconfig:"STORE_DRIVER" default:"leveldb"`
		Path        string `envconfig:"STORE_PATH" default:"./qr_chunks"`
		DatabaseURL string `envconfig:"DATABASE_URL"`
	}
	Relay struct {
		URL     string `envconfig:"NATS_URL"`
		Subject string `envconfig:"NATS_SUBJECT" default:"qrxfer.chunks"`
	}
	Chunks struct {
		Size int `envconfig:"CHUNK_SIZE" default:"800"`
	}
	Output struct {
		Dir string `envconfig:"OUTPUT_DIR" default:"./reconstructed_files"`
	}
	Collector struct {
		Addr       string `envconfig:"COLLECTOR_ADDR" default:"localhost:3000"`
		DedupCache int    `envconfig:"DEDUP_CACHE" default:"4096"`
	}
}

func GetConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverLevelDB:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the postgres store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown STORE_DRIVER %q", ErrInvalidConfig, c.Store.Driver)
	}

	if c.Chunks.Size <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive", ErrInvalidConfig)
	}

	return nil
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
