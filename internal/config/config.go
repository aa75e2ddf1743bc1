// Package config loads settings from the environment, after reading an
// optional .env file. Command-line flags in cmd/ override these values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. UNIFORME_DB.
const Prefix = "UNIFORME"

// Server configures cmd/uniforme. KafkaGroup is the prefix of each
// instance's own consumer group.
type Server struct {
	DB           string        `envconfig:"DB" default:"uniforme.sqlite3"`
	Addr         string        `envconfig:"ADDR" default:":8080"`
	AdminUser    string        `envconfig:"ADMIN_USER" default:"Admin"`
	Log          string        `envconfig:"LOG"`
	KafkaBrokers []string      `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string        `envconfig:"KAFKA_TOPIC" default:"uniforme-events"`
	KafkaGroup   string        `envconfig:"KAFKA_GROUP" default:"uniforme"`
	VoidInterval time.Duration `envconfig:"VOID_INTERVAL" default:"1h"`
}

// Client configures cmd/uniformectl.
type Client struct {
	URL          string        `envconfig:"URL" default:"http://localhost:8080"`
	TokenFile    string        `envconfig:"TOKEN_FILE" default:".uniforme-token"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"30s"`
}

// LoadServer reads the server configuration.
func LoadServer(envFiles ...string) (*Server, error) {
	var cfg Server
	if err := load(&cfg, envFiles); err != nil {
		return nil, err
	}
	if cfg.VoidInterval <= 0 {
		return nil, fmt.Errorf("%s_VOID_INTERVAL must be positive", Prefix)
	}
	return &cfg, nil
}

// LoadClient reads the client configuration.
func LoadClient(envFiles ...string) (*Client, error) {
	var cfg Client
	if err := load(&cfg, envFiles); err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("%s_POLL_INTERVAL must be positive", Prefix)
	}
	return &cfg, nil
}

func load(cfg any, envFiles []string) error {
	// A missing .env file is fine. Existing variables are never overridden.
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading env file: %w", err)
	}
	if err := envconfig.Process(Prefix, cfg); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	return nil
}
