package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/example/arca-scheduler/internal/infrastructure/crypto"
)

type Config struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// postgres | sqlite
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"arcasched.db"`

	SessionSecret string `envconfig:"SESSION_SECRET" required:"true"`

	ArcaBaseURL  string        `envconfig:"ARCA_BASE_URL" default:"https://backend.arca.dk"`
	ArcaTimeout  time.Duration `envconfig:"ARCA_TIMEOUT" default:"20s"`
	ReferenceTZ  string        `envconfig:"REFERENCE_TZ" default:"Europe/Copenhagen"`
	MaxDaysAhead int           `envconfig:"MAX_DAYS_AHEAD" default:"13"`

	UserConcurrency  int           `envconfig:"USER_CONCURRENCY" default:"2"`
	FetchConcurrency int           `envconfig:"FETCH_CONCURRENCY" default:"4"`
	RunTimeout       time.Duration `envconfig:"RUN_TIMEOUT" default:"10m"`
	BookTimeout      time.Duration `envconfig:"BOOK_TIMEOUT" default:"30s"`
	// Zero disables the in-process ticker; runs then come only from the
	// trigger endpoint.
	PollInterval time.Duration `envconfig:"SCHED_POLL_INTERVAL" default:"0"`

	TriggerHashKeyB64 string `envconfig:"TRIGGER_HASH_KEY"`

	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"arcasched.events"`

	CredKey    []byte         `ignored:"true"`
	TriggerKey []byte         `ignored:"true"`
	Zone       *time.Location `ignored:"true"`
}

func (c Config) Production() bool { return strings.EqualFold(c.Env, "production") }

// FromEnv loads an optional .env file, then the process environment, and
// derives the keys and zone every component shares.
func FromEnv() (Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.derive()
}

func (c *Config) derive() error {
	if strings.TrimSpace(c.SessionSecret) == "" {
		return fmt.Errorf("SESSION_SECRET must not be empty")
	}
	switch c.StoreDriver {
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "sqlite":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or sqlite (got %q)", c.StoreDriver)
	}
	if c.MaxDaysAhead < 1 {
		return fmt.Errorf("MAX_DAYS_AHEAD must be positive")
	}
	if c.UserConcurrency < 1 || c.FetchConcurrency < 1 {
		return fmt.Errorf("USER_CONCURRENCY and FETCH_CONCURRENCY must be positive")
	}

	zone, err := time.LoadLocation(c.ReferenceTZ)
	if err != nil {
		return fmt.Errorf("REFERENCE_TZ: %w", err)
	}
	c.Zone = zone
	c.CredKey = crypto.DeriveKey(c.SessionSecret)

	if v := strings.TrimSpace(c.TriggerHashKeyB64); v != "" {
		c.TriggerKey, err = decodeB64(v)
		if err != nil {
			return fmt.Errorf("TRIGGER_HASH_KEY: %w", err)
		}
		if len(c.TriggerKey) < 32 {
			return fmt.Errorf("TRIGGER_HASH_KEY must decode to at least 32 bytes (got %d)", len(c.TriggerKey))
		}
	}
	return nil
}

func decodeB64(v string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(v); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(v)
}
