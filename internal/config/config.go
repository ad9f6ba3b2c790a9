package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	// MinJWTSecretLen matches the HMAC-SHA256 key size.
	MinJWTSecretLen = 32
	// placeholderJWTSecret is the value shipped in .example.env.
	placeholderJWTSecret = "change-me"
)

type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"9000"`
	GRPCPort      string `env:"GRPC_PORT" envDefault:"9001"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	DB        DBConfig
	Auth      AuthConfig
	Delivery  DeliveryConfig
	Kafka     KafkaConfig
	Outbox    OutboxConfig
	AccessLog AccessLogConfig
}

type DBConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD"`
	Name     string `env:"POSTGRES_DB" envDefault:"foodtrack"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

type AuthConfig struct {
	JWTSecret   string        `env:"JWT_SECRET,required"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	RememberTTL time.Duration `env:"REMEMBER_TTL" envDefault:"168h"`
}

type DeliveryConfig struct {
	// Threshold after which an in-transit donation is considered delivered.
	Threshold   time.Duration `env:"DELIVERY_THRESHOLD" envDefault:"90s"`
	CatalogPath string        `env:"SIMULATION_CATALOG"`
	Seed        uint64        `env:"SIMULATION_SEED"`
}

type KafkaConfig struct {
	Enabled    bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers    []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	AuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"donation_audit"`
	GroupID    string   `env:"KAFKA_GROUP_ID" envDefault:"audit-log-consumer-group"`
}

type OutboxConfig struct {
	PollInterval    time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	BatchSize       int           `env:"OUTBOX_BATCH_SIZE" envDefault:"20"`
	MaxAttempts     int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"5"`
	ProcessingLease time.Duration `env:"OUTBOX_PROCESSING_LEASE" envDefault:"1m"`
}

type AccessLogConfig struct {
	Workers      int           `env:"ACCESS_LOG_WORKERS" envDefault:"2"`
	BatchSize    int           `env:"ACCESS_LOG_BATCH_SIZE" envDefault:"5"`
	FlushTimeout time.Duration `env:"ACCESS_LOG_FLUSH_TIMEOUT" envDefault:"500ms"`
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Load reads the first .env file found (explicit paths first, then the
// working directory and up to two parents, then .example.env next to them)
// and binds the environment into a Config. Variables already present in the
// environment win over file values.
func Load(paths ...string) (Config, error) {
	loadEnv(paths)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if c.Auth.JWTSecret == placeholderJWTSecret {
		return fmt.Errorf("JWT_SECRET still holds the .example.env placeholder, set a real secret")
	}
	if len(c.Auth.JWTSecret) < MinJWTSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes, got %d", MinJWTSecretLen, len(c.Auth.JWTSecret))
	}
	if c.Delivery.Threshold <= 0 {
		return fmt.Errorf("delivery threshold must be positive, got %s", c.Delivery.Threshold)
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.MaxAttempts <= 0 {
		return fmt.Errorf("outbox batch size and max attempts must be positive")
	}
	if c.Outbox.ProcessingLease <= 0 {
		return fmt.Errorf("outbox processing lease must be positive")
	}
	if c.AccessLog.Workers <= 0 || c.AccessLog.BatchSize <= 0 {
		return fmt.Errorf("access log workers and batch size must be positive")
	}
	return nil
}

func loadEnv(explicit []string) {
	for _, envPath := range explicit {
		if err := godotenv.Load(envPath); err == nil {
			log.Printf("Loaded environment variables from %s", envPath)
			return
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Cannot resolve working directory, skipping .env discovery: %v", err)
		return
	}

	possiblePaths := []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	}

	for _, envPath := range possiblePaths {
		if err := godotenv.Load(envPath); err == nil {
			log.Printf("Loaded environment variables from %s", envPath)
			return
		}
	}

	for _, envPath := range possiblePaths {
		examplePath := filepath.Join(filepath.Dir(envPath), ".example.env")
		if err := godotenv.Load(examplePath); err == nil {
			log.Printf("Loaded environment variables from %s", examplePath)
			return
		}
	}
}
