package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backend names accepted by the *_BACKEND variables.
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendCognito  = "cognito"
	BackendSES      = "ses"
)

// Config is read once at process start and never mutated afterwards.
type Config struct {
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LambdaHandler string `env:"LAMBDA_HANDLER"`

	Server   ServerConfig
	Identity IdentityConfig
	Store    StoreConfig
	Email    EmailConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	OTel     OTelConfig
}

// ServerConfig tunes the standalone HTTP server.
type ServerConfig struct {
	Addr              string        `env:"ADDR" envDefault:":8080"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"35s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// InternalToken guards the step and member routes. Empty disables them.
	InternalToken string `env:"INTERNAL_API_TOKEN"`
}

// IdentityConfig selects the identity directory.
type IdentityConfig struct {
	Backend    string `env:"IDENTITY_BACKEND" envDefault:"cognito"`
	UserPoolID string `env:"USER_POOL_ID"`
}

// StoreConfig selects the member table and tunes id allocation.
type StoreConfig struct {
	Backend     string `env:"MEMBER_STORE_BACKEND" envDefault:"dynamodb"`
	TableName   string `env:"MEMBERS_TABLE_NAME" envDefault:"members"`
	IndexName   string `env:"MEMBERS_RECORD_TYPE_INDEX" envDefault:"RecordTypeIndex"`
	MaxAttempts int    `env:"ALLOCATION_MAX_ATTEMPTS" envDefault:"5"`
}

// EmailConfig holds the relay selection and the payment instruction details.
type EmailConfig struct {
	Backend           string `env:"EMAIL_BACKEND" envDefault:"ses"`
	From              string `env:"FROM_EMAIL"`
	BankAccountName   string `env:"BANK_ACCOUNT_NAME"`
	BankSortCode      string `env:"BANK_SORT_CODE"`
	BankAccountNumber string `env:"BANK_ACCOUNT_NUMBER"`
}

// RedisConfig configures the go-redis client used by the redis member table.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// PostgresConfig configures the pgx pool used by the postgres member table.
type PostgresConfig struct {
	URL      string `env:"DATABASE_URL"`
	MaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
}

// KafkaConfig enables membership event publication when Brokers is set.
type KafkaConfig struct {
	Brokers           []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic             string   `env:"KAFKA_TOPIC" envDefault:"membership.events"`
	Partitions        int32    `env:"KAFKA_TOPIC_PARTITIONS" envDefault:"3"`
	ReplicationFactor int16    `env:"KAFKA_REPLICATION_FACTOR" envDefault:"1"`
}

// OTelConfig enables tracing export when Endpoint is set.
type OTelConfig struct {
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"membership"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv parses the process environment into a Config.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the identity settings required by the selected backend.
func (c IdentityConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendCognito:
		if c.UserPoolID == "" {
			return errors.New("USER_POOL_ID is required for the cognito identity backend")
		}
		return nil
	default:
		return fmt.Errorf("unsupported IDENTITY_BACKEND %q", c.Backend)
	}
}

// Validate checks the member table settings required by the selected backend.
func (c StoreConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("ALLOCATION_MAX_ATTEMPTS must be at least 1")
	}
	switch c.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
		return nil
	case BackendDynamoDB:
		if c.TableName == "" {
			return errors.New("MEMBERS_TABLE_NAME is required for the dynamodb member store")
		}
		return nil
	default:
		return fmt.Errorf("unsupported MEMBER_STORE_BACKEND %q", c.Backend)
	}
}

// Validate checks sender and bank details. They are required for every relay
// except the in-memory one.
func (c EmailConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendSES:
	default:
		return fmt.Errorf("unsupported EMAIL_BACKEND %q", c.Backend)
	}
	var missing []error
	for _, f := range []struct{ name, value string }{
		{"FROM_EMAIL", c.From},
		{"BANK_ACCOUNT_NAME", c.BankAccountName},
		{"BANK_SORT_CODE", c.BankSortCode},
		{"BANK_ACCOUNT_NUMBER", c.BankAccountNumber},
	} {
		if f.value == "" {
			missing = append(missing, fmt.Errorf("%s is required", f.name))
		}
	}
	return errors.Join(missing...)
}

// Validate checks every backend section. Processes that only serve some steps
// validate the sections they use instead.
func (c Config) Validate() error {
	return errors.Join(c.Identity.Validate(), c.Store.Validate(), c.Email.Validate())
}
