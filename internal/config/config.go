package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageDynamoDB = "dynamodb"

	LimiterMemory = "memory"
	LimiterRedis  = "redis"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	DynamoDB  DynamoDBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	JWT       JWTConfig
	Code      CodeConfig
	Auth      AuthConfig
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:"3000"`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	TrustProxy     bool          `env:"TRUST_PROXY" envDefault:"false"`
}

type StorageConfig struct {
	Driver string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	DSN    string `env:"STORAGE_DSN" envDefault:"taobei.db"`
}

type DynamoDBConfig struct {
	Endpoint  string `env:"DYNAMODB_ENDPOINT"`
	Region    string `env:"DYNAMODB_REGION" envDefault:"us-east-1"`
	TableName string `env:"DYNAMODB_TABLE_NAME" envDefault:"TaobeiAuth"`
}

type RedisConfig struct {
	Endpoint string `env:"REDIS_ENDPOINT" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type RateLimitConfig struct {
	Backend      string        `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	SendInterval time.Duration `env:"CODE_SEND_INTERVAL" envDefault:"60s"`
	IPRequests   int           `env:"IP_RATE_LIMIT_REQUESTS" envDefault:"100"`
	IPWindow     time.Duration `env:"IP_RATE_LIMIT_WINDOW" envDefault:"15m"`
}

type JWTConfig struct {
	SecretKey string        `env:"JWT_SECRET_KEY"`
	Expiry    time.Duration `env:"JWT_EXPIRY" envDefault:"168h"`
	Issuer    string        `env:"JWT_ISSUER" envDefault:"taobei-auth"`
}

type CodeConfig struct {
	Expiry time.Duration `env:"CODE_EXPIRY" envDefault:"5m"`
}

type AuthConfig struct {
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}

	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 bytes (256 bits)")
	}

	switch c.Storage.Driver {
	case StorageSQLite, StoragePostgres, StorageDynamoDB:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}

	switch c.RateLimit.Backend {
	case LimiterMemory, LimiterRedis:
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_BACKEND %q", c.RateLimit.Backend)
	}

	if c.RateLimit.IPRequests <= 0 || c.RateLimit.IPWindow <= 0 {
		return fmt.Errorf("IP rate limit requests and window must be positive")
	}

	if c.Code.Expiry <= 0 {
		return fmt.Errorf("CODE_EXPIRY must be positive")
	}

	return nil
}
