package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port        string `env:"PORT,        default=8080"`
	Env         string `env:"ENV,         default=development"`
	LogLevel    string `env:"LOG_LEVEL,   default=info"`
	LogPretty   bool   `env:"LOG_PRETTY,  default=false"`
	StoreDriver string `env:"STORE_DRIVER, default=memory"`

	Auth     AuthConfig
	Security SecurityConfig
	Limiter  LimiterConfig
	Audit    AuditConfig

	Mongo    MongoConfig
	Postgres PostgresConfig
	Redis    RedisConfig
}

type AuthConfig struct {
	// Type selects the access gate strategy: basic_auth, session_auth or jwt_auth.
	Type          string        `env:"AUTH_TYPE,      default=session_auth"`
	SessionName   string        `env:"SESSION_NAME,   default=session_id"`
	ExcludedPaths []string      `env:"EXCLUDED_PATHS, default=/api/v1/status/,/api/v1/unauthorized/,/api/v1/forbidden/,/api/v1/auth_session/login/"`
	JWTSecret     string        `env:"JWT_SECRET"`
	TokenTTL      time.Duration `env:"TOKEN_TTL,      default=24h"`
}

type SecurityConfig struct {
	BcryptCost  int      `env:"BCRYPT_COST,  default=10"`
	TokenFormat string   `env:"TOKEN_FORMAT, default=uuid"`
	PIIFields   []string `env:"PII_FIELDS,   default=email,password,session_id,reset_token,hashed_password"`
}

type LimiterConfig struct {
	MaxFailures int           `env:"LOGIN_MAX_FAILURES,   default=5"`
	Window      time.Duration `env:"LOGIN_FAILURE_WINDOW, default=15m"`
}

type AuditConfig struct {
	Workers int `env:"AUDIT_WORKERS, default=4"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=auth_service"`
}

type PostgresConfig struct {
	DSN      string `env:"POSTGRES_DSN, default=postgres://localhost:5432/auth_service?sslmode=disable"`
	MaxConns int32  `env:"POSTGRES_MAX_CONNS, default=10"`
}

type RedisConfig struct {
	// Addr empty disables the login limiter.
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith reads configuration from an arbitrary lookuper and validates it.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "memory", "mongo", "postgres":
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.Auth.Type {
	case "basic_auth", "session_auth":
	case "jwt_auth":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("config: AUTH_TYPE=jwt_auth requires JWT_SECRET")
		}
	default:
		return fmt.Errorf("config: unknown AUTH_TYPE %q", c.Auth.Type)
	}
	switch c.Security.TokenFormat {
	case "uuid", "hex":
	default:
		return fmt.Errorf("config: unknown TOKEN_FORMAT %q", c.Security.TokenFormat)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
