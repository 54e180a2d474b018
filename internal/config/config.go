package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName         = "Kharcha"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultStatementTO     = 15 * time.Second
	defaultInvoiceRetries  = 5
	devJWTSecret           = "dev-access-secret"
	devRefreshSecret       = "dev-refresh-secret"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName          string        `mapstructure:"app_name"`
	Env              string        `mapstructure:"app_env"`
	Port             string        `mapstructure:"port"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
	DatabaseURL      string        `mapstructure:"database_url"`
	RedisURL         string        `mapstructure:"redis_url"`
	ShutdownPeriod   time.Duration `mapstructure:"shutdown_timeout"`
	IdempotencyTTL   time.Duration `mapstructure:"idempotency_ttl"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	JWTSecret        string        `mapstructure:"jwt_secret"`
	RefreshSecret    string        `mapstructure:"refresh_secret"`
	AccessTokenTTL   time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL  time.Duration `mapstructure:"refresh_token_ttl"`
	// StrictFunds rejects debits that would take a wallet below zero.
	// Off by default: balances may go negative.
	StrictFunds          bool `mapstructure:"strict_funds"`
	InvoiceNumberRetries int  `mapstructure:"invoice_number_retries"`
	AutoMigrate          bool `mapstructure:"auto_migrate"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg, err := read(viper.New())
	if err != nil {
		return Config{}, err
	}
	return checkBackends(cfg)
}

// LoadForMigrations reads the same environment but only requires
// DATABASE_URL: schema changes need neither Redis nor token secrets.
func LoadForMigrations() (Config, error) {
	cfg, err := read(viper.New())
	if err != nil {
		return Config{}, err
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	return cfg, nil
}

func read(v *viper.Viper) (Config, error) {
	v.SetDefault("app_name", defaultAppName)
	v.SetDefault("app_env", defaultAppEnv)
	v.SetDefault("port", defaultPort)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("log_format", defaultLogFormat)
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("shutdown_timeout", defaultShutdownDelay)
	v.SetDefault("idempotency_ttl", defaultIdempotencyTTL)
	v.SetDefault("statement_timeout", defaultStatementTO)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("refresh_secret", "")
	v.SetDefault("access_token_ttl", defaultAccessTokenTTL)
	v.SetDefault("refresh_token_ttl", defaultRefreshTokenTTL)
	v.SetDefault("strict_funds", false)
	v.SetDefault("invoice_number_retries", defaultInvoiceRetries)
	v.SetDefault("auto_migrate", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	if cfg.InvoiceNumberRetries < 1 {
		return Config{}, fmt.Errorf("invalid INVOICE_NUMBER_RETRIES: must be at least 1")
	}
	if cfg.ShutdownPeriod <= 0 {
		return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: must be positive")
	}
	return cfg, nil
}

func checkBackends(cfg Config) (Config, error) {
	if cfg.IsDev() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = devJWTSecret
		}
		if cfg.RefreshSecret == "" {
			cfg.RefreshSecret = devRefreshSecret
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.JWTSecret == "" || cfg.RefreshSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET and REFRESH_SECRET must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service may run without Postgres and Redis.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
