package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime configuration for the API.
type Config struct {
	AppPort        string
	DatabaseDriver string
	DatabaseDSN    string

	JWTSecret string
	JWTTTL    time.Duration

	RabbitMQURL string
	EventsQueue string

	RedisAddr       string
	LoginRateLimit  int
	LoginRateWindow time.Duration

	CORSOrigin string
	LogLevel   string
	LogFormat  string

	AdminEmail    string
	AdminPassword string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "kalm.db")
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("EVENTS_QUEUE", "kalm_events")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("LOGIN_RATE_WINDOW", "1m")
	v.SetDefault("CORS_ORIGIN", "http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load reads configuration from environment variables (and any config file
// already attached to v) on top of the defaults.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:         v.GetString("APP_PORT"),
		DatabaseDriver:  v.GetString("DATABASE_DRIVER"),
		DatabaseDSN:     v.GetString("DATABASE_DSN"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		JWTTTL:          v.GetDuration("JWT_TTL"),
		RabbitMQURL:     v.GetString("RABBITMQ_URL"),
		EventsQueue:     v.GetString("EVENTS_QUEUE"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		LoginRateLimit:  v.GetInt("LOGIN_RATE_LIMIT"),
		LoginRateWindow: v.GetDuration("LOGIN_RATE_WINDOW"),
		CORSOrigin:      v.GetString("CORS_ORIGIN"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
		AdminEmail:      v.GetString("ADMIN_EMAIL"),
		AdminPassword:   v.GetString("ADMIN_PASSWORD"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be provided")
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN must be provided")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.LoginRateLimit < 0 {
		return errors.New("LOGIN_RATE_LIMIT cannot be negative")
	}
	if c.AdminEmail != "" && c.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD must be provided with ADMIN_EMAIL")
	}
	return nil
}
