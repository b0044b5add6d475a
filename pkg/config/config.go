// Package config holds the environment-driven configuration for the auth
// service. Structs carry cleanenv env tags; durations use ISO 8601 strings
// (e.g. "PT15M") parsed at wiring time.
package config

import (
	"fmt"
	"time"

	"github.com/shambasecure/shamba-auth/pkg/notification"
	"github.com/sosodev/duration"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" env-default:"localhost"`
	Port uint16 `env:"SERVER_PORT" env-default:"4000"`
}

// Addr returns the host:port string for the listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EmailConfig holds SMTP email configuration.
type EmailConfig struct {
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME" env-default:"noreply@shambasecure.com"`
	Password string `env:"EMAIL_PASSWORD" env-default:"pwd"`
	From     string `env:"EMAIL_FROM" env-default:"noreply@shambasecure.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

// ToSMTPConfig converts the config to a notification.SMTPConfig.
func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		TLS:      e.TLS,
	}
}

// AuthConfig holds token and session settings. Durations are ISO 8601
// strings (e.g. "PT15M" is fifteen minutes).
type AuthConfig struct {
	SessionSecret          string `env:"SESSION_SECRET" env-default:"dev-session-secret"`
	LoginTokenExpiration   string `env:"LOGIN_TOKEN_EXPIRATION" env-default:"PT15M"`
	DeviceTokenExpiration  string `env:"DEVICE_TOKEN_EXPIRATION" env-default:"PT30M"`
	SessionTokenExpiration string `env:"SESSION_TOKEN_EXPIRATION" env-default:"PT1H"`
	UserDBPath             string `env:"USER_DB_PATH" env-default:""`
	RateLimitEnabled       bool   `env:"RATE_LIMIT_ENABLED" env-default:"true"`
}

// Config is the root configuration for the service.
type Config struct {
	Server      ServerConfig
	Email       EmailConfig
	Auth        AuthConfig
	FrontendURL string `env:"FRONTEND_URL" env-default:"http://localhost:5173"`
}

// ParseDuration converts an ISO 8601 duration string to a time.Duration,
// falling back to the given default on empty or malformed input.
func ParseDuration(iso string, fallback time.Duration) time.Duration {
	if iso == "" {
		return fallback
	}
	d, err := duration.Parse(iso)
	if err != nil {
		return fallback
	}
	return d.ToTimeDuration()
}
