// Package config loads and validates service configuration from the
// environment and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the service configuration loaded from the environment.
type Config struct {
	// ListenAddr is the address the HTTP server listens on (e.g. :8443).
	ListenAddr string `mapstructure:"GATEHOUSE_LISTEN_ADDR"`
	// SigningSecret is the JWT signing secret. Required; at least 64 bytes.
	SigningSecret string `mapstructure:"GATEHOUSE_SIGNING_SECRET"`
	// Issuer is the iss claim on minted tokens.
	Issuer string `mapstructure:"GATEHOUSE_ISSUER"`
	// Audience is the aud claim on minted tokens.
	Audience string `mapstructure:"GATEHOUSE_AUDIENCE"`
	// AccessTTL is the access token lifetime (e.g. "15m").
	AccessTTL string `mapstructure:"GATEHOUSE_ACCESS_TTL"`
	// RefreshTTL is the refresh token lifetime (e.g. "168h").
	RefreshTTL string `mapstructure:"GATEHOUSE_REFRESH_TTL"`

	// MaxSessionsPerUser caps concurrent sessions per user.
	MaxSessionsPerUser int `mapstructure:"GATEHOUSE_MAX_SESSIONS_PER_USER"`
	// SessionMaxInactivity is the idle timeout for sessions (e.g. "30m").
	SessionMaxInactivity string `mapstructure:"GATEHOUSE_SESSION_MAX_INACTIVITY"`
	// SessionMaxDuration is the absolute session lifetime (e.g. "8h").
	SessionMaxDuration string `mapstructure:"GATEHOUSE_SESSION_MAX_DURATION"`

	// DataDir is where persistent state (session database) lives. Empty
	// selects the in-memory store.
	DataDir string `mapstructure:"GATEHOUSE_DATA_DIR"`

	// TrustedProxies is a comma-separated list of CIDRs whose proxy
	// headers are honored for client IP extraction.
	TrustedProxies string `mapstructure:"GATEHOUSE_TRUSTED_PROXIES"`

	// AlertWebhookURL receives alert rule webhook actions when set.
	AlertWebhookURL string `mapstructure:"GATEHOUSE_ALERT_WEBHOOK_URL"`
	// AlertWebhookAuthHeader is an optional "Header: Value" pair sent
	// with webhook deliveries.
	AlertWebhookAuthHeader string `mapstructure:"GATEHOUSE_ALERT_WEBHOOK_AUTH_HEADER"`

	// TLSCertFile and TLSKeyFile enable TLS when both are set.
	TLSCertFile string `mapstructure:"GATEHOUSE_TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"GATEHOUSE_TLS_KEY_FILE"`
}

// minSecretLen mirrors the token package's requirement so misconfiguration
// is caught at load rather than at server construction.
const minSecretLen = 64

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env. The signing secret is validated
// eagerly: a missing or weak secret fails the load.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GATEHOUSE_LISTEN_ADDR", ":8080")
	v.SetDefault("GATEHOUSE_SIGNING_SECRET", "")
	v.SetDefault("GATEHOUSE_ISSUER", "gatehouse")
	v.SetDefault("GATEHOUSE_AUDIENCE", "gatehouse-api")
	v.SetDefault("GATEHOUSE_ACCESS_TTL", "15m")
	v.SetDefault("GATEHOUSE_REFRESH_TTL", "168h") // 7d
	v.SetDefault("GATEHOUSE_MAX_SESSIONS_PER_USER", 3)
	v.SetDefault("GATEHOUSE_SESSION_MAX_INACTIVITY", "30m")
	v.SetDefault("GATEHOUSE_SESSION_MAX_DURATION", "8h")
	v.SetDefault("GATEHOUSE_DATA_DIR", "")
	v.SetDefault("GATEHOUSE_TRUSTED_PROXIES", "")
	v.SetDefault("GATEHOUSE_ALERT_WEBHOOK_URL", "")
	v.SetDefault("GATEHOUSE_ALERT_WEBHOOK_AUTH_HEADER", "")
	v.SetDefault("GATEHOUSE_TLS_CERT_FILE", "")
	v.SetDefault("GATEHOUSE_TLS_KEY_FILE", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.ListenAddr == "" {
		return nil, errors.New("config: GATEHOUSE_LISTEN_ADDR must be set")
	}
	if len(cfg.SigningSecret) < minSecretLen {
		return nil, fmt.Errorf("config: GATEHOUSE_SIGNING_SECRET must be at least %d bytes (got %d); generate one with the secret command", minSecretLen, len(cfg.SigningSecret))
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return nil, errors.New("config: GATEHOUSE_TLS_CERT_FILE and GATEHOUSE_TLS_KEY_FILE must be set together")
	}
	if cfg.MaxSessionsPerUser < 1 {
		return nil, errors.New("config: GATEHOUSE_MAX_SESSIONS_PER_USER must be at least 1")
	}
	return &cfg, nil
}

// AccessTokenTTL parses AccessTTL. Returns 15m if unset or invalid.
func (c *Config) AccessTokenTTL() time.Duration {
	return parseDuration(c.AccessTTL, 15*time.Minute)
}

// RefreshTokenTTL parses RefreshTTL. Returns 168h if unset or invalid.
func (c *Config) RefreshTokenTTL() time.Duration {
	return parseDuration(c.RefreshTTL, 168*time.Hour)
}

// MaxInactivity parses SessionMaxInactivity. Returns 30m if unset or invalid.
func (c *Config) MaxInactivity() time.Duration {
	return parseDuration(c.SessionMaxInactivity, 30*time.Minute)
}

// MaxDuration parses SessionMaxDuration. Returns 8h if unset or invalid.
func (c *Config) MaxDuration() time.Duration {
	return parseDuration(c.SessionMaxDuration, 8*time.Hour)
}

// TrustedProxyList splits the comma-separated trusted proxy CIDRs.
func (c *Config) TrustedProxyList() []string {
	if c.TrustedProxies == "" {
		return nil
	}
	parts := strings.Split(c.TrustedProxies, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
