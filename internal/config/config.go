// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"trustcore/internal/security"
)

// EnvProduction is the APP_ENV value that turns missing secrets into errors.
const EnvProduction = "production"

const (
	devJWTSecret     = "trustcore-dev-access-secret"
	devRefreshSecret = "trustcore-dev-refresh-secret"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// MetricsAddr is where cmd/server serves /metrics and /healthz.
	MetricsAddr string `mapstructure:"METRICS_ADDR"`
	// DatabaseURL is the Postgres DSN; empty selects in-memory stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// DataEncryptionKey is the 64-hex-character AES-256 key for field encryption.
	DataEncryptionKey string `mapstructure:"DATA_ENCRYPTION_KEY"`
	// VaultEncryptionKey encrypts vault secrets; defaults to DataEncryptionKey.
	VaultEncryptionKey string `mapstructure:"VAULT_ENCRYPTION_KEY"`

	// JWTSecret signs access tokens with HS256 when no key pair is configured.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// RefreshTokenSecret signs refresh tokens with HS256.
	RefreshTokenSecret string `mapstructure:"REFRESH_TOKEN_SECRET"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "1h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime; must exceed JWTAccessTTL.
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	SessionTTLRaw             string `mapstructure:"SESSION_TTL"`
	SessionCleanupIntervalRaw string `mapstructure:"SESSION_CLEANUP_INTERVAL"`
	SecretDefaultTTLRaw       string `mapstructure:"SECRET_DEFAULT_TTL"`

	// AuditLogPath enables the rotating JSONL audit file when set.
	AuditLogPath       string `mapstructure:"AUDIT_LOG_PATH"`
	AuditLogMaxSizeMB  int    `mapstructure:"AUDIT_LOG_MAX_SIZE_MB"`
	AuditLogMaxBackups int    `mapstructure:"AUDIT_LOG_MAX_BACKUPS"`
	AuditLogMaxAgeDays int    `mapstructure:"AUDIT_LOG_MAX_AGE_DAYS"`

	// OTel (optional). Empty endpoint disables export.
	OTelEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	// When set, audit events and alerts are published to AuditKafkaTopic.
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the audit worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// NATSURL enables alert notifications on ALERT_NATS_SUBJECT.<severity>.
	NATSURL          string `mapstructure:"NATS_URL"`
	AlertNATSSubject string `mapstructure:"ALERT_NATS_SUBJECT"`

	// Worker-only: Loki URL for the audit worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
}

var keys = map[string]any{
	"APP_ENV":                     "",
	"LOG_LEVEL":                   "info",
	"METRICS_ADDR":                ":9090",
	"DATABASE_URL":                "",
	"DATA_ENCRYPTION_KEY":         "",
	"VAULT_ENCRYPTION_KEY":        "",
	"JWT_SECRET":                  "",
	"REFRESH_TOKEN_SECRET":        "",
	"JWT_PRIVATE_KEY":             "",
	"JWT_PUBLIC_KEY":              "",
	"JWT_ISSUER":                  "pivori-studio",
	"JWT_AUDIENCE":                "pivori-users",
	"JWT_ACCESS_TTL":              "1h",
	"JWT_REFRESH_TTL":             "168h",
	"BCRYPT_COST":                 12,
	"SESSION_TTL":                 "24h",
	"SESSION_CLEANUP_INTERVAL":    "15m",
	"SECRET_DEFAULT_TTL":          "2160h",
	"AUDIT_LOG_PATH":              "",
	"AUDIT_LOG_MAX_SIZE_MB":       100,
	"AUDIT_LOG_MAX_BACKUPS":       10,
	"AUDIT_LOG_MAX_AGE_DAYS":      30,
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"OTEL_EXPORTER_OTLP_INSECURE": false,
	"OTEL_SERVICE_NAME":           "trustcore",
	"KAFKA_BROKERS":               "",
	"AUDIT_KAFKA_TOPIC":           "trustcore-audit",
	"KAFKA_GROUP_ID":              "trustcore-audit-worker",
	"NATS_URL":                    "",
	"ALERT_NATS_SUBJECT":          "security.alerts",
	"LOKI_URL":                    "",
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	for k, def := range keys {
		v.SetDefault(k, def)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

func (c *Config) validate() error {
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if c.DataEncryptionKey == "" {
		if c.IsProduction() {
			return errors.New("config: DATA_ENCRYPTION_KEY is required when APP_ENV=production")
		}
		k, err := security.GenerateKey()
		if err != nil {
			return err
		}
		c.DataEncryptionKey = k
		log.Warn().Msg("DATA_ENCRYPTION_KEY not set; using a random key, encrypted data will not survive a restart")
	}
	if !validKey(c.DataEncryptionKey) {
		return errors.New("config: DATA_ENCRYPTION_KEY must be 64 hex characters")
	}
	if c.VaultEncryptionKey == "" {
		c.VaultEncryptionKey = c.DataEncryptionKey
	}
	if !validKey(c.VaultEncryptionKey) {
		return errors.New("config: VAULT_ENCRYPTION_KEY must be 64 hex characters")
	}

	if (c.JWTPrivateKey == "") != (c.JWTPublicKey == "") {
		return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}
	if !c.HasKeyPair() {
		if c.JWTSecret == "" || c.RefreshTokenSecret == "" {
			if c.IsProduction() {
				return errors.New("config: JWT_SECRET and REFRESH_TOKEN_SECRET are required when APP_ENV=production")
			}
			log.Warn().Msg("JWT secrets not set; using development secrets")
		}
		if c.JWTSecret == "" {
			c.JWTSecret = devJWTSecret
		}
		if c.RefreshTokenSecret == "" {
			c.RefreshTokenSecret = devRefreshSecret
		}
		if c.JWTSecret == c.RefreshTokenSecret {
			return errors.New("config: REFRESH_TOKEN_SECRET must differ from JWT_SECRET")
		}
	}
	if c.JWTIssuer == "" || c.JWTAudience == "" {
		return errors.New("config: JWT_ISSUER and JWT_AUDIENCE must be set")
	}
	if c.RefreshTTL() <= c.AccessTTL() {
		return errors.New("config: JWT_REFRESH_TTL must exceed JWT_ACCESS_TTL")
	}
	return nil
}

func validKey(k string) bool {
	b, err := hex.DecodeString(k)
	return err == nil && len(b) == 32
}

// HasKeyPair reports whether tokens are signed with an asymmetric key pair.
func (c *Config) HasKeyPair() bool {
	return c.JWTPrivateKey != "" && c.JWTPublicKey != ""
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) AccessTTL() time.Duration { return parseDuration(c.JWTAccessTTL, time.Hour) }

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration { return parseDuration(c.JWTRefreshTTL, 168*time.Hour) }

// SessionTTL returns the session lifetime. Returns 24h if unset or invalid.
func (c *Config) SessionTTL() time.Duration { return parseDuration(c.SessionTTLRaw, 24*time.Hour) }

// SessionCleanupInterval returns how often expired sessions are swept. Returns 15m if unset or invalid.
func (c *Config) SessionCleanupInterval() time.Duration {
	return parseDuration(c.SessionCleanupIntervalRaw, 15*time.Minute)
}

// SecretDefaultTTL returns the vault's default secret expiry. Returns 90 days if unset or invalid.
func (c *Config) SecretDefaultTTL() time.Duration {
	return parseDuration(c.SecretDefaultTTLRaw, 90*24*time.Hour)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the Kafka producer and worker.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
