package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWTIssuer != "pivori-studio" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "pivori-studio")
	}
	if cfg.JWTAudience != "pivori-users" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "pivori-users")
	}
	if cfg.AccessTTL() != time.Hour {
		t.Errorf("AccessTTL = %v, want 1h", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 168*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", cfg.RefreshTTL())
	}
	if cfg.SessionTTL() != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL())
	}
	if cfg.SecretDefaultTTL() != 90*24*time.Hour {
		t.Errorf("SecretDefaultTTL = %v, want 90d", cfg.SecretDefaultTTL())
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
	if cfg.AuditKafkaTopic != "trustcore-audit" || cfg.AlertNATSSubject != "security.alerts" {
		t.Errorf("topic/subject = %q/%q", cfg.AuditKafkaTopic, cfg.AlertNATSSubject)
	}
	if len(cfg.DataEncryptionKey) != 64 {
		t.Errorf("generated DataEncryptionKey has %d chars, want 64", len(cfg.DataEncryptionKey))
	}
	if cfg.VaultEncryptionKey != cfg.DataEncryptionKey {
		t.Error("VaultEncryptionKey should default to DataEncryptionKey")
	}
	if cfg.JWTSecret == "" || cfg.RefreshTokenSecret == "" || cfg.JWTSecret == cfg.RefreshTokenSecret {
		t.Error("development secrets should be set and distinct")
	}
	if cfg.KafkaBrokersList() != nil {
		t.Errorf("KafkaBrokersList = %v, want nil", cfg.KafkaBrokersList())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("DATA_ENCRYPTION_KEY", testKey)
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092")
	os.Setenv("SESSION_CLEANUP_INTERVAL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataEncryptionKey != testKey {
		t.Errorf("DataEncryptionKey not taken from env")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if got := cfg.KafkaBrokersList(); len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}
	if cfg.SessionCleanupInterval() != 5*time.Minute {
		t.Errorf("SessionCleanupInterval = %v", cfg.SessionCleanupInterval())
	}
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bcrypt too low", map[string]string{"BCRYPT_COST": "3"}, "BCRYPT_COST"},
		{"bcrypt too high", map[string]string{"BCRYPT_COST": "32"}, "BCRYPT_COST"},
		{"short key", map[string]string{"DATA_ENCRYPTION_KEY": "abcd"}, "DATA_ENCRYPTION_KEY"},
		{"non-hex key", map[string]string{"DATA_ENCRYPTION_KEY": strings.Repeat("zz", 32)}, "DATA_ENCRYPTION_KEY"},
		{"bad vault key", map[string]string{"VAULT_ENCRYPTION_KEY": "abcd"}, "VAULT_ENCRYPTION_KEY"},
		{"refresh not longer", map[string]string{"JWT_ACCESS_TTL": "2h", "JWT_REFRESH_TTL": "2h"}, "JWT_REFRESH_TTL"},
		{"half key pair", map[string]string{"JWT_PRIVATE_KEY": "x"}, "JWT_PUBLIC_KEY"},
		{"same secrets", map[string]string{"JWT_SECRET": "s", "REFRESH_TOKEN_SECRET": "s"}, "REFRESH_TOKEN_SECRET"},
		{"production without key", map[string]string{"APP_ENV": "production", "JWT_SECRET": "a", "REFRESH_TOKEN_SECRET": "b"}, "DATA_ENCRYPTION_KEY"},
		{"production without secrets", map[string]string{"APP_ENV": "production", "DATA_ENCRYPTION_KEY": testKey}, "JWT_SECRET"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tc.env {
				os.Setenv(k, v)
			}
			cfg, err := Load()
			if err == nil {
				t.Fatal("Load should return error")
			}
			if cfg != nil {
				t.Error("Load should return nil config on error")
			}
			if !strings.HasPrefix(err.Error(), "config: ") || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q, want config error naming %s", err.Error(), tc.want)
			}
		})
	}
}

func TestLoad_Production(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "production")
	os.Setenv("DATA_ENCRYPTION_KEY", testKey)
	os.Setenv("JWT_SECRET", "prod-access")
	os.Setenv("REFRESH_TOKEN_SECRET", "prod-refresh")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction should be true")
	}
	if cfg.HasKeyPair() {
		t.Error("HasKeyPair should be false without PEM keys")
	}
}

func TestDurations_FallBackOnInvalid(t *testing.T) {
	testCases := []struct {
		value string
		want  time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"invalid", time.Hour},
		{"0", time.Hour},
		{"-5m", time.Hour},
	}
	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			c := &Config{JWTAccessTTL: tc.value}
			if got := c.AccessTTL(); got != tc.want {
				t.Errorf("AccessTTL = %v, want %v", got, tc.want)
			}
		})
	}
}
