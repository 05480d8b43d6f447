package app

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	auditdomain "trustcore/internal/audit/domain"
	"trustcore/internal/config"
	identityservice "trustcore/internal/identity/service"
	"trustcore/internal/security"
	sessiondomain "trustcore/internal/session/domain"
	vaultservice "trustcore/internal/vault/service"
)

const password = "Correct-Horse-42"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	key, err := security.GenerateKey()
	require.NoError(t, err)
	return &config.Config{
		DataEncryptionKey:  key,
		VaultEncryptionKey: key,
		JWTSecret:          "access",
		RefreshTokenSecret: "refresh",
		JWTIssuer:          "pivori-studio",
		JWTAudience:        "pivori-users",
		JWTAccessTTL:       "1h",
		JWTRefreshTTL:      "168h",
		BcryptCost:         4,
	}
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestApp_LoginAuthenticateLogout(t *testing.T) {
	a := newApp(t, testConfig(t))
	ctx := context.Background()

	_, err := a.Auth.Register(ctx, "ops@example.com", password, "admin")
	require.NoError(t, err)

	res, err := a.Login(ctx, "ops@example.com", identityservice.Credentials{
		Password: password,
		Client:   sessiondomain.Metadata{IPAddress: "10.1.1.1"},
	})
	require.NoError(t, err)

	claims, err := a.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Role)

	require.NoError(t, a.Logout(ctx, res.SessionID))
	_, err = a.Authenticate(ctx, res.AccessToken)
	require.ErrorIs(t, err, security.ErrTokenRevoked)

	events, err := a.Audit.GetEvents(ctx, auditdomain.EventFilter{})
	require.NoError(t, err)
	var types []auditdomain.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	require.Equal(t, []auditdomain.EventType{
		auditdomain.EventInvalidToken,
		auditdomain.EventLogout,
		auditdomain.EventSuccessfulLogin,
	}, types)
}

func TestApp_BruteForceRaisesAlert(t *testing.T) {
	a := newApp(t, testConfig(t))
	ctx := context.Background()
	_, err := a.Auth.Register(ctx, "target@example.com", password, "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := a.Login(ctx, "target@example.com", identityservice.Credentials{
			Password: "Wrong-Password-1",
			Client:   sessiondomain.Metadata{IPAddress: "203.0.113.9"},
		})
		require.ErrorIs(t, err, security.ErrInvalidCredentials)
	}

	alerts, err := a.Audit.GetAlerts(ctx, auditdomain.AlertFilter{Type: auditdomain.AlertBruteForce})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, "target@example.com", alerts[0].Subject)
	require.Equal(t, "203.0.113.9", alerts[0].IPAddress)
	require.Equal(t, 5, alerts[0].Details["attempts"])
}

func TestApp_VaultAndIntegrityHook(t *testing.T) {
	a := newApp(t, testConfig(t))
	ctx := context.Background()

	require.NoError(t, a.VaultSet(ctx, "stripe-api-key", "sk_live_123", vaultservice.StoreOptions{Owner: "billing"}))
	require.NoError(t, a.VaultRotate(ctx, "stripe-api-key", "sk_live_456", "billing"))
	v, err := a.VaultGet(ctx, "stripe-api-key", "billing")
	require.NoError(t, err)
	require.Equal(t, "sk_live_456", v)

	a.onIntegrityFailure(ctx, "stripe-api-key", "billing", security.ErrDecryptFailed)
	events, err := a.Audit.GetEvents(ctx, auditdomain.EventFilter{Type: auditdomain.EventEncryptionFailure})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, auditdomain.SeverityCritical, events[0].Severity)
	require.Equal(t, "billing", events[0].Subject)
	require.Equal(t, "stripe-api-key", events[0].Details["vaultKey"])
}

func TestApp_StartRegistersSweeps(t *testing.T) {
	a := newApp(t, testConfig(t))
	require.NoError(t, a.Start(context.Background()))

	names := map[string]bool{}
	for _, s := range a.Scheduler.ListStatus() {
		names[s.Name] = true
	}
	for _, n := range []string{TaskSessionCleanup, TaskChallengeSweep, TaskDetectorPrune, TaskRotationCheck} {
		require.True(t, names[n], "task %s not registered", n)
		require.NoError(t, a.Scheduler.RunNow(n))
	}
}

func TestApp_FileSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuditLogPath = filepath.Join(t.TempDir(), "audit", "events.jsonl")
	cfg.AuditLogMaxSizeMB = 1
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	a.Record(context.Background(), auditdomain.EventConfigChange, auditdomain.ExtraContext{
		Actor: auditdomain.Actor{Subject: "admin"},
		Extra: map[string]any{"password": "hunter2-hunter2"},
	})
	require.NoError(t, a.Close(context.Background()))

	f, err := os.Open(cfg.AuditLogPath)
	require.NoError(t, err)
	defer f.Close()
	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan())
	var ev auditdomain.Event
	require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
	require.Equal(t, auditdomain.EventConfigChange, ev.Type)
	require.Equal(t, "hun*********er2", ev.Details["password"])
	require.False(t, sc.Scan())
}

func TestNewTokenProvider_TTLOrdering(t *testing.T) {
	p, err := NewTokenProvider(testConfig(t), security.WithTimeFunc(func() time.Time {
		return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)
	require.Greater(t, p.RefreshTTL(), p.AccessTTL())
}
