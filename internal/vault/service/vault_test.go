package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trustcore/internal/security"
	"trustcore/internal/vault/domain"
	"trustcore/internal/vault/repository"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	vault   *Vault
	secrets *repository.MemorySecretStore
	audit   *repository.MemoryAuditStore
	clock   *testClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	key, err := security.GenerateKey()
	require.NoError(t, err)
	engine, err := security.NewEngineFromHex(key)
	require.NoError(t, err)
	f := &fixture{
		secrets: repository.NewMemorySecretStore(),
		audit:   repository.NewMemoryAuditStore(),
		clock:   &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.vault = New(f.secrets, f.audit, engine, opts...)
	t.Cleanup(f.vault.Close)
	return f
}

func actions(t *testing.T, f *fixture, filter domain.AuditFilter) []domain.Action {
	t.Helper()
	entries, err := f.vault.GetAuditLog(context.Background(), filter)
	require.NoError(t, err)
	out := make([]domain.Action, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func TestVault_StoreGetRotate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.vault.StoreSecret(ctx, "db-password", "S3cr3t!", StoreOptions{Owner: "alice"}))

	stored, err := f.secrets.Get(ctx, "db-password")
	require.NoError(t, err)
	require.NotContains(t, stored.Value.Ciphertext, "S3cr3t!")
	require.Equal(t, f.clock.Now().Add(DefaultSecretTTL), stored.Metadata.ExpiresAt)

	got, err := f.vault.GetSecret(ctx, "db-password", "alice")
	require.NoError(t, err)
	require.Equal(t, "S3cr3t!", got)

	require.NoError(t, f.vault.RotateSecret(ctx, "db-password", "N3wS3cr3t!", "alice"))
	got, err = f.vault.GetSecret(ctx, "db-password", "alice")
	require.NoError(t, err)
	require.Equal(t, "N3wS3cr3t!", got)

	entries, err := f.vault.GetAuditLog(ctx, domain.AuditFilter{Key: "db-password"})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	require.Equal(t, domain.ActionStored, entries[0].Action)
	require.Equal(t, domain.ActionAccessed, entries[1].Action)
	require.Equal(t, domain.ActionRotated, entries[2].Action)
	require.Equal(t, domain.ActionAccessed, entries[3].Action)
	for _, e := range entries {
		require.Equal(t, "alice", e.Owner)
		require.NotEmpty(t, e.ID)
	}

	wantHash, err := security.HashData("S3cr3t!", security.SHA256)
	require.NoError(t, err)
	require.Equal(t, wantHash, entries[2].OldHash)
	require.Empty(t, entries[0].OldHash)

	rotated, err := f.secrets.Get(ctx, "db-password")
	require.NoError(t, err)
	require.True(t, rotated.Metadata.Rotated)
}

func TestVault_OwnerDefaultsToSystem(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.vault.StoreSecret(context.Background(), "api", "value1", StoreOptions{}))

	entries, err := f.vault.GetAuditLog(context.Background(), domain.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, SystemOwner, entries[0].Owner)
}

func TestVault_ExpiredSecretEvicted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	exp := f.clock.Now().Add(time.Hour)
	require.NoError(t, f.vault.StoreSecret(ctx, "short", "v1", StoreOptions{ExpiresAt: exp}))

	f.clock.Advance(time.Hour)
	got, err := f.vault.GetSecret(ctx, "short", "")
	require.NoError(t, err, "expiry is exclusive")
	require.Equal(t, "v1", got)

	f.clock.Advance(time.Second)
	_, err = f.vault.GetSecret(ctx, "short", "")
	require.ErrorIs(t, err, ErrSecretExpired)
	require.ErrorIs(t, err, security.ErrNotFound)

	_, err = f.vault.GetSecret(ctx, "short", "")
	require.ErrorIs(t, err, ErrSecretNotFound)

	require.NoError(t, f.vault.StoreSecret(ctx, "short", "v2", StoreOptions{}))
	got, err = f.vault.GetSecret(ctx, "short", "")
	require.NoError(t, err)
	require.Equal(t, "v2", got)
}

func TestVault_RotateExpiredFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.vault.StoreSecret(ctx, "k", "v1", StoreOptions{ExpiresAt: f.clock.Now().Add(time.Minute)}))
	f.clock.Advance(2 * time.Minute)

	require.ErrorIs(t, f.vault.RotateSecret(ctx, "k", "v2", ""), ErrSecretExpired)
	require.ErrorIs(t, f.vault.RotateSecret(ctx, "missing", "v2", ""), ErrSecretNotFound)
}

func TestVault_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.vault.DeleteSecret(ctx, "nope", "bob"), ErrSecretNotFound)

	require.NoError(t, f.vault.StoreSecret(ctx, "k", "v1", StoreOptions{Owner: "bob"}))
	require.NoError(t, f.vault.DeleteSecret(ctx, "k", "bob"))
	_, err := f.vault.GetSecret(ctx, "k", "bob")
	require.ErrorIs(t, err, ErrSecretNotFound)

	require.Equal(t, []domain.Action{domain.ActionStored, domain.ActionDeleted}, actions(t, f, domain.AuditFilter{}))
}

func TestVault_EmptyKeyRejected(t *testing.T) {
	f := newFixture(t)
	err := f.vault.StoreSecret(context.Background(), "", "v1", StoreOptions{})
	var ve *security.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "key", ve.Field)
	require.ErrorIs(t, err, security.ErrValidation)
}

func TestVault_TamperedCiphertextTriggersHook(t *testing.T) {
	var (
		hookKey string
		hookErr error
	)
	f := newFixture(t, WithIntegrityHook(func(ctx context.Context, key, owner string, err error) {
		hookKey, hookErr = key, err
	}))
	ctx := context.Background()
	require.NoError(t, f.vault.StoreSecret(ctx, "k", "value1", StoreOptions{}))

	sec, err := f.secrets.Get(ctx, "k")
	require.NoError(t, err)
	tag := []byte(sec.Value.AuthTag)
	if tag[0] == '0' {
		tag[0] = '1'
	} else {
		tag[0] = '0'
	}
	sec.Value.AuthTag = string(tag)
	require.NoError(t, f.secrets.Put(ctx, sec))

	_, err = f.vault.GetSecret(ctx, "k", "")
	require.ErrorIs(t, err, security.ErrDecryptFailed)
	require.Equal(t, "k", hookKey)
	require.ErrorIs(t, hookErr, security.ErrIntegrity)
	require.Equal(t, []domain.Action{domain.ActionStored}, actions(t, f, domain.AuditFilter{}))
}

func TestVault_CheckRotationStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	require.NoError(t, f.vault.StoreSecret(ctx, "soon", "v1", StoreOptions{ExpiresAt: now.Add(3 * 24 * time.Hour)}))
	require.NoError(t, f.vault.StoreSecret(ctx, "edge", "v1", StoreOptions{ExpiresAt: now.Add(7*24*time.Hour + time.Hour)}))
	require.NoError(t, f.vault.StoreSecret(ctx, "later", "v1", StoreOptions{ExpiresAt: now.Add(8 * 24 * time.Hour)}))
	require.NoError(t, f.vault.StoreSecret(ctx, "default", "v1", StoreOptions{}))

	st, err := f.vault.CheckRotationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.RotationStatus{
		{Key: "edge", DaysUntilExpiry: 7, RequiresRotation: true},
		{Key: "soon", DaysUntilExpiry: 3, RequiresRotation: true},
	}, st)
}

func TestVault_AuditFiltersCompose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.vault.StoreSecret(ctx, "a", "v1", StoreOptions{Owner: "alice"}))
	f.clock.Advance(time.Minute)
	mark := f.clock.Now()
	require.NoError(t, f.vault.StoreSecret(ctx, "b", "v1", StoreOptions{Owner: "bob"}))
	_, err := f.vault.GetSecret(ctx, "a", "bob")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.vault.GetSecret(ctx, "b", "bob")
	require.NoError(t, err)

	require.Len(t, actions(t, f, domain.AuditFilter{}), 4)
	require.Len(t, actions(t, f, domain.AuditFilter{Owner: "bob"}), 3)
	require.Len(t, actions(t, f, domain.AuditFilter{Owner: "bob", Action: domain.ActionAccessed}), 2)
	require.Len(t, actions(t, f, domain.AuditFilter{Owner: "bob", Action: domain.ActionAccessed, Key: "a"}), 1)
	require.Len(t, actions(t, f, domain.AuditFilter{Since: mark}), 3)
	require.Len(t, actions(t, f, domain.AuditFilter{Since: mark, Until: mark}), 2)
	require.Empty(t, actions(t, f, domain.AuditFilter{Owner: "carol"}))
}

func TestVault_ExportAuditLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, f.vault.ExportAuditLog(ctx, &buf))
	require.JSONEq(t, "[]", buf.String())

	require.NoError(t, f.vault.StoreSecret(ctx, "k", "v1", StoreOptions{Owner: "alice"}))
	require.NoError(t, f.vault.RotateSecret(ctx, "k", "v2", "alice"))
	buf.Reset()
	require.NoError(t, f.vault.ExportAuditLog(ctx, &buf))
	require.Contains(t, buf.String(), "\n  {")

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	require.Equal(t, "SECRET_STORED", out[0]["action"])
	require.Equal(t, "alice", out[0]["userId"])
	require.NotContains(t, out[0], "oldHash")
	require.NotEmpty(t, out[1]["oldHash"])
	require.NotContains(t, buf.String(), "v2")
}

func TestVault_ScheduledRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.vault.StoreSecret(ctx, "api-key", "first-value-1", StoreOptions{}))

	calls := 0
	require.NoError(t, f.vault.ScheduleRotation("api-key", time.Hour, func(ctx context.Context) error {
		calls++
		return f.vault.RotateSecret(ctx, "api-key", "second-value-2", "")
	}))
	require.NoError(t, f.vault.ScheduleRotation("broken", time.Hour, func(ctx context.Context) error {
		return errors.New("upstream unavailable")
	}))
	require.NoError(t, f.vault.ScheduleRotation("panics", time.Hour, func(ctx context.Context) error {
		panic("bad callback")
	}))

	require.NoError(t, f.vault.RunRotation("api-key"))
	require.Error(t, f.vault.RunRotation("broken"))
	err := f.vault.RunRotation("panics")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad callback")
	require.Equal(t, 1, calls)

	got, err := f.vault.GetSecret(ctx, "api-key", "")
	require.NoError(t, err)
	require.Equal(t, "second-value-2", got)

	require.Equal(t, []domain.Action{domain.ActionAutoRotated}, actions(t, f, domain.AuditFilter{Action: domain.ActionAutoRotated}))
	failed, err := f.vault.GetAuditLog(ctx, domain.AuditFilter{Action: domain.ActionAutoRotateError})
	require.NoError(t, err)
	require.Len(t, failed, 2)
	require.Equal(t, "broken", failed[0].Key)
	require.Equal(t, "panics", failed[1].Key)

	require.True(t, f.vault.CancelRotation("api-key"))
	require.False(t, f.vault.CancelRotation("api-key"))
	require.Error(t, f.vault.RunRotation("api-key"))
}

func TestVault_ScheduleRotationRejectsBadInterval(t *testing.T) {
	f := newFixture(t)
	err := f.vault.ScheduleRotation("k", 0, func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, security.ErrValidation)
}

func TestVault_WeakValueRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ve *security.ValidationError
	require.ErrorAs(t, f.vault.StoreSecret(ctx, "k", "abc", StoreOptions{}), &ve)
	require.NotEmpty(t, ve.Issues)
	_, err := f.vault.GetSecret(ctx, "k", "")
	require.ErrorIs(t, err, ErrSecretNotFound)

	require.NoError(t, f.vault.StoreSecret(ctx, "k", "S3cr3t!", StoreOptions{}))
	require.ErrorIs(t, f.vault.RotateSecret(ctx, "k", "abc", ""), security.ErrValidation)
	got, err := f.vault.GetSecret(ctx, "k", "")
	require.NoError(t, err)
	require.Equal(t, "S3cr3t!", got)
	require.Equal(t, []domain.Action{domain.ActionStored, domain.ActionAccessed}, actions(t, f, domain.AuditFilter{}))
}

// slowStore widens the gap between reading and writing a secret and tracks
// how many reads overlap.
type slowStore struct {
	*repository.MemorySecretStore
	mu       sync.Mutex
	inFlight int
	maxSeen  int
}

func (s *slowStore) Get(ctx context.Context, key string) (*domain.Secret, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxSeen {
		s.maxSeen = s.inFlight
	}
	s.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()
	return s.MemorySecretStore.Get(ctx, key)
}

func TestVault_ConcurrentRotationsChain(t *testing.T) {
	key, err := security.GenerateKey()
	require.NoError(t, err)
	engine, err := security.NewEngineFromHex(key)
	require.NoError(t, err)
	store := &slowStore{MemorySecretStore: repository.NewMemorySecretStore()}
	audit := repository.NewMemoryAuditStore()
	v := New(store, audit, engine)
	t.Cleanup(v.Close)
	ctx := context.Background()

	require.NoError(t, v.StoreSecret(ctx, "db", "initial-1", StoreOptions{}))
	values := []string{"rotated-1", "rotated-2", "rotated-3", "rotated-4"}
	errs := make(chan error, len(values))
	for _, nv := range values {
		go func(nv string) { errs <- v.RotateSecret(ctx, "db", nv, "ops") }(nv)
	}
	for range values {
		require.NoError(t, <-errs)
	}
	require.Equal(t, 1, store.maxSeen)

	final, err := v.GetSecret(ctx, "db", "ops")
	require.NoError(t, err)

	entries, err := v.GetAuditLog(ctx, domain.AuditFilter{Action: domain.ActionRotated})
	require.NoError(t, err)
	require.Len(t, entries, len(values))

	// Every value ever written except the final one is superseded exactly once.
	want := map[string]bool{}
	for _, val := range append([]string{"initial-1"}, values...) {
		if val == final {
			continue
		}
		h, err := security.HashData(val, security.SHA256)
		require.NoError(t, err)
		want[h] = true
	}
	got := map[string]bool{}
	for _, e := range entries {
		require.False(t, got[e.OldHash], "value superseded twice")
		got[e.OldHash] = true
	}
	require.Equal(t, want, got)
}

func TestVault_ValidateSecretStrength(t *testing.T) {
	f := newFixture(t)
	require.False(t, f.vault.ValidateSecretStrength("S3cr3t!").OK())
	require.True(t, f.vault.ValidateSecretStrength("Zq8#vN2$pLm4@tR7!wX9&kB3^hD6*yF1").OK())
}
