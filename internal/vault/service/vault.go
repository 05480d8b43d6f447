// Package service implements the secrets vault: encrypted storage with expiry,
// rotation, scheduled rotation callbacks, and an append-only audit trail.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trustcore/internal/scheduler"
	"trustcore/internal/security"
	"trustcore/internal/vault/domain"
	"trustcore/internal/vault/repository"
)

const (
	// DefaultSecretTTL applies when a secret is stored without an expiry.
	DefaultSecretTTL = 90 * 24 * time.Hour
	// RotationWarningDays is the runway at or below which a secret requires rotation.
	RotationWarningDays = 7
	// SystemOwner is recorded when no owner is given.
	SystemOwner = "system"
	// MinSecretScore is the strength score below which a value is refused on write.
	MinSecretScore = 50

	rotationTaskPrefix = "vault-rotate:"
)

var (
	ErrSecretNotFound = security.NewKindError(security.ErrNotFound, "secret not found")
	ErrSecretExpired  = security.NewKindError(security.ErrNotFound, "secret has expired")
)

// IntegrityHook is called when a stored secret fails to decrypt.
type IntegrityHook func(ctx context.Context, key, owner string, err error)

// RotationFunc is a scheduled rotation callback.
type RotationFunc func(ctx context.Context) error

// StoreOptions are the optional attributes of StoreSecret.
type StoreOptions struct {
	Owner     string
	ExpiresAt time.Time // zero selects the default TTL
}

// Option configures a Vault.
type Option func(*Vault)

// WithDefaultTTL sets the expiry applied to secrets stored without one.
func WithDefaultTTL(d time.Duration) Option {
	return func(v *Vault) {
		if d > 0 {
			v.defaultTTL = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.nowF = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(v *Vault) { v.log = l }
}

// WithIntegrityHook sets the callback for decryption failures.
func WithIntegrityHook(h IntegrityHook) Option {
	return func(v *Vault) { v.onIntegrity = h }
}

// WithScheduler runs rotation callbacks on m instead of a private manager.
func WithScheduler(m *scheduler.Manager) Option {
	return func(v *Vault) { v.sched = m }
}

// Vault stores secrets encrypted at rest.
type Vault struct {
	secrets     repository.SecretStore
	audit       repository.AuditStore
	engine      *security.Engine
	sched       *scheduler.Manager
	ownSched    bool
	defaultTTL  time.Duration
	nowF        func() time.Time
	log         zerolog.Logger
	onIntegrity IntegrityHook
	locks       keyLocks
}

// keyLocks serializes writers of the same key so read, write and audit of a
// rotation happen as one step.
type keyLocks struct {
	mu sync.Mutex
	m  map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func (l *keyLocks) lock(key string) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*keyLock)
	}
	k := l.m[key]
	if k == nil {
		k = &keyLock{}
		l.m[key] = k
	}
	k.refs++
	l.mu.Unlock()

	k.Lock()
	return func() {
		k.Unlock()
		l.mu.Lock()
		if k.refs--; k.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}

// New returns a Vault that encrypts with engine.
func New(secrets repository.SecretStore, audit repository.AuditStore, engine *security.Engine, opts ...Option) *Vault {
	v := &Vault{
		secrets:    secrets,
		audit:      audit,
		engine:     engine,
		defaultTTL: DefaultSecretTTL,
		nowF:       time.Now,
		log:        log.With().Str("component", "vault").Logger(),
	}
	for _, o := range opts {
		o(v)
	}
	if v.sched == nil {
		v.sched = scheduler.NewManager(0)
		v.ownSched = true
	}
	return v
}

func (v *Vault) now() time.Time { return v.nowF().UTC() }

func ownerOr(owner string) string {
	if owner == "" {
		return SystemOwner
	}
	return owner
}

func (v *Vault) record(ctx context.Context, action domain.Action, key, owner, oldHash string) error {
	return v.audit.Append(ctx, &domain.AuditEntry{
		ID:        uuid.New().String(),
		Action:    action,
		Key:       key,
		Owner:     ownerOr(owner),
		Timestamp: v.now(),
		OldHash:   oldHash,
	})
}

// StoreSecret encrypts value and stores it under key, replacing any existing entry.
// A value scoring below MinSecretScore is rejected with a *security.ValidationError.
func (v *Vault) StoreSecret(ctx context.Context, key, value string, opts StoreOptions) error {
	unlock := v.locks.lock(key)
	defer unlock()
	if err := v.put(ctx, key, value, opts, false); err != nil {
		return err
	}
	return v.record(ctx, domain.ActionStored, key, opts.Owner, "")
}

func (v *Vault) put(ctx context.Context, key, value string, opts StoreOptions, rotated bool) error {
	if key == "" {
		return &security.ValidationError{Field: "key", Issues: []string{"required"}}
	}
	if err := security.ValidateSecretStrength(value).Require(MinSecretScore); err != nil {
		return err
	}
	enc, err := v.engine.EncryptField(value)
	if err != nil {
		return err
	}
	now := v.now()
	exp := opts.ExpiresAt
	if exp.IsZero() {
		exp = now.Add(v.defaultTTL)
	}
	return v.secrets.Put(ctx, &domain.Secret{
		Key:   key,
		Value: *enc,
		Metadata: domain.Metadata{
			Owner:     ownerOr(opts.Owner),
			CreatedAt: now,
			ExpiresAt: exp.UTC(),
			Rotated:   rotated,
		},
	})
}

// GetSecret decrypts and returns the value under key, recording the read. An
// expired entry is evicted and reported with ErrSecretExpired.
func (v *Vault) GetSecret(ctx context.Context, key, owner string) (string, error) {
	plain, err := v.read(ctx, key, owner)
	if err != nil {
		return "", err
	}
	if err := v.record(ctx, domain.ActionAccessed, key, owner, ""); err != nil {
		return "", err
	}
	return plain, nil
}

func (v *Vault) read(ctx context.Context, key, owner string) (string, error) {
	sec, err := v.secrets.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if sec == nil {
		return "", ErrSecretNotFound
	}
	now := v.now()
	if sec.Expired(now) {
		if _, err := v.secrets.DeleteIfExpired(ctx, key, now); err != nil {
			return "", err
		}
		v.log.Info().Str("key", key).Msg("expired secret evicted")
		return "", ErrSecretExpired
	}
	plain, err := v.engine.DecryptField(&sec.Value)
	if err != nil {
		if errors.Is(err, security.ErrIntegrity) && v.onIntegrity != nil {
			v.onIntegrity(ctx, key, ownerOr(owner), err)
		}
		v.log.Error().Str("key", key).Err(err).Msg("secret decryption failed")
		return "", err
	}
	return plain, nil
}

// RotateSecret replaces the value under key. The audit entry carries only the
// SHA-256 of the superseded value. Concurrent rotations of one key are applied
// one after another, each superseding the value the previous one wrote.
func (v *Vault) RotateSecret(ctx context.Context, key, newValue, owner string) error {
	unlock := v.locks.lock(key)
	defer unlock()
	old, err := v.read(ctx, key, owner)
	if err != nil {
		return err
	}
	oldHash, err := security.HashData(old, security.SHA256)
	if err != nil {
		return err
	}
	if err := v.put(ctx, key, newValue, StoreOptions{Owner: owner}, true); err != nil {
		return err
	}
	return v.record(ctx, domain.ActionRotated, key, owner, oldHash)
}

// DeleteSecret removes key.
func (v *Vault) DeleteSecret(ctx context.Context, key, owner string) error {
	unlock := v.locks.lock(key)
	defer unlock()
	ok, err := v.secrets.Delete(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSecretNotFound
	}
	return v.record(ctx, domain.ActionDeleted, key, owner, "")
}

// ScheduleRotation runs fn every interval. Each successful run records
// SECRET_AUTO_ROTATED; a failing or panicking fn is logged and recorded as
// SECRET_AUTO_ROTATE_FAILED without affecting other schedules. Scheduling a key
// again replaces its previous schedule.
func (v *Vault) ScheduleRotation(key string, interval time.Duration, fn RotationFunc) error {
	if interval <= 0 {
		return &security.ValidationError{Field: "interval", Issues: []string{"must be positive"}}
	}
	return v.sched.Register(rotationTaskPrefix+key, interval, v.rotationTask(key, fn))
}

func (v *Vault) rotationTask(key string, fn RotationFunc) scheduler.TaskFunc {
	return func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("rotation callback panicked: %v", r)
			}
			action := domain.ActionAutoRotated
			if err != nil {
				action = domain.ActionAutoRotateError
				v.log.Error().Str("key", key).Err(err).Msg("automatic rotation failed")
			}
			if aerr := v.record(ctx, action, key, SystemOwner, ""); aerr != nil {
				v.log.Error().Str("key", key).Err(aerr).Msg("record rotation")
			}
		}()
		return fn(ctx)
	}
}

// RunRotation runs the scheduled rotation for key once, synchronously.
func (v *Vault) RunRotation(key string) error {
	return v.sched.RunNow(rotationTaskPrefix + key)
}

// CancelRotation stops the schedule for key and reports whether one existed.
func (v *Vault) CancelRotation(key string) bool {
	return v.sched.Cancel(rotationTaskPrefix + key)
}

// CheckRotationStatus returns the secrets with at most seven days until expiry.
// Secrets with more runway are omitted.
func (v *Vault) CheckRotationStatus(ctx context.Context) ([]domain.RotationStatus, error) {
	list, err := v.secrets.List(ctx)
	if err != nil {
		return nil, err
	}
	now := v.now()
	var out []domain.RotationStatus
	for _, sec := range list {
		days := int(math.Floor(sec.Metadata.ExpiresAt.Sub(now).Hours() / 24))
		if days <= RotationWarningDays {
			out = append(out, domain.RotationStatus{Key: sec.Key, DaysUntilExpiry: days, RequiresRotation: true})
		}
	}
	return out, nil
}

// ValidateSecretStrength scores secret against the vault secret policy.
func (v *Vault) ValidateSecretStrength(secret string) security.Strength {
	return security.ValidateSecretStrength(secret)
}

// GetAuditLog returns audit entries matching f in append order.
func (v *Vault) GetAuditLog(ctx context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, error) {
	return v.audit.List(ctx, f)
}

// ExportAuditLog writes the full audit trail to w as an indented JSON array.
func (v *Vault) ExportAuditLog(ctx context.Context, w io.Writer) error {
	entries, err := v.audit.List(ctx, domain.AuditFilter{})
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// Close stops all rotation schedules owned by the vault.
func (v *Vault) Close() {
	if v.ownSched {
		v.sched.Stop()
	}
}
