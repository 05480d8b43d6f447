// Package service implements the session and token authority: token issuance and
// verification against a revocation set, and per-subject session tracking.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trustcore/internal/security"
	"trustcore/internal/session/domain"
	"trustcore/internal/session/repository"
)

// DefaultSessionTTL is the lifetime of a session when none is configured.
const DefaultSessionTTL = 24 * time.Hour

const unknownClient = "unknown"

var (
	ErrSessionNotFound = security.NewKindError(security.ErrNotFound, "session not found")
	ErrSessionInactive = security.NewKindError(security.ErrAuthentication, "session is inactive")
	ErrSessionExpired  = security.NewKindError(security.ErrAuthentication, "session has expired")
)

// Option configures an Authority.
type Option func(*Authority)

// WithSessionTTL sets the session lifetime.
func WithSessionTTL(d time.Duration) Option {
	return func(a *Authority) {
		if d > 0 {
			a.sessionTTL = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.nowF = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Authority) { a.log = l }
}

// Authority issues and verifies tokens and owns session state.
type Authority struct {
	sessions    repository.Repository
	revocations repository.RevocationStore
	tokens      *security.TokenProvider
	sessionTTL  time.Duration
	nowF        func() time.Time
	log         zerolog.Logger
}

// NewAuthority returns an Authority over the given stores and token provider.
func NewAuthority(sessions repository.Repository, revocations repository.RevocationStore, tokens *security.TokenProvider, opts ...Option) *Authority {
	a := &Authority{
		sessions:    sessions,
		revocations: revocations,
		tokens:      tokens,
		sessionTTL:  DefaultSessionTTL,
		nowF:        time.Now,
		log:         log.With().Str("component", "session").Logger(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Authority) now() time.Time { return a.nowF().UTC() }

// Tokens returns the underlying token provider.
func (a *Authority) Tokens() *security.TokenProvider { return a.tokens }

// GenerateToken issues an access token for subject and role. A non-positive ttl
// selects the configured access TTL.
func (a *Authority) GenerateToken(subject, role string, ttl time.Duration) (string, time.Time, error) {
	return a.tokens.GenerateToken(subject, role, ttl)
}

// GenerateRefreshToken issues a refresh token for subject.
func (a *Authority) GenerateRefreshToken(subject string) (string, time.Time, error) {
	return a.tokens.GenerateRefreshToken(subject)
}

// VerifyToken checks the revocation set first, then signature, expiry, issuer
// and audience. A revoked token fails with ErrTokenRevoked even when otherwise valid.
func (a *Authority) VerifyToken(ctx context.Context, token string) (*security.Claims, error) {
	if err := a.checkRevoked(ctx, token); err != nil {
		return nil, err
	}
	return a.tokens.ParseAccess(token)
}

// VerifyRefreshToken is VerifyToken for refresh tokens.
func (a *Authority) VerifyRefreshToken(ctx context.Context, token string) (*security.Claims, error) {
	if err := a.checkRevoked(ctx, token); err != nil {
		return nil, err
	}
	return a.tokens.ParseRefresh(token)
}

func (a *Authority) checkRevoked(ctx context.Context, token string) error {
	if token == "" {
		return security.ErrInvalidToken
	}
	revoked, err := a.revocations.Contains(ctx, security.HashToken(token))
	if err != nil {
		return err
	}
	if revoked {
		return security.ErrTokenRevoked
	}
	return nil
}

// RevokeToken adds a single token to the revocation set.
func (a *Authority) RevokeToken(ctx context.Context, token string) error {
	return a.revocations.Add(ctx, domain.Revocation{
		TokenHash: security.HashToken(token),
		ExpiresAt: a.tokenExpiry(token),
		RevokedAt: a.now(),
	})
}

// tokenExpiry reads the token's own exp. Tokens without a readable exp are kept
// for a full refresh TTL past now.
func (a *Authority) tokenExpiry(token string) time.Time {
	if exp, ok := a.tokens.ExpiresAt(token); ok {
		return exp
	}
	return a.now().Add(a.tokens.RefreshTTL())
}

// CreateSession records a new active session for subject and returns its id,
// 32 hex characters from crypto/rand. Missing client metadata is recorded as "unknown".
func (a *Authority) CreateSession(ctx context.Context, subject, accessToken, refreshToken string, md domain.Metadata) (string, error) {
	if subject == "" {
		return "", &security.ValidationError{Field: "subject", Issues: []string{"required"}}
	}
	id, err := security.GenerateToken(16)
	if err != nil {
		return "", err
	}
	if md.IPAddress == "" {
		md.IPAddress = unknownClient
	}
	if md.UserAgent == "" {
		md.UserAgent = unknownClient
	}
	now := a.now()
	s := &domain.Session{
		ID:               id,
		Subject:          subject,
		AccessTokenHash:  security.HashToken(accessToken),
		RefreshTokenHash: security.HashToken(refreshToken),
		AccessExpiresAt:  a.tokenExpiry(accessToken),
		RefreshExpiresAt: a.tokenExpiry(refreshToken),
		Metadata:         md,
		Active:           true,
		CreatedAt:        now,
		ExpiresAt:        now.Add(a.sessionTTL),
	}
	if err := a.sessions.Create(ctx, s); err != nil {
		return "", err
	}
	a.log.Debug().Str("session_id", id).Str("subject", subject).Msg("session created")
	return id, nil
}

// GetSession returns an active, unexpired session. An expired session is
// deactivated as a side effect and reported with ErrSessionExpired.
func (a *Authority) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	s, err := a.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	if !s.Active {
		return nil, ErrSessionInactive
	}
	now := a.now()
	if s.Expired(now) {
		if _, err := a.sessions.Deactivate(ctx, id, now); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}
	return s, nil
}

// RevokeSession deactivates the session and revokes both of its tokens.
// Revoking an already inactive session re-adds its tokens and succeeds.
func (a *Authority) RevokeSession(ctx context.Context, id string) error {
	s, err := a.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s == nil {
		return ErrSessionNotFound
	}
	_, err = a.revoke(ctx, s)
	return err
}

func (a *Authority) revoke(ctx context.Context, s *domain.Session) (bool, error) {
	now := a.now()
	changed, err := a.sessions.Deactivate(ctx, s.ID, now)
	if err != nil {
		return false, err
	}
	for _, rv := range []domain.Revocation{
		{TokenHash: s.AccessTokenHash, ExpiresAt: s.AccessExpiresAt, RevokedAt: now},
		{TokenHash: s.RefreshTokenHash, ExpiresAt: s.RefreshExpiresAt, RevokedAt: now},
	} {
		if err := a.revocations.Add(ctx, rv); err != nil {
			return changed, err
		}
	}
	if changed {
		a.log.Info().Str("session_id", s.ID).Str("subject", s.Subject).Msg("session revoked")
	}
	return changed, nil
}

// RevokeAllSessions revokes every active session of subject and returns how many
// were active. A second call returns 0.
func (a *Authority) RevokeAllSessions(ctx context.Context, subject string) (int, error) {
	list, err := a.sessions.ListBySubject(ctx, subject)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range list {
		if !s.Active {
			continue
		}
		changed, err := a.revoke(ctx, s)
		if err != nil {
			return n, err
		}
		if changed {
			n++
		}
	}
	return n, nil
}

// ListSessions returns the active, unexpired sessions of subject.
func (a *Authority) ListSessions(ctx context.Context, subject string) ([]*domain.Session, error) {
	list, err := a.sessions.ListBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	now := a.now()
	out := list[:0]
	for _, s := range list {
		if s.Active && !s.Expired(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

// CleanupExpiredSessions removes sessions past expiry and revocation entries
// whose token has itself expired. It returns the number of sessions removed.
func (a *Authority) CleanupExpiredSessions(ctx context.Context) (int, error) {
	now := a.now()
	n, err := a.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	purged, err := a.revocations.DeleteExpired(ctx, now)
	if err != nil {
		return n, err
	}
	if n > 0 || purged > 0 {
		a.log.Info().Int("sessions", n).Int("revocations", purged).Msg("expired session state swept")
	}
	return n, nil
}
