// Package service implements the external authentication surface: register,
// login, logout and per-request token authentication, each composed from the
// session authority and the audit engine.
package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	auditdomain "trustcore/internal/audit/domain"
	"trustcore/internal/identity"
	"trustcore/internal/identity/domain"
	"trustcore/internal/identity/repository"
	"trustcore/internal/mfa"
	"trustcore/internal/security"
	sessiondomain "trustcore/internal/session/domain"
	sessionservice "trustcore/internal/session/service"
	vaultservice "trustcore/internal/vault/service"
)

// DefaultTOTPIssuer labels authenticator-app entries.
const DefaultTOTPIssuer = "trustcore"

// totpSecretTTL keeps enrolled TOTP secrets well clear of the vault's default expiry.
const totpSecretTTL = 10 * 365 * 24 * time.Hour

var (
	ErrInvalidEmail     = security.NewKindError(security.ErrValidation, "invalid email format")
	ErrTOTPRequired     = security.NewKindError(security.ErrAuthentication, "totp code required")
	ErrTOTPNotAvailable = errors.New("totp requires a vault")
	ErrIdentityNotFound = security.NewKindError(security.ErrNotFound, "identity not found")
)

// Recorder receives audit events. *audit.Engine satisfies it.
type Recorder interface {
	Record(ctx context.Context, typ auditdomain.EventType, ectx auditdomain.EventContext)
}

// SecretVault holds TOTP secrets. *vaultservice.Vault satisfies it.
type SecretVault interface {
	StoreSecret(ctx context.Context, key, value string, opts vaultservice.StoreOptions) error
	GetSecret(ctx context.Context, key, owner string) (string, error)
	DeleteSecret(ctx context.Context, key, owner string) error
}

// VerificationObserver counts Authenticate outcomes.
type VerificationObserver interface {
	ObserveVerification(outcome string)
}

// Credentials are what a caller presents to Login.
type Credentials struct {
	Password string
	TOTPCode string // required only when the identity has TOTP enabled
	Client   sessiondomain.Metadata
}

// LoginResult holds the tokens and session created by a successful Login.
type LoginResult struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	Subject          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithVault enables TOTP enrollment with secrets kept in v.
func WithVault(v SecretVault) Option {
	return func(s *AuthService) { s.vault = v }
}

// WithTracer sets the tracer used for login and authenticate spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *AuthService) { s.tracer = t }
}

// WithObserver sets the verification outcome observer.
func WithObserver(o VerificationObserver) Option {
	return func(s *AuthService) { s.observer = o }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.nowF = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *AuthService) { s.log = l }
}

// WithTOTPIssuer sets the issuer shown in authenticator apps.
func WithTOTPIssuer(issuer string) Option {
	return func(s *AuthService) {
		if issuer != "" {
			s.issuer = issuer
		}
	}
}

// AuthService implements password login with an optional TOTP second factor.
type AuthService struct {
	identities repository.Repository
	authority  *sessionservice.Authority
	hasher     *security.Hasher
	audit      Recorder
	vault      SecretVault
	observer   VerificationObserver
	tracer     trace.Tracer
	issuer     string
	nowF       func() time.Time
	log        zerolog.Logger
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(identities repository.Repository, authority *sessionservice.Authority, hasher *security.Hasher, audit Recorder, opts ...Option) *AuthService {
	s := &AuthService{
		identities: identities,
		authority:  authority,
		hasher:     hasher,
		audit:      audit,
		tracer:     otel.Tracer("trustcore/identity"),
		issuer:     DefaultTOTPIssuer,
		nowF:       time.Now,
		log:        log.With().Str("component", "identity").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *AuthService) now() time.Time { return s.nowF().UTC() }

// Register creates a local identity. The password must pass the strength policy;
// role defaults to RoleUser.
func (s *AuthService) Register(ctx context.Context, email, password, role string) (*domain.Identity, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	existing, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, repository.ErrEmailTaken
	}
	hashed, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = domain.RoleUser
	}
	now := s.now()
	ident := &domain.Identity{
		ID:           uuid.New().String(),
		Email:        email,
		Role:         role,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.identities.Create(ctx, ident); err != nil {
		return nil, err
	}
	s.log.Info().Str("identity_id", ident.ID).Msg("identity registered")
	return ident, nil
}

// Login verifies credentials, issues an access and refresh token pair and opens
// a session. Every outcome is audited: a failure as FAILED_LOGIN keyed by the
// presented email and client address so brute-force detection sees it.
func (s *AuthService) Login(ctx context.Context, email string, creds Credentials) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Login")
	defer span.End()

	email = normalizeEmail(email)
	actor := auditdomain.Actor{Subject: email, IPAddress: creds.Client.IPAddress, UserAgent: creds.Client.UserAgent}
	fail := func(reason string, err error) (*LoginResult, error) {
		s.audit.Record(ctx, auditdomain.EventFailedLogin, auditdomain.LoginContext{Actor: actor, Reason: reason})
		span.SetStatus(codes.Error, reason)
		return nil, err
	}

	if email == "" || creds.Password == "" {
		return fail("missing credentials", security.ErrInvalidCredentials)
	}
	ident, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if ident == nil || ident.PasswordHash == "" {
		return fail("unknown identity", s.hasher.CompareMissing(creds.Password))
	}
	if err := s.hasher.ComparePassword(ident.PasswordHash, creds.Password); err != nil {
		return fail("invalid password", err)
	}
	if ident.TOTPEnabled {
		if creds.TOTPCode == "" {
			span.SetStatus(codes.Error, "totp required")
			return nil, ErrTOTPRequired
		}
		if err := s.checkTOTP(ctx, ident, creds.TOTPCode); err != nil {
			if errors.Is(err, mfa.ErrCodeMismatch) {
				return fail("invalid totp code", security.ErrInvalidCredentials)
			}
			span.RecordError(err)
			return nil, err
		}
	}
	span.SetAttributes(attribute.String("identity.id", ident.ID))

	access, accessExp, err := s.authority.GenerateToken(ident.ID, ident.Role, 0)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	refresh, refreshExp, err := s.authority.GenerateRefreshToken(ident.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	sessionID, err := s.authority.CreateSession(ctx, ident.ID, access, refresh, creds.Client)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.audit.Record(ctx, auditdomain.EventSuccessfulLogin, auditdomain.LoginContext{
		Actor:     actor,
		SessionID: sessionID,
		Extra:     map[string]any{"identityId": ident.ID},
	})
	return &LoginResult{
		AccessToken:      access,
		RefreshToken:     refresh,
		SessionID:        sessionID,
		Subject:          ident.ID,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *AuthService) checkTOTP(ctx context.Context, ident *domain.Identity, code string) error {
	if s.vault == nil {
		return ErrTOTPNotAvailable
	}
	secret, err := s.vault.GetSecret(ctx, domain.TOTPSecretKey(ident.ID), ident.ID)
	if err != nil {
		return err
	}
	return mfa.ValidateTOTP(code, secret, s.now())
}

// Logout revokes the session and both of its tokens. An empty sessionID falls
// back to the session carried in ctx; with neither, Logout is a no-op.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		var ok bool
		if sessionID, ok = identity.SessionIDFrom(ctx); !ok {
			return nil
		}
	}
	if err := s.authority.RevokeSession(ctx, sessionID); err != nil {
		return err
	}
	subject, _ := identity.SubjectFrom(ctx)
	md := identity.ClientFrom(ctx)
	s.audit.Record(ctx, auditdomain.EventLogout, auditdomain.LoginContext{
		Actor:     auditdomain.Actor{Subject: subject, IPAddress: md.IPAddress, UserAgent: md.UserAgent},
		SessionID: sessionID,
	})
	return nil
}

// Authenticate verifies an access token for a request. Failures are audited as
// INVALID_TOKEN with a token fingerprint, never the token itself.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (*security.Claims, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Authenticate")
	defer span.End()

	claims, err := s.authority.VerifyToken(ctx, rawToken)
	outcome := verificationOutcome(err)
	if s.observer != nil {
		s.observer.ObserveVerification(outcome)
	}
	span.SetAttributes(attribute.String("token.outcome", outcome))
	if err != nil {
		span.SetStatus(codes.Error, outcome)
		md := identity.ClientFrom(ctx)
		extra := map[string]any{"reason": outcome}
		if rawToken != "" {
			extra["tokenFingerprint"] = security.TokenFingerprint(rawToken)
		}
		s.audit.Record(ctx, auditdomain.EventInvalidToken, auditdomain.ExtraContext{
			Actor: auditdomain.Actor{IPAddress: md.IPAddress, UserAgent: md.UserAgent},
			Extra: extra,
		})
		return nil, err
	}
	return claims, nil
}

func verificationOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, security.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, security.ErrTokenExpired):
		return "expired"
	case errors.Is(err, security.ErrInvalidSignature):
		return "invalid_signature"
	default:
		return "invalid"
	}
}

// ChangePassword replaces the password after verifying the current one and
// revokes every session of the identity. It returns the number revoked.
func (s *AuthService) ChangePassword(ctx context.Context, identityID, current, next string) (int, error) {
	ident, err := s.mustGet(ctx, identityID)
	if err != nil {
		return 0, err
	}
	if err := s.hasher.ComparePassword(ident.PasswordHash, current); err != nil {
		return 0, err
	}
	hashed, err := s.hasher.HashPassword(next)
	if err != nil {
		return 0, err
	}
	if err := s.identities.UpdatePasswordHash(ctx, ident.ID, hashed, s.now()); err != nil {
		return 0, err
	}
	n, err := s.authority.RevokeAllSessions(ctx, ident.ID)
	if err != nil {
		return n, err
	}
	s.audit.Record(ctx, auditdomain.EventConfigChange, auditdomain.ExtraContext{
		Actor: auditdomain.Actor{Subject: ident.Email},
		Extra: map[string]any{"change": "password", "sessionsRevoked": n},
	})
	return n, nil
}

// EnrollTOTP generates and stores a TOTP secret and enables the second factor.
// The returned enrollment is the only time the secret leaves the vault.
func (s *AuthService) EnrollTOTP(ctx context.Context, identityID string) (*mfa.TOTPEnrollment, error) {
	if s.vault == nil {
		return nil, ErrTOTPNotAvailable
	}
	ident, err := s.mustGet(ctx, identityID)
	if err != nil {
		return nil, err
	}
	enr, err := mfa.EnrollTOTP(s.issuer, ident.Email)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.vault.StoreSecret(ctx, domain.TOTPSecretKey(ident.ID), enr.Secret, vaultservice.StoreOptions{
		Owner:     ident.ID,
		ExpiresAt: now.Add(totpSecretTTL),
	}); err != nil {
		return nil, err
	}
	if err := s.identities.SetTOTPEnabled(ctx, ident.ID, true, now); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditdomain.EventConfigChange, auditdomain.ExtraContext{
		Actor: auditdomain.Actor{Subject: ident.Email},
		Extra: map[string]any{"change": "totp_enabled"},
	})
	return enr, nil
}

// DisableTOTP removes the second factor and its stored secret.
func (s *AuthService) DisableTOTP(ctx context.Context, identityID string) error {
	if s.vault == nil {
		return ErrTOTPNotAvailable
	}
	ident, err := s.mustGet(ctx, identityID)
	if err != nil {
		return err
	}
	if !ident.TOTPEnabled {
		return nil
	}
	if err := s.identities.SetTOTPEnabled(ctx, ident.ID, false, s.now()); err != nil {
		return err
	}
	if err := s.vault.DeleteSecret(ctx, domain.TOTPSecretKey(ident.ID), ident.ID); err != nil && !errors.Is(err, vaultservice.ErrSecretNotFound) {
		return err
	}
	s.audit.Record(ctx, auditdomain.EventConfigChange, auditdomain.ExtraContext{
		Actor: auditdomain.Actor{Subject: ident.Email},
		Extra: map[string]any{"change": "totp_disabled"},
	})
	return nil
}

func (s *AuthService) mustGet(ctx context.Context, id string) (*domain.Identity, error) {
	ident, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, ErrIdentityNotFound
	}
	return ident, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return &security.ValidationError{Field: "email", Issues: []string{"required"}}
	}
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}
