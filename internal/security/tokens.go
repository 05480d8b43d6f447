package security

import (
	"crypto"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeRefresh marks refresh tokens in the "type" claim.
const TokenTypeRefresh = "refresh"

// Claims is the payload of access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
	Type string `json:"type,omitempty"`
}

// IsRefresh reports whether the claims belong to a refresh token.
func (c *Claims) IsRefresh() bool { return c.Type == TokenTypeRefresh }

// TokenConfig configures a TokenProvider. With Signer set, both token kinds are
// signed with the key pair (RS256 or ES256); otherwise AccessSecret and
// RefreshSecret are used with HS256.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Signer        crypto.Signer
	PublicKey     crypto.PublicKey
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenOption customizes a TokenProvider.
type TokenOption func(*TokenProvider)

// WithTimeFunc sets the clock used for issuing and validating tokens.
func WithTimeFunc(f func() time.Time) TokenOption {
	return func(p *TokenProvider) { p.nowF = f }
}

// TokenProvider issues and validates signed access and refresh tokens.
type TokenProvider struct {
	cfg    TokenConfig
	method jwt.SigningMethod
	nowF   func() time.Time
}

// NewTokenProvider validates cfg and returns a provider. The refresh TTL must be
// strictly longer than the access TTL.
func NewTokenProvider(cfg TokenConfig, opts ...TokenOption) (*TokenProvider, error) {
	var issues []string
	if cfg.AccessTTL <= 0 {
		issues = append(issues, "access ttl must be positive")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		issues = append(issues, "refresh ttl must exceed access ttl")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		issues = append(issues, "issuer and audience are required")
	}
	p := &TokenProvider{cfg: cfg, nowF: time.Now}
	if cfg.Signer != nil {
		if cfg.PublicKey == nil {
			cfg.PublicKey = cfg.Signer.Public()
			p.cfg.PublicKey = cfg.PublicKey
		}
		switch KeyAlg(cfg.PublicKey) {
		case "RS256":
			p.method = jwt.SigningMethodRS256
		case "ES256":
			p.method = jwt.SigningMethodES256
		default:
			issues = append(issues, "unsupported signing key")
		}
	} else {
		if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
			issues = append(issues, "access and refresh secrets are required")
		}
		p.method = jwt.SigningMethodHS256
	}
	if len(issues) > 0 {
		return nil, &ValidationError{Field: "token config", Issues: issues}
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// AccessTTL returns the lifetime of access tokens.
func (p *TokenProvider) AccessTTL() time.Duration { return p.cfg.AccessTTL }

// RefreshTTL returns the lifetime of refresh tokens.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.cfg.RefreshTTL }

// GenerateToken signs an access token for subject and role valid for ttl. A
// non-positive ttl selects the configured access TTL.
func (p *TokenProvider) GenerateToken(subject, role string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = p.cfg.AccessTTL
	}
	return p.issue(subject, role, "", ttl, p.accessKey())
}

// GenerateRefreshToken signs a refresh token for subject valid for the refresh TTL.
func (p *TokenProvider) GenerateRefreshToken(subject string) (string, time.Time, error) {
	return p.issue(subject, "", TokenTypeRefresh, p.cfg.RefreshTTL, p.refreshKey())
}

func (p *TokenProvider) issue(subject, role, typ string, ttl time.Duration, key any) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, &ValidationError{Field: "subject", Issues: []string{"required"}}
	}
	jti, err := GenerateToken(16)
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.nowF().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			Issuer:    p.cfg.Issuer,
			Audience:  jwt.ClaimStrings{p.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: role,
		Type: typ,
	}
	signed, err := jwt.NewWithClaims(p.method, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, &CryptoError{Op: "sign token", Err: err}
	}
	return signed, exp, nil
}

// ParseAccess validates signature, expiry, issuer and audience of an access token.
// Revocation is not checked here. Refresh tokens are rejected.
func (p *TokenProvider) ParseAccess(token string) (*Claims, error) {
	c, err := p.parse(token, p.verifyKey(false))
	if err != nil {
		return nil, err
	}
	if c.IsRefresh() {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// ParseRefresh validates a refresh token and requires type=refresh.
func (p *TokenProvider) ParseRefresh(token string) (*Claims, error) {
	c, err := p.parse(token, p.verifyKey(true))
	if err != nil {
		return nil, err
	}
	if !c.IsRefresh() {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// ExpiresAt reads the exp claim without verifying the token. Used only to decide
// how long a revocation entry must be kept.
func (p *TokenProvider) ExpiresAt(token string) (time.Time, bool) {
	var c Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil || c.ExpiresAt == nil {
		return time.Time{}, false
	}
	return c.ExpiresAt.Time, true
}

func (p *TokenProvider) parse(token string, key any) (*Claims, error) {
	var c Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithAudience(p.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.nowF),
	)
	_, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) { return key, nil })
	if err != nil {
		return nil, mapJWTError(err)
	}
	return &c, nil
}

// mapJWTError translates jwt errors into the authentication taxonomy. The library
// verifies the signature before any claim, so an expired token with a bad
// signature reports the signature failure.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrInvalidToken
	}
}

func (p *TokenProvider) accessKey() any {
	if p.cfg.Signer != nil {
		return p.cfg.Signer
	}
	return p.cfg.AccessSecret
}

func (p *TokenProvider) refreshKey() any {
	if p.cfg.Signer != nil {
		return p.cfg.Signer
	}
	return p.cfg.RefreshSecret
}

func (p *TokenProvider) verifyKey(refresh bool) any {
	if p.cfg.Signer != nil {
		return p.cfg.PublicKey
	}
	if refresh {
		return p.cfg.RefreshSecret
	}
	return p.cfg.AccessSecret
}
