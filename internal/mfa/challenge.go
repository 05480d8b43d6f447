package mfa

import (
	"context"
	"time"

	"github.com/google/uuid"

	"trustcore/internal/mfa/domain"
	"trustcore/internal/mfa/repository"
	"trustcore/internal/security"
)

// MaxAttempts is the number of wrong answers after which a challenge is discarded.
const MaxAttempts = 5

// ErrChallengeNotFound is returned for unknown, consumed or expired challenges.
var ErrChallengeNotFound = security.NewKindError(security.ErrNotFound, "mfa challenge not found")

// Challenges issues and answers one-time code challenges. The code is returned
// once to the caller for delivery; only its hash is stored.
type Challenges struct {
	repo repository.Repository
	ttl  time.Duration
	nowF func() time.Time
}

// NewChallenges returns a Challenges backed by repo. A zero ttl selects
// repository.DefaultChallengeTTL.
func NewChallenges(repo repository.Repository, ttl time.Duration, now func() time.Time) *Challenges {
	if ttl <= 0 {
		ttl = repository.DefaultChallengeTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Challenges{repo: repo, ttl: ttl, nowF: now}
}

// Issue creates a challenge for subject and returns its id and the plaintext code.
func (c *Challenges) Issue(ctx context.Context, subject string) (id, code string, err error) {
	code, err = GenerateCode()
	if err != nil {
		return "", "", err
	}
	now := c.nowF().UTC()
	ch := &domain.Challenge{
		ID:        uuid.New().String(),
		Subject:   subject,
		CodeHash:  HashCode(code),
		ExpiresAt: now.Add(c.ttl),
		CreatedAt: now,
	}
	if err := c.repo.Create(ctx, ch); err != nil {
		return "", "", err
	}
	return ch.ID, code, nil
}

// Verify answers challenge id with code. A correct answer consumes the challenge
// and returns its subject; of concurrent correct answers only the one that
// deletes the challenge succeeds. Wrong answers count toward MaxAttempts.
func (c *Challenges) Verify(ctx context.Context, id, code string) (string, error) {
	ch, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if ch == nil {
		return "", ErrChallengeNotFound
	}
	if ch.Expired(c.nowF()) {
		_, _ = c.repo.Delete(ctx, id)
		return "", ErrCodeExpired
	}
	if ch.Attempts >= MaxAttempts {
		_, _ = c.repo.Delete(ctx, id)
		return "", ErrChallengeNotFound
	}
	if !CodeMatchesHash(code, ch.CodeHash) {
		n, err := c.repo.IncrementAttempts(ctx, id)
		if err != nil {
			return "", err
		}
		if n >= MaxAttempts {
			_, _ = c.repo.Delete(ctx, id)
		}
		return "", ErrCodeMismatch
	}
	consumed, err := c.repo.Delete(ctx, id)
	if err != nil {
		return "", err
	}
	if !consumed {
		return "", ErrChallengeNotFound
	}
	return ch.Subject, nil
}

// Sweep removes expired challenges.
func (c *Challenges) Sweep(ctx context.Context) (int, error) {
	return c.repo.DeleteExpired(ctx, c.nowF())
}
