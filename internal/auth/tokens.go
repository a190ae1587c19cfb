package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/ids"
	"xyzcredito.org/internal/store"
)

const (
	tokenSeparator = "."
	secretBytes    = 16
)

// Tokens issues, resolves and revokes access tokens.
type Tokens struct {
	now   func() time.Time
	newID func() string
	rand  func([]byte) (int, error)
}

// TokensOption configures Tokens.
type TokensOption func(*Tokens)

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) TokensOption {
	return func(t *Tokens) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokens constructs a token authority.
func NewTokens(opts ...TokensOption) *Tokens {
	t := &Tokens{
		now:   time.Now,
		newID: ids.New,
		rand:  rand.Read,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Issue creates a token for owner and returns "id.secret". Only the hash of
// the secret is persisted.
func (t *Tokens) Issue(ctx context.Context, tx store.Tx, ownerTaxID string) (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := t.rand(raw); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	secret := hex.EncodeToString(raw)
	rec := domain.AccessToken{
		ID:           t.newID(),
		OwnerTaxID:   ownerTaxID,
		VerifierHash: hashSecret(secret),
		IssuedAt:     t.now().UTC(),
	}
	if err := tx.Tokens().Create(ctx, rec); err != nil {
		return "", fmt.Errorf("persist token: %w", err)
	}
	return rec.ID + tokenSeparator + secret, nil
}

// Resolve validates a presented token. Unknown ids and wrong secrets both
// yield ErrTokenNotFound.
func (t *Tokens) Resolve(ctx context.Context, tx store.Tx, token string) (domain.AccessToken, error) {
	id, secret, err := splitToken(token)
	if err != nil {
		return domain.AccessToken{}, err
	}
	rec, err := tx.Tokens().Find(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return domain.AccessToken{}, ErrTokenNotFound
		}
		return domain.AccessToken{}, err
	}
	if !secureCompareHash(rec.VerifierHash, secret) {
		return domain.AccessToken{}, ErrTokenNotFound
	}
	return rec, nil
}

// RevokeAll deletes every token of owner. Owners without tokens are a no-op.
func (t *Tokens) RevokeAll(ctx context.Context, tx store.Tx, ownerTaxID string) error {
	if _, err := tx.Tokens().DeleteByOwner(ctx, ownerTaxID); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	return nil
}

func splitToken(raw string) (id, secret string, err error) {
	parts := strings.Split(strings.TrimSpace(raw), tokenSeparator)
	if len(parts) != 2 {
		return "", "", ErrTokenMalformed
	}
	if parts[0] == "" || parts[1] == "" {
		return "", "", ErrTokenMalformed
	}
	return parts[0], parts[1], nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func secureCompareHash(expectedHash string, secret string) bool {
	actual := hashSecret(secret)
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}
