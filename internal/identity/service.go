// Package identity owns Entity records: registration, credentials, lookup
// and the stub entities materialized for unregistered debtors.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/store"
	"xyzcredito.org/internal/taxid"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Hasher is the credential hashing primitive.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// Service implements the identity store operations.
type Service struct {
	hasher Hasher
	now    func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs Service.
func NewService(hasher Hasher, opts ...Option) *Service {
	s := &Service{hasher: hasher, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an entity, or claims a stub that has no credential yet.
// An empty credential registers without one.
func (s *Service) Register(ctx context.Context, tx store.Tx, rawTaxID, name, credential string) (domain.Entity, error) {
	digits, category, err := taxid.Parse(rawTaxID)
	if err != nil {
		return domain.Entity{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Entity{}, domain.E(domain.KindInvalidInput, "name is required")
	}

	existing, err := tx.Entities().Find(ctx, digits)
	switch {
	case err == nil:
		if existing.HasCredential() {
			return domain.Entity{}, domain.E(domain.KindAlreadyRegistered, "entity already exists")
		}
	case errors.Is(err, store.ErrNoRows):
		existing = domain.Entity{TaxID: digits, Category: category, CreatedAt: s.now().UTC()}
	default:
		return domain.Entity{}, fmt.Errorf("find entity: %w", err)
	}

	existing.Name = name
	if credential != "" {
		hash, err := s.hasher.Hash(credential)
		if err != nil {
			return domain.Entity{}, fmt.Errorf("hash credential: %w", err)
		}
		existing.CredentialHash = hash
	}
	if err := tx.Entities().Claim(ctx, existing); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Entity{}, domain.E(domain.KindAlreadyRegistered, "entity already exists")
		}
		return domain.Entity{}, fmt.Errorf("save entity: %w", err)
	}
	return existing, nil
}

// Lookup finds an entity by tax id in any formatting.
func (s *Service) Lookup(ctx context.Context, tx store.Tx, rawTaxID string) (domain.Entity, error) {
	digits := taxid.Normalize(rawTaxID)
	if digits == "" {
		return domain.Entity{}, domain.E(domain.KindNotFound, "entity does not exist")
	}
	e, err := tx.Entities().Find(ctx, digits)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return domain.Entity{}, domain.E(domain.KindNotFound, "entity does not exist")
		}
		return domain.Entity{}, fmt.Errorf("find entity: %w", err)
	}
	return e, nil
}

// VerifyCredential checks a login attempt. Unknown entity, stub without a
// credential and wrong credential are indistinguishable to the caller.
func (s *Service) VerifyCredential(ctx context.Context, tx store.Tx, rawTaxID, candidate string) (domain.Entity, error) {
	denied := domain.E(domain.KindInvalidCredentials, "invalid credentials")
	e, err := s.Lookup(ctx, tx, rawTaxID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Entity{}, denied
		}
		return domain.Entity{}, err
	}
	if !e.HasCredential() || !s.hasher.Verify(candidate, e.CredentialHash) {
		return domain.Entity{}, denied
	}
	return e, nil
}

// SetCredential overwrites the credential of an existing entity, stubs included.
func (s *Service) SetCredential(ctx context.Context, tx store.Tx, rawTaxID, credential string) (domain.Entity, error) {
	e, err := s.Lookup(ctx, tx, rawTaxID)
	if err != nil {
		return domain.Entity{}, err
	}
	if credential == "" {
		return domain.Entity{}, domain.E(domain.KindInvalidInput, "password is required")
	}
	hash, err := s.hasher.Hash(credential)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("hash credential: %w", err)
	}
	if err := tx.Entities().UpdateCredential(ctx, e.TaxID, hash); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return domain.Entity{}, domain.E(domain.KindNotFound, "entity does not exist")
		}
		return domain.Entity{}, fmt.Errorf("update credential: %w", err)
	}
	e.CredentialHash = hash
	return e, nil
}

// ListByCategory returns up to limit entities. An empty result is an error.
func (s *Service) ListByCategory(ctx context.Context, tx store.Tx, category domain.Category, limit int) ([]domain.Entity, error) {
	if category != "" && !category.Valid() {
		return nil, domain.E(domain.KindInvalidInput, "unknown category")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	list, err := tx.Entities().List(ctx, category, limit)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	if len(list) == 0 {
		return nil, domain.E(domain.KindNoneFound, "entities not found")
	}
	return list, nil
}

// ResolveOrMaterialize returns the entity named by ref, creating a stub
// without credential when it is not registered yet.
func (s *Service) ResolveOrMaterialize(ctx context.Context, tx store.Tx, ref domain.EntityRef) (domain.Entity, error) {
	digits, category, err := taxid.Parse(ref.TaxID)
	if err != nil {
		return domain.Entity{}, err
	}
	e, err := tx.Entities().Find(ctx, digits)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, store.ErrNoRows) {
		return domain.Entity{}, fmt.Errorf("find entity: %w", err)
	}
	name := strings.TrimSpace(ref.Name)
	if name == "" {
		return domain.Entity{}, domain.E(domain.KindInvalidInput, "debtor name is required")
	}
	stub := domain.Entity{
		TaxID:     digits,
		Name:      name,
		Category:  category,
		CreatedAt: s.now().UTC(),
	}
	if err := tx.Entities().CreateStub(ctx, stub); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return domain.Entity{}, fmt.Errorf("save stub entity: %w", err)
		}
		// Registered concurrently; use the winner's row.
		return s.Lookup(ctx, tx, digits)
	}
	return stub, nil
}
