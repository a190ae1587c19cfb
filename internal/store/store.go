// Package store describes the persistence operations required by the core.
// Every top-level operation runs inside one InTx unit of work.
package store

import (
	"context"
	"errors"
	"time"

	"xyzcredito.org/internal/domain"
)

// ErrNoRows is returned by point lookups that match nothing.
var ErrNoRows = errors.New("store: no rows")

// ErrConflict is returned when a conditional write matched nothing
// or an insert violated a uniqueness constraint.
var ErrConflict = errors.New("store: conflict")

// Store opens atomic units of work.
type Store interface {
	// InTx runs fn in a transaction. A non-nil error from fn rolls back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// Tx exposes the record collections inside a unit of work.
type Tx interface {
	Entities() EntityStore
	Tokens() TokenStore
	Charges() ChargeStore
}

// EntityStore is owned by the identity package.
type EntityStore interface {
	Find(ctx context.Context, taxID string) (domain.Entity, error)
	// Claim inserts the entity, or takes over an existing row that has no
	// credential yet by replacing its name and credential hash. It returns
	// ErrConflict when the existing row already carries a credential.
	Claim(ctx context.Context, e domain.Entity) error
	// CreateStub inserts e without a credential and never touches an
	// existing row; a taken tax id is ErrConflict.
	CreateStub(ctx context.Context, e domain.Entity) error
	UpdateCredential(ctx context.Context, taxID, hash string) error
	// List returns up to limit entities; empty category means every category.
	List(ctx context.Context, category domain.Category, limit int) ([]domain.Entity, error)
}

// TokenStore is owned by the auth package.
type TokenStore interface {
	Create(ctx context.Context, tok domain.AccessToken) error
	Find(ctx context.Context, id string) (domain.AccessToken, error)
	DeleteByOwner(ctx context.Context, ownerTaxID string) (int64, error)
}

// ChargeStore is owned by the ledger package.
type ChargeStore interface {
	Create(ctx context.Context, c domain.Charge) error
	Find(ctx context.Context, id string) (domain.Charge, error)
	Filter(ctx context.Context, f domain.ChargeFilter) ([]domain.Charge, error)
	// MarkPaid flips an active charge to paid. It returns ErrConflict when the
	// charge is already paid and ErrNoRows when it does not exist.
	MarkPaid(ctx context.Context, id string, paidAt time.Time) error
}
