// Package ledger records charges between entities and drives their
// ACTIVE to PAID lifecycle.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/ids"
	"xyzcredito.org/internal/store"
	"xyzcredito.org/internal/taxid"
)

// Service implements charge operations on top of a store transaction.
type Service struct {
	entities Entities
	now      func() time.Time
	newID    func() string
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

// WithIDGenerator overrides charge id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService constructs Service.
func NewService(entities Entities, opts ...Option) *Service {
	s := &Service{entities: entities, now: time.Now, newID: ids.NewCharge}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create records a new active charge. Only the creditor may create it; an
// unregistered debtor is materialized as a stub in the same transaction.
func (s *Service) Create(ctx context.Context, tx store.Tx, requester domain.Identity, debtor domain.EntityRef, creditorTaxID string, amount domain.Amount) (domain.Charge, error) {
	creditorTaxID = taxid.Normalize(creditorTaxID)
	if creditorTaxID == "" || creditorTaxID != requester.TaxID {
		return domain.Charge{}, errNotCreditor
	}
	if !amount.IsPositive() {
		return domain.Charge{}, domain.E(domain.KindInvalidAmount, "amount must be positive")
	}
	creditor, err := s.entities.Lookup(ctx, tx, creditorTaxID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Charge{}, errCreditorNotFound
		}
		return domain.Charge{}, err
	}
	debtorEntity, err := s.entities.ResolveOrMaterialize(ctx, tx, debtor)
	if err != nil {
		return domain.Charge{}, err
	}
	if debtorEntity.TaxID == creditor.TaxID {
		return domain.Charge{}, errSelfCharge
	}

	c := domain.Charge{
		ID:            s.newID(),
		DebtorTaxID:   debtorEntity.TaxID,
		CreditorTaxID: creditor.TaxID,
		Amount:        amount,
		IsActive:      true,
		CreatedAt:     s.now().UTC(),
	}
	if err := tx.Charges().Create(ctx, c); err != nil {
		return domain.Charge{}, fmt.Errorf("create charge: %w", err)
	}
	return c, nil
}

// Get returns a charge by id.
func (s *Service) Get(ctx context.Context, tx store.Tx, id string) (domain.Charge, error) {
	if !ids.ValidCharge(id) {
		return domain.Charge{}, errChargeNotFound
	}
	c, err := tx.Charges().Find(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return domain.Charge{}, errChargeNotFound
		}
		return domain.Charge{}, fmt.Errorf("find charge: %w", err)
	}
	return c, nil
}

// Filter returns every charge matching f, oldest first, joined with its
// parties. An empty result is an error.
func (s *Service) Filter(ctx context.Context, tx store.Tx, f domain.ChargeFilter) ([]ChargeView, error) {
	f.DebtorTaxID = normalizePtr(f.DebtorTaxID)
	f.CreditorTaxID = normalizePtr(f.CreditorTaxID)

	list, err := tx.Charges().Filter(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("filter charges: %w", err)
	}
	if len(list) == 0 {
		return nil, errNoCharges
	}

	parties := make(map[string]domain.Entity)
	party := func(taxID string) (domain.Entity, error) {
		if e, ok := parties[taxID]; ok {
			return e, nil
		}
		e, err := s.entities.Lookup(ctx, tx, taxID)
		if err != nil {
			return domain.Entity{}, fmt.Errorf("load party %s: %w", taxID, err)
		}
		parties[taxID] = e
		return e, nil
	}

	out := make([]ChargeView, 0, len(list))
	for _, c := range list {
		d, err := party(c.DebtorTaxID)
		if err != nil {
			return nil, err
		}
		cr, err := party(c.CreditorTaxID)
		if err != nil {
			return nil, err
		}
		out = append(out, ChargeView{Charge: c, Debtor: d, Creditor: cr})
	}
	return out, nil
}

// Settle marks an active charge as paid. The caller must be the creditor and
// must name the creditor on record.
func (s *Service) Settle(ctx context.Context, tx store.Tx, requester domain.Identity, id, assertedCreditor string) (domain.Charge, error) {
	c, err := s.Get(ctx, tx, id)
	if err != nil {
		return domain.Charge{}, err
	}
	if c.CreditorTaxID != requester.TaxID {
		return domain.Charge{}, errNotCreditor
	}
	if taxid.Normalize(assertedCreditor) != c.CreditorTaxID {
		return domain.Charge{}, errCreditorMismatch
	}
	if !c.IsActive {
		return domain.Charge{}, errAlreadyPaid
	}

	paidAt := s.now().UTC()
	if paidAt.Before(c.CreatedAt) {
		paidAt = c.CreatedAt
	}
	if err := tx.Charges().MarkPaid(ctx, c.ID, paidAt); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return domain.Charge{}, errAlreadyPaid
		case errors.Is(err, store.ErrNoRows):
			return domain.Charge{}, errChargeNotFound
		}
		return domain.Charge{}, fmt.Errorf("mark paid: %w", err)
	}
	c.IsActive = false
	c.PaidAt = &paidAt
	return c, nil
}

func normalizePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := taxid.Normalize(*p)
	return &v
}
