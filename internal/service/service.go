// Package service is the operation facade consumed by transports. Every
// operation runs as one unit of work against the store, and every operation
// that acts on behalf of a caller passes through the authorization gate first.
package service

import (
	"context"
	"time"

	"xyzcredito.org/internal/audit"
	"xyzcredito.org/internal/auth"
	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/identity"
	"xyzcredito.org/internal/ledger"
	"xyzcredito.org/internal/obs"
	"xyzcredito.org/internal/store"
	"xyzcredito.org/internal/taxid"
)

// Session is returned by a successful login.
type Session struct {
	Token string `json:"token"`
	TaxID string `json:"tax_id"`
	Name  string `json:"name"`
}

// Service wires the token authority, identity store and charge ledger.
type Service struct {
	store    store.Store
	tokens   *auth.Tokens
	gate     *auth.Gate
	entities *identity.Service
	charges  *ledger.Service
}

// Option configures Service.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time source for every component (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(o *options) {
		if fn != nil {
			o.now = fn
		}
	}
}

// New constructs the facade over st.
func New(st store.Store, hasher identity.Hasher, opts ...Option) *Service {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	entities := identity.NewService(hasher, identity.WithClock(o.now))
	tokens := auth.NewTokens(auth.WithClock(o.now))
	return &Service{
		store:    st,
		tokens:   tokens,
		gate:     auth.NewGate(tokens, entities),
		entities: entities,
		charges:  ledger.NewService(entities, ledger.WithClock(o.now)),
	}
}

// Ping reports store readiness.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// authorized runs fn inside one transaction after resolving token. The
// returned context carries the caller identity for audit logging.
func (s *Service) authorized(ctx context.Context, token string, fn func(ctx context.Context, tx store.Tx, caller domain.Identity) error) (context.Context, error) {
	out := ctx
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		caller, err := s.gate.Authorize(ctx, tx, token)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotAuthorized {
				obs.AuthDenied.WithLabelValues("token").Inc()
			}
			return err
		}
		out = auth.ContextWithIdentity(ctx, caller)
		return fn(out, tx, caller)
	})
	return out, err
}

// RegisterEntity creates an entity or claims a stub.
func (s *Service) RegisterEntity(ctx context.Context, name, rawTaxID, credential string) (domain.Entity, error) {
	var e domain.Entity
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		e, err = s.entities.Register(ctx, tx, rawTaxID, name, credential)
		return err
	})
	if err != nil {
		return domain.Entity{}, err
	}
	_ = audit.LogEvent(ctx, audit.EntityRegistered, map[string]any{
		"tax_id":   e.TaxID,
		"category": string(e.Category),
	})
	return e, nil
}

// Login verifies the credential and issues a fresh token.
func (s *Service) Login(ctx context.Context, rawTaxID, credential string) (Session, error) {
	var sess Session
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		e, err := s.entities.VerifyCredential(ctx, tx, rawTaxID, credential)
		if err != nil {
			return err
		}
		token, err := s.tokens.Issue(ctx, tx, e.TaxID)
		if err != nil {
			return err
		}
		sess = Session{Token: token, TaxID: e.TaxID, Name: e.Name}
		return nil
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindInvalidCredentials {
			obs.AuthDenied.WithLabelValues("credentials").Inc()
		}
		return Session{}, err
	}
	obs.TokensIssued.Inc()
	_ = audit.LogEvent(ctx, audit.Login, map[string]any{"tax_id": sess.TaxID})
	return sess, nil
}

// Logout revokes every token of the caller.
func (s *Service) Logout(ctx context.Context, token string) error {
	actx, err := s.authorized(ctx, token, func(ctx context.Context, tx store.Tx, caller domain.Identity) error {
		return s.tokens.RevokeAll(ctx, tx, caller.TaxID)
	})
	if err != nil {
		return err
	}
	_ = audit.LogEvent(actx, audit.Logout, nil)
	return nil
}

// CurrentEntity returns the entity owning token.
func (s *Service) CurrentEntity(ctx context.Context, token string) (domain.Entity, error) {
	var e domain.Entity
	_, err := s.authorized(ctx, token, func(ctx context.Context, tx store.Tx, caller domain.Identity) error {
		var err error
		e, err = s.entities.Lookup(ctx, tx, caller.TaxID)
		return err
	})
	return e, err
}

// GetEntity looks up any entity by tax id.
func (s *Service) GetEntity(ctx context.Context, token, rawTaxID string) (domain.Entity, error) {
	var e domain.Entity
	_, err := s.authorized(ctx, token, func(ctx context.Context, tx store.Tx, _ domain.Identity) error {
		digits, _, err := taxid.Parse(rawTaxID)
		if err != nil {
			return err
		}
		e, err = s.entities.Lookup(ctx, tx, digits)
		return err
	})
	return e, err
}

// ListEntities lists entities of category, every category when empty.
func (s *Service) ListEntities(ctx context.Context, token string, category domain.Category, limit int) ([]domain.Entity, error) {
	var list []domain.Entity
	_, err := s.authorized(ctx, token, func(ctx context.Context, tx store.Tx, _ domain.Identity) error {
		var err error
		list, err = s.entities.ListByCategory(ctx, tx, category, limit)
		return err
	})
	return list, err
}

// SetCredential replaces the caller's own credential.
func (s *Service) SetCredential(ctx context.Context, token, credential string) error {
	actx, err := s.authorized(ctx, token, func(ctx context.Context, tx store.Tx, caller domain.Identity) error {
		_, err := s.entities.SetCredential(ctx, tx, caller.TaxID, credential)
		return err
	})
	if err != nil {
		return err
	}
	_ = audit.LogEvent(actx, audit.CredentialChanged, nil)
	return nil
}

// CreateCharge records a charge owed by debtor to the caller.
func (s *Service) CreateCharge(ctx context.Context, token string, debtor domain.EntityRef, creditorTaxID string, amount domain.Amount) (domain.Charge, error) {
	var c domain.Charge
	actx, err := s.authorized(ctx, token, func(ctx context.Context, tx store.Tx, caller domain.Identity) error {
		var err error
		c, err = s.charges.Create(ctx, tx, caller, debtor, creditorTaxID, amount)
		return err
	})
	if err != nil {
		return domain.Charge{}, err
	}
	obs.ChargesCreated.Inc()
	_ = audit.LogEvent(actx, audit.ChargeCreated, map[string]any{
		"charge_id": c.ID,
		"debtor":    c.DebtorTaxID,
		"amount":    c.Amount.String(),
	})
	return c, nil
}

// GetCharge returns any charge by id.
func (s *Service) GetCharge(ctx context.Context, token, id string) (domain.Charge, error) {
	var c domain.Charge
	_, err := s.authorized(ctx, token, func(ctx context.Context, tx store.Tx, _ domain.Identity) error {
		var err error
		c, err = s.charges.Get(ctx, tx, id)
		return err
	})
	return c, err
}

// FilterCharges returns the charges matching f with both parties attached.
func (s *Service) FilterCharges(ctx context.Context, token string, f domain.ChargeFilter) ([]ledger.ChargeView, error) {
	var list []ledger.ChargeView
	_, err := s.authorized(ctx, token, func(ctx context.Context, tx store.Tx, _ domain.Identity) error {
		var err error
		list, err = s.charges.Filter(ctx, tx, f)
		return err
	})
	return list, err
}

// SettleCharge marks the charge paid on behalf of its creditor.
func (s *Service) SettleCharge(ctx context.Context, token, id, creditorTaxID string) (domain.Charge, error) {
	var c domain.Charge
	actx, err := s.authorized(ctx, token, func(ctx context.Context, tx store.Tx, caller domain.Identity) error {
		var err error
		c, err = s.charges.Settle(ctx, tx, caller, id, creditorTaxID)
		return err
	})
	if err != nil {
		return domain.Charge{}, err
	}
	obs.ChargesSettled.Inc()
	_ = audit.LogEvent(actx, audit.ChargeSettled, map[string]any{"charge_id": c.ID})
	return c, nil
}
