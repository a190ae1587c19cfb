// Package memory implements store.Store in process memory.
// Transactions are serialized and work on a copy that replaces the live state on commit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/store"
)

var _ store.Store = (*Store)(nil)

type state struct {
	entities map[string]domain.Entity
	tokens   map[string]domain.AccessToken
	charges  map[string]domain.Charge
}

func (s *state) clone() *state {
	out := &state{
		entities: make(map[string]domain.Entity, len(s.entities)),
		tokens:   make(map[string]domain.AccessToken, len(s.tokens)),
		charges:  make(map[string]domain.Charge, len(s.charges)),
	}
	for k, v := range s.entities {
		out.entities[k] = v
	}
	for k, v := range s.tokens {
		out.tokens[k] = v
	}
	for k, v := range s.charges {
		out.charges[k] = v
	}
	return out
}

// Store is a mutex-guarded in-memory store.
type Store struct {
	mu  sync.Mutex
	cur *state
	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		cur: &state{
			entities: make(map[string]domain.Entity),
			tokens:   make(map[string]domain.AccessToken),
			charges:  make(map[string]domain.Charge),
		},
		now: time.Now,
	}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.cur.clone()
	if err := fn(ctx, &tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.cur = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) Entities() store.EntityStore { return entityStore{t} }
func (t *tx) Tokens() store.TokenStore    { return tokenStore{t} }
func (t *tx) Charges() store.ChargeStore  { return chargeStore{t} }

// Entities ---------------------------------------------------------------
type entityStore struct{ t *tx }

func (s entityStore) Find(ctx context.Context, taxID string) (domain.Entity, error) {
	e, ok := s.t.st.entities[taxID]
	if !ok {
		return domain.Entity{}, store.ErrNoRows
	}
	return e, nil
}

func (s entityStore) Claim(ctx context.Context, e domain.Entity) error {
	if prev, ok := s.t.st.entities[e.TaxID]; ok {
		if prev.HasCredential() {
			return store.ErrConflict
		}
		prev.Name = e.Name
		prev.CredentialHash = e.CredentialHash
		s.t.st.entities[e.TaxID] = prev
		return nil
	}
	s.insert(e)
	return nil
}

func (s entityStore) CreateStub(ctx context.Context, e domain.Entity) error {
	if _, ok := s.t.st.entities[e.TaxID]; ok {
		return store.ErrConflict
	}
	e.CredentialHash = ""
	s.insert(e)
	return nil
}

func (s entityStore) insert(e domain.Entity) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.t.now().UTC()
	}
	s.t.st.entities[e.TaxID] = e
}

func (s entityStore) UpdateCredential(ctx context.Context, taxID, hash string) error {
	e, ok := s.t.st.entities[taxID]
	if !ok {
		return store.ErrNoRows
	}
	e.CredentialHash = hash
	s.t.st.entities[taxID] = e
	return nil
}

func (s entityStore) List(ctx context.Context, category domain.Category, limit int) ([]domain.Entity, error) {
	var res []domain.Entity
	for _, e := range s.t.st.entities {
		if category != "" && e.Category != category {
			continue
		}
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].TaxID < res[j].TaxID
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// Tokens -----------------------------------------------------------------
type tokenStore struct{ t *tx }

func (s tokenStore) Create(ctx context.Context, tok domain.AccessToken) error {
	if _, ok := s.t.st.tokens[tok.ID]; ok {
		return store.ErrConflict
	}
	s.t.st.tokens[tok.ID] = tok
	return nil
}

func (s tokenStore) Find(ctx context.Context, id string) (domain.AccessToken, error) {
	tok, ok := s.t.st.tokens[id]
	if !ok {
		return domain.AccessToken{}, store.ErrNoRows
	}
	return tok, nil
}

func (s tokenStore) DeleteByOwner(ctx context.Context, ownerTaxID string) (int64, error) {
	var n int64
	for id, tok := range s.t.st.tokens {
		if tok.OwnerTaxID == ownerTaxID {
			delete(s.t.st.tokens, id)
			n++
		}
	}
	return n, nil
}

// Charges ----------------------------------------------------------------
type chargeStore struct{ t *tx }

func (s chargeStore) Create(ctx context.Context, c domain.Charge) error {
	if _, ok := s.t.st.charges[c.ID]; ok {
		return store.ErrConflict
	}
	s.t.st.charges[c.ID] = copyCharge(c)
	return nil
}

func (s chargeStore) Find(ctx context.Context, id string) (domain.Charge, error) {
	c, ok := s.t.st.charges[id]
	if !ok {
		return domain.Charge{}, store.ErrNoRows
	}
	return copyCharge(c), nil
}

func (s chargeStore) Filter(ctx context.Context, f domain.ChargeFilter) ([]domain.Charge, error) {
	var res []domain.Charge
	for _, c := range s.t.st.charges {
		if f.DebtorTaxID != nil && c.DebtorTaxID != *f.DebtorTaxID {
			continue
		}
		if f.CreditorTaxID != nil && c.CreditorTaxID != *f.CreditorTaxID {
			continue
		}
		if f.IsActive != nil && c.IsActive != *f.IsActive {
			continue
		}
		res = append(res, copyCharge(c))
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (s chargeStore) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	c, ok := s.t.st.charges[id]
	if !ok {
		return store.ErrNoRows
	}
	if !c.IsActive {
		return store.ErrConflict
	}
	c.IsActive = false
	c.PaidAt = &paidAt
	s.t.st.charges[id] = c
	return nil
}

// copyCharge detaches PaidAt so callers cannot mutate stored state.
func copyCharge(c domain.Charge) domain.Charge {
	if c.PaidAt != nil {
		p := *c.PaidAt
		c.PaidAt = &p
	}
	return c
}
