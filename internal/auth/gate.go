package auth

import (
	"context"
	"errors"

	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/store"
)

// EntityLookup resolves a token owner to its entity.
type EntityLookup interface {
	Lookup(ctx context.Context, tx store.Tx, taxID string) (domain.Entity, error)
}

// Gate is the single authorization check used before every sensitive operation.
type Gate struct {
	tokens   *Tokens
	entities EntityLookup
}

// NewGate wires the token authority to the identity store.
func NewGate(tokens *Tokens, entities EntityLookup) *Gate {
	return &Gate{tokens: tokens, entities: entities}
}

// Authorize resolves token to the identity of its owner. Malformed, unknown
// and mismatched tokens, and tokens whose owner vanished, all fail with the
// same domain NotAuthorized error.
func (g *Gate) Authorize(ctx context.Context, tx store.Tx, token string) (domain.Identity, error) {
	rec, err := g.tokens.Resolve(ctx, tx, token)
	if err != nil {
		if errors.Is(err, ErrTokenMalformed) || errors.Is(err, ErrTokenNotFound) {
			return domain.Identity{}, domain.Wrap(domain.KindNotAuthorized, "", err)
		}
		return domain.Identity{}, err
	}
	ent, err := g.entities.Lookup(ctx, tx, rec.OwnerTaxID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Identity{}, domain.Wrap(domain.KindNotAuthorized, "", ErrTokenNotFound)
		}
		return domain.Identity{}, err
	}
	return domain.IdentityOf(ent), nil
}

// Tokens exposes the underlying authority for login and logout.
func (g *Gate) Tokens() *Tokens { return g.tokens }
