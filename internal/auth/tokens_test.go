package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/store"
	"xyzcredito.org/internal/store/memory"
)

func inTx(t *testing.T, s store.Store, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()
	if err := s.InTx(context.Background(), fn); err != nil {
		t.Fatalf("InTx: %v", err)
	}
}

func TestIssueAndResolve(t *testing.T) {
	s := memory.New()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tokens := NewTokens(WithClock(func() time.Time { return fixed }))

	var token string
	inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		var err error
		token, err = tokens.Issue(ctx, tx, "80962607401")
		return err
	})

	id, secret, ok := strings.Cut(token, ".")
	if !ok || id == "" || len(secret) != 32 {
		t.Fatalf("unexpected token shape: %q", token)
	}

	inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		rec, err := tx.Tokens().Find(ctx, id)
		if err != nil {
			return err
		}
		if rec.VerifierHash == secret || strings.Contains(rec.VerifierHash, secret) {
			t.Fatalf("raw secret persisted")
		}
		if !rec.IssuedAt.Equal(fixed) {
			t.Fatalf("unexpected issued_at: %v", rec.IssuedAt)
		}
		got, err := tokens.Resolve(ctx, tx, token)
		if err != nil {
			return err
		}
		if got.OwnerTaxID != "80962607401" {
			t.Fatalf("unexpected owner: %s", got.OwnerTaxID)
		}
		return nil
	})
}

func TestResolveFailures(t *testing.T) {
	s := memory.New()
	tokens := NewTokens()

	var token string
	inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		var err error
		token, err = tokens.Issue(ctx, tx, "80962607401")
		return err
	})
	id, _, _ := strings.Cut(token, ".")

	cases := map[string]error{
		"":                         ErrTokenMalformed,
		"no-separator":             ErrTokenMalformed,
		"a.b.c":                    ErrTokenMalformed,
		".secret":                  ErrTokenMalformed,
		id + ".":                   ErrTokenMalformed,
		"unknown.secret":           ErrTokenNotFound,
		id + ".wrongsecretwrongse": ErrTokenNotFound,
	}
	for in, want := range cases {
		inTx(t, s, func(ctx context.Context, tx store.Tx) error {
			if _, err := tokens.Resolve(ctx, tx, in); !errors.Is(err, want) {
				t.Fatalf("Resolve(%q): expected %v, got %v", in, want, err)
			}
			return nil
		})
	}
}

func TestRevokeAllRevokesEveryToken(t *testing.T) {
	s := memory.New()
	tokens := NewTokens()

	var first, second, other string
	inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		var err error
		if first, err = tokens.Issue(ctx, tx, "80962607401"); err != nil {
			return err
		}
		if second, err = tokens.Issue(ctx, tx, "80962607401"); err != nil {
			return err
		}
		other, err = tokens.Issue(ctx, tx, "52998224725")
		return err
	})

	inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tokens.RevokeAll(ctx, tx, "80962607401")
	})
	// Second revoke is a no-op.
	inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tokens.RevokeAll(ctx, tx, "80962607401")
	})

	inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		for _, tok := range []string{first, second} {
			if _, err := tokens.Resolve(ctx, tx, tok); !errors.Is(err, ErrTokenNotFound) {
				t.Fatalf("expected revoked token, got %v", err)
			}
		}
		if _, err := tokens.Resolve(ctx, tx, other); err != nil {
			t.Fatalf("other owner's token revoked: %v", err)
		}
		return nil
	})
}

type lookupFunc func(ctx context.Context, tx store.Tx, taxID string) (domain.Entity, error)

func (f lookupFunc) Lookup(ctx context.Context, tx store.Tx, taxID string) (domain.Entity, error) {
	return f(ctx, tx, taxID)
}

func TestGateCollapsesDenials(t *testing.T) {
	s := memory.New()
	tokens := NewTokens()
	known := map[string]domain.Entity{
		"80962607401": {TaxID: "80962607401", Name: "root", Category: domain.CategoryIndividual},
	}
	gate := NewGate(tokens, lookupFunc(func(ctx context.Context, tx store.Tx, taxID string) (domain.Entity, error) {
		e, ok := known[taxID]
		if !ok {
			return domain.Entity{}, domain.ErrNotFound
		}
		return e, nil
	}))

	var good, orphan string
	inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		var err error
		if good, err = tokens.Issue(ctx, tx, "80962607401"); err != nil {
			return err
		}
		orphan, err = tokens.Issue(ctx, tx, "52998224725")
		return err
	})

	inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		id, err := gate.Authorize(ctx, tx, good)
		if err != nil {
			return err
		}
		if id.TaxID != "80962607401" || id.Name != "root" {
			t.Fatalf("unexpected identity: %+v", id)
		}
		for _, tok := range []string{"garbage", "x.y", orphan} {
			_, err := gate.Authorize(ctx, tx, tok)
			if domain.KindOf(err) != domain.KindNotAuthorized {
				t.Fatalf("Authorize(%q): expected not authorized, got %v", tok, err)
			}
			if domain.DetailOf(err) != "" {
				t.Fatalf("denial leaks detail: %q", domain.DetailOf(err))
			}
		}
		return nil
	})
}
