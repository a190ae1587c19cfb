package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"xyzcredito.org/internal/auth"
	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/store"
	"xyzcredito.org/internal/store/memory"
)

func setup(t *testing.T) (*Service, store.Store) {
	t.Helper()
	return NewService(auth.NewHasher(bcrypt.MinCost)), memory.New()
}

func run(t *testing.T, s store.Store, fn func(ctx context.Context, tx store.Tx) error) error {
	t.Helper()
	return s.InTx(context.Background(), fn)
}

func TestRegisterNormalizesAndDerivesCategory(t *testing.T) {
	svc, st := setup(t)

	cases := []struct {
		raw      string
		digits   string
		category domain.Category
	}{
		{"809.626.074-01", "80962607401", domain.CategoryIndividual},
		{"03497961786765", "03497961786765", domain.CategoryOrganization},
	}
	for _, tc := range cases {
		err := run(t, st, func(ctx context.Context, tx store.Tx) error {
			e, err := svc.Register(ctx, tx, tc.raw, "root", "123")
			require.NoError(t, err)
			assert.Equal(t, tc.digits, e.TaxID)
			assert.Equal(t, tc.category, e.Category)
			assert.True(t, e.HasCredential())
			assert.NotEqual(t, "123", e.CredentialHash)

			got, err := svc.Lookup(ctx, tx, tc.digits)
			require.NoError(t, err)
			assert.Equal(t, tc.digits, got.TaxID)
			assert.Equal(t, tc.category, got.Category)
			return nil
		})
		require.NoError(t, err)
	}
}

func TestRegisterRejectsDuplicatesAndBadTaxIDs(t *testing.T) {
	svc, st := setup(t)

	err := run(t, st, func(ctx context.Context, tx store.Tx) error {
		_, err := svc.Register(ctx, tx, "80962607401", "root", "123")
		return err
	})
	require.NoError(t, err)

	err = run(t, st, func(ctx context.Context, tx store.Tx) error {
		_, err := svc.Register(ctx, tx, "809.626.074-01", "other", "456")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)

	err = run(t, st, func(ctx context.Context, tx store.Tx) error {
		_, err := svc.Register(ctx, tx, "12345678900", "bad", "123")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTaxID)
}

func TestStubCanBeClaimed(t *testing.T) {
	svc, st := setup(t)

	err := run(t, st, func(ctx context.Context, tx store.Tx) error {
		stub, err := svc.ResolveOrMaterialize(ctx, tx, domain.EntityRef{TaxID: "03497961786765", Name: "X"})
		require.NoError(t, err)
		assert.False(t, stub.HasCredential())
		assert.Equal(t, domain.CategoryOrganization, stub.Category)

		_, err = svc.VerifyCredential(ctx, tx, "03497961786765", "")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

		claimed, err := svc.Register(ctx, tx, "03497961786765", "X Corp", "secret")
		require.NoError(t, err)
		assert.Equal(t, "X Corp", claimed.Name)

		_, err = svc.VerifyCredential(ctx, tx, "03497961786765", "secret")
		assert.NoError(t, err)
		return nil
	})
	require.NoError(t, err)
}

func TestVerifyCredentialCollapsesFailures(t *testing.T) {
	svc, st := setup(t)

	err := run(t, st, func(ctx context.Context, tx store.Tx) error {
		_, err := svc.Register(ctx, tx, "80962607401", "root", "123")
		require.NoError(t, err)

		_, errWrong := svc.VerifyCredential(ctx, tx, "80962607401", "nope")
		_, errMissing := svc.VerifyCredential(ctx, tx, "52998224725", "123")
		assert.ErrorIs(t, errWrong, domain.ErrInvalidCredentials)
		assert.ErrorIs(t, errMissing, domain.ErrInvalidCredentials)
		assert.Equal(t, errWrong.Error(), errMissing.Error())
		return nil
	})
	require.NoError(t, err)
}

func TestSetCredential(t *testing.T) {
	svc, st := setup(t)

	err := run(t, st, func(ctx context.Context, tx store.Tx) error {
		_, err := svc.SetCredential(ctx, tx, "80962607401", "123")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = svc.ResolveOrMaterialize(ctx, tx, domain.EntityRef{TaxID: "80962607401", Name: "root"})
		require.NoError(t, err)
		_, err = svc.SetCredential(ctx, tx, "80962607401", "123")
		require.NoError(t, err)
		_, err = svc.VerifyCredential(ctx, tx, "80962607401", "123")
		assert.NoError(t, err)
		return nil
	})
	require.NoError(t, err)
}

func TestListByCategory(t *testing.T) {
	svc, st := setup(t)

	err := run(t, st, func(ctx context.Context, tx store.Tx) error {
		_, err := svc.ListByCategory(ctx, tx, domain.CategoryIndividual, 10)
		assert.ErrorIs(t, err, domain.ErrNoneFound)

		for _, id := range []string{"80962607401", "52998224725", "11144477735"} {
			_, err := svc.Register(ctx, tx, id, "p"+id, "")
			require.NoError(t, err)
		}
		_, err = svc.Register(ctx, tx, "11222333000181", "org", "")
		require.NoError(t, err)

		people, err := svc.ListByCategory(ctx, tx, domain.CategoryIndividual, 2)
		require.NoError(t, err)
		assert.Len(t, people, 2)

		orgs, err := svc.ListByCategory(ctx, tx, domain.CategoryOrganization, 0)
		require.NoError(t, err)
		require.Len(t, orgs, 1)
		assert.Equal(t, "11222333000181", orgs[0].TaxID)

		all, err := svc.ListByCategory(ctx, tx, "", 0)
		require.NoError(t, err)
		assert.Len(t, all, 4)

		_, err = svc.ListByCategory(ctx, tx, "pf", 10)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		return nil
	})
	require.NoError(t, err)
}

// staleTx hides committed rows from the next misses Find calls, the view a
// transaction has when another one registers the same tax id concurrently.
type staleTx struct {
	store.Tx
	misses int
}

func (s *staleTx) Entities() store.EntityStore {
	return staleEntities{EntityStore: s.Tx.Entities(), tx: s}
}

type staleEntities struct {
	store.EntityStore
	tx *staleTx
}

func (e staleEntities) Find(ctx context.Context, taxID string) (domain.Entity, error) {
	if e.tx.misses > 0 {
		e.tx.misses--
		return domain.Entity{}, store.ErrNoRows
	}
	return e.EntityStore.Find(ctx, taxID)
}

func TestConcurrentWritesNeverReplaceCredential(t *testing.T) {
	svc, st := setup(t)

	err := run(t, st, func(ctx context.Context, tx store.Tx) error {
		_, err := svc.Register(ctx, tx, "80962607401", "root", "123")
		return err
	})
	require.NoError(t, err)

	err = run(t, st, func(ctx context.Context, tx store.Tx) error {
		_, err := svc.Register(ctx, &staleTx{Tx: tx, misses: 1}, "80962607401", "intruder", "456")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)

	err = run(t, st, func(ctx context.Context, tx store.Tx) error {
		e, err := svc.ResolveOrMaterialize(ctx, &staleTx{Tx: tx, misses: 1}, domain.EntityRef{TaxID: "80962607401", Name: "debtor"})
		require.NoError(t, err)
		assert.Equal(t, "root", e.Name)
		assert.True(t, e.HasCredential())

		_, err = svc.VerifyCredential(ctx, tx, "80962607401", "123")
		assert.NoError(t, err)
		_, err = svc.VerifyCredential(ctx, tx, "80962607401", "456")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		return nil
	})
	require.NoError(t, err)
}
