package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/store"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle (used with sqlmock in tests).
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(ctx, &tx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type tx struct{ tx *sql.Tx }

func (t *tx) Entities() store.EntityStore { return &entityStore{tx: t.tx} }
func (t *tx) Tokens() store.TokenStore    { return &tokenStore{tx: t.tx} }
func (t *tx) Charges() store.ChargeStore  { return &chargeStore{tx: t.tx} }

// Entity store -------------------------------------------------------------
type entityStore struct{ tx *sql.Tx }

func (s *entityStore) Find(ctx context.Context, taxID string) (domain.Entity, error) {
	row := s.tx.QueryRowContext(ctx,
		`select tax_id, name, category, coalesce(credential_hash, ''), created_at from entities where tax_id=$1`, taxID)
	var (
		e   domain.Entity
		cat string
	)
	if err := row.Scan(&e.TaxID, &e.Name, &cat, &e.CredentialHash, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Entity{}, store.ErrNoRows
		}
		return domain.Entity{}, err
	}
	e.Category = domain.Category(cat)
	return e, nil
}

// Claim only updates rows still without a credential, so a concurrent
// registration that committed first is never overwritten.
func (s *entityStore) Claim(ctx context.Context, e domain.Entity) error {
	res, err := s.tx.ExecContext(ctx, `
		insert into entities(tax_id, name, category, credential_hash)
		values ($1,$2,$3,nullif($4,''))
		on conflict (tax_id) do update
		set name = excluded.name, credential_hash = excluded.credential_hash
		where entities.credential_hash is null
	`, e.TaxID, e.Name, string(e.Category), e.CredentialHash)
	if err != nil {
		return err
	}
	return expectAffected(res, store.ErrConflict)
}

func (s *entityStore) CreateStub(ctx context.Context, e domain.Entity) error {
	res, err := s.tx.ExecContext(ctx, `
		insert into entities(tax_id, name, category)
		values ($1,$2,$3)
		on conflict (tax_id) do nothing
	`, e.TaxID, e.Name, string(e.Category))
	if err != nil {
		return err
	}
	return expectAffected(res, store.ErrConflict)
}

func (s *entityStore) UpdateCredential(ctx context.Context, taxID, hash string) error {
	res, err := s.tx.ExecContext(ctx,
		`update entities set credential_hash=nullif($2,'') where tax_id=$1`, taxID, hash)
	if err != nil {
		return err
	}
	return expectAffected(res, store.ErrNoRows)
}

func (s *entityStore) List(ctx context.Context, category domain.Category, limit int) ([]domain.Entity, error) {
	rows, err := s.tx.QueryContext(ctx, `
		select tax_id, name, category, coalesce(credential_hash, ''), created_at
		from entities
		where ($1 = '' or category = $1)
		order by created_at asc, tax_id asc
		limit $2
	`, string(category), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Entity
	for rows.Next() {
		var (
			e   domain.Entity
			cat string
		)
		if err := rows.Scan(&e.TaxID, &e.Name, &cat, &e.CredentialHash, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Category = domain.Category(cat)
		res = append(res, e)
	}
	return res, rows.Err()
}

// Token store --------------------------------------------------------------
type tokenStore struct{ tx *sql.Tx }

func (s *tokenStore) Create(ctx context.Context, tok domain.AccessToken) error {
	_, err := s.tx.ExecContext(ctx,
		`insert into access_tokens(id, owner_tax_id, verifier_hash, issued_at) values($1,$2,$3,$4)`,
		tok.ID, tok.OwnerTaxID, tok.VerifierHash, tok.IssuedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *tokenStore) Find(ctx context.Context, id string) (domain.AccessToken, error) {
	row := s.tx.QueryRowContext(ctx,
		`select id, owner_tax_id, verifier_hash, issued_at from access_tokens where id=$1`, id)
	var tok domain.AccessToken
	if err := row.Scan(&tok.ID, &tok.OwnerTaxID, &tok.VerifierHash, &tok.IssuedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AccessToken{}, store.ErrNoRows
		}
		return domain.AccessToken{}, err
	}
	return tok, nil
}

func (s *tokenStore) DeleteByOwner(ctx context.Context, ownerTaxID string) (int64, error) {
	res, err := s.tx.ExecContext(ctx, `delete from access_tokens where owner_tax_id=$1`, ownerTaxID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Charge store -------------------------------------------------------------
type chargeStore struct{ tx *sql.Tx }

const chargeColumns = `id, debtor_tax_id, creditor_tax_id, amount, is_active, created_at, paid_at`

func (s *chargeStore) Create(ctx context.Context, c domain.Charge) error {
	_, err := s.tx.ExecContext(ctx, `
		insert into charges(id, debtor_tax_id, creditor_tax_id, amount, is_active, created_at, paid_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, c.ID, c.DebtorTaxID, c.CreditorTaxID, int64(c.Amount), c.IsActive, c.CreatedAt, nullTime(c.PaidAt))
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *chargeStore) Find(ctx context.Context, id string) (domain.Charge, error) {
	row := s.tx.QueryRowContext(ctx, `select `+chargeColumns+` from charges where id=$1`, id)
	c, err := scanCharge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Charge{}, store.ErrNoRows
	}
	return c, err
}

func (s *chargeStore) Filter(ctx context.Context, f domain.ChargeFilter) ([]domain.Charge, error) {
	var (
		conds []string
		args  []any
	)
	if f.DebtorTaxID != nil {
		args = append(args, *f.DebtorTaxID)
		conds = append(conds, fmt.Sprintf("debtor_tax_id=$%d", len(args)))
	}
	if f.CreditorTaxID != nil {
		args = append(args, *f.CreditorTaxID)
		conds = append(conds, fmt.Sprintf("creditor_tax_id=$%d", len(args)))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		conds = append(conds, fmt.Sprintf("is_active=$%d", len(args)))
	}
	query := `select ` + chargeColumns + ` from charges`
	if len(conds) > 0 {
		query += ` where ` + strings.Join(conds, " and ")
	}
	query += ` order by created_at asc, id asc`

	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Charge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (s *chargeStore) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	// Conditional on is_active so concurrent settles cannot both win.
	res, err := s.tx.ExecContext(ctx,
		`update charges set is_active=false, paid_at=$2 where id=$1 and is_active=true`, id, paidAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var active bool
	err = s.tx.QueryRowContext(ctx, `select is_active from charges where id=$1`, id).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNoRows
	}
	if err != nil {
		return err
	}
	return store.ErrConflict
}

// --- helpers ---
type scanner interface {
	Scan(dest ...any) error
}

func scanCharge(row scanner) (domain.Charge, error) {
	var (
		c      domain.Charge
		amount int64
		paidAt sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.DebtorTaxID, &c.CreditorTaxID, &amount, &c.IsActive, &c.CreatedAt, &paidAt); err != nil {
		return domain.Charge{}, err
	}
	c.Amount = domain.Amount(amount)
	if paidAt.Valid {
		t := paidAt.Time
		c.PaidAt = &t
	}
	return c, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func expectAffected(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
