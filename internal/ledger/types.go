package ledger

import (
	"context"

	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/store"
)

// Entities is the slice of the identity store the ledger depends on.
type Entities interface {
	Lookup(ctx context.Context, tx store.Tx, taxID string) (domain.Entity, error)
	ResolveOrMaterialize(ctx context.Context, tx store.Tx, ref domain.EntityRef) (domain.Entity, error)
}

// ChargeView is a charge joined with both parties.
type ChargeView struct {
	domain.Charge
	Debtor   domain.Entity `json:"debtor"`
	Creditor domain.Entity `json:"creditor"`
}

var (
	errNotCreditor      = domain.E(domain.KindNotCreditor, "requester is not the creditor")
	errSelfCharge       = domain.E(domain.KindSelfCharge, "debtor and creditor must differ")
	errCreditorMismatch = domain.E(domain.KindCreditorMismatch, "creditor does not match the charge")
	errAlreadyPaid      = domain.E(domain.KindAlreadyPaid, "charge is already paid")
	errChargeNotFound   = domain.E(domain.KindNotFound, "charge does not exist")
	errCreditorNotFound = domain.E(domain.KindNotFound, "creditor does not exist")
	errNoCharges        = domain.E(domain.KindNoneFound, "charges not found")
)
