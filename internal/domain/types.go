package domain

import (
	"time"
)

// Category is derived from the tax id shape: CPF for individuals, CNPJ for organizations.
type Category string

const (
	CategoryIndividual   Category = "INDIVIDUAL"
	CategoryOrganization Category = "ORGANIZATION"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c == CategoryIndividual || c == CategoryOrganization
}

// Entity is a party that can owe or be owed.
type Entity struct {
	TaxID          string    `json:"tax_id"`
	Name           string    `json:"name"`
	Category       Category  `json:"category"`
	CredentialHash string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasCredential reports whether the entity can log in. Stubs cannot.
func (e Entity) HasCredential() bool { return e.CredentialHash != "" }

// Identity is the resolved caller of an authorized operation.
type Identity struct {
	TaxID    string
	Name     string
	Category Category
}

// IdentityOf projects an entity onto its identity.
func IdentityOf(e Entity) Identity {
	return Identity{TaxID: e.TaxID, Name: e.Name, Category: e.Category}
}

// AccessToken is the persisted half of an issued token. The secret is never stored.
type AccessToken struct {
	ID           string
	OwnerTaxID   string
	VerifierHash string
	IssuedAt     time.Time
}

// Charge is a debt of Debtor towards Creditor.
type Charge struct {
	ID            string     `json:"id"`
	DebtorTaxID   string     `json:"debtor_tax_id"`
	CreditorTaxID string     `json:"creditor_tax_id"`
	Amount        Amount     `json:"amount"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	PaidAt        *time.Time `json:"paid_at"`
}

// ChargeState is the lifecycle position of a charge.
type ChargeState string

const (
	ChargeActive ChargeState = "ACTIVE"
	ChargePaid   ChargeState = "PAID"
)

// State derives the lifecycle state from IsActive.
func (c Charge) State() ChargeState {
	if c.IsActive {
		return ChargeActive
	}
	return ChargePaid
}

// ChargeFilter selects charges conjunctively; nil fields are ignored.
type ChargeFilter struct {
	DebtorTaxID   *string
	CreditorTaxID *string
	IsActive      *bool
}

// EntityRef names a debtor that may not be registered yet.
type EntityRef struct {
	TaxID string `json:"tax_id"`
	Name  string `json:"name"`
}
