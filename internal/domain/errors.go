package domain

import (
	"errors"
	"fmt"
)

// Kind enumerates every failure the core can report. The set is closed:
// boundary mappers switch on it exhaustively.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotAuthorized
	KindInvalidCredentials
	KindNotFound
	KindNoneFound
	KindAlreadyRegistered
	KindInvalidTaxID
	KindInvalidAmount
	KindInvalidInput
	KindNotCreditor
	KindSelfCharge
	KindCreditorMismatch
	KindAlreadyPaid
)

// Class groups kinds the way they surface to callers.
type Class int

const (
	ClassInternal Class = iota
	ClassNotAuthorized
	ClassDenied
	ClassNotFound
	ClassConflict
	ClassInvalidInput
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindNotAuthorized:      "not_authorized",
	KindInvalidCredentials: "invalid_credentials",
	KindNotFound:           "not_found",
	KindNoneFound:          "none_found",
	KindAlreadyRegistered:  "already_registered",
	KindInvalidTaxID:       "invalid_tax_id",
	KindInvalidAmount:      "invalid_amount",
	KindInvalidInput:       "invalid_input",
	KindNotCreditor:        "not_creditor",
	KindSelfCharge:         "self_charge",
	KindCreditorMismatch:   "creditor_mismatch",
	KindAlreadyPaid:        "already_paid",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a wire code back to its kind.
func ParseKind(code string) (Kind, bool) {
	for k, name := range kindNames {
		if name == code && k != KindUnknown {
			return k, true
		}
	}
	return KindUnknown, false
}

// Class reports the caller-facing class of the kind.
func (k Kind) Class() Class {
	switch k {
	case KindNotAuthorized:
		return ClassNotAuthorized
	case KindInvalidCredentials:
		return ClassDenied
	case KindNotFound, KindNoneFound:
		return ClassNotFound
	case KindAlreadyRegistered, KindNotCreditor, KindSelfCharge, KindCreditorMismatch, KindAlreadyPaid:
		return ClassConflict
	case KindInvalidTaxID, KindInvalidAmount, KindInvalidInput:
		return ClassInvalidInput
	default:
		return ClassInternal
	}
}

// Error is the single error type produced by the core.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind. A target carrying a detail must match it too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Detail == "" || t.Detail == e.Detail
}

// Sentinels for errors.Is.
var (
	ErrNotAuthorized      = &Error{Kind: KindNotAuthorized}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrNoneFound          = &Error{Kind: KindNoneFound}
	ErrAlreadyRegistered  = &Error{Kind: KindAlreadyRegistered}
	ErrInvalidTaxID       = &Error{Kind: KindInvalidTaxID}
	ErrInvalidAmount      = &Error{Kind: KindInvalidAmount}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrNotCreditor        = &Error{Kind: KindNotCreditor}
	ErrSelfCharge         = &Error{Kind: KindSelfCharge}
	ErrCreditorMismatch   = &Error{Kind: KindCreditorMismatch}
	ErrAlreadyPaid        = &Error{Kind: KindAlreadyPaid}
)

// E builds an error of the given kind with a human-readable detail.
func E(kind Kind, detail string) error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap builds an error of the given kind keeping cause for logs.
func Wrap(kind Kind, detail string, cause error) error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

// KindOf extracts the kind of err, KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// DetailOf returns the detail carried by a core error, if any.
func DetailOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Detail
	}
	return ""
}
