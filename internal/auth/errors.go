package auth

import "errors"

// Token resolution failures. Callers outside this package only ever see them
// wrapped in a domain NotAuthorized error.
var (
	ErrTokenMalformed = errors.New("auth: token malformed")
	ErrTokenNotFound  = errors.New("auth: token not found")
)
