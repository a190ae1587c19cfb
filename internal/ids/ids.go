package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier used for access token ids.
// It is public (the "username" half of a token) and carries no secret material.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewCharge returns a random UUIDv4 charge identifier.
func NewCharge() string {
	return uuid.NewString()
}

// ValidCharge reports whether s parses as a charge identifier.
func ValidCharge(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
