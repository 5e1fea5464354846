// Package ids generates identifiers for incidents and comments.
//
// Identifiers are ULIDs: lexicographic order matches creation order, so keyset
// pagination can use "id < cursor" to mean strictly older.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a new identifier stamped with the current time.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a new identifier stamped with t. Identifiers generated within
// the same millisecond are strictly increasing.
func NewAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Valid reports whether s parses as an identifier.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
