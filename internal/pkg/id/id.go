package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. Each issued one-time code gets one, so
// successive codes for the same identity are distinguishable and sortable by
// issue time.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
