// Package uuid mints the identifiers stored in primary keys and the stable
// identifiers of computed instances.
package uuid

import (
	"strings"

	googleuuid "github.com/google/uuid"
)

// instanceNamespace scopes derived identifiers so they never collide with
// ids minted by other UUIDv5 users.
var instanceNamespace = googleuuid.MustParse("6f1b2c3e-8d4a-5e7f-9a0b-1c2d3e4f5a6b")

// New returns a time-ordered UUIDv7, suitable as a primary key. It falls back
// to a random UUIDv4 when the clock sequence cannot be read.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.NewString()
	}
	return id.String()
}

// Derived returns a stable UUIDv5 built from the given parts. The same parts
// always yield the same identifier, which lets clients match recomputed
// records across reads.
func Derived(parts ...string) string {
	return googleuuid.NewSHA1(instanceNamespace, []byte(strings.Join(parts, ":"))).String()
}

// IsValid reports whether s is a UUID in canonical form.
func IsValid(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := googleuuid.Parse(s)
	return err == nil
}
