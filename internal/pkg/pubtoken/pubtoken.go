// Package pubtoken mints the short opaque identifiers used in public pass
// URLs. Tokens are independent of record primary keys so internal ids never
// leak into printed QR codes.
package pubtoken

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const Length = 16

var shape = regexp.MustCompile(`^[A-Z0-9]{16}$`)

// Generate returns 16 uppercase hex characters drawn from a random 128-bit
// identifier. Collisions are negligible at expected volume but not
// impossible; the record table's unique constraint is authoritative and
// callers retry generation on a violation.
func Generate() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:Length])
}

// Valid reports whether s has the exact token shape. Used for strict
// dispatch on public lookups: tokens never contain hyphens, record ids
// always do.
func Valid(s string) bool {
	return shape.MatchString(s)
}
