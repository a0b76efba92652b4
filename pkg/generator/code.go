// Package generator produces local receipt codes placed on receipt headers.
package generator

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	prefix = "RC"

	// A ULID string is 10 timestamp characters followed by 16 entropy
	// characters. The code keeps the full timestamp for sortability plus
	// trailing entropy so codes minted within the same millisecond differ.
	timeChars = 10
	randChars = 6
)

// Generator produces unique, sortable local receipt codes.
type Generator struct{}

func New() *Generator {
	return &Generator{}
}

// Generate returns a ULID-based code like RC01JF8K3M2QZ3NDVW. The fiscal
// system's own receipt id stays authoritative; this code only gives
// operators a short reference that survives fiscal-API outages in logs.
func (g *Generator) Generate() string {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id := ulid.MustNew(ulid.Timestamp(t), entropy).String()
	return prefix + id[:timeChars] + id[len(id)-randChars:]
}
