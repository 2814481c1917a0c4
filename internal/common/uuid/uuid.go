// Package uuid provides time-ordered identifiers used to correlate the
// attempts of one logical web-service invocation in the logs.
// It wraps github.com/google/uuid and uses version 7 throughout.
package uuid

import "github.com/google/uuid"

// UUID represents a UUID, aliased from github.com/google/uuid.UUID
type UUID = uuid.UUID

// New returns a new UUIDv7. Panics if UUID generation fails.
func New() UUID {
	uuidv7, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return uuidv7
}
