package scoped

import "github.com/google/uuid"

// ID uniquely identifies one live activation of a call, suspension step, or
// task. IDs are comparable and hashable, carry no ordering guarantees, and
// are never reused.
type ID struct {
	value uuid.UUID
}

func newID() ID {
	return ID{value: uuid.New()}
}

// IsZero reports whether the ID was never minted.
func (id ID) IsZero() bool {
	return id.value == uuid.UUID{}
}

func (id ID) String() string {
	return id.value.String()
}
