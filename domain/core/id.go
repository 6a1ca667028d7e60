package core

import (
	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// Short returns the first eight characters, enough to tell engines apart in logs
func (id ID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// EngineID identifies one integrator engine instance
type EngineID ID

func NewEngineID() EngineID        { return EngineID(NewID()) }
func (id EngineID) String() string { return ID(id).String() }
func (id EngineID) Short() string  { return ID(id).Short() }
