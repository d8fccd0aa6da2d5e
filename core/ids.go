package core

import "github.com/google/uuid"

// NewID generates a unique identifier for events, correlation IDs and turns.
func NewID() string { return uuid.NewString() }
