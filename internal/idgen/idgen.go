package idgen

import "github.com/google/uuid"

// NewFunc returns a new globally unique identifier. Envelopes, approval
// requests and queue messages all draw from it; tests may stub it.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new identifier.
func New() string { return NewFunc() }
