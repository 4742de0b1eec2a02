// Package uuid generates the per-process instance identifier that the
// gateway attaches to its log context, so that restarts are distinguishable
// in aggregated logs.
package uuid

import (
	"github.com/google/uuid"
)

// NewString returns a new time-ordered (V7) UUID string.
func NewString() string {
	return uuid.Must(uuid.NewV7()).String()
}
