package viewcharge

import (
	"context"
	"time"
)

// Store persists view charges.
type Store interface {
	// Find returns charges live at t made by any of employerIDs for any of
	// candidateIDs.
	Find(ctx context.Context, employerIDs, candidateIDs []string, t time.Time) ([]*ViewCharge, error)
	Insert(ctx context.Context, charges []*ViewCharge) error
	// PurgeExpired deletes charges that expired at or before t.
	PurgeExpired(ctx context.Context, t time.Time) (int64, error)
}
