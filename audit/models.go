// Package audit keeps write-once snapshots taken before admin edits.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/quota/id"
)

// Type names the kind of record an entry snapshots.
type Type string

const (
	TypePackage      Type = "package"
	TypePromo        Type = "promo"
	TypeSubscription Type = "subscription"
)

// Entry is a snapshot of a record taken before it was changed.
type Entry struct {
	ID        id.AuditID      `json:"id"`
	Type      Type            `json:"type"`
	TargetID  string          `json:"targetId"`
	UpdatedBy string          `json:"updatedBy"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewEntry marshals snapshot into a new entry.
func NewEntry(typ Type, targetID, updatedBy string, snapshot any, now time.Time) (*Entry, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("audit: marshal %s snapshot: %w", typ, err)
	}
	return &Entry{
		ID:        id.NewAuditID(),
		Type:      typ,
		TargetID:  targetID,
		UpdatedBy: updatedBy,
		Data:      data,
		CreatedAt: now.UTC(),
	}, nil
}
