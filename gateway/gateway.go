// Package gateway creates recurring billing plans with the payment provider.
package gateway

import (
	"context"
	"fmt"

	"github.com/xraph/quota/types"
)

// PlanRequest describes one recurring plan.
type PlanRequest struct {
	Period      types.Period      `json:"period"`
	Interval    int               `json:"interval"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Amount      types.Money       `json:"amount"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Plan is a plan created by the provider.
type Plan struct {
	ID string `json:"id"`
}

// Gateway creates billing plans.
type Gateway interface {
	CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error)
}

// Error is a failure reported by the provider or by the transport.
// Status is the HTTP status, 0 when no response was received.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return "gateway: " + e.Message
	}
	return fmt.Sprintf("gateway: %d: %s", e.Status, e.Message)
}
