package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/quota/types"
)

// Fake is an in-memory Gateway for tests and local runs.
type Fake struct {
	mu       sync.Mutex
	seq      int
	requests []PlanRequest
	failOn   map[types.Period]error
}

var _ Gateway = (*Fake)(nil)

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{failOn: make(map[types.Period]error)}
}

// FailOn makes every plan request for period fail with err. A nil err
// clears the failure.
func (f *Fake) FailOn(period types.Period, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failOn, period)
		return
	}
	f.failOn[period] = err
}

// CreatePlan implements Gateway.
func (f *Fake) CreatePlan(_ context.Context, req PlanRequest) (*Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if err, ok := f.failOn[req.Period]; ok {
		return nil, err
	}
	f.seq++
	return &Plan{ID: fmt.Sprintf("plan_%s_%d", req.Period, f.seq)}, nil
}

// Requests returns a copy of every request received.
func (f *Fake) Requests() []PlanRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PlanRequest, len(f.requests))
	copy(out, f.requests)
	return out
}
