package account

import "context"

// Store persists accounts.
type Store interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, accountID string) (*Account, error)
	// FindMaster returns the master listing slaveID, or a not-found error.
	FindMaster(ctx context.Context, slaveID string) (*Account, error)
	AddSlave(ctx context.Context, masterID, slaveID string) error
}
