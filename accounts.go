package quota

import (
	"context"
	"slices"

	"github.com/xraph/quota/account"
	"github.com/xraph/quota/types"
)

// ──────────────────────────────────────────────────
// Account Groups
// ──────────────────────────────────────────────────

// RegisterAccount stores a login identity.
func (e *Engine) RegisterAccount(ctx context.Context, a *account.Account) error {
	if a.ID == "" {
		return ValidationError{Field: "id", Message: "is required"}
	}
	if !a.IsMaster && len(a.SlaveUsers) > 0 {
		return ValidationError{Field: "slaveUsers", Message: "only masters have slaves"}
	}
	for i, slaveID := range a.SlaveUsers {
		if slaveID == a.ID || slices.Contains(a.SlaveUsers[:i], slaveID) {
			return ValidationError{Field: "slaveUsers", Message: "must be distinct and differ from the master"}
		}
		if err := e.checkSlave(ctx, slaveID); err != nil {
			return err
		}
	}
	a.Entity = types.NewEntityAt(e.clock())

	if err := e.store.CreateAccount(ctx, a); err != nil {
		return e.storeFault(ctx, "create account", err)
	}
	return nil
}

// GetAccount retrieves an identity by ID.
func (e *Engine) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	return e.store.GetAccount(ctx, accountID)
}

// AttachSlave lists slaveID under masterID. A slave can belong to one
// master only.
func (e *Engine) AttachSlave(ctx context.Context, masterID, slaveID string) error {
	if masterID == "" || slaveID == "" || masterID == slaveID {
		return ValidationError{Field: "slaveId", Message: "must differ from the master"}
	}

	master, err := e.store.GetAccount(ctx, masterID)
	if err != nil {
		return err
	}
	if !master.IsMaster {
		return ErrNotMaster
	}
	if err := e.checkSlave(ctx, slaveID); err != nil {
		return err
	}

	if err := e.store.AddSlave(ctx, masterID, slaveID); err != nil {
		return e.storeFault(ctx, "add slave", err)
	}
	return nil
}

// checkSlave requires slaveID to be a registered non-master that no master
// lists yet. The store repeats the attachment check under its own lock.
func (e *Engine) checkSlave(ctx context.Context, slaveID string) error {
	slave, err := e.store.GetAccount(ctx, slaveID)
	if err != nil {
		return e.storeFault(ctx, "get account", err)
	}
	if slave.IsMaster {
		return ErrMasterAsSlave
	}

	_, err = e.store.FindMaster(ctx, slaveID)
	switch {
	case err == nil:
		return ErrSlaveAttached
	case IsNotFound(err):
		return nil
	default:
		return e.storeFault(ctx, "find master", err)
	}
}

// ResolveGroup returns the group sharing accountID's subscription. An
// unknown id is ErrIdentityNotFound; a known id that belongs to no group is
// ErrAccountNotFound.
func (e *Engine) ResolveGroup(ctx context.Context, accountID string) (account.Group, error) {
	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return account.Group{}, err
	}
	if acct.IsMaster {
		return account.ResolveGroup(acct, nil)
	}

	master, err := e.store.FindMaster(ctx, accountID)
	switch {
	case IsNotFound(err):
		master = nil
	case err != nil:
		return account.Group{}, e.storeFault(ctx, "find master", err)
	}

	group, err := account.ResolveGroup(acct, master)
	if err != nil {
		e.logger.ErrorContext(ctx, "account belongs to no group", "account_id", accountID)
		return account.Group{}, err
	}
	return group, nil
}
