// Package account maps login identities to the master/slave group that
// shares one subscription.
package account

import (
	"errors"
	"slices"

	"github.com/xraph/quota/types"
)

var (
	// ErrAccountNotFound means an identity exists but is neither a master
	// nor listed as any master's slave. It is a data integrity fault, not
	// an unknown id.
	ErrAccountNotFound = errors.New("quota: account is not part of any group")
	ErrNotMaster       = errors.New("quota: account is not a master")
	ErrMasterAsSlave   = errors.New("quota: a master cannot be attached as a slave")
)

// Account is a login identity. Masters list the slaves that draw from
// their subscription.
type Account struct {
	types.Entity
	ID         string   `json:"id"`
	Email      string   `json:"email,omitempty"`
	IsMaster   bool     `json:"isMaster"`
	SlaveUsers []string `json:"slaveUsers,omitempty"`
}

// HasSlave reports whether slaveID is in a's slave list.
func (a *Account) HasSlave(slaveID string) bool {
	return slices.Contains(a.SlaveUsers, slaveID)
}

// Group is a master and every identity sharing its subscription.
type Group struct {
	MasterID  string   `json:"masterId"`
	MemberIDs []string `json:"memberIds"`
}

// Contains reports whether accountID is a member of g.
func (g Group) Contains(accountID string) bool {
	return slices.Contains(g.MemberIDs, accountID)
}

// ResolveGroup returns the group acct belongs to. master is the account
// whose slave list names acct, or nil when none was found; it is ignored
// when acct is itself a master.
func ResolveGroup(acct, master *Account) (Group, error) {
	if acct.IsMaster {
		return groupOf(acct), nil
	}
	if master == nil || !master.IsMaster || !master.HasSlave(acct.ID) {
		return Group{}, ErrAccountNotFound
	}
	return groupOf(master), nil
}

func groupOf(master *Account) Group {
	members := make([]string, 0, len(master.SlaveUsers)+1)
	for _, s := range master.SlaveUsers {
		if s != master.ID && !slices.Contains(members, s) {
			members = append(members, s)
		}
	}
	members = append(members, master.ID)
	return Group{MasterID: master.ID, MemberIDs: members}
}
