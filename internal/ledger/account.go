package ledger

import (
	"sort"

	"TxLedger/internal/money"
)

// Account is the engine-owned balance row for one client. Total is
// always derived from Available and Held; it is never stored, so the
// total invariant cannot drift.
type Account struct {
	Client    uint16
	Available money.Amount
	Held      money.Amount
	Locked    bool
}

// Total returns Available + Held.
func (a *Account) Total() money.Amount {
	return a.Available + a.Held
}

// AccountTable holds every account the engine has seen. Accounts are
// created lazily on first reference by any record kind, including a
// dispute against an unknown transaction.
type AccountTable struct {
	accounts map[uint16]*Account
}

func NewAccountTable() *AccountTable {
	return &AccountTable{
		accounts: make(map[uint16]*Account),
	}
}

// Get returns the account for client, creating an empty unlocked
// account on first reference.
func (t *AccountTable) Get(client uint16) *Account {
	acct, ok := t.accounts[client]
	if !ok {
		acct = &Account{Client: client}
		t.accounts[client] = acct
	}
	return acct
}

// Lookup returns the account for client without creating it.
func (t *AccountTable) Lookup(client uint16) (*Account, bool) {
	acct, ok := t.accounts[client]
	return acct, ok
}

// Len returns the number of accounts.
func (t *AccountTable) Len() int {
	return len(t.accounts)
}

// Snapshot returns a copy of every account sorted by client ID. The
// fixed order makes report output and state digests deterministic.
func (t *AccountTable) Snapshot() []Account {
	out := make([]Account, 0, len(t.accounts))
	for _, acct := range t.accounts {
		out = append(out, *acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Client < out[j].Client })
	return out
}
