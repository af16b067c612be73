package ledger

import (
	"fmt"

	"TxLedger/internal/money"
)

// Engine is the deterministic core of the ledger. It owns the account
// table, the transaction log, and the state hash chain. Apply is the
// only mutation path; processing is single-threaded and callers own the
// serialization of inputs.
type Engine struct {
	accounts *AccountTable
	log      *TransactionLog
	hasher   *StateHasher
	sequence int64
}

func NewEngine() *Engine {
	return &Engine{
		accounts: NewAccountTable(),
		log:      NewTransactionLog(),
		hasher:   NewStateHasher(),
	}
}

// Apply runs one record through the pipeline and returns the log entry
// recorded for it. Apply never fails: every outcome, including every
// rejection, becomes an entry with a status. Feeding the same record
// stream to a fresh engine reproduces the same entries, balances, and
// state hashes.
func (e *Engine) Apply(rec Record) *Entry {
	// Step 1: resolve the account. Any record kind creates the account
	// on first reference, even a dispute against an unknown transaction.
	acct := e.accounts.Get(rec.Client)

	entry := &Entry{Record: rec}

	// Step 2: validate against current state and commit on success.
	switch rec.Kind {
	case KindDeposit, KindWithdrawal:
		entry.Status = e.applyMonetary(acct, rec)
	case KindDispute:
		entry.Status = e.applyDispute(acct, rec)
	case KindResolve:
		entry.Status = e.applyResolve(acct, rec)
	case KindChargeback:
		entry.Status = e.applyChargeback(acct, rec)
	default:
		panic(fmt.Sprintf("ledger: unknown record kind %d", rec.Kind))
	}

	// Step 3: assign the global sequence. Rejected records consume a
	// sequence number too, so the log stays dense.
	entry.Sequence = e.sequence
	e.sequence++

	// Step 4: hash the post-apply state into the chain.
	digest := digestAccounts(e.accounts.Snapshot())
	entry.StateHash = e.hasher.ComputeHash(entry.Sequence, digest)

	// Step 5: append to the log. The tx index keeps the first entry per
	// tx ID, so this entry reserves its ID whatever its status.
	e.log.Append(entry)

	return entry
}

// applyMonetary handles deposits and withdrawals. Validation order is
// fixed: uniqueness, then amount, then lock, then funds. A duplicate
// against a locked account reports duplicate_transaction, not
// ignored_locked.
func (e *Engine) applyMonetary(acct *Account, rec Record) Status {
	if e.log.Lookup(rec.Tx) != nil {
		return StatusDuplicateTransaction
	}
	if rec.Amount == nil || *rec.Amount <= 0 {
		return StatusInvalidAmount
	}
	if acct.Locked {
		return StatusIgnoredLocked
	}
	if rec.Kind == KindWithdrawal && acct.Available < *rec.Amount {
		return StatusInsufficientFunds
	}

	if rec.Kind == KindDeposit {
		acct.Available += *rec.Amount
	} else {
		acct.Available -= *rec.Amount
	}
	return StatusApplied
}

// applyDispute opens a dispute on a previously applied monetary entry.
// Lock state is not consulted anywhere in the dispute family: freezing
// an account stops deposits and withdrawals, not dispute lifecycle
// transitions.
func (e *Engine) applyDispute(acct *Account, rec Record) Status {
	target := e.disputeTarget(rec)
	if target == nil {
		return StatusUnknownTransaction
	}

	switch target.Dispute {
	case Undisputed:
		amt := disputedAmount(target)
		// TRICKY: no available >= amount check here. Funds may have been
		// withdrawn since the disputed transaction applied, so available
		// can go negative while the disputed amount sits in held. Total
		// is unchanged by the move.
		acct.Available -= amt
		acct.Held += amt
		target.Dispute = Disputed
		return StatusApplied
	case Disputed:
		return StatusAlreadyDisputed
	case Resolved:
		return StatusAlreadyResolved
	case ChargedBack:
		return StatusAlreadyChargedBack
	}

	panic(fmt.Sprintf("ledger: entry tx=%d has invalid dispute state %d", target.Tx, target.Dispute))
}

// applyResolve closes an open dispute and returns the held funds.
func (e *Engine) applyResolve(acct *Account, rec Record) Status {
	target := e.disputeTarget(rec)
	if target == nil {
		return StatusUnknownTransaction
	}

	switch target.Dispute {
	case Undisputed:
		return StatusNotDisputed
	case Disputed:
		amt := disputedAmount(target)
		acct.Held -= amt
		acct.Available += amt
		target.Dispute = Resolved
		return StatusApplied
	case Resolved:
		return StatusAlreadyResolved
	case ChargedBack:
		return StatusAlreadyChargedBack
	}

	panic(fmt.Sprintf("ledger: entry tx=%d has invalid dispute state %d", target.Tx, target.Dispute))
}

// applyChargeback closes an open dispute against the client: the held
// funds leave the account entirely and the account locks. A locked
// account can still have its other open disputes resolved or charged
// back afterwards.
func (e *Engine) applyChargeback(acct *Account, rec Record) Status {
	target := e.disputeTarget(rec)
	if target == nil {
		return StatusUnknownTransaction
	}

	switch target.Dispute {
	case Undisputed:
		return StatusNotDisputed
	case Disputed:
		amt := disputedAmount(target)
		acct.Held -= amt
		acct.Locked = true
		target.Dispute = ChargedBack
		return StatusApplied
	case Resolved:
		return StatusAlreadyResolved
	case ChargedBack:
		return StatusAlreadyChargedBack
	}

	panic(fmt.Sprintf("ledger: entry tx=%d has invalid dispute state %d", target.Tx, target.Dispute))
}

// disputeTarget resolves the entry a dispute-family record refers to.
// Nil means the reference is unusable: no such tx, another client's tx,
// a non-monetary entry, or a monetary entry that never applied. All
// four collapse to unknown_transaction for the caller.
func (e *Engine) disputeTarget(rec Record) *Entry {
	target := e.log.Lookup(rec.Tx)
	if target == nil || target.Client != rec.Client {
		return nil
	}
	if !target.Kind.Monetary() || target.Status != StatusApplied {
		return nil
	}
	return target
}

// disputedAmount returns the amount frozen by a dispute on target.
func disputedAmount(target *Entry) money.Amount {
	if target.Amount == nil {
		// An applied monetary entry always carries an amount.
		panic(fmt.Sprintf("ledger: applied entry tx=%d has no amount", target.Tx))
	}
	return *target.Amount
}

// Accounts returns the engine-owned account table.
func (e *Engine) Accounts() *AccountTable {
	return e.accounts
}

// Log returns the transaction log.
func (e *Engine) Log() *TransactionLog {
	return e.log
}

// GetSequence returns the next sequence number to be assigned.
func (e *Engine) GetSequence() int64 {
	return e.sequence
}

// GetStateHash returns the current tip of the hash chain.
func (e *Engine) GetStateHash() [32]byte {
	return e.hasher.GetPrevHash()
}
