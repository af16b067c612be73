package ledger

import (
	"fmt"

	"TxLedger/internal/money"
)

// RecordKind discriminates the five input record types.
type RecordKind uint8

const (
	KindUnknown RecordKind = iota
	KindDeposit
	KindWithdrawal
	KindDispute
	KindResolve
	KindChargeback
)

// ParseRecordKind maps the lowercase wire spelling to a RecordKind.
func ParseRecordKind(s string) (RecordKind, error) {
	switch s {
	case "deposit":
		return KindDeposit, nil
	case "withdrawal":
		return KindWithdrawal, nil
	case "dispute":
		return KindDispute, nil
	case "resolve":
		return KindResolve, nil
	case "chargeback":
		return KindChargeback, nil
	default:
		return KindUnknown, fmt.Errorf("unknown record kind %q", s)
	}
}

func (k RecordKind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdrawal:
		return "withdrawal"
	case KindDispute:
		return "dispute"
	case KindResolve:
		return "resolve"
	case KindChargeback:
		return "chargeback"
	default:
		return "unknown"
	}
}

// Monetary reports whether records of this kind move money on their own
// and are therefore targets for the dispute lifecycle.
func (k RecordKind) Monetary() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// Record is a single ordered input to the engine. Amount is nil for
// dispute-family records, which reference the disputed transaction's
// amount instead of carrying their own.
type Record struct {
	Kind   RecordKind
	Client uint16
	Tx     uint32
	Amount *money.Amount
}

// Status classifies the outcome of applying a record. Every record gets
// exactly one status; rejections are recorded, never fatal.
type Status uint8

const (
	StatusApplied Status = iota
	StatusDuplicateTransaction
	StatusInvalidAmount
	StatusIgnoredLocked
	StatusInsufficientFunds
	StatusUnknownTransaction
	StatusNotDisputed
	StatusAlreadyDisputed
	StatusAlreadyResolved
	StatusAlreadyChargedBack
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusDuplicateTransaction:
		return "duplicate_transaction"
	case StatusInvalidAmount:
		return "invalid_amount"
	case StatusIgnoredLocked:
		return "ignored_locked"
	case StatusInsufficientFunds:
		return "insufficient_funds"
	case StatusUnknownTransaction:
		return "unknown_transaction"
	case StatusNotDisputed:
		return "not_disputed"
	case StatusAlreadyDisputed:
		return "already_disputed"
	case StatusAlreadyResolved:
		return "already_resolved"
	case StatusAlreadyChargedBack:
		return "already_charged_back"
	default:
		return "unknown"
	}
}

// ParseStatus maps the snake_case wire spelling back to a Status. Used
// when replaying persisted entries.
func ParseStatus(s string) (Status, error) {
	for st := StatusApplied; st <= StatusAlreadyChargedBack; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// DisputeState tracks where a monetary entry sits in its dispute
// lifecycle. Transitions are forward-only:
//
//	Undisputed -> Disputed -> Resolved or ChargedBack
//
// Resolved and ChargedBack are terminal. An entry that was resolved can
// never be disputed again.
type DisputeState uint8

const (
	Undisputed DisputeState = iota
	Disputed
	Resolved
	ChargedBack
)

func (d DisputeState) String() string {
	switch d {
	case Undisputed:
		return "undisputed"
	case Disputed:
		return "disputed"
	case Resolved:
		return "resolved"
	case ChargedBack:
		return "charged_back"
	default:
		return "unknown"
	}
}

// Entry is one row of the transaction log: the input record plus the
// outcome the engine assigned to it. For applied monetary entries,
// Dispute advances as dispute-family records target this entry later.
type Entry struct {
	Record

	Status    Status
	Dispute   DisputeState
	Sequence  int64
	StateHash [32]byte
}
