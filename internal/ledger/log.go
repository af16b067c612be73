package ledger

// TransactionLog is the append-only record of every input the engine has
// processed, with an O(1) index from tx ID to the first entry that used
// it. The index backs both duplicate detection and dispute lookups, so a
// full pass over history is never needed on the hot path.
type TransactionLog struct {
	entries []*Entry
	byTx    map[uint32]*Entry
}

func NewTransactionLog() *TransactionLog {
	return &TransactionLog{
		byTx: make(map[uint32]*Entry),
	}
}

// Append adds an entry to the log. The tx index keeps the FIRST entry
// recorded under a tx ID; later entries with the same ID never displace
// it. A rejected or dispute-family entry therefore still reserves its
// tx ID against future deposits and withdrawals.
func (l *TransactionLog) Append(e *Entry) {
	l.entries = append(l.entries, e)
	if _, ok := l.byTx[e.Tx]; !ok {
		l.byTx[e.Tx] = e
	}
}

// Lookup returns the first entry recorded under tx, or nil.
func (l *TransactionLog) Lookup(tx uint32) *Entry {
	return l.byTx[tx]
}

// Entries returns the log in append order. Callers must not mutate the
// returned slice.
func (l *TransactionLog) Entries() []*Entry {
	return l.entries
}

// Len returns the number of logged entries.
func (l *TransactionLog) Len() int {
	return len(l.entries)
}
