package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TxLedger/internal/ledger"
)

// EntryRow is one row of ledger_log.entries, the persisted mirror of an
// in-memory log entry. Amounts travel as 4-decimal strings into NUMERIC
// columns so nothing is ever a float.
type EntryRow struct {
	Sequence     int64
	Kind         string
	Client       uint16
	Tx           uint32
	Amount       sql.NullString
	Status       string
	DisputeState sql.NullString
	StateHash    []byte
	CreatedAt    time.Time
}

// DisputeUpdate moves the persisted dispute state of a prior monetary
// entry forward after a dispute-family record applied to it.
type DisputeUpdate struct {
	Tx    uint32
	State string
}

// RowFromEntry converts a log entry to its persisted form.
func RowFromEntry(e *ledger.Entry) EntryRow {
	row := EntryRow{
		Sequence:  e.Sequence,
		Kind:      e.Kind.String(),
		Client:    e.Client,
		Tx:        e.Tx,
		Status:    e.Status.String(),
		StateHash: e.StateHash[:],
		CreatedAt: time.Now(),
	}
	if e.Amount != nil {
		row.Amount = sql.NullString{String: e.Amount.String(), Valid: true}
	}
	if e.Kind.Monetary() && e.Status == ledger.StatusApplied {
		row.DisputeState = sql.NullString{String: e.Dispute.String(), Valid: true}
	}
	return row
}

// DisputeUpdateFromEntry returns the forward transition an applied
// dispute-family entry causes on its target row, or nil.
func DisputeUpdateFromEntry(e *ledger.Entry) *DisputeUpdate {
	if e.Status != ledger.StatusApplied {
		return nil
	}
	switch e.Kind {
	case ledger.KindDispute:
		return &DisputeUpdate{Tx: e.Tx, State: ledger.Disputed.String()}
	case ledger.KindResolve:
		return &DisputeUpdate{Tx: e.Tx, State: ledger.Resolved.String()}
	case ledger.KindChargeback:
		return &DisputeUpdate{Tx: e.Tx, State: ledger.ChargedBack.String()}
	default:
		return nil
	}
}

// LogWriter batch-writes log entries to Postgres with multi-row INSERT.
// ON CONFLICT (sequence) DO NOTHING makes re-delivered batches
// idempotent: the first write of a sequence wins and replays are no-ops.
type LogWriter struct {
	db *sql.DB
}

func NewLogWriter(db *sql.DB) *LogWriter {
	return &LogWriter{db: db}
}

// WriteEntryBatch inserts a batch of entry rows inside tx.
func (w *LogWriter) WriteEntryBatch(ctx context.Context, tx *sql.Tx, entries []EntryRow) error {
	if len(entries) == 0 {
		return nil
	}

	query := `INSERT INTO ledger_log.entries
		(sequence, kind, client, tx, amount, status, dispute_state, state_hash, created_at)
		VALUES `

	values := make([]string, 0, len(entries))
	args := make([]interface{}, 0, len(entries)*9)

	for i, e := range entries {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.Sequence, e.Kind, int32(e.Client), int64(e.Tx),
			e.Amount, e.Status, e.DisputeState, e.StateHash, e.CreatedAt,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = w.db.ExecContext(ctx, query, args...)
	}
	return err
}

// ApplyDisputeUpdates advances persisted dispute states inside tx.
// Transitions are forward-only in the engine, so applying an update
// twice leaves the row unchanged.
func (w *LogWriter) ApplyDisputeUpdates(ctx context.Context, tx *sql.Tx, updates []DisputeUpdate) error {
	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, `
			UPDATE ledger_log.entries SET dispute_state = $1
			WHERE tx = $2 AND status = 'applied' AND kind IN ('deposit', 'withdrawal')
		`, u.State, int64(u.Tx)); err != nil {
			return fmt.Errorf("update dispute state tx=%d: %w", u.Tx, err)
		}
	}
	return nil
}
