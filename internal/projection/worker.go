package projection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"TxLedger/internal/ledger"
	"TxLedger/internal/money"
	"TxLedger/internal/persistence"
)

// AccountUpdate is the post-apply state of the one account a record
// touched, plus the sequence that produced it. Upserts are last-write-
// wins per client, so dropped or re-delivered updates self-heal.
type AccountUpdate struct {
	Client    uint16
	Available money.Amount
	Held      money.Amount
	Locked    bool
	Sequence  int64
}

// UpdateFromEntry extracts the projection update for an entry, reading
// the touched account from the engine table.
func UpdateFromEntry(entry *ledger.Entry, accounts *ledger.AccountTable) AccountUpdate {
	upd := AccountUpdate{Client: entry.Client, Sequence: entry.Sequence}
	if acct, ok := accounts.Lookup(entry.Client); ok {
		upd.Available = acct.Available
		upd.Held = acct.Held
		upd.Locked = acct.Locked
	}
	return upd
}

// Worker maintains the projections.accounts table and its watermark.
// Its input channel is fed with non-blocking sends: when the worker
// falls behind, updates are dropped and the table is rebuilt from the
// persisted log instead of stalling the engine.
type Worker struct {
	db        *sql.DB
	inputChan <-chan AccountUpdate
	log       zerolog.Logger
}

func NewWorker(db *sql.DB, inputChan <-chan AccountUpdate, log zerolog.Logger) *Worker {
	return &Worker{db: db, inputChan: inputChan, log: log}
}

// Run drains the input channel until it closes or ctx is cancelled.
// Failed updates are logged and skipped; the rebuild path covers them.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case upd, ok := <-w.inputChan:
			if !ok {
				return nil
			}

			if err := w.apply(ctx, upd); err != nil {
				w.log.Warn().Err(err).Int64("sequence", upd.Sequence).
					Uint16("client", upd.Client).Msg("projection update failed")
			}
		}
	}
}

func (w *Worker) apply(ctx context.Context, upd AccountUpdate) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Guard on last_sequence: a late update never regresses a newer row.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.accounts (client, available, held, locked, last_sequence)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (client) DO UPDATE
			SET available = $2, held = $3, locked = $4, last_sequence = $5
			WHERE projections.accounts.last_sequence < $5
	`, int32(upd.Client), upd.Available.String(), upd.Held.String(), upd.Locked, upd.Sequence); err != nil {
		return fmt.Errorf("account upsert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('accounts', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE
			SET last_sequence = $1, updated_at = NOW()
			WHERE projections.watermark.last_sequence < $1
	`, upd.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// Rebuild truncates the account projection and regenerates it by
// replaying the persisted log into a fresh engine. Deterministic replay
// makes the rebuilt table exact, not approximate.
func Rebuild(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	engine := ledger.NewEngine()
	replayed, err := persistence.NewReplayer(db, 1000).Replay(ctx, engine)
	if err != nil {
		return fmt.Errorf("replay for rebuild: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE projections.accounts`); err != nil {
		return fmt.Errorf("truncate accounts: %w", err)
	}

	lastSeq := engine.GetSequence() - 1
	for _, acct := range engine.Accounts().Snapshot() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.accounts (client, available, held, locked, last_sequence)
			VALUES ($1, $2, $3, $4, $5)
		`, int32(acct.Client), acct.Available.String(), acct.Held.String(), acct.Locked, lastSeq); err != nil {
			return fmt.Errorf("insert rebuilt account %d: %w", acct.Client, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('accounts', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, lastSeq); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Info().Int64("replayed", replayed).Int64("sequence", lastSeq).
		Msg("projection rebuild complete")
	return nil
}
