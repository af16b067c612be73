package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"TxLedger/internal/ledger"
	"TxLedger/internal/money"
)

// Replayer rebuilds engine state from the persisted log. The log is
// replayed in full, from sequence 0: dispute lookups need the complete
// tx index, so there is no shortcut through a balance snapshot.
type Replayer struct {
	db        *sql.DB
	batchSize int
}

func NewReplayer(db *sql.DB, batchSize int) *Replayer {
	if batchSize < 1 {
		batchSize = 1000
	}
	return &Replayer{db: db, batchSize: batchSize}
}

// Replay feeds every persisted record through engine.Apply in sequence
// order and returns the number of records replayed. It fails on a
// sequence gap (rows missing from the log) and on any divergence
// between the replayed outcome and the stored one: either means the
// persisted log does not describe the run that produced it.
func (r *Replayer) Replay(ctx context.Context, engine *ledger.Engine) (int64, error) {
	var replayed int64
	next := int64(0)

	for {
		rows, err := r.loadBatch(ctx, next)
		if err != nil {
			return replayed, err
		}
		if len(rows) == 0 {
			return replayed, nil
		}

		for _, row := range rows {
			if row.Sequence != next {
				return replayed, fmt.Errorf("log gap: expected sequence %d, found %d", next, row.Sequence)
			}

			rec, err := recordFromRow(row)
			if err != nil {
				return replayed, fmt.Errorf("sequence %d: %w", row.Sequence, err)
			}

			stored, err := ledger.ParseStatus(row.Status)
			if err != nil {
				return replayed, fmt.Errorf("sequence %d: %w", row.Sequence, err)
			}

			entry := engine.Apply(rec)
			if entry.Status != stored {
				return replayed, fmt.Errorf(
					"replay divergence at sequence %d: recomputed %s, stored %s",
					row.Sequence, entry.Status, stored,
				)
			}

			next++
			replayed++
		}
	}
}

func (r *Replayer) loadBatch(ctx context.Context, from int64) ([]EntryRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sequence, kind, client, tx, amount, status
		FROM ledger_log.entries
		WHERE sequence >= $1
		ORDER BY sequence
		LIMIT $2
	`, from, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("load log batch from %d: %w", from, err)
	}
	defer rows.Close()

	var batch []EntryRow
	for rows.Next() {
		var e EntryRow
		var client int32
		var tx int64
		if err := rows.Scan(&e.Sequence, &e.Kind, &client, &tx, &e.Amount, &e.Status); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}
		e.Client = uint16(client)
		e.Tx = uint32(tx)
		batch = append(batch, e)
	}
	return batch, rows.Err()
}

func recordFromRow(row EntryRow) (ledger.Record, error) {
	kind, err := ledger.ParseRecordKind(row.Kind)
	if err != nil {
		return ledger.Record{}, err
	}

	rec := ledger.Record{
		Kind:   kind,
		Client: row.Client,
		Tx:     row.Tx,
	}

	if row.Amount.Valid {
		amt, err := money.Parse(row.Amount.String)
		if err != nil {
			return ledger.Record{}, err
		}
		rec.Amount = &amt
	}

	return rec, nil
}
