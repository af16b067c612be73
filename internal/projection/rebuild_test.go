package projection_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"TxLedger/internal/ledger"
	"TxLedger/internal/money"
	"TxLedger/internal/persistence"
	"TxLedger/internal/projection"
	"TxLedger/internal/testutil"
)

func record(kind ledger.RecordKind, client uint16, tx uint32, amount string) ledger.Record {
	rec := ledger.Record{Kind: kind, Client: client, Tx: tx}
	if amount != "" {
		amt := money.MustParse(amount)
		rec.Amount = &amt
	}
	return rec
}

func TestRebuild_RegeneratesAccountsFromLog(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	// Run a stream through a real engine and persist its log, the same
	// rows the daemon's persistence worker would write.
	engine := ledger.NewEngine()
	stream := []ledger.Record{
		record(ledger.KindDeposit, 1, 1, "100"),
		record(ledger.KindDeposit, 2, 2, "50.5"),
		record(ledger.KindWithdrawal, 1, 3, "30"),
		record(ledger.KindDispute, 2, 2, ""),
		record(ledger.KindChargeback, 2, 2, ""),
		record(ledger.KindDeposit, 2, 4, "10"), // ignored_locked
	}

	rows := make([]persistence.EntryRow, 0, len(stream))
	for _, rec := range stream {
		rows = append(rows, persistence.RowFromEntry(engine.Apply(rec)))
	}

	writer := persistence.NewLogWriter(db)
	if err := writer.WriteEntryBatch(ctx, nil, rows); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	if err := projection.Rebuild(ctx, db, zerolog.Nop()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	for _, want := range engine.Accounts().Snapshot() {
		var available, held string
		var locked bool
		var lastSeq int64
		err := db.QueryRowContext(ctx, `
			SELECT available, held, locked, last_sequence
			FROM projections.accounts WHERE client = $1
		`, int32(want.Client)).Scan(&available, &held, &locked, &lastSeq)
		if err != nil {
			t.Fatalf("client %d: %v", want.Client, err)
		}

		if got := money.MustParse(available); got != want.Available {
			t.Errorf("client %d available: got %s, want %s", want.Client, got, want.Available)
		}
		if got := money.MustParse(held); got != want.Held {
			t.Errorf("client %d held: got %s, want %s", want.Client, got, want.Held)
		}
		if locked != want.Locked {
			t.Errorf("client %d locked: got %v, want %v", want.Client, locked, want.Locked)
		}
		if wantSeq := engine.GetSequence() - 1; lastSeq != wantSeq {
			t.Errorf("client %d last_sequence: got %d, want %d", want.Client, lastSeq, wantSeq)
		}
	}

	var watermark int64
	err := db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE worker_id = 'accounts'
	`).Scan(&watermark)
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}
	if want := engine.GetSequence() - 1; watermark != want {
		t.Errorf("watermark: got %d, want %d", watermark, want)
	}
}
