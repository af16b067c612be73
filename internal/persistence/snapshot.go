package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"TxLedger/internal/ledger"
	"TxLedger/internal/money"
)

// SnapshotManager stores periodic account-table snapshots. Snapshots
// are an audit and backup surface: recovery always replays the full
// persisted log (the engine's dispute index cannot be rebuilt from
// balances alone), and a snapshot is then checked against the replayed
// state before it is marked verified.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the serialized account table at a sequence point.
type SnapshotData struct {
	Sequence  int64             `json:"sequence"`
	StateHash []byte            `json:"state_hash"`
	Accounts  []AccountSnapshot `json:"accounts"`
	CreatedAt time.Time         `json:"created_at"`
}

// AccountSnapshot is one serialized account row.
type AccountSnapshot struct {
	Client    uint16       `json:"client"`
	Available money.Amount `json:"available"`
	Held      money.Amount `json:"held"`
	Locked    bool         `json:"locked"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SnapshotFromEngine captures the engine's current account table.
func SnapshotFromEngine(engine *ledger.Engine) *SnapshotData {
	hash := engine.GetStateHash()
	accounts := engine.Accounts().Snapshot()

	snap := &SnapshotData{
		Sequence:  engine.GetSequence() - 1,
		StateHash: hash[:],
		Accounts:  make([]AccountSnapshot, 0, len(accounts)),
		CreatedAt: time.Now(),
	}
	for _, a := range accounts {
		snap.Accounts = append(snap.Accounts, AccountSnapshot{
			Client:    a.Client,
			Available: a.Available,
			Held:      a.Held,
			Locked:    a.Locked,
		})
	}
	return snap
}

// SaveSnapshot persists a snapshot.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO ledger_log.snapshots
			(snapshot_id, sequence, data, state_hash, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $5
	`, uuid.New(), snap.Sequence, data, snap.StateHash, len(data), snap.CreatedAt)

	return err
}

// LoadLatestSnapshot loads the most recent snapshot, verified or not.
// Returns nil with no error when no snapshot exists.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM ledger_log.snapshots
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// MarkVerified marks a snapshot as matching replayed state.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE ledger_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// VerifyAgainstEngine checks a snapshot against the engine state after
// replay. A mismatch means the snapshot does not belong to this log.
func VerifyAgainstEngine(snap *SnapshotData, engine *ledger.Engine) error {
	if snap.Sequence != engine.GetSequence()-1 {
		return fmt.Errorf("snapshot sequence %d does not match replayed sequence %d",
			snap.Sequence, engine.GetSequence()-1)
	}

	for _, s := range snap.Accounts {
		acct, ok := engine.Accounts().Lookup(s.Client)
		if !ok {
			return fmt.Errorf("snapshot has client %d unknown to replayed state", s.Client)
		}
		if acct.Available != s.Available || acct.Held != s.Held || acct.Locked != s.Locked {
			return fmt.Errorf("snapshot disagrees with replayed state for client %d", s.Client)
		}
	}

	return nil
}
