package query

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"

	"TxLedger/internal/ledger"
	"TxLedger/internal/money"
	"TxLedger/internal/persistence"
)

// Service provides read-only access to the persisted log and the
// account projection. Every response carries as_of_sequence so callers
// can reason about freshness against the outcome stream.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetAccount returns the projected balances for one client. A client
// the ledger never saw yields sql.ErrNoRows wrapped with context.
func (s *Service) GetAccount(ctx context.Context, client uint16) (*AccountResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var available, held string
	var locked bool
	err = s.db.QueryRowContext(ctx, `
		SELECT available, held, locked
		FROM projections.accounts
		WHERE client = $1
	`, int32(client)).Scan(&available, &held, &locked)
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", client, err)
	}

	availAmt, err := money.Parse(available)
	if err != nil {
		return nil, fmt.Errorf("account %d available: %w", client, err)
	}
	heldAmt, err := money.Parse(held)
	if err != nil {
		return nil, fmt.Errorf("account %d held: %w", client, err)
	}

	return &AccountResponse{
		Client:       client,
		Available:    availAmt.String(),
		Held:         heldAmt.String(),
		Total:        (availAmt + heldAmt).String(),
		Locked:       locked,
		AsOfSequence: asOfSeq,
	}, nil
}

// ListEntries returns a client's log entries newest-first with cursor
// pagination: pass the last sequence of the previous page to continue.
func (s *Service) ListEntries(ctx context.Context, client uint16, limit int, afterSequence *int64) ([]EntryResponse, error) {
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT sequence, kind, tx, amount, status, dispute_state, state_hash
		FROM ledger_log.entries
		WHERE client = $1
	`
	args := []interface{}{int32(client)}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []EntryResponse
	for rows.Next() {
		var e EntryResponse
		var tx int64
		var amount, disputeState sql.NullString
		var stateHash []byte
		if err := rows.Scan(&e.Sequence, &e.Type, &tx, &amount, &e.Status, &disputeState, &stateHash); err != nil {
			return nil, err
		}
		e.Client = client
		e.Tx = uint32(tx)
		if amount.Valid {
			a := amount.String
			e.Amount = &a
		}
		if disputeState.Valid {
			d := disputeState.String
			e.DisputeState = &d
		}
		e.StateHash = hex.EncodeToString(stateHash)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetStatus reports log head, projection watermark, and account counts.
func (s *Service) GetStatus(ctx context.Context) (*StatusResponse, error) {
	status := &StatusResponse{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), -1) FROM ledger_log.entries`,
	).Scan(&status.LogSequence)
	if err != nil {
		return nil, fmt.Errorf("log head: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT last_sequence, updated_at FROM projections.watermark WHERE worker_id = 'accounts'
	`).Scan(&status.ProjectionSeq, &status.ProjectionUpdated)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE locked)
		FROM projections.accounts
	`).Scan(&status.Accounts, &status.LockedAccounts)
	if err != nil {
		return nil, fmt.Errorf("account counts: %w", err)
	}

	return status, nil
}

// VerifyIntegrity replays the persisted log into a fresh engine and
// checks three things: the log has no sequence gaps, the replayed hash
// chain tip matches the last persisted state hash, and the account
// projection agrees with the replayed balances.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	gaps, err := s.findSequenceGaps(ctx)
	if err != nil {
		return nil, err
	}
	report.SequenceGaps = gaps
	if len(gaps) > 0 {
		report.Error = "log has sequence gaps; replay skipped"
		return report, nil
	}

	engine := ledger.NewEngine()
	replayed, err := persistence.NewReplayer(s.db, 1000).Replay(ctx, engine)
	if err != nil {
		report.Error = err.Error()
		return report, nil
	}
	report.ReplayedRecords = replayed

	if replayed > 0 {
		var storedTip []byte
		err = s.db.QueryRowContext(ctx, `
			SELECT state_hash FROM ledger_log.entries ORDER BY sequence DESC LIMIT 1
		`).Scan(&storedTip)
		if err != nil {
			return nil, fmt.Errorf("stored hash tip: %w", err)
		}

		tip := engine.GetStateHash()
		report.StateHashMatches = hex.EncodeToString(tip[:]) == hex.EncodeToString(storedTip)
	} else {
		report.StateHashMatches = true
	}

	drifted, err := s.findProjectionDrift(ctx, engine)
	if err != nil {
		return nil, err
	}
	report.DriftedClients = drifted

	report.IsHealthy = report.StateHashMatches && len(drifted) == 0
	return report, nil
}

func (s *Service) findSequenceGaps(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e1.sequence - 1
		FROM ledger_log.entries e1
		LEFT JOIN ledger_log.entries e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e2.sequence IS NULL
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("gap scan: %w", err)
	}
	defer rows.Close()

	var gaps []int64
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		gaps = append(gaps, seq)
	}
	return gaps, rows.Err()
}

func (s *Service) findProjectionDrift(ctx context.Context, engine *ledger.Engine) ([]uint16, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT client, available, held, locked FROM projections.accounts
	`)
	if err != nil {
		return nil, fmt.Errorf("projection scan: %w", err)
	}
	defer rows.Close()

	var drifted []uint16
	projected := make(map[uint16]bool)

	for rows.Next() {
		var client int32
		var available, held string
		var locked bool
		if err := rows.Scan(&client, &available, &held, &locked); err != nil {
			return nil, err
		}

		c := uint16(client)
		projected[c] = true

		availAmt, err := money.Parse(available)
		if err != nil {
			return nil, fmt.Errorf("client %d available: %w", c, err)
		}
		heldAmt, err := money.Parse(held)
		if err != nil {
			return nil, fmt.Errorf("client %d held: %w", c, err)
		}

		acct, ok := engine.Accounts().Lookup(c)
		if !ok || acct.Available != availAmt || acct.Held != heldAmt || acct.Locked != locked {
			drifted = append(drifted, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Accounts the replay knows but the projection is missing.
	for _, acct := range engine.Accounts().Snapshot() {
		if !projected[acct.Client] {
			drifted = append(drifted, acct.Client)
		}
	}

	return drifted, nil
}

func (s *Service) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE worker_id = 'accounts'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	return seq, err
}
