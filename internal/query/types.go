package query

import "time"

// AccountResponse is one projected account row. Balances are 4-decimal
// strings; Total is derived at query time. AsOfSequence tells the
// caller how fresh the projection was when read.
type AccountResponse struct {
	Client       uint16 `json:"client"`
	Available    string `json:"available"`
	Held         string `json:"held"`
	Total        string `json:"total"`
	Locked       bool   `json:"locked"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// EntryResponse is one persisted log entry for API queries.
type EntryResponse struct {
	Sequence     int64   `json:"sequence"`
	Type         string  `json:"type"`
	Client       uint16  `json:"client"`
	Tx           uint32  `json:"tx"`
	Amount       *string `json:"amount,omitempty"`
	Status       string  `json:"status"`
	DisputeState *string `json:"dispute_state,omitempty"`
	StateHash    string  `json:"state_hash"`
}

// StatusResponse summarizes pipeline progress for operators.
type StatusResponse struct {
	LogSequence       int64     `json:"log_sequence"`
	ProjectionSeq     int64     `json:"projection_sequence"`
	ProjectionUpdated time.Time `json:"projection_updated_at"`
	Accounts          int64     `json:"accounts"`
	LockedAccounts    int64     `json:"locked_accounts"`
}

// IntegrityReport is the result of an integrity verification pass.
type IntegrityReport struct {
	IsHealthy        bool     `json:"is_healthy"`
	SequenceGaps     []int64  `json:"sequence_gaps,omitempty"`
	StateHashMatches bool     `json:"state_hash_matches"`
	ReplayedRecords  int64    `json:"replayed_records"`
	DriftedClients   []uint16 `json:"drifted_clients,omitempty"`
	Error            string   `json:"error,omitempty"`
}
