package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"TxLedger/internal/ledger"
	"TxLedger/internal/money"
)

// RawRecord is a received-but-undecoded wire record. AckFunc confirms
// the message after the record is handed to the engine channel; NakFunc
// requeues it; TermFunc drops it permanently (malformed payloads are
// terminated, not redelivered forever).
type RawRecord struct {
	Source   string
	Data     []byte
	Received time.Time
	AckFunc  func()
	NakFunc  func()
	TermFunc func()
}

// wireRecord is the JSON wire format for streamed transaction records.
// Amount is a decimal string so no float touches the value in flight;
// it must be present exactly when the record is monetary. Sequence is
// the producer's source sequence, zero when the producer has none.
type wireRecord struct {
	Type     string  `json:"type"`
	Client   uint16  `json:"client"`
	Tx       uint32  `json:"tx"`
	Amount   *string `json:"amount,omitempty"`
	Sequence int64   `json:"sequence,omitempty"`
}

// ParsedRecord is a validated wire record ready for the engine channel.
type ParsedRecord struct {
	Record         ledger.Record
	SourceSequence int64
}

// ParseRawRecord validates and converts a RawRecord into engine input.
// Parsing applies the same tolerance as the CSV boundary: trimmed,
// case-insensitive type tags.
func ParseRawRecord(raw RawRecord) (ParsedRecord, error) {
	var w wireRecord
	if err := json.Unmarshal(raw.Data, &w); err != nil {
		return ParsedRecord{}, fmt.Errorf("parse wire record: %w", err)
	}

	kind, err := ledger.ParseRecordKind(strings.ToLower(strings.TrimSpace(w.Type)))
	if err != nil {
		return ParsedRecord{}, err
	}

	rec := ledger.Record{
		Kind:   kind,
		Client: w.Client,
		Tx:     w.Tx,
	}

	if kind.Monetary() {
		if w.Amount == nil || strings.TrimSpace(*w.Amount) == "" {
			return ParsedRecord{}, fmt.Errorf("%s record tx=%d missing amount", kind, w.Tx)
		}
		amt, err := money.Parse(strings.TrimSpace(*w.Amount))
		if err != nil {
			return ParsedRecord{}, err
		}
		rec.Amount = &amt
	} else if w.Amount != nil && strings.TrimSpace(*w.Amount) != "" {
		return ParsedRecord{}, fmt.Errorf("%s record tx=%d carries an amount", kind, w.Tx)
	}

	return ParsedRecord{Record: rec, SourceSequence: w.Sequence}, nil
}
