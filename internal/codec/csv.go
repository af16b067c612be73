package codec

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"TxLedger/internal/ledger"
	"TxLedger/internal/money"
)

// Decoder reads transaction records from a CSV stream. The first row is
// the header; field order follows it. Every field tolerates surrounding
// whitespace, including the whitespace csv leaves after column commas,
// and the type tag is case-insensitive.
//
// Any malformed row is a decode error, not a business rejection: the
// caller is expected to abort the whole run on the first non-nil error
// other than io.EOF.
type Decoder struct {
	r      *csv.Reader
	cols   map[string]int
	line   int
	header bool
}

// NewDecoder wraps r in a record decoder.
func NewDecoder(r io.Reader) *Decoder {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // dispute rows may omit the amount column entirely
	cr.TrimLeadingSpace = true
	return &Decoder{r: cr}
}

// Next decodes the next record. It returns io.EOF at end of stream.
func (d *Decoder) Next() (ledger.Record, error) {
	if !d.header {
		if err := d.readHeader(); err != nil {
			return ledger.Record{}, err
		}
	}

	row, err := d.r.Read()
	if err == io.EOF {
		return ledger.Record{}, io.EOF
	}
	if err != nil {
		return ledger.Record{}, fmt.Errorf("read csv row: %w", err)
	}
	d.line++

	rec, err := d.decodeRow(row)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("row %d: %w", d.line, err)
	}
	return rec, nil
}

func (d *Decoder) readHeader() error {
	row, err := d.r.Read()
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}

	d.cols = make(map[string]int, len(row))
	for i, name := range row {
		d.cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, required := range []string{"type", "client", "tx"} {
		if _, ok := d.cols[required]; !ok {
			return fmt.Errorf("csv header missing %q column", required)
		}
	}

	d.header = true
	return nil
}

func (d *Decoder) decodeRow(row []string) (ledger.Record, error) {
	kindField, err := d.field(row, "type")
	if err != nil {
		return ledger.Record{}, err
	}
	kind, err := ledger.ParseRecordKind(strings.ToLower(strings.TrimSpace(kindField)))
	if err != nil {
		return ledger.Record{}, err
	}

	clientField, err := d.field(row, "client")
	if err != nil {
		return ledger.Record{}, err
	}
	client, err := strconv.ParseUint(strings.TrimSpace(clientField), 10, 16)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("parse client %q: %w", clientField, err)
	}

	txField, err := d.field(row, "tx")
	if err != nil {
		return ledger.Record{}, err
	}
	tx, err := strconv.ParseUint(strings.TrimSpace(txField), 10, 32)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("parse tx %q: %w", txField, err)
	}

	rec := ledger.Record{
		Kind:   kind,
		Client: uint16(client),
		Tx:     uint32(tx),
	}

	// The amount column may be absent, empty, or whitespace-only on
	// dispute-family rows. A monetary record without an amount is a
	// decode error.
	var amountField string
	if idx, ok := d.cols["amount"]; ok && idx < len(row) {
		amountField = strings.TrimSpace(row[idx])
	}

	if kind.Monetary() {
		if amountField == "" {
			return ledger.Record{}, fmt.Errorf("%s record tx=%d missing amount", kind, tx)
		}
		amt, err := money.Parse(amountField)
		if err != nil {
			return ledger.Record{}, err
		}
		rec.Amount = &amt
	} else if amountField != "" {
		return ledger.Record{}, fmt.Errorf("%s record tx=%d carries an amount", kind, tx)
	}

	return rec, nil
}

func (d *Decoder) field(row []string, name string) (string, error) {
	idx := d.cols[name]
	if idx >= len(row) {
		return "", fmt.Errorf("missing %q field", name)
	}
	return row[idx], nil
}

// EncodeAccounts writes the final account table as CSV:
// client,available,held,total,locked with 4-decimal amounts. Row order
// follows the snapshot order (ascending client ID).
func EncodeAccounts(w io.Writer, accounts []ledger.Account) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"client", "available", "held", "total", "locked"}); err != nil {
		return fmt.Errorf("write accounts header: %w", err)
	}

	for _, a := range accounts {
		row := []string{
			strconv.FormatUint(uint64(a.Client), 10),
			a.Available.String(),
			a.Held.String(),
			a.Total().String(),
			strconv.FormatBool(a.Locked),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write account row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// EncodeEntries writes the transaction log as CSV:
// type,client,tx,amount,status. Dispute-family rows leave the amount
// column empty.
func EncodeEntries(w io.Writer, entries []*ledger.Entry) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"type", "client", "tx", "amount", "status"}); err != nil {
		return fmt.Errorf("write entries header: %w", err)
	}

	for _, e := range entries {
		amount := ""
		if e.Amount != nil {
			amount = e.Amount.String()
		}
		row := []string{
			e.Kind.String(),
			strconv.FormatUint(uint64(e.Client), 10),
			strconv.FormatUint(uint64(e.Tx), 10),
			amount,
			e.Status.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write entry row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
