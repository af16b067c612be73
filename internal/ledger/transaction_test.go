package ledger_test

import (
	"testing"

	"TxLedger/internal/ledger"
)

func TestParseRecordKind_AllTags(t *testing.T) {
	for _, tag := range []string{"deposit", "withdrawal", "dispute", "resolve", "chargeback"} {
		kind, err := ledger.ParseRecordKind(tag)
		if err != nil {
			t.Fatalf("ParseRecordKind(%q) failed: %v", tag, err)
		}
		if got := kind.String(); got != tag {
			t.Errorf("round trip: got %q, want %q", got, tag)
		}
	}

	if _, err := ledger.ParseRecordKind("transfer"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestParseStatus_RoundTrip(t *testing.T) {
	// Persisted entries carry the snake_case spelling; replay depends
	// on every status parsing back to the value that produced it.
	for st := ledger.StatusApplied; st <= ledger.StatusAlreadyChargedBack; st++ {
		parsed, err := ledger.ParseStatus(st.String())
		if err != nil {
			t.Fatalf("ParseStatus(%q) failed: %v", st, err)
		}
		if parsed != st {
			t.Errorf("round trip: got %s, want %s", parsed, st)
		}
	}

	if _, err := ledger.ParseStatus("pending"); err == nil {
		t.Error("expected error for unknown status")
	}
}
