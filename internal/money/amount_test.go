package money_test

import (
	"encoding/json"
	"testing"

	"TxLedger/internal/money"
)

func TestParse_WholeNumber(t *testing.T) {
	a, err := money.Parse("3")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if a != 30_000 {
		t.Errorf("got %d units, want 30000", a)
	}
}

func TestParse_FourDecimalPlaces(t *testing.T) {
	a, err := money.Parse("0.0001")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if a != 1 {
		t.Errorf("got %d units, want 1", a)
	}
}

func TestParse_TrailingZerosBeyondScale(t *testing.T) {
	// Five digits after the point, but the value fits in four.
	a, err := money.Parse("1.50000")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if a != 15_000 {
		t.Errorf("got %d units, want 15000", a)
	}
}

func TestParse_NegativePreservesSign(t *testing.T) {
	a, err := money.Parse("-2.5")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if a != -25_000 {
		t.Errorf("got %d units, want -25000", a)
	}
}

func TestParse_TooManyDecimalPlaces_Fails(t *testing.T) {
	if _, err := money.Parse("1.00001"); err == nil {
		t.Error("expected error for five significant decimal places")
	}
}

func TestParse_OutOfRange_Fails(t *testing.T) {
	// Values past the int64 unit range must error, never wrap: a
	// silently wrapped amount would flow into the engine as a real
	// deposit.
	for _, s := range []string{
		"922337203685477.5808",  // one unit past the max
		"-922337203685477.5809", // one unit past the min
		"99999999999999999999",
	} {
		if _, err := money.Parse(s); err == nil {
			t.Errorf("expected range error for %q", s)
		}
	}
}

func TestParse_RangeBoundaries(t *testing.T) {
	max, err := money.Parse("922337203685477.5807")
	if err != nil {
		t.Fatalf("Parse max failed: %v", err)
	}
	if int64(max) != 9223372036854775807 {
		t.Errorf("got %d units, want int64 max", max)
	}

	min, err := money.Parse("-922337203685477.5808")
	if err != nil {
		t.Fatalf("Parse min failed: %v", err)
	}
	if int64(min) != -9223372036854775808 {
		t.Errorf("got %d units, want int64 min", min)
	}
}

func TestParse_Garbage_Fails(t *testing.T) {
	for _, s := range []string{"", "abc", "1.2.3", "1,5"} {
		if _, err := money.Parse(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestString_AlwaysFourPlaces(t *testing.T) {
	cases := map[money.Amount]string{
		0:       "0.0000",
		1:       "0.0001",
		15_000:  "1.5000",
		-25_000: "-2.5000",
		30_000:  "3.0000",
	}
	for a, want := range cases {
		if got := a.String(); got != want {
			t.Errorf("Amount(%d).String() = %q, want %q", int64(a), got, want)
		}
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	a := money.MustParse("42.1234")

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `"42.1234"` {
		t.Errorf("got %s, want \"42.1234\"", data)
	}

	var back money.Amount
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back != a {
		t.Errorf("round trip mismatch: %d vs %d", back, a)
	}
}

func TestJSON_BareNumberAccepted(t *testing.T) {
	var a money.Amount
	if err := json.Unmarshal([]byte("7.25"), &a); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if a != 72_500 {
		t.Errorf("got %d units, want 72500", a)
	}
}
