package ledger_test

import (
	"testing"

	"TxLedger/internal/ledger"
)

func TestValidateAccounts_CleanState(t *testing.T) {
	e := ledger.NewEngine()
	applyAll(t, e,
		deposit(1, 1, "100"),
		withdrawal(1, 2, "40"),
		deposit(2, 3, "25.5"),
	)

	if err := ledger.NewInvariantValidator(e).ValidateAccounts(); err != nil {
		t.Errorf("ValidateAccounts: got %v, want nil", err)
	}
}

func TestValidateAccounts_NegativeAvailableAllowedUnderDispute(t *testing.T) {
	e := ledger.NewEngine()
	applyAll(t, e,
		deposit(1, 1, "100"),
		withdrawal(1, 2, "80"),
		dispute(1, 1), // holds 100 against 20 available
	)

	acct, _ := e.Accounts().Lookup(1)
	if acct.Available >= 0 {
		t.Fatalf("available: got %s, want negative", acct.Available)
	}

	if err := ledger.NewInvariantValidator(e).ValidateAccounts(); err != nil {
		t.Errorf("ValidateAccounts: got %v, want nil", err)
	}
}

func TestValidateAccounts_NegativeAvailableCloses(t *testing.T) {
	e := ledger.NewEngine()
	applyAll(t, e,
		deposit(1, 1, "100"),
		withdrawal(1, 2, "80"),
		dispute(1, 1),
		resolve(1, 1), // releases the hold, available back to 20
	)

	if err := ledger.NewInvariantValidator(e).ValidateAccounts(); err != nil {
		t.Errorf("ValidateAccounts after resolve: got %v, want nil", err)
	}
	checkAccount(t, e, 1, "20", "0", false)
}

func TestValidateReplay_Deterministic(t *testing.T) {
	e := ledger.NewEngine()
	applyAll(t, e,
		deposit(1, 1, "100"),
		deposit(2, 2, "50"),
		withdrawal(1, 3, "30"),
		dispute(1, 1),
		chargeback(1, 1),
		deposit(1, 4, "10"), // rejected, account locked
		resolve(2, 2),       // rejected, never disputed
	)

	if err := ledger.NewInvariantValidator(e).ValidateReplay(); err != nil {
		t.Errorf("ValidateReplay: got %v, want nil", err)
	}
}
