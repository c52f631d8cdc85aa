package ledger_test

import (
	"errors"
	"testing"

	"BetBank/internal/ledger"
)

func TestRegister_SeedsStartValue(t *testing.T) {
	l := ledger.NewLedger(1000)
	acct := l.Register(7)

	if acct.Balance != 1000 {
		t.Errorf("balance: got %d, want 1000", acct.Balance)
	}
	if len(acct.Transactions) != 1 {
		t.Fatalf("transactions: got %d, want 1", len(acct.Transactions))
	}
	seed := acct.Transactions[0]
	if !seed.Initial {
		t.Error("seeding transaction should carry the initial flag")
	}
	if seed.SenderID != ledger.BankID {
		t.Errorf("seed sender: got %d, want %d", seed.SenderID, ledger.BankID)
	}
	if seed.Amount != 1000 {
		t.Errorf("seed amount: got %d, want 1000", seed.Amount)
	}
	if !acct.Active {
		t.Error("registered account should be active")
	}
}

func TestRegister_ReconnectIdempotent(t *testing.T) {
	l := ledger.NewLedger(1000)
	l.Register(7)

	if err := l.Apply(7, -400, 7, ledger.KindTransfer); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := l.SetActive(7, false); err != nil {
		t.Fatalf("set active: %v", err)
	}

	acct := l.Register(7)

	if acct.Balance != 600 {
		t.Errorf("reconnect must not reset balance: got %d, want 600", acct.Balance)
	}
	if len(acct.Transactions) != 2 {
		t.Errorf("reconnect must not duplicate the seed: got %d transactions, want 2", len(acct.Transactions))
	}
	if !acct.Active {
		t.Error("reconnect should reactivate the account")
	}
}

func TestBalanceOf_UnknownAccount(t *testing.T) {
	l := ledger.NewLedger(1000)

	_, err := l.BalanceOf(42)
	if !errors.Is(err, ledger.ErrUnknownAccount) {
		t.Errorf("got %v, want ErrUnknownAccount", err)
	}
}

func TestApply_BalanceMatchesTransactionSum(t *testing.T) {
	l := ledger.NewLedger(1000)
	l.Register(1)

	amounts := []int64{-200, 150, -950, 400}
	for _, amt := range amounts {
		if err := l.Apply(1, amt, 1, ledger.KindAdjustment); err != nil {
			t.Fatalf("apply %d: %v", amt, err)
		}
	}

	acct := l.Account(1)
	if acct.Balance != acct.SumTransactions() {
		t.Errorf("cached balance %d != transaction sum %d", acct.Balance, acct.SumTransactions())
	}
	if acct.Balance != 400 {
		t.Errorf("balance: got %d, want 400", acct.Balance)
	}
}

func TestApply_DebitToExactlyZeroSucceeds(t *testing.T) {
	l := ledger.NewLedger(1000)
	l.Register(1)

	if err := l.Apply(1, -1000, 1, ledger.KindBetLost); err != nil {
		t.Fatalf("debit to zero should succeed: %v", err)
	}

	balance, _ := l.BalanceOf(1)
	if balance != 0 {
		t.Errorf("balance: got %d, want 0", balance)
	}
}

func TestApply_OverdraftRejected(t *testing.T) {
	l := ledger.NewLedger(1000)
	l.Register(1)

	err := l.Apply(1, -1001, 1, ledger.KindBetLost)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}

	// Rejection must be a no-op.
	acct := l.Account(1)
	if acct.Balance != 1000 {
		t.Errorf("balance after rejected apply: got %d, want 1000", acct.Balance)
	}
	if len(acct.Transactions) != 1 {
		t.Errorf("rejected apply must not append: got %d transactions", len(acct.Transactions))
	}
}

func TestTransfer_MovesFunds(t *testing.T) {
	l := ledger.NewLedger(1000)
	l.Register(1)
	l.Register(2)

	if err := l.Transfer(1, 2, 50); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	a, _ := l.BalanceOf(1)
	b, _ := l.BalanceOf(2)
	if a != 950 || b != 1050 {
		t.Errorf("balances: got %d/%d, want 950/1050", a, b)
	}

	// Credit carries the sender's id for audit.
	recv := l.Account(2)
	last := recv.Transactions[len(recv.Transactions)-1]
	if last.SenderID != 1 {
		t.Errorf("credit sender: got %d, want 1", last.SenderID)
	}
}

func TestTransfer_UnknownReceiverAllOrNothing(t *testing.T) {
	l := ledger.NewLedger(1000)
	l.Register(1)

	err := l.Transfer(1, 99, 50)
	if !errors.Is(err, ledger.ErrUnknownAccount) {
		t.Fatalf("got %v, want ErrUnknownAccount", err)
	}

	balance, _ := l.BalanceOf(1)
	if balance != 1000 {
		t.Errorf("failed transfer must not debit the sender: got %d, want 1000", balance)
	}
}

func TestTransfer_SelfTransferIsSingleDebit(t *testing.T) {
	l := ledger.NewLedger(1000)
	l.Register(1)

	if err := l.Transfer(1, 1, 100); err != nil {
		t.Fatalf("self transfer: %v", err)
	}

	acct := l.Account(1)
	if acct.Balance != 900 {
		t.Errorf("balance: got %d, want 900", acct.Balance)
	}
	if len(acct.Transactions) != 2 {
		t.Errorf("self transfer should append exactly one debit: got %d transactions", len(acct.Transactions))
	}
}

func TestTransfer_FullBalanceAllowed(t *testing.T) {
	l := ledger.NewLedger(1000)
	l.Register(1)
	l.Register(2)

	if err := l.Transfer(1, 2, 1000); err != nil {
		t.Fatalf("transfer of full balance should succeed: %v", err)
	}

	a, _ := l.BalanceOf(1)
	if a != 0 {
		t.Errorf("sender balance: got %d, want 0", a)
	}

	if err := l.Transfer(1, 2, 1); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Errorf("transfer from empty account: got %v, want ErrInsufficientFunds", err)
	}
}

func TestActiveIDs_TracksConnectivity(t *testing.T) {
	l := ledger.NewLedger(1000)
	l.Register(3)
	l.Register(1)
	l.Register(2)
	l.SetActive(2, false)

	ids := l.ActiveIDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("active ids: got %v, want [1 3]", ids)
	}

	if got := len(l.AllIDs()); got != 3 {
		t.Errorf("all ids: got %d, want 3", got)
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	l := ledger.NewLedger(1000)
	l.Register(1)

	snap := l.Snapshot()
	snap[1].Balance = 0
	snap[1].Transactions[0].Amount = 0

	acct := l.Account(1)
	if acct.Balance != 1000 || acct.Transactions[0].Amount != 1000 {
		t.Error("mutating a snapshot must not affect the ledger")
	}
}

func TestReset_ReseedsKnownAccounts(t *testing.T) {
	l := ledger.NewLedger(1000)
	l.Register(1)
	l.Register(2)
	l.SetActive(2, false)
	l.Apply(1, -300, 1, ledger.KindBetLost)

	l.Reset()

	a, _ := l.BalanceOf(1)
	if a != 1000 {
		t.Errorf("reset balance: got %d, want 1000", a)
	}
	if len(l.Account(1).Transactions) != 1 {
		t.Error("reset should leave a single fresh seed transaction")
	}
	if l.Account(2).Active {
		t.Error("reset must preserve active flags")
	}
}

func TestInvariantValidator_ValidateAll(t *testing.T) {
	l := ledger.NewLedger(1000)
	v := ledger.NewInvariantValidator(l)
	l.Register(1)
	l.Register(2)
	l.Transfer(1, 2, 250)

	if err := v.ValidateAll(); err != nil {
		t.Errorf("consistent ledger should validate: %v", err)
	}
}
