package settle_test

import (
	"testing"

	"github.com/rs/zerolog"

	"BetBank/internal/ledger"
	"BetBank/internal/round"
	"BetBank/internal/settle"
)

func newFixture(t *testing.T, mode settle.Mode, participants ...ledger.ParticipantID) (*ledger.Ledger, *settle.Engine) {
	t.Helper()
	l := ledger.NewLedger(1000)
	for _, id := range participants {
		l.Register(id)
	}
	return l, settle.NewEngine(l, mode, zerolog.Nop())
}

func bets(entries ...round.Bet) map[ledger.ParticipantID][]round.Bet {
	// Convenience: SenderID encodes in the map; callers build maps directly
	// when they need multiple participants.
	return map[ledger.ParticipantID][]round.Bet{1: entries}
}

func TestProportional_WinWithQuota(t *testing.T) {
	l, e := newFixture(t, settle.ModeProportional, 1)
	e.SetQuota("X", 2)

	result := e.Settle(1, []string{"X"}, bets(round.Bet{RoundID: 1, Amount: 200, OutcomeTag: "X"}))

	// start 1000, bet 200 on winning tag with quota 2: +400
	balance, _ := l.BalanceOf(1)
	if balance != 1400 {
		t.Errorf("balance: got %d, want 1400", balance)
	}
	if result.Deltas[1] != 400 {
		t.Errorf("delta: got %d, want 400", result.Deltas[1])
	}
}

func TestProportional_LossDebitsStake(t *testing.T) {
	l, e := newFixture(t, settle.ModeProportional, 1)

	result := e.Settle(1, []string{"Y"}, bets(round.Bet{RoundID: 1, Amount: 200, OutcomeTag: "X"}))

	balance, _ := l.BalanceOf(1)
	if balance != 800 {
		t.Errorf("balance: got %d, want 800", balance)
	}
	if result.Deltas[1] != -200 {
		t.Errorf("delta: got %d, want -200", result.Deltas[1])
	}
}

func TestProportional_UnconfiguredQuotaDefaultsToOne(t *testing.T) {
	l, e := newFixture(t, settle.ModeProportional, 1)

	e.Settle(1, []string{"X"}, bets(round.Bet{RoundID: 1, Amount: 300, OutcomeTag: "X"}))

	balance, _ := l.BalanceOf(1)
	if balance != 1300 {
		t.Errorf("balance: got %d, want 1300", balance)
	}
}

func TestProportional_MultipleBetsSameRound(t *testing.T) {
	l, e := newFixture(t, settle.ModeProportional, 1)
	e.SetQuota("X", 3)

	e.Settle(1, []string{"X"}, bets(
		round.Bet{RoundID: 1, Amount: 100, OutcomeTag: "X"},
		round.Bet{RoundID: 1, Amount: 50, OutcomeTag: "Z"},
	))

	// +300 for the winning bet, -50 for the losing one
	balance, _ := l.BalanceOf(1)
	if balance != 1250 {
		t.Errorf("balance: got %d, want 1250", balance)
	}
}

func TestProportional_NotZeroSum(t *testing.T) {
	l, e := newFixture(t, settle.ModeProportional, 1, 2)
	e.SetQuota("X", 2)

	all := map[ledger.ParticipantID][]round.Bet{
		1: {{RoundID: 1, Amount: 100, OutcomeTag: "X"}},
		2: {{RoundID: 1, Amount: 100, OutcomeTag: "Y"}},
	}
	e.Settle(1, []string{"X"}, all)

	a, _ := l.BalanceOf(1)
	b, _ := l.BalanceOf(2)
	// Winner's payout is minted, not drawn from the loser's stake.
	if a != 1200 || b != 900 {
		t.Errorf("balances: got %d/%d, want 1200/900", a, b)
	}
}

func TestWinnerTakesAll_SingleWinnerCollectsPot(t *testing.T) {
	l, e := newFixture(t, settle.ModeWinnerTakesAll, 1, 2)

	all := map[ledger.ParticipantID][]round.Bet{
		1: {{RoundID: 1, Amount: 100, OutcomeTag: "X"}}, // loses
		2: {{RoundID: 1, Amount: 100, OutcomeTag: "Y"}}, // wins
	}
	result := e.Settle(1, []string{"Y"}, all)

	a, _ := l.BalanceOf(1)
	b, _ := l.BalanceOf(2)
	if a != 900 {
		t.Errorf("loser balance: got %d, want 900", a)
	}
	// Winner nets back exactly the loser pool: 900 + round(100/1) = 1000.
	if b != 1000 {
		t.Errorf("winner balance: got %d, want 1000", b)
	}
	if result.Pot != 100 {
		t.Errorf("pot: got %d, want 100", result.Pot)
	}
	if result.Residual != 0 {
		t.Errorf("residual: got %d, want 0", result.Residual)
	}
}

func TestWinnerTakesAll_MultipleWinningBetsCreditedPerBet(t *testing.T) {
	l, e := newFixture(t, settle.ModeWinnerTakesAll, 1, 2)

	all := map[ledger.ParticipantID][]round.Bet{
		1: {
			{RoundID: 1, Amount: 10, OutcomeTag: "W"},
			{RoundID: 1, Amount: 20, OutcomeTag: "W"},
		},
		2: {{RoundID: 1, Amount: 90, OutcomeTag: "L"}},
	}
	e.Settle(1, []string{"W"}, all)

	// Pot 90, three winner entries would be wrong — two entries for
	// participant 1's two winning bets: share = round(90/2) = 45 each.
	a, _ := l.BalanceOf(1)
	if a != 1090 {
		t.Errorf("winner balance: got %d, want 1090", a)
	}
}

func TestWinnerTakesAll_ZeroWinnersRetainsPot(t *testing.T) {
	l, e := newFixture(t, settle.ModeWinnerTakesAll, 1, 2)

	all := map[ledger.ParticipantID][]round.Bet{
		1: {{RoundID: 1, Amount: 100, OutcomeTag: "X"}},
		2: {{RoundID: 1, Amount: 250, OutcomeTag: "Y"}},
	}
	result := e.Settle(1, []string{"Z"}, all)

	a, _ := l.BalanceOf(1)
	b, _ := l.BalanceOf(2)
	if a != 900 || b != 750 {
		t.Errorf("balances: got %d/%d, want 900/750", a, b)
	}
	if result.Pot != 350 {
		t.Errorf("pot: got %d, want 350", result.Pot)
	}
	if len(result.Deltas) != 2 {
		t.Errorf("deltas: got %d entries, want 2", len(result.Deltas))
	}
}

func TestWinnerTakesAll_ConservationBound(t *testing.T) {
	l, e := newFixture(t, settle.ModeWinnerTakesAll, 1, 2, 3, 4)

	// Losers stake 100; three winning bets split it: share = round(100/3) = 33.
	all := map[ledger.ParticipantID][]round.Bet{
		1: {{RoundID: 1, Amount: 100, OutcomeTag: "L"}},
		2: {{RoundID: 1, Amount: 5, OutcomeTag: "W"}},
		3: {{RoundID: 1, Amount: 5, OutcomeTag: "W"}},
		4: {{RoundID: 1, Amount: 5, OutcomeTag: "W"}},
	}
	result := e.Settle(1, []string{"W"}, all)

	var credited int64
	for id, delta := range result.Deltas {
		if id != 1 {
			credited += delta
		}
	}

	pot, winners := result.Pot, int64(3)
	if credited < pot-winners || credited > pot+winners {
		t.Errorf("credited %d outside conservation bound [%d, %d]", credited, pot-winners, pot+winners)
	}
	if result.Residual != credited-pot {
		t.Errorf("residual: got %d, want %d", result.Residual, credited-pot)
	}

	balance, _ := l.BalanceOf(2)
	if balance != 1033 {
		t.Errorf("winner balance: got %d, want 1033", balance)
	}
}

func TestSettle_RejectedDebitLeavesLedgerConsistent(t *testing.T) {
	l, e := newFixture(t, settle.ModeProportional, 1)

	// Two full-balance bets in one round: the first losing debit zeroes the
	// account, the second is rejected and skipped.
	e.Settle(1, nil, bets(
		round.Bet{RoundID: 1, Amount: 1000, OutcomeTag: "X"},
		round.Bet{RoundID: 1, Amount: 1000, OutcomeTag: "Y"},
	))

	balance, _ := l.BalanceOf(1)
	if balance != 0 {
		t.Errorf("balance: got %d, want 0", balance)
	}
	if e.Rejected != 1 {
		t.Errorf("rejected count: got %d, want 1", e.Rejected)
	}
	if err := ledger.NewInvariantValidator(l).ValidateAll(); err != nil {
		t.Errorf("ledger inconsistent after rejected debit: %v", err)
	}
}

func TestSetQuota_NonPositiveRestoresDefault(t *testing.T) {
	_, e := newFixture(t, settle.ModeProportional)
	e.SetQuota("X", 5)
	if got := e.Quota("X"); got != 5 {
		t.Errorf("quota: got %d, want 5", got)
	}
	e.SetQuota("X", 0)
	if got := e.Quota("X"); got != 1 {
		t.Errorf("quota after reset: got %d, want 1", got)
	}
}
