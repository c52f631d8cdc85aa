// Package settle resolves a closed round's bets into ledger transactions.
package settle

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"BetBank/internal/ledger"
	"BetBank/internal/round"
)

// Mode selects the settlement policy, fixed at construction.
type Mode string

const (
	ModeProportional   Mode = "default"
	ModeWinnerTakesAll Mode = "winner_takes_all"
)

// ParseMode maps a config string to a Mode, defaulting to proportional.
func ParseMode(s string) Mode {
	if s == string(ModeWinnerTakesAll) {
		return ModeWinnerTakesAll
	}
	return ModeProportional
}

// Quotas maps outcome tags to payout multipliers for the proportional policy.
// An unconfigured tag pays at multiplier 1.
type Quotas map[string]int64

func (q Quotas) For(tag string) int64 {
	if quota, ok := q[tag]; ok && quota > 0 {
		return quota
	}
	return 1
}

// Result is the outcome of settling one round.
type Result struct {
	RoundID     int64                          `json:"round_id"`
	Mode        Mode                           `json:"mode"`
	WinningTags []string                       `json:"winning_tags"`
	Deltas      map[ledger.ParticipantID]int64 `json:"deltas"`
	Pot         int64                          `json:"pot,omitempty"`
	Residual    int64                          `json:"residual,omitempty"`
}

// Engine applies settlement for a round. Every balance change goes through
// the ledger's transaction primitive so the non-negativity invariant is
// re-validated on each credit and debit; a debit the ledger rejects is
// logged, counted, and skipped — never force-applied.
type Engine struct {
	ledger *ledger.Ledger
	mode   Mode
	quotas Quotas
	log    zerolog.Logger

	// Rejected is incremented for every settlement debit the ledger refused
	// (a participant staked more across the round than they could cover).
	Rejected int64
}

func NewEngine(l *ledger.Ledger, mode Mode, log zerolog.Logger) *Engine {
	return &Engine{
		ledger: l,
		mode:   mode,
		quotas: make(Quotas),
		log:    log,
	}
}

func (e *Engine) Mode() Mode {
	return e.mode
}

// SetQuota configures the payout multiplier for a tag. Zero or negative
// restores the default of 1.
func (e *Engine) SetQuota(tag string, quota int64) {
	if quota <= 0 {
		quota = 1
	}
	e.quotas[tag] = quota
}

func (e *Engine) Quota(tag string) int64 {
	return e.quotas.For(tag)
}

// Settle resolves all bets recorded under roundID against the winning tags,
// under the engine's configured mode.
func (e *Engine) Settle(roundID int64, winningTags []string, bets map[ledger.ParticipantID][]round.Bet) *Result {
	if e.mode == ModeWinnerTakesAll {
		return e.settleWinnerTakesAll(roundID, winningTags, bets)
	}
	return e.settleProportional(roundID, winningTags, bets)
}

// settleProportional pays each winning bet amount*quota(tag) and debits each
// losing bet's stake. Winnings are house-backed: they are minted from the
// quota multiplier, not drawn from a shared pot, so the round is not zero-sum.
func (e *Engine) settleProportional(roundID int64, winningTags []string, bets map[ledger.ParticipantID][]round.Bet) *Result {
	result := &Result{
		RoundID:     roundID,
		Mode:        ModeProportional,
		WinningTags: winningTags,
		Deltas:      make(map[ledger.ParticipantID]int64),
	}

	for _, id := range sortedKeys(bets) {
		for _, bet := range bets[id] {
			if matchesAny(bet.OutcomeTag, winningTags) {
				payout := bet.Amount * e.quotas.For(bet.OutcomeTag)
				e.apply(id, payout, ledger.KindBetWon, result)
			} else {
				e.apply(id, -bet.Amount, ledger.KindBetLost, result)
			}
		}
	}

	return result
}

// settleWinnerTakesAll debits every losing stake into a pot, then splits the
// pot evenly over the winning bets. An account with multiple winning bets is
// credited once per bet. The per-winner share is rounded independently, so
// the credited total may drift from the pot by at most the number of winners;
// the residual is reported but not redistributed.
func (e *Engine) settleWinnerTakesAll(roundID int64, winningTags []string, bets map[ledger.ParticipantID][]round.Bet) *Result {
	result := &Result{
		RoundID:     roundID,
		Mode:        ModeWinnerTakesAll,
		WinningTags: winningTags,
		Deltas:      make(map[ledger.ParticipantID]int64),
	}

	var winners []ledger.ParticipantID
	var pot int64

	for _, id := range sortedKeys(bets) {
		for _, bet := range bets[id] {
			if matchesAny(bet.OutcomeTag, winningTags) {
				winners = append(winners, id)
			} else {
				if e.apply(id, -bet.Amount, ledger.KindBetLost, result) {
					pot += bet.Amount
				}
			}
		}
	}

	result.Pot = pot

	// Zero winners: the pot is retained by the bank, nothing to distribute.
	if len(winners) == 0 {
		if pot > 0 {
			e.log.Info().Int64("round_id", roundID).Int64("pot", pot).
				Msg("winner-takes-all round had no winners, pot retained")
		}
		return result
	}

	share := int64(math.Round(float64(pot) / float64(len(winners))))

	var credited int64
	for _, id := range winners {
		if e.apply(id, share, ledger.KindBetWon, result) {
			credited += share
		}
	}
	result.Residual = credited - pot

	return result
}

// apply routes one settlement adjustment through the ledger, caused by the
// bettor themselves. Returns whether the ledger accepted it.
func (e *Engine) apply(id ledger.ParticipantID, amount int64, kind ledger.TransactionKind, result *Result) bool {
	if amount == 0 {
		return true
	}
	if err := e.ledger.Apply(id, amount, id, kind); err != nil {
		e.Rejected++
		e.log.Warn().Err(err).
			Int64("participant_id", int64(id)).
			Int64("amount", amount).
			Str("kind", kind.String()).
			Msg("settlement adjustment rejected by ledger")
		return false
	}
	result.Deltas[id] += amount
	return true
}

// matchesAny reports whether tag is in the winning set.
func matchesAny(tag string, winningTags []string) bool {
	for _, w := range winningTags {
		if tag == w {
			return true
		}
	}
	return false
}

// sortedKeys returns participant ids in ascending order so settlement applies
// deterministically regardless of map iteration.
func sortedKeys(bets map[ledger.ParticipantID][]round.Bet) []ledger.ParticipantID {
	ids := make([]ledger.ParticipantID, 0, len(bets))
	for id := range bets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
