package round

import (
	"BetBank/internal/ledger"
)

// Bet is a stake on a predicted outcome tag within one round.
type Bet struct {
	RoundID    int64  `json:"round"`
	Amount     int64  `json:"amount"`
	OutcomeTag string `json:"success_tag"`
}

// Book records bets per participant per round. Validation (lock state,
// balance coverage) is the engine's job; the book only stores.
type Book struct {
	bets map[ledger.ParticipantID]map[int64][]Bet
}

func NewBook() *Book {
	return &Book{
		bets: make(map[ledger.ParticipantID]map[int64][]Bet),
	}
}

// Record appends a bet under the participant's list for the round.
func (b *Book) Record(id ledger.ParticipantID, bet Bet) {
	rounds, ok := b.bets[id]
	if !ok {
		rounds = make(map[int64][]Bet)
		b.bets[id] = rounds
	}
	rounds[bet.RoundID] = append(rounds[bet.RoundID], bet)
}

// BetsFor returns every participant's bets recorded under roundID. The
// returned map shares no storage with the book.
func (b *Book) BetsFor(roundID int64) map[ledger.ParticipantID][]Bet {
	out := make(map[ledger.ParticipantID][]Bet)
	for id, rounds := range b.bets {
		if bets, ok := rounds[roundID]; ok && len(bets) > 0 {
			cp := make([]Bet, len(bets))
			copy(cp, bets)
			out[id] = cp
		}
	}
	return out
}

// ParticipantBets returns all bets a participant has recorded under roundID.
func (b *Book) ParticipantBets(id ledger.ParticipantID, roundID int64) []Bet {
	rounds, ok := b.bets[id]
	if !ok {
		return nil
	}
	bets := rounds[roundID]
	cp := make([]Bet, len(bets))
	copy(cp, bets)
	return cp
}

// StakedIn sums a participant's stakes in a round.
func (b *Book) StakedIn(id ledger.ParticipantID, roundID int64) int64 {
	var total int64
	for _, bet := range b.ParticipantBets(id, roundID) {
		total += bet.Amount
	}
	return total
}

// Reset drops all recorded bets.
func (b *Book) Reset() {
	b.bets = make(map[ledger.ParticipantID]map[int64][]Bet)
}
