// Package round tracks the betting-round lifecycle and the bets recorded
// within each round. Like the ledger, it carries no locking of its own: the
// engine serializes access.
package round

import (
	"BetBank/internal/ledger"
)

// Tracker is the round state machine. A round is Open (bets accepted) or
// Locked (bets rejected); evaluation happens externally and the next call to
// Open starts round id+1.
type Tracker struct {
	roundID int64
	locked  bool
	hasBet  map[ledger.ParticipantID]bool
}

func NewTracker() *Tracker {
	return &Tracker{
		hasBet: make(map[ledger.ParticipantID]bool),
	}
}

// Open starts the next round: increments the round id, clears the has-bet
// set and unlocks bet acceptance.
func (t *Tracker) Open() int64 {
	t.roundID++
	t.locked = false
	t.hasBet = make(map[ledger.ParticipantID]bool)
	return t.roundID
}

// Close locks the current round. The round id does not change; no bets are
// accepted until the next Open.
func (t *Tracker) Close() {
	t.locked = true
}

func (t *Tracker) IsLocked() bool {
	return t.locked
}

func (t *Tracker) RoundID() int64 {
	return t.roundID
}

// MarkBet records that the participant has placed at least one bet this round.
func (t *Tracker) MarkBet(id ledger.ParticipantID) {
	t.hasBet[id] = true
}

// BettorCount returns the number of distinct participants who bet this round.
func (t *Tracker) BettorCount() int {
	return len(t.hasBet)
}

// QuorumReached reports whether every currently active participant has placed
// a bet this round. The comparison is recomputed from scratch on every call
// (level-triggered) rather than kept in drift-prone incremental counters.
// At least one bet must exist so that an empty roster never counts as quorum.
func (t *Tracker) QuorumReached(activeCount int) bool {
	return len(t.hasBet) > 0 && len(t.hasBet) >= activeCount
}

// Reset rewinds to the pre-first-round state (round id 0, unlocked).
func (t *Tracker) Reset() {
	t.roundID = 0
	t.locked = false
	t.hasBet = make(map[ledger.ParticipantID]bool)
}
