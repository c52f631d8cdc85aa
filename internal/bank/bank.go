// Package bank wires the ledger, round tracker, bet book and settlement
// engine into one single-writer engine. Every mutating operation takes the
// engine mutex, is applied in full (validate, mutate, quorum check, snapshot
// publish) and only then releases it, so the read-modify-append sequences in
// the ledger are atomic and partially-settled rounds are never observable.
package bank

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"BetBank/internal/event"
	"BetBank/internal/ledger"
	"BetBank/internal/observability"
	"BetBank/internal/round"
	"BetBank/internal/settle"
)

// ErrRoundLocked is returned for bets placed between closeRound and the next
// openRound.
var ErrRoundLocked = errors.New("betting round is locked")

// ErrInvalidAmount is returned for non-positive bet or transfer amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// consistencySweepEvery is the operation interval for the full-ledger
// invariant sweep; affected accounts are checked on every operation.
const consistencySweepEvery = 1000

// Snapshot is the full ledger view published to all participants after every
// mutating operation. Field names match the wire format the controller UI
// consumes.
type Snapshot struct {
	Accounts   map[ledger.ParticipantID]*ledger.Account `json:"devices"`
	BetRoundID int64                                    `json:"bet_round_id"`
	BetsLocked bool                                     `json:"bets_locked"`
}

// Update is what the bank hands to the outbound publisher: the latest
// snapshot and, when a round was just settled, its result.
type Update struct {
	Snapshot *Snapshot
	Result   *settle.Result
}

// QuorumFunc is invoked when every active participant has bet in the open
// round. It runs on the engine goroutine while the engine lock is held, so
// it must not call back into the Bank; dispatch to another goroutine for
// anything heavier than flipping a flag.
type QuorumFunc func(roundID int64)

// Options configures a Bank at construction.
type Options struct {
	StartValue int64
	Mode       settle.Mode
}

// Bank is the engine instance. All state hangs off this struct — multiple
// independent games can run in one process, each with its own Bank.
type Bank struct {
	mu sync.Mutex

	ledger    *ledger.Ledger
	validator *ledger.InvariantValidator
	rounds    *round.Tracker
	book      *round.Book
	settler   *settle.Engine

	publishChan chan<- Update
	onQuorum    []QuorumFunc
	results     []*settle.Result

	opCount int64
	log     zerolog.Logger
	metrics *observability.Metrics
}

// New creates a Bank. publishChan receives an Update after every mutating
// operation; sends never block — when the channel is full the update is
// dropped and counted (the next mutation publishes a fresher snapshot
// anyway). metrics may be nil in tests.
func New(opts Options, publishChan chan<- Update, log zerolog.Logger, metrics *observability.Metrics) *Bank {
	if opts.StartValue <= 0 {
		opts.StartValue = 1000
	}

	l := ledger.NewLedger(opts.StartValue)

	return &Bank{
		ledger:      l,
		validator:   ledger.NewInvariantValidator(l),
		rounds:      round.NewTracker(),
		book:        round.NewBook(),
		settler:     settle.NewEngine(l, opts.Mode, log),
		publishChan: publishChan,
		log:         log,
		metrics:     metrics,
	}
}

// OnQuorum registers a callback for the "all participants have bet"
// notification. Registration is not safe concurrently with request
// processing; register before the engine starts serving.
func (b *Bank) OnQuorum(fn QuorumFunc) {
	b.onQuorum = append(b.onQuorum, fn)
}

// Handle dispatches a decoded inbound request. This is the entry point the
// ingestion loop drains into.
func (b *Bank) Handle(req event.Request) error {
	start := time.Now()
	action := req.RequestType().String()

	var err error
	switch r := req.(type) {
	case *event.Connect:
		b.Connect(r.Participant)
	case *event.Disconnect:
		err = b.Disconnect(r.Participant)
	case *event.PlaceBet:
		err = b.PlaceBet(r.Participant, r.Amount, r.OutcomeTag)
	case *event.MakeTransaction:
		err = b.Transfer(r.SenderID, r.ReceiverID, r.Amount)
	case *event.OpenRound:
		b.OpenRound()
	case *event.CloseRound:
		b.CloseRound()
	case *event.EvaluateRound:
		b.EvaluateRound(r.WinningTags, r.RoundID)
	default:
		err = fmt.Errorf("unknown request type %T", req)
	}

	if b.metrics != nil {
		if err != nil {
			b.metrics.RequestsRejected.WithLabelValues(action, rejectReason(err)).Inc()
		} else {
			b.metrics.RequestsApplied.WithLabelValues(action).Inc()
		}
		b.metrics.RequestDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		// All taxonomy errors are local and recoverable: log and move on,
		// the request simply has no effect.
		b.log.Warn().Err(err).Str("action", action).Msg("request rejected")
	}

	return err
}

// Connect registers a participant on first connection (seeding the account
// with the start value) or reactivates a known one; reconnects never touch
// balance or history.
func (b *Bank) Connect(id ledger.ParticipantID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	known := b.ledger.Len()
	b.ledger.Register(id)
	b.log.Info().Int64("participant_id", int64(id)).Msg("participant connected")

	if b.metrics != nil {
		b.metrics.RegisteredAccounts.Set(float64(b.ledger.Len()))
		b.metrics.ActiveParticipants.Set(float64(len(b.ledger.ActiveIDs())))
		if b.ledger.Len() > known {
			b.metrics.TransactionsAppended.WithLabelValues(ledger.KindSeed.String()).Inc()
		}
	}

	b.finish(id)
}

// Disconnect flags the participant inactive and re-runs quorum detection —
// a departing holdout can complete the quorum for everyone else.
func (b *Bank) Disconnect(id ledger.ParticipantID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ledger.SetActive(id, false); err != nil {
		return err
	}
	b.log.Info().Int64("participant_id", int64(id)).Msg("participant disconnected")

	if b.metrics != nil {
		b.metrics.ActiveParticipants.Set(float64(len(b.ledger.ActiveIDs())))
	}

	b.checkQuorum()
	b.finish(id)
	return nil
}

// PlaceBet validates and records a stake on an outcome tag in the open
// round. Betting the entire balance is legal; funds move only at settlement.
func (b *Bank) PlaceBet(id ledger.ParticipantID, amount int64, outcomeTag string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rounds.IsLocked() {
		return fmt.Errorf("bet by %d: %w", id, ErrRoundLocked)
	}
	if amount <= 0 {
		return fmt.Errorf("bet of %d by %d: %w", amount, id, ErrInvalidAmount)
	}

	balance, err := b.ledger.BalanceOf(id)
	if err != nil {
		return err
	}
	if balance-amount < 0 {
		return fmt.Errorf("bet %d by %d (balance %d): %w", amount, id, balance, ledger.ErrInsufficientFunds)
	}

	roundID := b.rounds.RoundID()
	b.book.Record(id, round.Bet{RoundID: roundID, Amount: amount, OutcomeTag: outcomeTag})
	b.rounds.MarkBet(id)

	b.log.Info().
		Int64("participant_id", int64(id)).
		Int64("round_id", roundID).
		Int64("amount", amount).
		Str("tag", outcomeTag).
		Msg("bet placed")

	if b.metrics != nil {
		b.metrics.BetsPlaced.Inc()
		b.metrics.BetVolume.Add(float64(amount))
	}

	b.checkQuorum()
	b.finish(id)
	return nil
}

// Transfer moves funds between participants through the ledger's
// all-or-nothing primitive.
func (b *Bank) Transfer(sender, receiver ledger.ParticipantID, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ledger.Transfer(sender, receiver, amount); err != nil {
		return err
	}

	b.log.Info().
		Int64("sender_id", int64(sender)).
		Int64("receiver_id", int64(receiver)).
		Int64("amount", amount).
		Msg("transfer applied")

	if b.metrics != nil {
		b.metrics.TransfersApplied.Inc()
		b.metrics.TransactionsAppended.WithLabelValues(ledger.KindTransfer.String()).Add(2)
	}

	b.finish(sender, receiver)
	return nil
}

// OpenRound starts the next betting round.
func (b *Bank) OpenRound() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	roundID := b.rounds.Open()
	b.log.Info().Int64("round_id", roundID).Msg("round opened")

	if b.metrics != nil {
		b.metrics.RoundsOpened.Inc()
		b.metrics.CurrentRound.Set(float64(roundID))
	}

	b.finish()
	return roundID
}

// CloseRound locks the current round; no more bets until the next OpenRound.
func (b *Bank) CloseRound() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rounds.Close()
	b.log.Info().Int64("round_id", b.rounds.RoundID()).Msg("round closed")

	if b.metrics != nil {
		b.metrics.RoundsClosed.Inc()
	}

	b.finish()
}

// IsLocked reports whether the current round accepts bets.
func (b *Bank) IsLocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rounds.IsLocked()
}

// RoundID returns the current round id.
func (b *Bank) RoundID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rounds.RoundID()
}

// EvaluateRound settles all bets of a round against the winning tags under
// the configured mode. roundID 0 targets the current round. Settlement runs
// as one uninterruptible unit: the engine lock is held across both passes.
func (b *Bank) EvaluateRound(winningTags []string, roundID int64) *settle.Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	if roundID == 0 {
		roundID = b.rounds.RoundID()
	}

	start := time.Now()
	rejectedBefore := b.settler.Rejected

	result := b.settler.Settle(roundID, winningTags, b.book.BetsFor(roundID))
	b.results = append(b.results, result)

	b.log.Info().
		Int64("round_id", roundID).
		Str("mode", string(result.Mode)).
		Strs("winning_tags", winningTags).
		Int("participants", len(result.Deltas)).
		Int64("pot", result.Pot).
		Int64("residual", result.Residual).
		Msg("round settled")

	if b.metrics != nil {
		mode := string(result.Mode)
		b.metrics.RoundsSettled.WithLabelValues(mode).Inc()
		b.metrics.SettleDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
		b.metrics.SettleRejectedDebits.Add(float64(b.settler.Rejected - rejectedBefore))
		b.metrics.PotRoundingResidual.Set(float64(result.Residual))
		for _, delta := range result.Deltas {
			if delta >= 0 {
				b.metrics.SettleBetsResolved.WithLabelValues("won").Inc()
			} else {
				b.metrics.SettleBetsResolved.WithLabelValues("lost").Inc()
			}
		}
	}

	ids := make([]ledger.ParticipantID, 0, len(result.Deltas))
	for id := range result.Deltas {
		ids = append(ids, id)
	}
	b.finishWithResult(result, ids...)
	return result
}

// Results returns all settlement results so far, oldest first.
func (b *Bank) Results() []*settle.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*settle.Result, len(b.results))
	copy(out, b.results)
	return out
}

// SetTagQuota configures the proportional payout multiplier for a tag.
func (b *Bank) SetTagQuota(tag string, quota int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settler.SetQuota(tag, quota)
	b.log.Info().Str("tag", tag).Int64("quota", b.settler.Quota(tag)).Msg("tag quota set")
}

// TagQuota returns the payout multiplier for a tag (1 when unconfigured).
func (b *Bank) TagQuota(tag string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settler.Quota(tag)
}

// Mode returns the settlement mode fixed at construction.
func (b *Bank) Mode() settle.Mode {
	return b.settler.Mode()
}

// BalanceOf returns a participant's balance.
func (b *Bank) BalanceOf(id ledger.ParticipantID) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger.BalanceOf(id)
}

// Account returns a deep copy of one account, or nil if unknown.
func (b *Bank) Account(id ledger.ParticipantID) *ledger.Account {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct := b.ledger.Account(id)
	if acct == nil {
		return nil
	}
	return acct.Clone()
}

// ActiveIDs returns the roster of connected participants.
func (b *Bank) ActiveIDs() []ledger.ParticipantID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger.ActiveIDs()
}

// Snapshot returns the current full ledger view.
func (b *Bank) Snapshot() *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// Reset reseeds every known account at the start value and rewinds to round
// zero. All unsettled bets are lost.
func (b *Bank) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ledger.Reset()
	b.book.Reset()
	b.rounds.Reset()
	b.results = nil

	b.log.Info().Msg("bank reset")

	if b.metrics != nil {
		b.metrics.CurrentRound.Set(0)
	}

	b.finish()
}

// --- internals (callers hold b.mu) ---

func (b *Bank) snapshotLocked() *Snapshot {
	return &Snapshot{
		Accounts:   b.ledger.Snapshot(),
		BetRoundID: b.rounds.RoundID(),
		BetsLocked: b.rounds.IsLocked(),
	}
}

// checkQuorum recomputes the all-participants-have-bet condition from
// scratch and fires the registered callbacks when it holds.
func (b *Bank) checkQuorum() {
	if !b.rounds.QuorumReached(len(b.ledger.ActiveIDs())) {
		return
	}

	roundID := b.rounds.RoundID()
	b.log.Info().Int64("round_id", roundID).Msg("all active participants have bet")

	if b.metrics != nil {
		b.metrics.QuorumReached.Inc()
	}
	for _, fn := range b.onQuorum {
		fn(roundID)
	}
}

// finish runs the post-mutation steps shared by every operation: invariant
// checks on the touched accounts (plus a periodic full sweep) and the
// fire-and-forget snapshot publish.
func (b *Bank) finish(touched ...ledger.ParticipantID) {
	b.finishWithResult(nil, touched...)
}

func (b *Bank) finishWithResult(result *settle.Result, touched ...ledger.ParticipantID) {
	for _, id := range touched {
		if err := b.validator.ValidateAccountConsistency(id); err != nil {
			panic(fmt.Sprintf("FATAL: ledger invariant violated: %v", err))
		}
		if err := b.validator.ValidateNonNegative(id); err != nil {
			panic(fmt.Sprintf("FATAL: ledger invariant violated: %v", err))
		}
	}

	b.opCount++
	if b.opCount%consistencySweepEvery == 0 {
		if err := b.validator.ValidateAll(); err != nil {
			panic(fmt.Sprintf("FATAL: ledger invariant violated (sweep at op %d): %v", b.opCount, err))
		}
	}

	b.publish(result)
}

// publish hands the latest snapshot to the outbound channel. The mutation's
// success never depends on the publish: a full channel drops the update and
// counts the drop.
func (b *Bank) publish(result *settle.Result) {
	if b.publishChan == nil {
		return
	}

	update := Update{Snapshot: b.snapshotLocked(), Result: result}

	select {
	case b.publishChan <- update:
		if b.metrics != nil {
			b.metrics.SnapshotsPublished.Inc()
		}
	default:
		if b.metrics != nil {
			b.metrics.PublishDrops.Inc()
		}
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrUnknownAccount):
		return "unknown_account"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrRoundLocked):
		return "round_locked"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "invalid"
	}
}
