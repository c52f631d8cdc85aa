package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownAccount is returned when an operation references a
	// participant that was never registered.
	ErrUnknownAccount = errors.New("account not registered")

	// ErrInsufficientFunds is returned when an append would leave the
	// account with a negative balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Ledger is the single source of truth for balances. All mutation goes
// through Apply; balances only ever change by appending a transaction.
//
// The ledger itself carries no lock: the owning engine serializes access
// (single-writer discipline).
type Ledger struct {
	accounts   map[ParticipantID]*Account
	startValue int64
	now        func() time.Time
}

func NewLedger(startValue int64) *Ledger {
	return &Ledger{
		accounts:   make(map[ParticipantID]*Account),
		startValue: startValue,
		now:        time.Now,
	}
}

// Register creates an account seeded with the configured start value. If the
// account already exists it only flips active back on — a reconnect never
// reseeds or duplicates history.
func (l *Ledger) Register(id ParticipantID) *Account {
	if acct, ok := l.accounts[id]; ok {
		acct.Active = true
		return acct
	}

	acct := &Account{
		ID:      id,
		Active:  true,
		Balance: l.startValue,
		Transactions: []Transaction{{
			ID:        uuid.New(),
			Amount:    l.startValue,
			SenderID:  BankID,
			Kind:      KindSeed,
			Timestamp: l.now(),
			Initial:   true,
		}},
	}
	l.accounts[id] = acct
	return acct
}

// SetActive marks connectivity without touching balance or history.
func (l *Ledger) SetActive(id ParticipantID, active bool) error {
	acct, ok := l.accounts[id]
	if !ok {
		return fmt.Errorf("set active %d: %w", id, ErrUnknownAccount)
	}
	acct.Active = active
	return nil
}

// BalanceOf returns the account balance, ErrUnknownAccount if never registered.
func (l *Ledger) BalanceOf(id ParticipantID) (int64, error) {
	acct, ok := l.accounts[id]
	if !ok {
		return 0, fmt.Errorf("balance of %d: %w", id, ErrUnknownAccount)
	}
	return acct.Balance, nil
}

// Account returns the live account record, or nil if unknown.
func (l *Ledger) Account(id ParticipantID) *Account {
	return l.accounts[id]
}

// Apply appends a signed transaction to the participant's log. The resulting
// balance must stay >= 0; the same boundary applies to every debit path
// (transfers, settlement losses) so that an account may be zeroed exactly but
// never overdrawn. The cached balance is updated together with the append —
// no intermediate state is observable under the engine's serialization.
func (l *Ledger) Apply(id ParticipantID, amount int64, causedBy ParticipantID, kind TransactionKind) error {
	acct, ok := l.accounts[id]
	if !ok {
		return fmt.Errorf("apply to %d: %w", id, ErrUnknownAccount)
	}
	if acct.Balance+amount < 0 {
		return fmt.Errorf("apply %d to %d (balance %d): %w", amount, id, acct.Balance, ErrInsufficientFunds)
	}

	acct.Transactions = append(acct.Transactions, Transaction{
		ID:        uuid.New(),
		Amount:    amount,
		SenderID:  causedBy,
		Kind:      kind,
		Timestamp: l.now(),
	})
	acct.Balance += amount
	return nil
}

// Transfer moves amount from sender to receiver as one all-or-nothing
// operation: both sides are validated before either transaction is appended,
// so a debit can never land without its credit. A self-transfer applies a
// single debit (paying into the bank).
func (l *Ledger) Transfer(sender, receiver ParticipantID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer of %d: amount must be positive", amount)
	}

	src, ok := l.accounts[sender]
	if !ok {
		return fmt.Errorf("transfer sender %d: %w", sender, ErrUnknownAccount)
	}
	if _, ok := l.accounts[receiver]; !ok {
		return fmt.Errorf("transfer receiver %d: %w", receiver, ErrUnknownAccount)
	}
	if src.Balance-amount < 0 {
		return fmt.Errorf("transfer %d from %d (balance %d): %w", amount, sender, src.Balance, ErrInsufficientFunds)
	}

	if sender == receiver {
		return l.Apply(sender, -amount, sender, KindTransfer)
	}

	if err := l.Apply(sender, -amount, sender, KindTransfer); err != nil {
		return err
	}
	// Credit cannot fail: receiver exists and credits never reduce a balance.
	return l.Apply(receiver, amount, sender, KindTransfer)
}

// ActiveIDs returns the roster of currently connected participants, sorted
// for deterministic iteration.
func (l *Ledger) ActiveIDs() []ParticipantID {
	ids := make([]ParticipantID, 0, len(l.accounts))
	for id, acct := range l.accounts {
		if acct.Active {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AllIDs returns every registered participant, active or not, sorted.
func (l *Ledger) AllIDs() []ParticipantID {
	ids := make([]ParticipantID, 0, len(l.accounts))
	for id := range l.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered accounts.
func (l *Ledger) Len() int {
	return len(l.accounts)
}

// StartValue returns the configured seeding balance.
func (l *Ledger) StartValue() int64 {
	return l.startValue
}

// Snapshot returns a deep copy of all accounts keyed by participant id.
func (l *Ledger) Snapshot() map[ParticipantID]*Account {
	snap := make(map[ParticipantID]*Account, len(l.accounts))
	for id, acct := range l.accounts {
		snap[id] = acct.Clone()
	}
	return snap
}

// Reset drops every transaction log and reseeds all known accounts at the
// start value, preserving active flags. All unsettled bets are forfeit.
func (l *Ledger) Reset() {
	for id, acct := range l.accounts {
		l.accounts[id] = &Account{
			ID:      id,
			Active:  acct.Active,
			Balance: l.startValue,
			Transactions: []Transaction{{
				ID:        uuid.New(),
				Amount:    l.startValue,
				SenderID:  BankID,
				Kind:      KindSeed,
				Timestamp: l.now(),
				Initial:   true,
			}},
		}
	}
}
