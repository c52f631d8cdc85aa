package ledger

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantID is the single identifier type for participants. The external
// transport may hand out numeric or string handles; ingress layers normalize
// to this type and nothing past the boundary coerces between forms.
type ParticipantID int64

// BankID is the provenance id used for transactions initiated by the bank
// itself (seeding, settlement adjustments).
const BankID ParticipantID = 0

// TransactionKind classifies a ledger transaction
type TransactionKind int32

const (
	KindSeed TransactionKind = iota
	KindTransfer
	KindBetWon
	KindBetLost
	KindAdjustment
)

func (k TransactionKind) String() string {
	switch k {
	case KindSeed:
		return "seed"
	case KindTransfer:
		return "transfer"
	case KindBetWon:
		return "bet_won"
	case KindBetLost:
		return "bet_lost"
	case KindAdjustment:
		return "adjustment"
	default:
		return "unknown"
	}
}

// Transaction is an immutable signed balance adjustment with provenance.
// Amount is positive for credits, negative for debits.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	Amount    int64           `json:"amount"`
	SenderID  ParticipantID   `json:"sender_id"`
	Kind      TransactionKind `json:"kind"`
	Timestamp time.Time       `json:"ts"`
	Initial   bool            `json:"initial,omitempty"`
}

// Account is the per-participant ledger. Balance is cached but always equal
// to the sum of Transactions amounts; the Ledger enforces that equality on
// every append.
type Account struct {
	ID           ParticipantID `json:"participant_id"`
	Active       bool          `json:"active"`
	Balance      int64         `json:"balance"`
	Transactions []Transaction `json:"transactions"`
}

// Clone returns a deep copy, safe to hand to publishers and query surfaces.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Transactions = make([]Transaction, len(a.Transactions))
	copy(cp.Transactions, a.Transactions)
	return &cp
}

// SumTransactions recomputes the balance from the transaction log.
func (a *Account) SumTransactions() int64 {
	var sum int64
	for _, tx := range a.Transactions {
		sum += tx.Amount
	}
	return sum
}
