package ledger

import "fmt"

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	ledger *Ledger
}

func NewInvariantValidator(l *Ledger) *InvariantValidator {
	return &InvariantValidator{ledger: l}
}

// ValidateAccountConsistency verifies balance == sum(transaction amounts)
// for one account.
func (v *InvariantValidator) ValidateAccountConsistency(id ParticipantID) error {
	acct, ok := v.ledger.accounts[id]
	if !ok {
		return fmt.Errorf("validate %d: %w", id, ErrUnknownAccount)
	}
	if sum := acct.SumTransactions(); sum != acct.Balance {
		return fmt.Errorf("account %d: cached balance %d != transaction sum %d", id, acct.Balance, sum)
	}
	return nil
}

// ValidateNonNegative verifies balance >= 0 for one account.
func (v *InvariantValidator) ValidateNonNegative(id ParticipantID) error {
	acct, ok := v.ledger.accounts[id]
	if !ok {
		return fmt.Errorf("validate %d: %w", id, ErrUnknownAccount)
	}
	if acct.Balance < 0 {
		return fmt.Errorf("account %d has negative balance: %d", id, acct.Balance)
	}
	return nil
}

// ValidateAll sweeps every account for both invariants. Used by the engine's
// periodic consistency check.
func (v *InvariantValidator) ValidateAll() error {
	for id := range v.ledger.accounts {
		if err := v.ValidateAccountConsistency(id); err != nil {
			return err
		}
		if err := v.ValidateNonNegative(id); err != nil {
			return err
		}
	}
	return nil
}
