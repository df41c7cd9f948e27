package enums

import "fmt"

// TransactionStatus maps to the transaction_status_enum enum in Postgres.
//
// The only permitted transitions are pending -> completed -> reversed and
// pending -> failed/cancelled. Completed transactions are immutable except
// for the single move to reversed.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusReversed  TransactionStatus = "reversed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusCompleted,
	TransactionStatusReversed,
	TransactionStatusFailed,
	TransactionStatusCancelled,
}

var transactionStatusTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {
		TransactionStatusCompleted,
		TransactionStatusFailed,
		TransactionStatusCancelled,
	},
	TransactionStatusCompleted: {
		TransactionStatusReversed,
	},
}

// IsValid reports whether the value matches the canonical status enum.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s TransactionStatus) IsTerminal() bool {
	return len(transactionStatusTransitions[s]) == 0
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	for _, candidate := range transactionStatusTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
