package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementCompletedEvent is emitted when a captured payment has been split
// across the vendor, dispatch, and platform ledgers.
type SettlementCompletedEvent struct {
	TransactionID  uuid.UUID       `json:"transaction_id"`
	OrderID        uuid.UUID       `json:"order_id"`
	VendorID       uuid.UUID       `json:"vendor_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	VendorAmount   decimal.Decimal `json:"vendor_amount"`
	DispatchAmount decimal.Decimal `json:"dispatch_amount"`
	PlatformAmount decimal.Decimal `json:"platform_amount"`
	VATAmount      decimal.Decimal `json:"vat_amount"`
	Currency       string          `json:"currency"`
	SettledAt      time.Time       `json:"settled_at"`
}

// SettlementRefundedEvent reports a full or partial reversal of a prior settlement.
type SettlementRefundedEvent struct {
	TransactionID         uuid.UUID       `json:"transaction_id"`
	OriginalTransactionID uuid.UUID       `json:"original_transaction_id"`
	OrderID               uuid.UUID       `json:"order_id"`
	RefundAmount          decimal.Decimal `json:"refund_amount"`
	Currency              string          `json:"currency"`
	Reason                string          `json:"reason,omitempty"`
	RefundedAt            time.Time       `json:"refunded_at"`
}

// WithdrawalRequestedEvent signals a pending payout awaiting approval.
type WithdrawalRequestedEvent struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	UserID        uuid.UUID       `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	Currency      string          `json:"currency"`
	RequestedAt   time.Time       `json:"requested_at"`
}

// WithdrawalApprovedEvent is emitted once the payout has been sent to the bank.
type WithdrawalApprovedEvent struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	ApprovedBy    uuid.UUID       `json:"approved_by"`
	ApprovedAt    time.Time       `json:"approved_at"`
}

// WithdrawalRejectedEvent reports a rejected payout whose funds were returned
// to the wallet.
type WithdrawalRejectedEvent struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason,omitempty"`
	RejectedAt    time.Time       `json:"rejected_at"`
}

// WithdrawalStalledEvent flags a payout request that has sat pending past the
// review deadline so operations can chase it.
type WithdrawalStalledEvent struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PendingDays   int             `json:"pending_days"`
	RequestedAt   time.Time       `json:"requested_at"`
}
