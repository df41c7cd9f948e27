package paystack

import (
	"encoding/json"
	"time"
)

// envelope is the outer shape of every Paystack response.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Charge is the verified state of a gateway transaction. Amounts are in kobo.
type Charge struct {
	ID         int64      `json:"id"`
	Reference  string     `json:"reference"`
	Status     string     `json:"status"`
	AmountKobo int64      `json:"amount"`
	Currency   string     `json:"currency"`
	Channel    string     `json:"channel"`
	PaidAt     *time.Time `json:"paid_at"`
}

// Succeeded reports whether the charge settled at the gateway.
func (c Charge) Succeeded() bool {
	return c.Status == "success"
}

// TransferRecipientParams identifies the bank account to register for payouts.
type TransferRecipientParams struct {
	Name          string
	AccountNumber string
	BankCode      string
	Currency      string
}

// TransferRecipient is a registered payout destination.
type TransferRecipient struct {
	RecipientCode string `json:"recipient_code"`
	Active        bool   `json:"active"`
}

// TransferParams describes a payout. Amounts are in kobo.
type TransferParams struct {
	AmountKobo    int64
	RecipientCode string
	Reference     string
	Reason        string
}

// Transfer is the gateway's view of an initiated payout.
type Transfer struct {
	ID           int64  `json:"id"`
	TransferCode string `json:"transfer_code"`
	Reference    string `json:"reference"`
	Status       string `json:"status"`
	AmountKobo   int64  `json:"amount"`
}

// RefundParams describes a refund request. A zero amount refunds in full.
type RefundParams struct {
	TransactionReference string
	AmountKobo           int64
}

// Refund is the gateway's view of a refund request.
type Refund struct {
	ID         int64  `json:"id"`
	Status     string `json:"status"`
	AmountKobo int64  `json:"amount"`
}

// Bank is a supported settlement bank.
type Bank struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Code     string `json:"code"`
	Currency string `json:"currency"`
}

// ResolvedAccount is the holder behind an account number.
type ResolvedAccount struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}
