package settlement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/kasuwa-ng/marketplace-backend/pkg/paystack"
)

// Gateway is the slice of the payment provider the orchestrator needs.
// *paystack.Client satisfies it; tests substitute fakes.
type Gateway interface {
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Charge, error)
	CreateTransferRecipient(ctx context.Context, params paystack.TransferRecipientParams) (*paystack.TransferRecipient, error)
	InitiateTransfer(ctx context.Context, params paystack.TransferParams) (*paystack.Transfer, error)
	CreateRefund(ctx context.Context, params paystack.RefundParams) (*paystack.Refund, error)
}

var kobosPerNaira = decimal.NewFromInt(100)

// toKobo converts a naira amount to the gateway's integer minor unit.
func toKobo(amount decimal.Decimal) int64 {
	return amount.Mul(kobosPerNaira).Round(0).IntPart()
}
