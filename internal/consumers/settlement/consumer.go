package settlement

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	settlementsvc "github.com/kasuwa-ng/marketplace-backend/internal/settlement"
	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-ng/marketplace-backend/pkg/errors"
	"github.com/kasuwa-ng/marketplace-backend/pkg/logger"
	"github.com/kasuwa-ng/marketplace-backend/pkg/outbox/registry"
	"github.com/kasuwa-ng/marketplace-backend/pkg/paystack"
	"github.com/kasuwa-ng/marketplace-backend/pkg/validate"
)

const consumerName = "settlement-worker"

// PaymentEvent is the bridged gateway notification consumed from the
// payments subscription. Amounts are in kobo, as the gateway reports them.
type PaymentEvent struct {
	EventID    uuid.UUID `json:"event_id" validate:"required"`
	Type       string    `json:"type" validate:"required"`
	OrderID    uuid.UUID `json:"order_id"`
	Reference  string    `json:"reference" validate:"required"`
	AmountKobo int64     `json:"amount"`
	Reason     string    `json:"reason,omitempty"`
}

// TransferEvent is the bridged payout status notification consumed from the
// transfers subscription.
type TransferEvent struct {
	EventID   uuid.UUID `json:"event_id" validate:"required"`
	Type      string    `json:"type" validate:"required"`
	Reference string    `json:"reference" validate:"required"`
	Reason    string    `json:"reason,omitempty"`
}

const (
	eventChargeSuccess   = "charge.success"
	eventRefundProcessed = "refund.processed"
	eventTransferSuccess = "transfer.success"
	eventTransferFailed  = "transfer.failed"
)

type verifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Charge, error)
}

type ledgerReader interface {
	FindByReference(ctx context.Context, txnType enums.TransactionType, reference string) (*models.Transaction, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns gateway notifications into settlement workflows while
// honoring Redis idempotency. Failed handling unmarks the event so the
// broker redelivery can retry it.
type Consumer struct {
	settlements settlementsvc.Service
	ledger      ledgerReader
	gateway     verifier
	manager     idempotencyChecker
	logg        *logger.Logger
}

func NewConsumer(settlements settlementsvc.Service, ledger ledgerReader, gateway verifier, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if settlements == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger reader required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		settlements: settlements,
		ledger:      ledger,
		gateway:     gateway,
		manager:     manager,
		logg:        logg,
	}, nil
}

// ProcessPayment handles one message from the payments subscription.
func (c *Consumer) ProcessPayment(ctx context.Context, data []byte) error {
	var event PaymentEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("decode payment event: %w", err))
	}
	if err := validate.Struct(event); err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("payment event invalid: %w", err))
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   event.EventID.String(),
		"event_type": event.Type,
		"reference":  event.Reference,
	})

	already, err := c.manager.CheckAndMarkProcessed(ctx, consumerName, event.EventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	if err := c.handlePayment(logCtx, event); err != nil {
		_ = c.manager.Delete(ctx, consumerName, event.EventID)
		c.logg.Error(logCtx, "payment event failed", err)
		return err
	}
	c.logg.Info(logCtx, "payment event settled")
	return nil
}

func (c *Consumer) handlePayment(ctx context.Context, event PaymentEvent) error {
	switch event.Type {
	case eventChargeSuccess:
		// Never trust the bridged payload alone: re-verify the charge
		// with the gateway before moving money.
		charge, err := c.gateway.VerifyTransaction(ctx, event.Reference)
		if err != nil {
			return err
		}
		if !charge.Succeeded() {
			return registry.NewNonRetryableError(fmt.Errorf("charge %s not successful at gateway", event.Reference))
		}
		if event.AmountKobo != 0 && charge.AmountKobo != event.AmountKobo {
			return registry.NewNonRetryableError(fmt.Errorf("charge %s amount mismatch", event.Reference))
		}
		_, err = c.settlements.CapturePayment(ctx, settlementsvc.CapturePaymentInput{
			OrderID:   event.OrderID,
			Reference: event.Reference,
		})
		return nonRetryableIfCoded(err)
	case eventRefundProcessed:
		_, err := c.settlements.RefundOrder(ctx, settlementsvc.RefundInput{
			OrderID:      event.OrderID,
			Reference:    event.Reference,
			RefundAmount: fromKobo(event.AmountKobo),
			Reason:       event.Reason,
		})
		return nonRetryableIfCoded(err)
	default:
		c.logg.Info(ctx, "payment event type not handled")
		return nil
	}
}

// ProcessTransfer handles one message from the transfers subscription.
func (c *Consumer) ProcessTransfer(ctx context.Context, data []byte) error {
	var event TransferEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("decode transfer event: %w", err))
	}
	if err := validate.Struct(event); err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("transfer event invalid: %w", err))
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   event.EventID.String(),
		"event_type": event.Type,
		"reference":  event.Reference,
	})

	already, err := c.manager.CheckAndMarkProcessed(ctx, consumerName, event.EventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	if err := c.handleTransfer(logCtx, event); err != nil {
		_ = c.manager.Delete(ctx, consumerName, event.EventID)
		c.logg.Error(logCtx, "transfer event failed", err)
		return err
	}
	return nil
}

func (c *Consumer) handleTransfer(ctx context.Context, event TransferEvent) error {
	switch event.Type {
	case eventTransferSuccess:
		c.logg.Info(ctx, "transfer confirmed by gateway")
		return nil
	case eventTransferFailed:
		txn, err := c.ledger.FindByReference(ctx, enums.TransactionTypeWalletWithdrawal, event.Reference)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return registry.NewNonRetryableError(fmt.Errorf("no withdrawal for transfer %s", event.Reference))
			}
			return err
		}
		if txn.Status == enums.TransactionStatusPending {
			// The approval never committed; return the funds.
			reason := event.Reason
			if reason == "" {
				reason = "gateway transfer failed"
			}
			_, err := c.settlements.RejectWithdrawal(ctx, txn.ID, reason, uuid.Nil)
			return nonRetryableIfCoded(err)
		}
		// A failure after completion is a reconciliation exception that
		// finance resolves by hand; flag it rather than auto-compensate.
		c.logg.Warn(ctx, "transfer failed after withdrawal completion")
		return nil
	default:
		c.logg.Info(ctx, "transfer event type not handled")
		return nil
	}
}

// nonRetryableIfCoded stops redelivery for domain rejections; infrastructure
// errors stay retryable.
func nonRetryableIfCoded(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case pkgerrors.HasCode(err, pkgerrors.CodeValidation),
		pkgerrors.HasCode(err, pkgerrors.CodeNotFound),
		pkgerrors.HasCode(err, pkgerrors.CodeConflict),
		pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition),
		pkgerrors.HasCode(err, pkgerrors.CodeLedgerUnbalanced):
		return registry.NewNonRetryableError(err)
	}
	return err
}

var kobosPerNaira = decimal.NewFromInt(100)

func fromKobo(kobo int64) decimal.Decimal {
	return decimal.NewFromInt(kobo).Div(kobosPerNaira)
}
