package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasuwa-ng/marketplace-backend/internal/commission"
	"github.com/kasuwa-ng/marketplace-backend/internal/ledger"
	"github.com/kasuwa-ng/marketplace-backend/internal/orders"
	"github.com/kasuwa-ng/marketplace-backend/internal/taxpolicy"
	"github.com/kasuwa-ng/marketplace-backend/internal/users"
	"github.com/kasuwa-ng/marketplace-backend/internal/wallet"
	dbpkg "github.com/kasuwa-ng/marketplace-backend/pkg/db"
	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-ng/marketplace-backend/pkg/errors"
	"github.com/kasuwa-ng/marketplace-backend/pkg/logger"
	"github.com/kasuwa-ng/marketplace-backend/pkg/metrics"
	"github.com/kasuwa-ng/marketplace-backend/pkg/outbox"
	"github.com/kasuwa-ng/marketplace-backend/pkg/outbox/payloads"
	"github.com/kasuwa-ng/marketplace-backend/pkg/paystack"
)

const (
	workflowCapture    = "payment_capture"
	workflowRefund     = "order_refund"
	workflowWithdrawal = "withdrawal_request"
	workflowApproval   = "withdrawal_approval"
	workflowRejection  = "withdrawal_rejection"
)

// withdrawalMeta is stored on pending withdrawal transactions so approval
// and rejection can recover the payout/fee split without re-deriving it
// from entries.
type withdrawalMeta struct {
	Amount decimal.Decimal `json:"amount"`
	Fee    decimal.Decimal `json:"fee"`
}

// CapturePaymentInput settles a gateway-verified payment for one order.
// Verification happens before this call; a failed charge must never reach
// the orchestrator.
type CapturePaymentInput struct {
	OrderID   uuid.UUID
	Reference string
	Actor     *uuid.UUID
}

// RefundInput reverses part of a previously captured payment. Reference is
// the gateway's refund reference and keys idempotency, so an order can take
// several partial refunds as long as each carries its own reference.
type RefundInput struct {
	OrderID      uuid.UUID
	Reference    string
	RefundAmount decimal.Decimal
	Reason       string
	Actor        *uuid.UUID
}

// WithdrawalInput opens a pending payout against a user's wallet.
type WithdrawalInput struct {
	UserID uuid.UUID
	Amount decimal.Decimal
	Actor  *uuid.UUID
}

// Service drives the four settlement workflows. Every workflow runs its
// reads and writes inside one database transaction so a ledger record is
// never visible without its wallet mutation.
type Service interface {
	CapturePayment(ctx context.Context, input CapturePaymentInput) (*models.Transaction, error)
	RefundOrder(ctx context.Context, input RefundInput) (*models.Transaction, error)
	RequestWithdrawal(ctx context.Context, input WithdrawalInput) (*models.Transaction, error)
	ApproveWithdrawal(ctx context.Context, transactionID uuid.UUID, actor uuid.UUID) (*models.Transaction, error)
	RejectWithdrawal(ctx context.Context, transactionID uuid.UUID, reason string, actor uuid.UUID) (*models.Transaction, error)
}

type service struct {
	db      dbpkg.TxRunner
	ledger  ledger.Service
	wallets wallet.Service
	taxes   taxpolicy.Service
	orders  orders.Repository
	users   users.Repository
	outbox  *outbox.Service
	gateway Gateway
	metrics *metrics.SettlementMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// Deps carries the orchestrator's collaborators.
type Deps struct {
	DB      dbpkg.TxRunner
	Ledger  ledger.Service
	Wallets wallet.Service
	Taxes   taxpolicy.Service
	Orders  orders.Repository
	Users   users.Repository
	Outbox  *outbox.Service
	Gateway Gateway
	Metrics *metrics.SettlementMetrics
	Logger  *logger.Logger
}

func NewService(deps Deps) (Service, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("settlement: db client is required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("settlement: ledger service is required")
	case deps.Wallets == nil:
		return nil, fmt.Errorf("settlement: wallet service is required")
	case deps.Taxes == nil:
		return nil, fmt.Errorf("settlement: tax policy service is required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("settlement: orders repository is required")
	case deps.Users == nil:
		return nil, fmt.Errorf("settlement: users repository is required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("settlement: outbox service is required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("settlement: payment gateway is required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("settlement: logger is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewSettlementMetrics(nil)
	}
	return &service{
		db:      deps.DB,
		ledger:  deps.Ledger,
		wallets: deps.Wallets,
		taxes:   deps.Taxes,
		orders:  deps.Orders,
		users:   deps.Users,
		outbox:  deps.Outbox,
		gateway: deps.Gateway,
		metrics: deps.Metrics,
		logg:    deps.Logger,
		now:     time.Now,
	}, nil
}

func (s *service) CapturePayment(ctx context.Context, input CapturePaymentInput) (*models.Transaction, error) {
	start := s.now()
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	txn, err := s.capturePayment(ctx, input)
	s.observe(workflowCapture, start, err)
	if err != nil {
		s.logg.Error(ctx, "payment capture failed", err)
		return nil, err
	}
	s.logg.Info(s.logg.WithTransactionID(ctx, txn.ID.String()), "payment captured")
	return txn, nil
}

func (s *service) capturePayment(ctx context.Context, input CapturePaymentInput) (*models.Transaction, error) {
	if input.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	var txn *models.Transaction
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerTx := s.ledger.WithTx(tx)

		// A retried capture with the same reference is a no-op.
		existing, err := ledgerTx.FindByReference(ctx, enums.TransactionTypeOrderPayment, input.Reference)
		if err == nil {
			txn = existing
			return nil
		}
		if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return err
		}

		order, err := s.orders.WithTx(tx).FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
					WithDetails(map[string]string{"order_id": input.OrderID.String()})
			}
			return err
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already settled").
				WithDetails(map[string]string{"order_id": order.ID.String()})
		}

		vendor, err := s.users.WithTx(tx).FindByID(ctx, order.VendorID)
		if err != nil {
			return err
		}

		taxes := s.taxes.WithTx(tx)
		split := commission.Compute(order.LineItems, order.DeliveryFee, order.DeliveryAgentID != nil)
		vatAmount, err := taxes.CalculateVAT(ctx, order.TotalAmount, nil)
		if err != nil {
			return err
		}
		vatRate, err := taxes.Rate(ctx, nil)
		if err != nil {
			return err
		}
		responsibility, err := taxes.ResolveResponsibility(ctx, vendor, order.TotalAmount)
		if err != nil {
			return err
		}

		entries := []ledger.EntryInput{
			{Account: enums.AccountCash, Debit: split.TotalAmount, Movement: true, Description: "payment captured"},
			{Account: enums.AccountWalletVendor, UserID: &order.VendorID, Credit: split.VendorAmount, Description: "vendor share"},
		}
		if order.DeliveryAgentID != nil && split.DispatchAmount.IsPositive() {
			entries = append(entries, ledger.EntryInput{
				Account: enums.AccountWalletDispatch, UserID: order.DeliveryAgentID,
				Credit: split.DispatchAmount, Description: "dispatch share",
			})
		}
		if split.PlatformAmount.IsPositive() {
			entries = append(entries, ledger.EntryInput{
				Account: enums.AccountCommissionRevenue,
				Credit:  split.PlatformAmount, Description: "platform commission",
			})
		}
		if vatAmount.IsPositive() {
			entries = append(entries,
				ledger.EntryInput{Account: enums.AccountVATRevenue, Debit: vatAmount, Description: "vat on order total"},
				ledger.EntryInput{Account: enums.AccountVATPayable, Credit: vatAmount, Description: "vat owed to authority"},
			)
		}

		txn, err = ledgerTx.Create(ctx, ledger.CreateInput{
			Reference:   input.Reference,
			Type:        enums.TransactionTypeOrderPayment,
			Status:      enums.TransactionStatusCompleted,
			Entries:     entries,
			TotalAmount: split.TotalAmount,
			Currency:    order.Currency,
			VAT: models.VATDetails{
				Rate:           vatRate,
				Amount:         vatAmount,
				Responsibility: responsibility,
				Collected:      responsibility == enums.VATResponsibilityPlatform,
			},
			Commission: models.CommissionDetails{
				PlatformRate:   split.PlatformRate,
				PlatformAmount: split.PlatformAmount,
				VendorAmount:   split.VendorAmount,
				DispatchAmount: split.DispatchAmount,
			},
			RelatedEntityType: enums.RelatedEntityOrder,
			RelatedEntityID:   order.ID,
			CreatedBy:         input.Actor,
		})
		if err != nil {
			return err
		}

		wallets := s.wallets.WithTx(tx)
		if split.VendorAmount.IsPositive() {
			if _, err := wallets.Credit(ctx, order.VendorID, split.VendorAmount, enums.WalletOperationEarning); err != nil {
				return err
			}
		}
		if order.DeliveryAgentID != nil && split.DispatchAmount.IsPositive() {
			if _, err := wallets.Credit(ctx, *order.DeliveryAgentID, split.DispatchAmount, enums.WalletOperationEarning); err != nil {
				return err
			}
		}

		if err := s.orders.WithTx(tx).MarkPaid(ctx, order.ID, input.Reference, s.now()); err != nil {
			return err
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementCompleted,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			Actor:         actorRef(input.Actor),
			Data: payloads.SettlementCompletedEvent{
				TransactionID:  txn.ID,
				OrderID:        order.ID,
				VendorID:       order.VendorID,
				TotalAmount:    split.TotalAmount,
				VendorAmount:   split.VendorAmount,
				DispatchAmount: split.DispatchAmount,
				PlatformAmount: split.PlatformAmount,
				VATAmount:      vatAmount,
				Currency:       string(order.Currency),
				SettledAt:      s.now(),
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) RefundOrder(ctx context.Context, input RefundInput) (*models.Transaction, error) {
	start := s.now()
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	txn, err := s.refundOrder(ctx, input)
	s.observe(workflowRefund, start, err)
	if err != nil {
		s.logg.Error(ctx, "order refund failed", err)
		return nil, err
	}
	s.logg.Info(s.logg.WithTransactionID(ctx, txn.ID.String()), "order refunded")
	return txn, nil
}

func (s *service) refundOrder(ctx context.Context, input RefundInput) (*models.Transaction, error) {
	if input.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reference is required")
	}
	if !input.RefundAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	var txn *models.Transaction
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerTx := s.ledger.WithTx(tx)

		// A retried refund with the same reference is a no-op.
		existing, err := ledgerTx.FindByReference(ctx, enums.TransactionTypeOrderRefund, input.Reference)
		if err == nil {
			txn = existing
			return nil
		}
		if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return err
		}

		txns, err := ledgerTx.ListByRelatedEntity(ctx, enums.RelatedEntityOrder, input.OrderID)
		if err != nil {
			return err
		}
		original := originalPayment(txns)
		if original == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no completed payment for order").
				WithDetails(map[string]string{"order_id": input.OrderID.String()})
		}

		// The guard is cumulative across prior refunds: each refund draws
		// down what remains of the original settlement. This also bounces
		// any refund against a zero-total settlement before the ratio is
		// computed.
		refunded := completedRefundTotal(txns)
		if refunded.Add(input.RefundAmount).GreaterThan(original.TotalAmount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds remaining settlement balance").
				WithDetails(map[string]string{
					"refund_amount":    input.RefundAmount.String(),
					"already_refunded": refunded.String(),
					"original_total":   original.TotalAmount.String(),
				})
		}

		ratio := input.RefundAmount.Div(original.TotalAmount)

		// Scale each beneficiary's share; the platform leg absorbs the
		// rounding remainder so the refund reconciles to the kobo.
		vendorShare := original.Commission.VendorAmount.Mul(ratio).Round(2)
		dispatchShare := original.Commission.DispatchAmount.Mul(ratio).Round(2)
		platformShare := input.RefundAmount.Sub(vendorShare).Sub(dispatchShare)
		vatShare := original.VAT.Amount.Mul(ratio).Round(2)

		entries := []ledger.EntryInput{
			{Account: enums.AccountCash, Credit: input.RefundAmount, Movement: true, Description: "refund paid out"},
		}
		var vendorUser, dispatchUser *uuid.UUID
		for _, entry := range original.Entries {
			switch entry.Account {
			case enums.AccountWalletVendor:
				vendorUser = entry.UserID
			case enums.AccountWalletDispatch:
				dispatchUser = entry.UserID
			}
		}
		if vendorShare.IsPositive() {
			entries = append(entries, ledger.EntryInput{
				Account: enums.AccountWalletVendor, UserID: vendorUser,
				Debit: vendorShare, Description: "vendor share clawback",
			})
		}
		if dispatchShare.IsPositive() {
			entries = append(entries, ledger.EntryInput{
				Account: enums.AccountWalletDispatch, UserID: dispatchUser,
				Debit: dispatchShare, Description: "dispatch share clawback",
			})
		}
		if platformShare.IsPositive() {
			entries = append(entries, ledger.EntryInput{
				Account: enums.AccountCommissionRevenue,
				Debit:   platformShare, Description: "platform commission clawback",
			})
		}
		if vatShare.IsPositive() {
			entries = append(entries,
				ledger.EntryInput{Account: enums.AccountVATPayable, Debit: vatShare, Description: "vat liability released"},
				ledger.EntryInput{Account: enums.AccountVATRevenue, Credit: vatShare},
			)
		}

		txn, err = ledgerTx.Create(ctx, ledger.CreateInput{
			Reference:   input.Reference,
			Type:        enums.TransactionTypeOrderRefund,
			Status:      enums.TransactionStatusCompleted,
			Entries:     entries,
			TotalAmount: input.RefundAmount,
			Currency:    original.Currency,
			VAT: models.VATDetails{
				Rate:           original.VAT.Rate,
				Amount:         vatShare,
				Responsibility: original.VAT.Responsibility,
				Collected:      original.VAT.Collected,
			},
			Commission: models.CommissionDetails{
				PlatformRate:   original.Commission.PlatformRate,
				PlatformAmount: platformShare,
				VendorAmount:   vendorShare,
				DispatchAmount: dispatchShare,
			},
			RelatedEntityType:     enums.RelatedEntityOrder,
			RelatedEntityID:       input.OrderID,
			OriginalTransactionID: &original.ID,
			CreatedBy:             input.Actor,
			Description:           input.Reason,
		})
		if err != nil {
			return err
		}

		// A beneficiary wallet that cannot cover its clawback fails the
		// whole refund. That is a reconciliation exception for finance,
		// never a silent clamp.
		wallets := s.wallets.WithTx(tx)
		if vendorShare.IsPositive() && vendorUser != nil {
			if _, err := wallets.Debit(ctx, *vendorUser, vendorShare, enums.WalletOperationRefund); err != nil {
				return err
			}
		}
		if dispatchShare.IsPositive() && dispatchUser != nil {
			if _, err := wallets.Debit(ctx, *dispatchUser, dispatchShare, enums.WalletOperationRefund); err != nil {
				return err
			}
		}

		status := enums.PaymentStatusPartiallyRefunded
		if refunded.Add(input.RefundAmount).Equal(original.TotalAmount) {
			status = enums.PaymentStatusRefunded
		}
		if err := s.orders.WithTx(tx).MarkRefunded(ctx, input.OrderID, status); err != nil {
			return err
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementRefunded,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			Actor:         actorRef(input.Actor),
			Data: payloads.SettlementRefundedEvent{
				TransactionID:         txn.ID,
				OriginalTransactionID: original.ID,
				OrderID:               input.OrderID,
				RefundAmount:          input.RefundAmount,
				Currency:              string(original.Currency),
				Reason:                input.Reason,
				RefundedAt:            s.now(),
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) RequestWithdrawal(ctx context.Context, input WithdrawalInput) (*models.Transaction, error) {
	start := s.now()
	txn, err := s.requestWithdrawal(ctx, input)
	s.observe(workflowWithdrawal, start, err)
	if err != nil {
		s.logg.Error(ctx, "withdrawal request failed", err)
		return nil, err
	}
	s.logg.Info(s.logg.WithTransactionID(ctx, txn.ID.String()), "withdrawal requested")
	return txn, nil
}

func (s *service) requestWithdrawal(ctx context.Context, input WithdrawalInput) (*models.Transaction, error) {
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal amount must be positive")
	}

	fee := s.wallets.WithdrawalFee(input.Amount)
	total := input.Amount.Add(fee)

	var txn *models.Transaction
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		wallets := s.wallets.WithTx(tx)

		// Guards run against the row lock taken here, not an earlier
		// snapshot, so concurrent requests serialize on the wallet.
		if err := wallets.CanWithdraw(ctx, input.UserID, total); err != nil {
			return err
		}
		w, err := wallets.Get(ctx, input.UserID)
		if err != nil {
			return err
		}
		if !w.HasBankAccount() || !w.BankVerified {
			return pkgerrors.New(pkgerrors.CodeValidation, "wallet has no verified bank account").
				WithDetails(map[string]string{"wallet_id": w.ID.String()})
		}

		if _, err := wallets.Debit(ctx, input.UserID, total, enums.WalletOperationWithdrawal); err != nil {
			return err
		}

		meta, err := json.Marshal(withdrawalMeta{Amount: input.Amount, Fee: fee})
		if err != nil {
			return err
		}

		// Dispatch agents earn into wallet_dispatch; their payout must
		// draw down the same account.
		ledgerTx := s.ledger.WithTx(tx)
		account, err := ledgerTx.WalletAccountForUser(ctx, input.UserID)
		if err != nil {
			return err
		}

		txn, err = ledgerTx.Create(ctx, ledger.CreateInput{
			Reference:   fmt.Sprintf("wd-%s", uuid.NewString()),
			Type:        enums.TransactionTypeWalletWithdrawal,
			Status:      enums.TransactionStatusPending,
			TotalAmount: total,
			Currency:    w.Currency,
			Entries: []ledger.EntryInput{
				{Account: account, UserID: &input.UserID, Debit: input.Amount, Movement: true, Description: "payout"},
				{Account: account, UserID: &input.UserID, Debit: fee, Movement: true, Description: "withdrawal fee"},
				{Account: enums.AccountAccountsPayable, Credit: input.Amount, Description: "owed to beneficiary bank"},
				{Account: enums.AccountBankTransferFees, Credit: fee},
			},
			RelatedEntityType: enums.RelatedEntityWallet,
			RelatedEntityID:   w.ID,
			CreatedBy:         input.Actor,
			Metadata:          meta,
		})
		if err != nil {
			return err
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalRequested,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			Actor:         actorRef(input.Actor),
			Data: payloads.WithdrawalRequestedEvent{
				TransactionID: txn.ID,
				WalletID:      w.ID,
				UserID:        input.UserID,
				Amount:        input.Amount,
				Fee:           fee,
				Currency:      string(w.Currency),
				RequestedAt:   s.now(),
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ApproveWithdrawal sends the payout through the gateway before committing
// the completed status. A gateway timeout therefore leaves the transaction
// pending and the approval safely retryable.
func (s *service) ApproveWithdrawal(ctx context.Context, transactionID uuid.UUID, actor uuid.UUID) (*models.Transaction, error) {
	start := s.now()
	ctx = s.logg.WithTransactionID(ctx, transactionID.String())
	txn, err := s.approveWithdrawal(ctx, transactionID, actor)
	s.observe(workflowApproval, start, err)
	if err != nil {
		s.logg.Error(ctx, "withdrawal approval failed", err)
		return nil, err
	}
	s.logg.Info(ctx, "withdrawal approved")
	return txn, nil
}

func (s *service) approveWithdrawal(ctx context.Context, transactionID uuid.UUID, actor uuid.UUID) (*models.Transaction, error) {
	txn, meta, w, err := s.loadPendingWithdrawal(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	recipient, err := s.gateway.CreateTransferRecipient(ctx, recipientParams(w))
	if err != nil {
		return nil, err
	}
	if _, err := s.gateway.InitiateTransfer(ctx, transferParams(txn, meta, recipient.RecipientCode)); err != nil {
		return nil, err
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ledger.WithTx(tx).Complete(ctx, txn.ID, actor); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalApproved,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			Actor:         actorRef(&actor),
			Data: payloads.WithdrawalApprovedEvent{
				TransactionID: txn.ID,
				WalletID:      w.ID,
				Amount:        meta.Amount,
				Currency:      string(txn.Currency),
				ApprovedBy:    actor,
				ApprovedAt:    s.now(),
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	txn.Status = enums.TransactionStatusCompleted
	return txn, nil
}

// RejectWithdrawal cancels a pending payout and returns the full deduction
// (payout plus fee) to the wallet via a compensating deposit transaction.
func (s *service) RejectWithdrawal(ctx context.Context, transactionID uuid.UUID, reason string, actor uuid.UUID) (*models.Transaction, error) {
	start := s.now()
	ctx = s.logg.WithTransactionID(ctx, transactionID.String())
	txn, err := s.rejectWithdrawal(ctx, transactionID, reason, actor)
	s.observe(workflowRejection, start, err)
	if err != nil {
		s.logg.Error(ctx, "withdrawal rejection failed", err)
		return nil, err
	}
	s.logg.Info(ctx, "withdrawal rejected, funds returned")
	return txn, nil
}

func (s *service) rejectWithdrawal(ctx context.Context, transactionID uuid.UUID, reason string, actor uuid.UUID) (*models.Transaction, error) {
	var deposit *models.Transaction
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txn, meta, w, err := s.loadPendingWithdrawalTx(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		total := meta.Amount.Add(meta.Fee)
		account := walletAccountOf(txn)

		if err := s.ledger.WithTx(tx).Cancel(ctx, txn.ID); err != nil {
			return err
		}

		if _, err := s.wallets.WithTx(tx).Credit(ctx, w.UserID, total, enums.WalletOperationDeposit); err != nil {
			return err
		}

		deposit, err = s.ledger.WithTx(tx).Create(ctx, ledger.CreateInput{
			Reference:   fmt.Sprintf("rj-%s", txn.Reference),
			Type:        enums.TransactionTypeWalletDeposit,
			Status:      enums.TransactionStatusCompleted,
			TotalAmount: total,
			Currency:    txn.Currency,
			Entries: []ledger.EntryInput{
				{Account: enums.AccountAccountsPayable, Debit: meta.Amount, Description: "payout obligation released"},
				{Account: enums.AccountBankTransferFees, Debit: meta.Fee, Description: "fee returned"},
				{Account: account, UserID: &w.UserID, Credit: meta.Amount, Movement: true, Description: "payout returned"},
				{Account: account, UserID: &w.UserID, Credit: meta.Fee, Movement: true, Description: "fee returned"},
			},
			RelatedEntityType:     enums.RelatedEntityWallet,
			RelatedEntityID:       w.ID,
			OriginalTransactionID: &txn.ID,
			CreatedBy:             &actor,
			Description:           reason,
		})
		if err != nil {
			return err
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalRejected,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   deposit.ID,
			Actor:         actorRef(&actor),
			Data: payloads.WithdrawalRejectedEvent{
				TransactionID: txn.ID,
				WalletID:      w.ID,
				Amount:        meta.Amount,
				Fee:           meta.Fee,
				Currency:      string(txn.Currency),
				Reason:        reason,
				RejectedAt:    s.now(),
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return deposit, nil
}

// originalPayment picks the completed payment out of an order's
// transactions.
func originalPayment(txns []models.Transaction) *models.Transaction {
	for i := range txns {
		if txns[i].Type == enums.TransactionTypeOrderPayment && txns[i].Status == enums.TransactionStatusCompleted {
			return &txns[i]
		}
	}
	return nil
}

// completedRefundTotal sums the refunds already settled against an order.
func completedRefundTotal(txns []models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for i := range txns {
		if txns[i].Type == enums.TransactionTypeOrderRefund && txns[i].Status == enums.TransactionStatusCompleted {
			total = total.Add(txns[i].TotalAmount)
		}
	}
	return total
}

func (s *service) loadPendingWithdrawal(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, withdrawalMeta, *models.Wallet, error) {
	return s.loadPendingWithdrawalTx(ctx, nil, transactionID)
}

func (s *service) loadPendingWithdrawalTx(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) (*models.Transaction, withdrawalMeta, *models.Wallet, error) {
	var meta withdrawalMeta

	ledgerSvc := s.ledger
	wallets := s.wallets
	if tx != nil {
		ledgerSvc = ledgerSvc.WithTx(tx)
		wallets = wallets.WithTx(tx)
	}

	txn, err := ledgerSvc.FindByID(ctx, transactionID)
	if err != nil {
		return nil, meta, nil, err
	}
	if txn.Type != enums.TransactionTypeWalletWithdrawal {
		return nil, meta, nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction is not a withdrawal").
			WithDetails(map[string]string{"transaction_id": txn.ID.String(), "type": string(txn.Type)})
	}
	if txn.Status != enums.TransactionStatusPending {
		return nil, meta, nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "withdrawal is not pending").
			WithDetails(map[string]string{"transaction_id": txn.ID.String(), "status": string(txn.Status)})
	}
	if err := json.Unmarshal(txn.Metadata, &meta); err != nil {
		return nil, meta, nil, fmt.Errorf("settlement: decode withdrawal metadata: %w", err)
	}

	w, err := wallets.GetByID(ctx, txn.RelatedEntityID)
	if err != nil {
		return nil, meta, nil, err
	}
	return txn, meta, w, nil
}

// walletAccountOf finds the wallet account a withdrawal's legs were booked
// to, so the compensating deposit reverses the same account.
func walletAccountOf(txn *models.Transaction) enums.LedgerAccount {
	for _, entry := range txn.Entries {
		switch entry.Account {
		case enums.AccountWalletVendor, enums.AccountWalletDispatch:
			return entry.Account
		}
	}
	return enums.AccountWalletVendor
}

func recipientParams(w *models.Wallet) paystack.TransferRecipientParams {
	return paystack.TransferRecipientParams{
		Name:          w.BankAccountName,
		AccountNumber: w.BankAccountNumber,
		BankCode:      w.BankCode,
		Currency:      string(w.Currency),
	}
}

func transferParams(txn *models.Transaction, meta withdrawalMeta, recipientCode string) paystack.TransferParams {
	return paystack.TransferParams{
		AmountKobo:    toKobo(meta.Amount),
		RecipientCode: recipientCode,
		Reference:     txn.Reference,
		Reason:        "wallet withdrawal",
	}
}

func actorRef(userID *uuid.UUID) *outbox.ActorRef {
	if userID == nil {
		return nil
	}
	return &outbox.ActorRef{UserID: *userID}
}

func (s *service) observe(workflow string, start time.Time, err error) {
	s.metrics.ObserveDuration(workflow, s.now().Sub(start))
	if err == nil {
		s.metrics.IncSuccess(workflow)
		return
	}
	s.metrics.IncFailure(workflow)
	if pkgerrors.HasCode(err, pkgerrors.CodeLedgerUnbalanced) {
		s.metrics.IncUnbalanced()
	}
}
