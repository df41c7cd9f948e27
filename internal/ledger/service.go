package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-ng/marketplace-backend/pkg/errors"
)

// balanceTolerance absorbs minor-unit rounding when checking that debits
// equal credits.
var balanceTolerance = decimal.RequireFromString("0.01")

// Service builds, validates, and persists balanced ledger transactions.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Transaction, error)
	Reverse(ctx context.Context, transactionID uuid.UUID, reason string, actor uuid.UUID) (*models.Transaction, error)
	Complete(ctx context.Context, transactionID uuid.UUID, approvedBy uuid.UUID) error
	Fail(ctx context.Context, transactionID uuid.UUID, reason string) error
	Cancel(ctx context.Context, transactionID uuid.UUID) error
	FindByID(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
	FindByReference(ctx context.Context, txnType enums.TransactionType, reference string) (*models.Transaction, error)
	ListByRelatedEntity(ctx context.Context, entityType enums.RelatedEntityType, entityID uuid.UUID) ([]models.Transaction, error)
	ListStatement(ctx context.Context, params StatementParams) (*StatementResult, error)
	WalletAccountForUser(ctx context.Context, userID uuid.UUID) (enums.LedgerAccount, error)
	WithTx(tx *gorm.DB) Service
}

// EntryInput is one debit-or-credit line of a transaction under construction.
type EntryInput struct {
	Account     enums.LedgerAccount
	UserID      *uuid.UUID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Movement    bool
	Description string
}

// CreateInput carries everything needed to persist one balanced transaction.
type CreateInput struct {
	Reference             string
	Type                  enums.TransactionType
	Status                enums.TransactionStatus
	Entries               []EntryInput
	TotalAmount           decimal.Decimal
	Currency              enums.Currency
	VAT                   models.VATDetails
	Commission            models.CommissionDetails
	RelatedEntityType     enums.RelatedEntityType
	RelatedEntityID       uuid.UUID
	OriginalTransactionID *uuid.UUID
	CreatedBy             *uuid.UUID
	Description           string
	Metadata              json.RawMessage
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx), now: s.now}
}

// Create validates the balance invariant synchronously and persists the
// transaction with its entries. The caller supplies the idempotency
// reference; a retried settlement reuses it and trips the unique index
// instead of minting a duplicate record.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Transaction, error) {
	if err := s.validate(&input); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		ID:                    uuid.New(),
		Reference:             input.Reference,
		Type:                  input.Type,
		Status:                input.Status,
		TotalAmount:           input.TotalAmount,
		Currency:              input.Currency,
		VAT:                   input.VAT,
		Commission:            input.Commission,
		RelatedEntityType:     input.RelatedEntityType,
		RelatedEntityID:       input.RelatedEntityID,
		OriginalTransactionID: input.OriginalTransactionID,
		CreatedBy:             input.CreatedBy,
		Description:           input.Description,
		Metadata:              input.Metadata,
	}
	for i, in := range input.Entries {
		txn.Entries = append(txn.Entries, models.Entry{
			ID:            uuid.New(),
			TransactionID: txn.ID,
			Seq:           i,
			Account:       in.Account,
			UserID:        in.UserID,
			Debit:         in.Debit,
			Credit:        in.Credit,
			Movement:      in.Movement,
			Description:   in.Description,
		})
	}

	if err := s.repo.Create(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) validate(input *CreateInput) error {
	if input.Reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction reference is required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if input.Status == "" {
		input.Status = enums.TransactionStatusCompleted
	}
	if input.Status != enums.TransactionStatusCompleted && input.Status != enums.TransactionStatusPending {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("transactions are created pending or completed, not %q", input.Status))
	}
	if input.Currency == "" {
		input.Currency = enums.CurrencyNGN
	}
	if input.RelatedEntityID == uuid.Nil || !input.RelatedEntityType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "related entity is required")
	}
	if len(input.Entries) < 2 {
		return pkgerrors.New(pkgerrors.CodeValidation, "a transaction needs at least two entries")
	}

	var debits, credits, movement decimal.Decimal
	for i, entry := range input.Entries {
		if !entry.Account.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("entry %d has invalid account %q", i, entry.Account))
		}
		if entry.Debit.IsNegative() || entry.Credit.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("entry %d has a negative amount", i))
		}
		if !entry.Debit.IsZero() && !entry.Credit.IsZero() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("entry %d sets both debit and credit", i))
		}
		debits = debits.Add(entry.Debit)
		credits = credits.Add(entry.Credit)
		if entry.Movement {
			movement = movement.Add(entry.Debit).Add(entry.Credit)
		}
	}

	if debits.Sub(credits).Abs().GreaterThan(balanceTolerance) {
		return pkgerrors.New(pkgerrors.CodeLedgerUnbalanced, "entries do not balance").
			WithDetails(map[string]string{
				"debits":  debits.String(),
				"credits": credits.String(),
			})
	}
	if movement.Sub(input.TotalAmount).Abs().GreaterThan(balanceTolerance) {
		return pkgerrors.New(pkgerrors.CodeLedgerUnbalanced, "movement entries do not sum to the transaction total").
			WithDetails(map[string]string{
				"movement": movement.String(),
				"total":    input.TotalAmount.String(),
			})
	}
	return nil
}

// Reverse flips every entry's debit and credit in place and marks the
// transaction reversed. Only a completed transaction may be reversed.
func (s *service) Reverse(ctx context.Context, transactionID uuid.UUID, reason string, actor uuid.UUID) (*models.Transaction, error) {
	txn, err := s.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !txn.Status.CanTransition(enums.TransactionStatusReversed) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("cannot reverse a %s transaction", txn.Status)).
			WithDetails(map[string]string{"status": string(txn.Status)})
	}

	if err := s.repo.SwapEntrySides(ctx, transactionID); err != nil {
		return nil, err
	}
	now := s.now()
	fields := map[string]any{
		"status":          enums.TransactionStatusReversed,
		"reversal_reason": reason,
		"reversed_by":     actor,
		"reversed_at":     now,
	}
	if err := s.repo.UpdateFields(ctx, transactionID, fields); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, transactionID)
}

// Complete moves a pending transaction to completed, stamping the approver.
func (s *service) Complete(ctx context.Context, transactionID uuid.UUID, approvedBy uuid.UUID) error {
	return s.transition(ctx, transactionID, enums.TransactionStatusCompleted, map[string]any{
		"approved_by": approvedBy,
		"approved_at": s.now(),
	})
}

// Fail marks a pending transaction failed with the given reason.
func (s *service) Fail(ctx context.Context, transactionID uuid.UUID, reason string) error {
	return s.transition(ctx, transactionID, enums.TransactionStatusFailed, map[string]any{
		"failure_reason": reason,
	})
}

// Cancel marks a pending transaction cancelled.
func (s *service) Cancel(ctx context.Context, transactionID uuid.UUID) error {
	return s.transition(ctx, transactionID, enums.TransactionStatusCancelled, nil)
}

func (s *service) transition(ctx context.Context, transactionID uuid.UUID, next enums.TransactionStatus, extra map[string]any) error {
	txn, err := s.FindByID(ctx, transactionID)
	if err != nil {
		return err
	}
	if !txn.Status.CanTransition(next) {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("cannot move a %s transaction to %s", txn.Status, next)).
			WithDetails(map[string]string{"from": string(txn.Status), "to": string(next)})
	}
	fields := map[string]any{"status": next}
	for k, v := range extra {
		fields[k] = v
	}
	return s.repo.UpdateFields(ctx, transactionID, fields)
}

func (s *service) FindByID(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		return nil, mapNotFound(err, "transaction not found")
	}
	return txn, nil
}

func (s *service) FindByReference(ctx context.Context, txnType enums.TransactionType, reference string) (*models.Transaction, error) {
	txn, err := s.repo.FindByReference(ctx, txnType, reference)
	if err != nil {
		return nil, mapNotFound(err, "transaction not found")
	}
	return txn, nil
}

func mapNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return err
}

func (s *service) ListByRelatedEntity(ctx context.Context, entityType enums.RelatedEntityType, entityID uuid.UUID) ([]models.Transaction, error) {
	return s.repo.ListByRelatedEntity(ctx, entityType, entityID)
}

// WalletAccountForUser reports which wallet account the user's ledger legs
// book to. Capture chooses the account per party, so payouts and reversals
// follow the same choice and per-account sums stay reconcilable. A user
// with no wallet history defaults to the vendor account.
func (s *service) WalletAccountForUser(ctx context.Context, userID uuid.UUID) (enums.LedgerAccount, error) {
	account, err := s.repo.LatestWalletAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return enums.AccountWalletVendor, nil
		}
		return "", err
	}
	return account, nil
}
