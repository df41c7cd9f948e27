package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-ng/marketplace-backend/pkg/errors"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	transactions := `
CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  reference TEXT NOT NULL,
  type TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total_amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'NGN',
  vat_rate NUMERIC NOT NULL DEFAULT 0,
  vat_amount NUMERIC NOT NULL DEFAULT 0,
  vat_responsibility TEXT,
  vat_collected INTEGER NOT NULL DEFAULT 0,
  commission_platform_rate NUMERIC NOT NULL DEFAULT 0,
  commission_platform_amount NUMERIC NOT NULL DEFAULT 0,
  commission_vendor_amount NUMERIC NOT NULL DEFAULT 0,
  commission_dispatch_amount NUMERIC NOT NULL DEFAULT 0,
  related_entity_type TEXT NOT NULL,
  related_entity_id TEXT NOT NULL,
  original_transaction_id TEXT,
  description TEXT,
  metadata TEXT,
  created_by TEXT,
  approved_by TEXT,
  approved_at DATETIME,
  reversed_by TEXT,
  reversal_reason TEXT,
  reversed_at DATETIME,
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	entries := `
CREATE TABLE IF NOT EXISTS entries (
  id TEXT PRIMARY KEY,
  transaction_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  account TEXT NOT NULL,
  user_id TEXT,
  debit NUMERIC NOT NULL DEFAULT 0,
  credit NUMERIC NOT NULL DEFAULT 0,
  movement INTEGER NOT NULL DEFAULT 0,
  description TEXT,
  created_at DATETIME
);`
	uniqueRef := `CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_type_reference ON transactions (type, reference);`
	require.NoError(t, db.Exec(transactions).Error)
	require.NoError(t, db.Exec(entries).Error)
	require.NoError(t, db.Exec(uniqueRef).Error)
	return db
}

func newLedgerService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := setupLedgerTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc, db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func capturedPaymentInput(vendorID, dispatchID, orderID uuid.UUID) CreateInput {
	return CreateInput{
		Reference:         "pay-" + orderID.String(),
		Type:              enums.TransactionTypeOrderPayment,
		Status:            enums.TransactionStatusCompleted,
		TotalAmount:       dec("10750.00"),
		Currency:          enums.CurrencyNGN,
		RelatedEntityType: enums.RelatedEntityOrder,
		RelatedEntityID:   orderID,
		VAT: models.VATDetails{
			Rate:           dec("7.5"),
			Amount:         dec("806.25"),
			Responsibility: enums.VATResponsibilityPlatform,
			Collected:      true,
		},
		Commission: models.CommissionDetails{
			PlatformRate:   dec("7.5"),
			PlatformAmount: dec("675.00"),
			VendorAmount:   dec("9000.00"),
			DispatchAmount: dec("1075.00"),
		},
		Entries: []EntryInput{
			{Account: enums.AccountCash, Debit: dec("10750.00"), Movement: true, Description: "payment captured"},
			{Account: enums.AccountWalletVendor, UserID: &vendorID, Credit: dec("9000.00")},
			{Account: enums.AccountWalletDispatch, UserID: &dispatchID, Credit: dec("1075.00")},
			{Account: enums.AccountCommissionRevenue, Credit: dec("675.00")},
			{Account: enums.AccountVATRevenue, Debit: dec("806.25"), Description: "vat on order total"},
			{Account: enums.AccountVATPayable, Credit: dec("806.25")},
		},
	}
}

func TestCreatePersistsBalancedTransaction(t *testing.T) {
	svc, db := newLedgerService(t)
	vendorID, dispatchID, orderID := uuid.New(), uuid.New(), uuid.New()

	txn, err := svc.Create(context.Background(), capturedPaymentInput(vendorID, dispatchID, orderID))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, txn.ID)
	assert.Equal(t, enums.TransactionStatusCompleted, txn.Status)
	assert.Len(t, txn.Entries, 6)

	var count int64
	require.NoError(t, db.Model(&models.Entry{}).Where("transaction_id = ?", txn.ID).Count(&count).Error)
	assert.EqualValues(t, 6, count)

	stored, err := svc.FindByReference(context.Background(), enums.TransactionTypeOrderPayment, txn.Reference)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, stored.ID)

	var debits, credits decimal.Decimal
	for _, entry := range stored.Entries {
		debits = debits.Add(entry.Debit)
		credits = credits.Add(entry.Credit)
	}
	assert.True(t, debits.Equal(credits), "debits %s != credits %s", debits, credits)
}

func TestCreateRejectsUnbalancedEntries(t *testing.T) {
	svc, _ := newLedgerService(t)
	vendorID, dispatchID, orderID := uuid.New(), uuid.New(), uuid.New()

	input := capturedPaymentInput(vendorID, dispatchID, orderID)
	input.Entries[1].Credit = dec("9100.00")

	_, err := svc.Create(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeLedgerUnbalanced), "got %v", err)
}

func TestCreateRejectsMovementMismatch(t *testing.T) {
	svc, _ := newLedgerService(t)
	vendorID, dispatchID, orderID := uuid.New(), uuid.New(), uuid.New()

	input := capturedPaymentInput(vendorID, dispatchID, orderID)
	input.TotalAmount = dec("9999.00")

	_, err := svc.Create(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeLedgerUnbalanced), "got %v", err)
}

func TestCreateToleratesMinorUnitRounding(t *testing.T) {
	svc, _ := newLedgerService(t)
	orderID := uuid.New()

	_, err := svc.Create(context.Background(), CreateInput{
		Reference:         "pay-rounding",
		Type:              enums.TransactionTypeOrderPayment,
		TotalAmount:       dec("100.00"),
		RelatedEntityType: enums.RelatedEntityOrder,
		RelatedEntityID:   orderID,
		Entries: []EntryInput{
			{Account: enums.AccountCash, Debit: dec("100.00"), Movement: true},
			{Account: enums.AccountCommissionRevenue, Credit: dec("99.99")},
		},
	})
	require.NoError(t, err)
}

func TestCreateErrorDoesNotLeakAccountNames(t *testing.T) {
	svc, _ := newLedgerService(t)
	orderID := uuid.New()

	_, err := svc.Create(context.Background(), CreateInput{
		Reference:         "pay-leak",
		Type:              enums.TransactionTypeOrderPayment,
		TotalAmount:       dec("100.00"),
		RelatedEntityType: enums.RelatedEntityOrder,
		RelatedEntityID:   orderID,
		Entries: []EntryInput{
			{Account: enums.AccountCash, Debit: dec("100.00"), Movement: true},
			{Account: enums.AccountCommissionRevenue, Credit: dec("50.00")},
		},
	})
	require.Error(t, err)
	meta := pkgerrors.MetadataFor(pkgerrors.As(err).Code())
	assert.NotContains(t, meta.PublicMessage, "commission_revenue")
	assert.NotContains(t, meta.PublicMessage, "cash")
}

func TestCreateDuplicateReferenceHitsUniqueIndex(t *testing.T) {
	svc, _ := newLedgerService(t)
	vendorID, dispatchID, orderID := uuid.New(), uuid.New(), uuid.New()
	input := capturedPaymentInput(vendorID, dispatchID, orderID)

	_, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), input)
	require.Error(t, err)
}

func TestReverseFlipsEntriesInPlace(t *testing.T) {
	svc, _ := newLedgerService(t)
	vendorID, dispatchID, orderID := uuid.New(), uuid.New(), uuid.New()
	actor := uuid.New()

	txn, err := svc.Create(context.Background(), capturedPaymentInput(vendorID, dispatchID, orderID))
	require.NoError(t, err)

	reversed, err := svc.Reverse(context.Background(), txn.ID, "chargeback", actor)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusReversed, reversed.Status)
	require.NotNil(t, reversed.ReversalReason)
	assert.Equal(t, "chargeback", *reversed.ReversalReason)
	require.NotNil(t, reversed.ReversedAt)

	// Summing original and reversed legs per account nets to zero.
	require.Len(t, reversed.Entries, len(txn.Entries))
	for i, entry := range reversed.Entries {
		assert.True(t, entry.Debit.Equal(txn.Entries[i].Credit), "entry %d debit not flipped", i)
		assert.True(t, entry.Credit.Equal(txn.Entries[i].Debit), "entry %d credit not flipped", i)
	}
}

func TestReverseRequiresCompletedStatus(t *testing.T) {
	svc, _ := newLedgerService(t)
	vendorID, dispatchID, orderID := uuid.New(), uuid.New(), uuid.New()
	actor := uuid.New()

	input := capturedPaymentInput(vendorID, dispatchID, orderID)
	input.Status = enums.TransactionStatusPending
	txn, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Reverse(context.Background(), txn.ID, "oops", actor)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition), "got %v", err)

	// A second reversal of an already-reversed transaction must also fail.
	require.NoError(t, svc.Complete(context.Background(), txn.ID, actor))
	_, err = svc.Reverse(context.Background(), txn.ID, "chargeback", actor)
	require.NoError(t, err)
	_, err = svc.Reverse(context.Background(), txn.ID, "again", actor)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition), "got %v", err)
}

func TestPendingLifecycleTransitions(t *testing.T) {
	svc, _ := newLedgerService(t)
	vendorID, dispatchID := uuid.New(), uuid.New()
	approver := uuid.New()

	newPending := func(ref string) *models.Transaction {
		input := capturedPaymentInput(vendorID, dispatchID, uuid.New())
		input.Reference = ref
		input.Status = enums.TransactionStatusPending
		txn, err := svc.Create(context.Background(), input)
		require.NoError(t, err)
		return txn
	}

	completed := newPending("pending-complete")
	require.NoError(t, svc.Complete(context.Background(), completed.ID, approver))
	stored, err := svc.FindByReference(context.Background(), enums.TransactionTypeOrderPayment, "pending-complete")
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, stored.Status)
	require.NotNil(t, stored.ApprovedBy)
	assert.Equal(t, approver, *stored.ApprovedBy)

	failed := newPending("pending-fail")
	require.NoError(t, svc.Fail(context.Background(), failed.ID, "gateway declined"))
	stored, err = svc.FindByReference(context.Background(), enums.TransactionTypeOrderPayment, "pending-fail")
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusFailed, stored.Status)
	require.NotNil(t, stored.FailureReason)

	cancelled := newPending("pending-cancel")
	require.NoError(t, svc.Cancel(context.Background(), cancelled.ID))

	// Completed is immutable except for reversal.
	err = svc.Fail(context.Background(), completed.ID, "too late")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition), "got %v", err)
}

func TestListByRelatedEntity(t *testing.T) {
	svc, _ := newLedgerService(t)
	vendorID, dispatchID, orderID := uuid.New(), uuid.New(), uuid.New()

	_, err := svc.Create(context.Background(), capturedPaymentInput(vendorID, dispatchID, orderID))
	require.NoError(t, err)

	refund := capturedPaymentInput(vendorID, dispatchID, orderID)
	refund.Reference = "refund-" + orderID.String()
	refund.Type = enums.TransactionTypeOrderRefund
	_, err = svc.Create(context.Background(), refund)
	require.NoError(t, err)

	txns, err := svc.ListByRelatedEntity(context.Background(), enums.RelatedEntityOrder, orderID)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestWalletAccountForUserFollowsEntries(t *testing.T) {
	svc, _ := newLedgerService(t)
	vendorID, dispatchID, orderID := uuid.New(), uuid.New(), uuid.New()

	_, err := svc.Create(context.Background(), capturedPaymentInput(vendorID, dispatchID, orderID))
	require.NoError(t, err)

	account, err := svc.WalletAccountForUser(context.Background(), dispatchID)
	require.NoError(t, err)
	assert.Equal(t, enums.AccountWalletDispatch, account)

	account, err = svc.WalletAccountForUser(context.Background(), vendorID)
	require.NoError(t, err)
	assert.Equal(t, enums.AccountWalletVendor, account)

	// A user with no wallet history defaults to the vendor account.
	account, err = svc.WalletAccountForUser(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, enums.AccountWalletVendor, account)
}

func TestCreateValidationErrors(t *testing.T) {
	svc, _ := newLedgerService(t)
	orderID := uuid.New()

	base := func() CreateInput {
		return CreateInput{
			Reference:         "val-" + uuid.NewString(),
			Type:              enums.TransactionTypeOrderPayment,
			TotalAmount:       dec("100.00"),
			RelatedEntityType: enums.RelatedEntityOrder,
			RelatedEntityID:   orderID,
			Entries: []EntryInput{
				{Account: enums.AccountCash, Debit: dec("100.00"), Movement: true},
				{Account: enums.AccountCommissionRevenue, Credit: dec("100.00")},
			},
		}
	}

	t.Run("missing reference", func(t *testing.T) {
		input := base()
		input.Reference = ""
		_, err := svc.Create(context.Background(), input)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
	})

	t.Run("invalid type", func(t *testing.T) {
		input := base()
		input.Type = enums.TransactionType("not_real")
		_, err := svc.Create(context.Background(), input)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
	})

	t.Run("single entry", func(t *testing.T) {
		input := base()
		input.Entries = input.Entries[:1]
		_, err := svc.Create(context.Background(), input)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
	})

	t.Run("negative amount", func(t *testing.T) {
		input := base()
		input.Entries[0].Debit = dec("-100.00")
		_, err := svc.Create(context.Background(), input)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
	})

	t.Run("both sides set", func(t *testing.T) {
		input := base()
		input.Entries[0].Credit = dec("1.00")
		_, err := svc.Create(context.Background(), input)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
	})
}
