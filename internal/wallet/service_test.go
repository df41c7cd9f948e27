package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kasuwa-ng/marketplace-backend/pkg/config"
	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-ng/marketplace-backend/pkg/errors"
	"github.com/kasuwa-ng/marketplace-backend/pkg/paystack"
)

func setupWalletTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  balance NUMERIC NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'NGN',
  status TEXT NOT NULL DEFAULT 'active',
  daily_withdrawal_limit NUMERIC NOT NULL DEFAULT 0,
  monthly_withdrawal_limit NUMERIC NOT NULL DEFAULT 0,
  minimum_balance NUMERIC NOT NULL DEFAULT 0,
  daily_withdrawn_amount NUMERIC NOT NULL DEFAULT 0,
  daily_withdrawn_date DATETIME,
  monthly_withdrawn_amount NUMERIC NOT NULL DEFAULT 0,
  monthly_withdrawn_month DATETIME,
  total_earnings NUMERIC NOT NULL DEFAULT 0,
  total_withdrawals NUMERIC NOT NULL DEFAULT 0,
  bank_account_name TEXT,
  bank_account_number TEXT,
  bank_code TEXT,
  bank_verified INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func testSettlementConfig() config.SettlementConfig {
	return config.SettlementConfig{
		Currency:                      "NGN",
		WithdrawalFeePercent:          "1",
		WithdrawalFeeMinimum:          "100",
		ReportingTimezone:             "Africa/Lagos",
		DefaultDailyWithdrawalLimit:   "500000",
		DefaultMonthlyWithdrawalLimit: "5000000",
	}
}

func newWalletService(t *testing.T) (*service, *gorm.DB) {
	t.Helper()
	db := setupWalletTestDB(t)
	svc, err := NewService(NewRepository(db), testSettlementConfig(), nil)
	require.NoError(t, err)
	return svc.(*service), db
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCreditCreatesWalletLazily(t *testing.T) {
	svc, _ := newWalletService(t)
	userID := uuid.New()

	wallet, err := svc.Credit(context.Background(), userID, amt("9000.00"), enums.WalletOperationEarning)
	require.NoError(t, err)
	assert.Equal(t, userID, wallet.UserID)
	assert.Equal(t, enums.WalletStatusActive, wallet.Status)
	assert.True(t, wallet.Balance.Equal(amt("9000.00")))
	assert.True(t, wallet.TotalEarnings.Equal(amt("9000.00")))
	assert.True(t, wallet.DailyWithdrawalLimit.Equal(amt("500000")))

	// A second credit of a non-earning kind moves the balance only.
	wallet, err = svc.Credit(context.Background(), userID, amt("500.00"), enums.WalletOperationDeposit)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(amt("9500.00")))
	assert.True(t, wallet.TotalEarnings.Equal(amt("9000.00")))
}

func TestDebitInsufficientBalance(t *testing.T) {
	svc, _ := newWalletService(t)
	userID := uuid.New()

	_, err := svc.Credit(context.Background(), userID, amt("100.00"), enums.WalletOperationEarning)
	require.NoError(t, err)

	_, err = svc.Debit(context.Background(), userID, amt("100.01"), enums.WalletOperationRefund)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance), "got %v", err)

	// Balance untouched after the rejected debit.
	wallet, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(amt("100.00")))
}

func TestDebitUnknownWallet(t *testing.T) {
	svc, _ := newWalletService(t)

	_, err := svc.Debit(context.Background(), uuid.New(), amt("10.00"), enums.WalletOperationRefund)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestWithdrawalFee(t *testing.T) {
	svc, _ := newWalletService(t)

	// 1% of 100,000 is 1,000.
	assert.True(t, svc.WithdrawalFee(amt("100000")).Equal(amt("1000.00")))
	// Floor kicks in below 10,000.
	assert.True(t, svc.WithdrawalFee(amt("5000")).Equal(amt("100")))
	assert.True(t, svc.WithdrawalFee(amt("10000")).Equal(amt("100.00")))
}

func TestWithdrawalDeductsAndTracksWindows(t *testing.T) {
	svc, _ := newWalletService(t)
	userID := uuid.New()

	_, err := svc.Credit(context.Background(), userID, amt("150000.00"), enums.WalletOperationEarning)
	require.NoError(t, err)

	// Withdrawal of 100,000 carries a 1,000 fee; total deduction 101,000.
	total := amt("101000.00")
	require.NoError(t, svc.CanWithdraw(context.Background(), userID, total))

	wallet, err := svc.Debit(context.Background(), userID, total, enums.WalletOperationWithdrawal)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(amt("49000.00")))
	assert.True(t, wallet.DailyWithdrawnAmount.Equal(total))
	assert.True(t, wallet.MonthlyWithdrawnAmount.Equal(total))
	assert.True(t, wallet.TotalWithdrawals.Equal(total))
	require.NotNil(t, wallet.DailyWithdrawnDate)
	require.NotNil(t, wallet.MonthlyWithdrawnMonth)
}

func TestCanWithdrawEnforcesDailyLimit(t *testing.T) {
	svc, _ := newWalletService(t)
	userID := uuid.New()

	_, err := svc.Credit(context.Background(), userID, amt("900000.00"), enums.WalletOperationEarning)
	require.NoError(t, err)

	_, err = svc.Debit(context.Background(), userID, amt("450000.00"), enums.WalletOperationWithdrawal)
	require.NoError(t, err)

	// 450,000 already withdrawn today against a 500,000 daily limit.
	err = svc.CanWithdraw(context.Background(), userID, amt("50001.00"))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)

	require.NoError(t, svc.CanWithdraw(context.Background(), userID, amt("50000.00")))
}

func TestDailyWindowResetsOnNewDay(t *testing.T) {
	svc, _ := newWalletService(t)
	userID := uuid.New()

	lagos, err := time.LoadLocation("Africa/Lagos")
	require.NoError(t, err)
	day1 := time.Date(2026, 3, 14, 18, 0, 0, 0, lagos)
	svc.now = func() time.Time { return day1 }

	_, err = svc.Credit(context.Background(), userID, amt("1200000.00"), enums.WalletOperationEarning)
	require.NoError(t, err)
	_, err = svc.Debit(context.Background(), userID, amt("500000.00"), enums.WalletOperationWithdrawal)
	require.NoError(t, err)

	// Daily limit exhausted for day one.
	err = svc.CanWithdraw(context.Background(), userID, amt("1.00"))
	require.Error(t, err)

	// The first operation on the next calendar day sees a fresh window.
	svc.now = func() time.Time { return day1.Add(7 * time.Hour) }
	require.NoError(t, svc.CanWithdraw(context.Background(), userID, amt("400000.00")))

	wallet, err := svc.Debit(context.Background(), userID, amt("400000.00"), enums.WalletOperationWithdrawal)
	require.NoError(t, err)
	assert.True(t, wallet.DailyWithdrawnAmount.Equal(amt("400000.00")))
	// The month has not rolled, so the monthly counter accumulates.
	assert.True(t, wallet.MonthlyWithdrawnAmount.Equal(amt("900000.00")))
	assert.True(t, wallet.TotalWithdrawals.Equal(amt("900000.00")))
}

func TestMonthlyWindowResetsOnNewMonth(t *testing.T) {
	svc, _ := newWalletService(t)
	userID := uuid.New()

	lagos, err := time.LoadLocation("Africa/Lagos")
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 3, 31, 12, 0, 0, 0, lagos) }

	_, err = svc.Credit(context.Background(), userID, amt("600000.00"), enums.WalletOperationEarning)
	require.NoError(t, err)
	_, err = svc.Debit(context.Background(), userID, amt("300000.00"), enums.WalletOperationWithdrawal)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, lagos) }
	wallet, err := svc.Debit(context.Background(), userID, amt("200000.00"), enums.WalletOperationWithdrawal)
	require.NoError(t, err)
	assert.True(t, wallet.MonthlyWithdrawnAmount.Equal(amt("200000.00")))
	assert.True(t, wallet.DailyWithdrawnAmount.Equal(amt("200000.00")))
}

func TestCanWithdrawRejectsInactiveWallet(t *testing.T) {
	svc, db := newWalletService(t)
	userID := uuid.New()

	_, err := svc.Credit(context.Background(), userID, amt("50000.00"), enums.WalletOperationEarning)
	require.NoError(t, err)
	require.NoError(t, db.Exec(`UPDATE wallets SET status = 'frozen' WHERE user_id = ?`, userID).Error)

	err = svc.CanWithdraw(context.Background(), userID, amt("1000.00"))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestLinkBankAccount(t *testing.T) {
	svc, _ := newWalletService(t)
	userID := uuid.New()

	_, err := svc.Credit(context.Background(), userID, amt("1000.00"), enums.WalletOperationEarning)
	require.NoError(t, err)

	require.NoError(t, svc.LinkBankAccount(context.Background(), userID, "Amina Bello", "0123456789", "058"))

	wallet, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, wallet.HasBankAccount())
	assert.True(t, wallet.BankVerified)

	err = svc.LinkBankAccount(context.Background(), userID, "", "0123456789", "058")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
}

type fakeAccountResolver struct {
	resolved *paystack.ResolvedAccount
	err      error
	calls    int
}

func (f *fakeAccountResolver) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resolved, nil
}

func TestLinkBankAccountUsesResolvedHolderName(t *testing.T) {
	svc, _ := newWalletService(t)
	svc.resolver = &fakeAccountResolver{
		resolved: &paystack.ResolvedAccount{AccountNumber: "0123456789", AccountName: "AMINA O BELLO"},
	}
	userID := uuid.New()

	_, err := svc.Credit(context.Background(), userID, amt("1000.00"), enums.WalletOperationEarning)
	require.NoError(t, err)

	require.NoError(t, svc.LinkBankAccount(context.Background(), userID, "Amina Bello", "0123456789", "058"))

	wallet, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "AMINA O BELLO", wallet.BankAccountName)
	assert.True(t, wallet.BankVerified)
}

func TestLinkBankAccountResolverFailureBlocksLink(t *testing.T) {
	svc, _ := newWalletService(t)
	resolver := &fakeAccountResolver{err: pkgerrors.New(pkgerrors.CodeValidation, "account could not be resolved")}
	svc.resolver = resolver
	userID := uuid.New()

	_, err := svc.Credit(context.Background(), userID, amt("1000.00"), enums.WalletOperationEarning)
	require.NoError(t, err)

	err = svc.LinkBankAccount(context.Background(), userID, "Amina Bello", "0123456789", "058")
	require.Error(t, err)
	require.Equal(t, 1, resolver.calls)

	wallet, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, wallet.HasBankAccount())
	assert.False(t, wallet.BankVerified)
}

func TestOperationValidation(t *testing.T) {
	svc, _ := newWalletService(t)
	userID := uuid.New()

	_, err := svc.Credit(context.Background(), userID, amt("-5.00"), enums.WalletOperationEarning)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.Credit(context.Background(), userID, amt("5.00"), enums.WalletOperationKind("mystery"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
}
