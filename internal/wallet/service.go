package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasuwa-ng/marketplace-backend/pkg/config"
	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-ng/marketplace-backend/pkg/errors"
	"github.com/kasuwa-ng/marketplace-backend/pkg/paystack"
)

var oneHundred = decimal.NewFromInt(100)

// Service owns every wallet balance mutation. Credits and debits must run
// inside the same gorm transaction as the ledger write they accompany, so
// callers are expected to pass a WithTx-scoped Service.
type Service interface {
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, kind enums.WalletOperationKind) (*models.Wallet, error)
	Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, kind enums.WalletOperationKind) (*models.Wallet, error)
	CanWithdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
	Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	GetByID(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	LinkBankAccount(ctx context.Context, userID uuid.UUID, accountName, accountNumber, bankCode string) error
	WithdrawalFee(amount decimal.Decimal) decimal.Decimal
	WithTx(tx *gorm.DB) Service
}

// AccountResolver checks a bank account against the payment provider's
// directory. internal/banks provides the production implementation.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error)
}

type service struct {
	repo     Repository
	resolver AccountResolver

	feePercent   decimal.Decimal
	feeMinimum   decimal.Decimal
	dailyLimit   decimal.Decimal
	monthlyLimit decimal.Decimal
	currency     enums.Currency

	// Reporting timezone for the rolling withdrawal windows.
	loc *time.Location
	now func() time.Time
}

// NewService builds the wallet manager. The resolver is optional; when nil,
// linked bank accounts are trusted as provided instead of being checked
// against the provider's directory.
func NewService(repo Repository, cfg config.SettlementConfig, resolver AccountResolver) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet: repository is required")
	}
	feePercent, err := decimal.NewFromString(cfg.WithdrawalFeePercent)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid withdrawal fee percent %q: %w", cfg.WithdrawalFeePercent, err)
	}
	feeMinimum, err := decimal.NewFromString(cfg.WithdrawalFeeMinimum)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid withdrawal fee minimum %q: %w", cfg.WithdrawalFeeMinimum, err)
	}
	dailyLimit, err := decimal.NewFromString(cfg.DefaultDailyWithdrawalLimit)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid daily withdrawal limit %q: %w", cfg.DefaultDailyWithdrawalLimit, err)
	}
	monthlyLimit, err := decimal.NewFromString(cfg.DefaultMonthlyWithdrawalLimit)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid monthly withdrawal limit %q: %w", cfg.DefaultMonthlyWithdrawalLimit, err)
	}
	loc, err := time.LoadLocation(cfg.ReportingTimezone)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid reporting timezone %q: %w", cfg.ReportingTimezone, err)
	}
	currency, err := enums.ParseCurrency(cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}
	return &service{
		repo:         repo,
		resolver:     resolver,
		feePercent:   feePercent,
		feeMinimum:   feeMinimum,
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		currency:     currency,
		loc:          loc,
		now:          time.Now,
	}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	scoped := *s
	scoped.repo = s.repo.WithTx(tx)
	return &scoped
}

// WithdrawalFee is max(amount * percent, minimum).
func (s *service) WithdrawalFee(amount decimal.Decimal) decimal.Decimal {
	fee := amount.Mul(s.feePercent).Div(oneHundred).Round(2)
	if fee.LessThan(s.feeMinimum) {
		return s.feeMinimum
	}
	return fee
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found").
				WithDetails(map[string]string{"user_id": userID.String()})
		}
		return nil, err
	}
	return wallet, nil
}

func (s *service) GetByID(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.FindByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found").
				WithDetails(map[string]string{"wallet_id": walletID.String()})
		}
		return nil, err
	}
	return wallet, nil
}

func (s *service) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, kind enums.WalletOperationKind) (*models.Wallet, error) {
	if err := validateOperation(amount, kind); err != nil {
		return nil, err
	}

	wallet, err := s.repo.FindByUserIDForUpdate(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// First credit creates the wallet.
		wallet = &models.Wallet{
			ID:                     uuid.New(),
			UserID:                 userID,
			Currency:               s.currency,
			Status:                 enums.WalletStatusActive,
			DailyWithdrawalLimit:   s.dailyLimit,
			MonthlyWithdrawalLimit: s.monthlyLimit,
		}
		if err := s.repo.Create(ctx, wallet); err != nil {
			return nil, err
		}
	}

	wallet.Balance = wallet.Balance.Add(amount)
	if kind == enums.WalletOperationEarning {
		wallet.TotalEarnings = wallet.TotalEarnings.Add(amount)
	}
	if err := s.repo.Save(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *service) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, kind enums.WalletOperationKind) (*models.Wallet, error) {
	if err := validateOperation(amount, kind); err != nil {
		return nil, err
	}

	wallet, err := s.repo.FindByUserIDForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found").
				WithDetails(map[string]string{"user_id": userID.String()})
		}
		return nil, err
	}

	if wallet.Balance.LessThan(amount) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "wallet balance cannot cover debit").
			WithDetails(map[string]string{
				"wallet_id": wallet.ID.String(),
				"balance":   wallet.Balance.String(),
				"amount":    amount.String(),
			})
	}

	wallet.Balance = wallet.Balance.Sub(amount)
	if kind == enums.WalletOperationWithdrawal {
		s.recordWithdrawal(wallet, amount)
	}
	if err := s.repo.Save(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// recordWithdrawal rolls the daily and monthly windows forward when the
// stored period no longer matches the reporting-timezone clock, then adds
// the deduction to both counters and the lifetime total.
func (s *service) recordWithdrawal(wallet *models.Wallet, amount decimal.Decimal) {
	now := s.now().In(s.loc)

	if wallet.DailyWithdrawnDate == nil || !sameDay(*wallet.DailyWithdrawnDate, now, s.loc) {
		wallet.DailyWithdrawnAmount = decimal.Zero
		day := startOfDay(now)
		wallet.DailyWithdrawnDate = &day
	}
	if wallet.MonthlyWithdrawnMonth == nil || !sameMonth(*wallet.MonthlyWithdrawnMonth, now, s.loc) {
		wallet.MonthlyWithdrawnAmount = decimal.Zero
		month := startOfMonth(now)
		wallet.MonthlyWithdrawnMonth = &month
	}

	wallet.DailyWithdrawnAmount = wallet.DailyWithdrawnAmount.Add(amount)
	wallet.MonthlyWithdrawnAmount = wallet.MonthlyWithdrawnAmount.Add(amount)
	wallet.TotalWithdrawals = wallet.TotalWithdrawals.Add(amount)
}

// CanWithdraw evaluates the withdrawal guards for the total deduction
// (amount plus fee) as the windows would stand after lazy rollover. It does
// not persist the rollover; recordWithdrawal does that on the actual debit.
func (s *service) CanWithdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "withdrawal amount must be positive")
	}

	wallet, err := s.repo.FindByUserIDForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found").
				WithDetails(map[string]string{"user_id": userID.String()})
		}
		return err
	}

	if wallet.Status != enums.WalletStatusActive {
		return pkgerrors.New(pkgerrors.CodeValidation, "wallet is not active").
			WithDetails(map[string]string{
				"wallet_id": wallet.ID.String(),
				"status":    string(wallet.Status),
			})
	}

	now := s.now().In(s.loc)
	daily := wallet.DailyWithdrawnAmount
	if wallet.DailyWithdrawnDate == nil || !sameDay(*wallet.DailyWithdrawnDate, now, s.loc) {
		daily = decimal.Zero
	}
	monthly := wallet.MonthlyWithdrawnAmount
	if wallet.MonthlyWithdrawnMonth == nil || !sameMonth(*wallet.MonthlyWithdrawnMonth, now, s.loc) {
		monthly = decimal.Zero
	}

	if daily.Add(amount).GreaterThan(wallet.DailyWithdrawalLimit) {
		return pkgerrors.New(pkgerrors.CodeValidation, "daily withdrawal limit exceeded").
			WithDetails(map[string]string{
				"wallet_id": wallet.ID.String(),
				"withdrawn": daily.String(),
				"limit":     wallet.DailyWithdrawalLimit.String(),
			})
	}
	if monthly.Add(amount).GreaterThan(wallet.MonthlyWithdrawalLimit) {
		return pkgerrors.New(pkgerrors.CodeValidation, "monthly withdrawal limit exceeded").
			WithDetails(map[string]string{
				"wallet_id": wallet.ID.String(),
				"withdrawn": monthly.String(),
				"limit":     wallet.MonthlyWithdrawalLimit.String(),
			})
	}
	return nil
}

func (s *service) LinkBankAccount(ctx context.Context, userID uuid.UUID, accountName, accountNumber, bankCode string) error {
	if accountName == "" || accountNumber == "" || bankCode == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "account name, number, and bank code are required")
	}
	wallet, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if s.resolver != nil {
		resolved, err := s.resolver.ResolveAccount(ctx, accountNumber, bankCode)
		if err != nil {
			return err
		}
		// The provider's registered holder name wins over whatever the
		// caller typed.
		if resolved.AccountName != "" {
			accountName = resolved.AccountName
		}
	}
	return s.repo.UpdateBankAccount(ctx, wallet.ID, map[string]any{
		"bank_account_name":   accountName,
		"bank_account_number": accountNumber,
		"bank_code":           bankCode,
		"bank_verified":       true,
	})
}

func validateOperation(amount decimal.Decimal, kind enums.WalletOperationKind) error {
	if !kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid wallet operation kind").
			WithDetails(map[string]string{"kind": string(kind)})
	}
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "wallet operation amount must be positive").
			WithDetails(map[string]string{"amount": amount.String()})
	}
	return nil
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameMonth(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	return ay == by && am == bm
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}
