package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
)

// Wallet is the per-party balance store. It is mutated only through the
// wallet manager so the rolling-window and audit-total invariants hold;
// the balance never goes negative.
type Wallet struct {
	ID       uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID   uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_wallets_user"`
	Balance  decimal.Decimal    `gorm:"column:balance;type:numeric(20,2);not null;default:0"`
	Currency enums.Currency     `gorm:"column:currency;type:currency_enum;not null;default:'NGN'"`
	Status   enums.WalletStatus `gorm:"column:status;type:wallet_status_enum;not null;default:'active'"`

	DailyWithdrawalLimit   decimal.Decimal `gorm:"column:daily_withdrawal_limit;type:numeric(20,2);not null;default:0"`
	MonthlyWithdrawalLimit decimal.Decimal `gorm:"column:monthly_withdrawal_limit;type:numeric(20,2);not null;default:0"`
	MinimumBalance         decimal.Decimal `gorm:"column:minimum_balance;type:numeric(20,2);not null;default:0"`

	// Rolling windows, rolled forward lazily whenever the stored day/month
	// no longer matches the reporting-timezone clock.
	DailyWithdrawnAmount   decimal.Decimal `gorm:"column:daily_withdrawn_amount;type:numeric(20,2);not null;default:0"`
	DailyWithdrawnDate     *time.Time      `gorm:"column:daily_withdrawn_date;type:date"`
	MonthlyWithdrawnAmount decimal.Decimal `gorm:"column:monthly_withdrawn_amount;type:numeric(20,2);not null;default:0"`
	MonthlyWithdrawnMonth  *time.Time      `gorm:"column:monthly_withdrawn_month;type:date"`

	TotalEarnings    decimal.Decimal `gorm:"column:total_earnings;type:numeric(20,2);not null;default:0"`
	TotalWithdrawals decimal.Decimal `gorm:"column:total_withdrawals;type:numeric(20,2);not null;default:0"`

	BankAccountName   string `gorm:"column:bank_account_name"`
	BankAccountNumber string `gorm:"column:bank_account_number"`
	BankCode          string `gorm:"column:bank_code"`
	BankVerified      bool   `gorm:"column:bank_verified;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasBankAccount reports whether payout details are on file.
func (w Wallet) HasBankAccount() bool {
	return w.BankAccountNumber != "" && w.BankCode != ""
}
