package enums

import "fmt"

// LedgerAccount maps to the ledger_account_enum enum in Postgres.
type LedgerAccount string

const (
	AccountCash               LedgerAccount = "cash"
	AccountAccountsReceivable LedgerAccount = "accounts_receivable"
	AccountAccountsPayable    LedgerAccount = "accounts_payable"
	AccountCommissionRevenue  LedgerAccount = "commission_revenue"
	AccountCommissionPayable  LedgerAccount = "commission_payable"
	AccountVATPayable         LedgerAccount = "vat_payable"
	AccountVATRevenue         LedgerAccount = "vat_revenue"
	AccountWalletVendor       LedgerAccount = "wallet_vendor"
	AccountWalletDispatch     LedgerAccount = "wallet_dispatch"
	AccountBankTransferFees   LedgerAccount = "bank_transfer_fees"
)

var validLedgerAccounts = []LedgerAccount{
	AccountCash,
	AccountAccountsReceivable,
	AccountAccountsPayable,
	AccountCommissionRevenue,
	AccountCommissionPayable,
	AccountVATPayable,
	AccountVATRevenue,
	AccountWalletVendor,
	AccountWalletDispatch,
	AccountBankTransferFees,
}

// IsValid reports whether the account is part of the chart of accounts.
func (a LedgerAccount) IsValid() bool {
	for _, candidate := range validLedgerAccounts {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseLedgerAccount converts raw input into LedgerAccount.
func ParseLedgerAccount(value string) (LedgerAccount, error) {
	for _, candidate := range validLedgerAccounts {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger account %q", value)
}
