package enums

// WalletOperationKind classifies credits and debits applied to a wallet.
type WalletOperationKind string

const (
	WalletOperationEarning    WalletOperationKind = "earning"
	WalletOperationWithdrawal WalletOperationKind = "withdrawal"
	WalletOperationRefund     WalletOperationKind = "refund"
	WalletOperationDeposit    WalletOperationKind = "deposit"
	WalletOperationAdjustment WalletOperationKind = "adjustment"
)

// IsValid reports whether the kind is recognized.
func (k WalletOperationKind) IsValid() bool {
	switch k {
	case WalletOperationEarning,
		WalletOperationWithdrawal,
		WalletOperationRefund,
		WalletOperationDeposit,
		WalletOperationAdjustment:
		return true
	}
	return false
}
