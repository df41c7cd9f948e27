package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
)

// VATDetails captures the tax computed for a settlement.
type VATDetails struct {
	Rate           decimal.Decimal         `gorm:"column:vat_rate;type:numeric(6,3);not null;default:0"`
	Amount         decimal.Decimal         `gorm:"column:vat_amount;type:numeric(20,2);not null;default:0"`
	Responsibility enums.VATResponsibility `gorm:"column:vat_responsibility;type:vat_responsibility_enum"`
	Collected      bool                    `gorm:"column:vat_collected;not null;default:false"`
}

// CommissionDetails captures how the settled amount was split.
type CommissionDetails struct {
	PlatformRate   decimal.Decimal `gorm:"column:commission_platform_rate;type:numeric(8,4);not null;default:0"`
	PlatformAmount decimal.Decimal `gorm:"column:commission_platform_amount;type:numeric(20,2);not null;default:0"`
	VendorAmount   decimal.Decimal `gorm:"column:commission_vendor_amount;type:numeric(20,2);not null;default:0"`
	DispatchAmount decimal.Decimal `gorm:"column:commission_dispatch_amount;type:numeric(20,2);not null;default:0"`
}

// Transaction is one balanced double-entry ledger record. It is immutable
// once completed, except for the single allowed transition to reversed.
type Transaction struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Reference string                  `gorm:"column:reference;not null"`
	Type      enums.TransactionType   `gorm:"column:type;type:transaction_type_enum;not null"`
	Status    enums.TransactionStatus `gorm:"column:status;type:transaction_status_enum;not null;default:'pending'"`

	Entries []Entry `gorm:"foreignKey:TransactionID"`

	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:numeric(20,2);not null"`
	Currency    enums.Currency  `gorm:"column:currency;type:currency_enum;not null;default:'NGN'"`

	VAT        VATDetails        `gorm:"embedded"`
	Commission CommissionDetails `gorm:"embedded"`

	RelatedEntityType enums.RelatedEntityType `gorm:"column:related_entity_type;type:related_entity_type_enum;not null"`
	RelatedEntityID   uuid.UUID               `gorm:"column:related_entity_id;type:uuid;not null"`

	// Set on compensating transactions (refunds, withdrawal reversals).
	OriginalTransactionID *uuid.UUID `gorm:"column:original_transaction_id;type:uuid"`

	Description string          `gorm:"column:description"`
	Metadata    json.RawMessage `gorm:"column:metadata;type:jsonb"`

	CreatedBy      *uuid.UUID `gorm:"column:created_by;type:uuid"`
	ApprovedBy     *uuid.UUID `gorm:"column:approved_by;type:uuid"`
	ApprovedAt     *time.Time `gorm:"column:approved_at"`
	ReversedBy     *uuid.UUID `gorm:"column:reversed_by;type:uuid"`
	ReversalReason *string    `gorm:"column:reversal_reason"`
	ReversedAt     *time.Time `gorm:"column:reversed_at"`
	FailureReason  *string    `gorm:"column:failure_reason"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Entry is a single debit-or-credit line within a Transaction. For every
// transaction the entries must satisfy sum(debit) == sum(credit) within a
// 0.01 rounding tolerance.
type Entry struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID uuid.UUID           `gorm:"column:transaction_id;type:uuid;not null;index"`
	Seq           int                 `gorm:"column:seq;not null"`
	Account       enums.LedgerAccount `gorm:"column:account;type:ledger_account_enum;not null"`
	// Nil for platform-internal accounts.
	UserID      *uuid.UUID      `gorm:"column:user_id;type:uuid"`
	Debit       decimal.Decimal `gorm:"column:debit;type:numeric(20,2);not null;default:0"`
	Credit      decimal.Decimal `gorm:"column:credit;type:numeric(20,2);not null;default:0"`
	Movement    bool            `gorm:"column:movement;not null;default:false"`
	Description string          `gorm:"column:description"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// Amount returns the non-zero side of the entry.
func (e Entry) Amount() decimal.Decimal {
	if !e.Debit.IsZero() {
		return e.Debit
	}
	return e.Credit
}
