package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
)

// Order carries the slice of the order record the settlement engine reads
// and writes. Catalog, fulfillment, and delivery routing live elsewhere.
type Order struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID         uuid.UUID       `gorm:"column:buyer_id;type:uuid;not null"`
	VendorID        uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null;index"`
	DeliveryAgentID *uuid.UUID      `gorm:"column:delivery_agent_id;type:uuid"`
	DeliveryFee     decimal.Decimal `gorm:"column:delivery_fee;type:numeric(20,2);not null;default:0"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount;type:numeric(20,2);not null"`
	Currency        enums.Currency  `gorm:"column:currency;type:currency_enum;not null;default:'NGN'"`

	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:payment_status_enum;not null;default:'pending'"`
	PaymentReference string              `gorm:"column:payment_reference"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`

	LineItems []OrderLineItem `gorm:"foreignKey:OrderID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderLineItem holds the two prices the commission split is computed from:
// the vendor-facing store price and the customer-facing listed price.
type OrderLineItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	Name         string          `gorm:"column:name;not null"`
	CategoryCode *string         `gorm:"column:category_code"`
	StorePrice   decimal.Decimal `gorm:"column:store_price;type:numeric(20,2);not null"`
	ListedPrice  decimal.Decimal `gorm:"column:listed_price;type:numeric(20,2);not null"`
	Quantity     int             `gorm:"column:quantity;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}
