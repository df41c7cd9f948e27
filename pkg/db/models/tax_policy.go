package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
)

// TaxPolicy is the versioned, effective-dated VAT configuration. At most one
// policy is active for any point in time; resolution picks the latest
// effective_date <= now with no expiry or a future expiry.
type TaxPolicy struct {
	ID      uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Version int                   `gorm:"column:version;not null;uniqueIndex:ux_tax_policies_version"`
	Status  enums.TaxPolicyStatus `gorm:"column:status;type:tax_policy_status_enum;not null;default:'draft'"`

	EffectiveDate time.Time  `gorm:"column:effective_date;not null"`
	ExpiryDate    *time.Time `gorm:"column:expiry_date"`

	StandardRate decimal.Decimal `gorm:"column:standard_rate;type:numeric(6,3);not null"`
	ReducedRate  decimal.Decimal `gorm:"column:reduced_rate;type:numeric(6,3);not null;default:0"`

	// Vendors whose cumulative turnover exceeds this threshold are liable
	// for their own VAT even without voluntary registration.
	RegistrationThreshold decimal.Decimal `gorm:"column:registration_threshold;type:numeric(20,2);not null;default:0"`
	// Transactions above this amount make the platform liable regardless
	// of vendor turnover.
	PlatformLiabilityThreshold decimal.Decimal `gorm:"column:platform_liability_threshold;type:numeric(20,2);not null;default:0"`
	MinimumCollection          decimal.Decimal `gorm:"column:minimum_collection;type:numeric(20,2);not null;default:0"`

	RemittanceCadence string `gorm:"column:remittance_cadence;not null;default:'monthly'"`

	Categories []TaxCategoryRule `gorm:"foreignKey:PolicyID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TaxCategoryRule overrides the standard rate for a product category. Exempt
// categories rate to zero regardless of the standard rate.
type TaxCategoryRule struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PolicyID     uuid.UUID       `gorm:"column:policy_id;type:uuid;not null;index"`
	CategoryCode string          `gorm:"column:category_code;not null"`
	Rate         decimal.Decimal `gorm:"column:rate;type:numeric(6,3);not null;default:0"`
	Exempt       bool            `gorm:"column:exempt;not null;default:false"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}
