package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User carries the slice of the user record the tax resolver reads.
type User struct {
	ID    uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name  string    `gorm:"column:name;not null"`
	Email string    `gorm:"column:email;not null;uniqueIndex:ux_users_email"`

	VATRegistered  bool            `gorm:"column:vat_registered;not null;default:false"`
	AnnualTurnover decimal.Decimal `gorm:"column:annual_turnover;type:numeric(20,2);not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
