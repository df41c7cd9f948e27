package taxpolicy

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
)

// Repository manages persistence for tax policies.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActive(ctx context.Context, at time.Time) (*models.TaxPolicy, error)
	Create(ctx context.Context, policy *models.TaxPolicy) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a tax policy repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActive(ctx context.Context, at time.Time) (*models.TaxPolicy, error) {
	var policy models.TaxPolicy
	err := r.db.WithContext(ctx).
		Preload("Categories").
		Where("status = ?", enums.TaxPolicyStatusActive).
		Where("effective_date <= ?", at).
		Where("expiry_date IS NULL OR expiry_date > ?", at).
		Order("effective_date DESC").
		First(&policy).Error
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *repository) Create(ctx context.Context, policy *models.TaxPolicy) error {
	return r.db.WithContext(ctx).Create(policy).Error
}
