package taxpolicy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-ng/marketplace-backend/pkg/errors"
)

// Service resolves the active VAT policy and applies its rules.
type Service interface {
	ActivePolicy(ctx context.Context) (*models.TaxPolicy, error)
	Rate(ctx context.Context, categoryCode *string) (decimal.Decimal, error)
	CalculateVAT(ctx context.Context, amount decimal.Decimal, categoryCode *string) (decimal.Decimal, error)
	ResolveResponsibility(ctx context.Context, vendor *models.User, transactionAmount decimal.Decimal) (enums.VATResponsibility, error)
	WithTx(tx *gorm.DB) Service
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a tax policy service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tax policy repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx), now: s.now}
}

// ActivePolicy returns the policy in force right now. A missing policy is a
// hard error: no settlement may proceed without one.
func (s *service) ActivePolicy(ctx context.Context) (*models.TaxPolicy, error) {
	policy, err := s.repo.FindActive(ctx, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeTaxPolicyMissing, "no active tax policy")
		}
		return nil, err
	}
	return policy, nil
}

func (s *service) Rate(ctx context.Context, categoryCode *string) (decimal.Decimal, error) {
	policy, err := s.ActivePolicy(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return rateFor(policy, categoryCode), nil
}

func (s *service) CalculateVAT(ctx context.Context, amount decimal.Decimal, categoryCode *string) (decimal.Decimal, error) {
	rate, err := s.Rate(ctx, categoryCode)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate).Div(decimal.NewFromInt(100)).Round(2), nil
}

// ResolveResponsibility decides who remits the VAT. The order of checks
// encodes policy precedence and must not be rearranged.
func (s *service) ResolveResponsibility(ctx context.Context, vendor *models.User, transactionAmount decimal.Decimal) (enums.VATResponsibility, error) {
	policy, err := s.ActivePolicy(ctx)
	if err != nil {
		return "", err
	}
	if vendor != nil && vendor.VATRegistered {
		return enums.VATResponsibilityVendor, nil
	}
	if transactionAmount.GreaterThan(policy.PlatformLiabilityThreshold) {
		return enums.VATResponsibilityPlatform, nil
	}
	if vendor != nil && vendor.AnnualTurnover.GreaterThan(policy.RegistrationThreshold) {
		return enums.VATResponsibilityVendor, nil
	}
	return enums.VATResponsibilityPlatform, nil
}

func rateFor(policy *models.TaxPolicy, categoryCode *string) decimal.Decimal {
	if categoryCode != nil && *categoryCode != "" {
		for _, rule := range policy.Categories {
			if rule.CategoryCode != *categoryCode {
				continue
			}
			if rule.Exempt {
				return decimal.Zero
			}
			return rule.Rate
		}
	}
	return policy.StandardRate
}
