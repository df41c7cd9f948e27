package taxpolicy

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-ng/marketplace-backend/pkg/errors"
)

type fakeRepository struct {
	policy *models.TaxPolicy
	err    error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) FindActive(ctx context.Context, at time.Time) (*models.TaxPolicy, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.policy == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.policy, nil
}

func (f *fakeRepository) Create(ctx context.Context, policy *models.TaxPolicy) error {
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strptr(s string) *string {
	return &s
}

func nigerianPolicy() *models.TaxPolicy {
	return &models.TaxPolicy{
		Version:                    1,
		Status:                     enums.TaxPolicyStatusActive,
		StandardRate:               dec("7.5"),
		RegistrationThreshold:      dec("25000000"),
		PlatformLiabilityThreshold: dec("25000"),
		Categories: []models.TaxCategoryRule{
			{CategoryCode: "books", Exempt: true, Rate: dec("0")},
			{CategoryCode: "luxury", Rate: dec("10")},
		},
	}
}

func TestRateUsesCategoryOverrides(t *testing.T) {
	svc, err := NewService(&fakeRepository{policy: nigerianPolicy()})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	ctx := context.Background()

	rate, err := svc.Rate(ctx, nil)
	if err != nil {
		t.Fatalf("Rate error: %v", err)
	}
	if !rate.Equal(dec("7.5")) {
		t.Fatalf("standard rate = %s, want 7.5", rate)
	}

	rate, err = svc.Rate(ctx, strptr("luxury"))
	if err != nil {
		t.Fatalf("Rate error: %v", err)
	}
	if !rate.Equal(dec("10")) {
		t.Fatalf("luxury rate = %s, want 10", rate)
	}

	rate, err = svc.Rate(ctx, strptr("books"))
	if err != nil {
		t.Fatalf("Rate error: %v", err)
	}
	if !rate.IsZero() {
		t.Fatalf("exempt category rate = %s, want 0", rate)
	}

	// Unknown categories fall back to the standard rate.
	rate, err = svc.Rate(ctx, strptr("groceries"))
	if err != nil {
		t.Fatalf("Rate error: %v", err)
	}
	if !rate.Equal(dec("7.5")) {
		t.Fatalf("unknown category rate = %s, want 7.5", rate)
	}
}

func TestCalculateVATRoundsToMinorUnit(t *testing.T) {
	svc, err := NewService(&fakeRepository{policy: nigerianPolicy()})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	vat, err := svc.CalculateVAT(context.Background(), dec("10750"), nil)
	if err != nil {
		t.Fatalf("CalculateVAT error: %v", err)
	}
	if !vat.Equal(dec("806.25")) {
		t.Fatalf("vat = %s, want 806.25", vat)
	}
}

func TestCalculateVATMissingPolicy(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	_, err = svc.CalculateVAT(context.Background(), dec("100"), nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeTaxPolicyMissing) {
		t.Fatalf("expected tax policy missing error, got %v", err)
	}
}

func TestResolveResponsibilityPrecedence(t *testing.T) {
	svc, err := NewService(&fakeRepository{policy: nigerianPolicy()})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		name   string
		vendor *models.User
		amount decimal.Decimal
		want   enums.VATResponsibility
	}{
		{
			name:   "registered vendor is always liable",
			vendor: &models.User{VATRegistered: true},
			amount: dec("100"),
			want:   enums.VATResponsibilityVendor,
		},
		{
			name:   "large transaction falls to platform before turnover check",
			vendor: &models.User{AnnualTurnover: dec("30000000")},
			amount: dec("50000"),
			want:   enums.VATResponsibilityPlatform,
		},
		{
			name:   "high-turnover vendor liable below platform threshold",
			vendor: &models.User{AnnualTurnover: dec("30000000")},
			amount: dec("10000"),
			want:   enums.VATResponsibilityVendor,
		},
		{
			name:   "default platform",
			vendor: &models.User{},
			amount: dec("10000"),
			want:   enums.VATResponsibilityPlatform,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.ResolveResponsibility(ctx, tc.vendor, tc.amount)
			if err != nil {
				t.Fatalf("ResolveResponsibility error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("responsibility = %s, want %s", got, tc.want)
			}
		})
	}
}
