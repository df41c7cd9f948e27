package commission

import (
	"github.com/shopspring/decimal"

	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
)

// Breakdown is the order-level split of money between the vendor, the
// platform, and the dispatch agent.
type Breakdown struct {
	VendorAmount   decimal.Decimal
	PlatformAmount decimal.Decimal
	DispatchAmount decimal.Decimal
	// PlatformRate is the unweighted average of per-line markup
	// percentages. Informational only; amounts cannot be reconstructed
	// from it.
	PlatformRate decimal.Decimal
	TotalAmount  decimal.Decimal
}

var oneHundred = decimal.NewFromInt(100)

// Compute splits each line's listed price into the vendor's base share and
// the platform markup, then folds in the delivery fee when a dispatch agent
// fulfils the order. Sums are rounded once at aggregation, not per line.
func Compute(lines []models.OrderLineItem, deliveryFee decimal.Decimal, hasDispatchAgent bool) Breakdown {
	var (
		vendorTotal   decimal.Decimal
		platformTotal decimal.Decimal
		rateSum       decimal.Decimal
		ratedLines    int64
	)

	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		storeShare := line.StorePrice.Mul(qty)
		platformShare := line.ListedPrice.Mul(qty).Sub(storeShare)

		vendorTotal = vendorTotal.Add(storeShare)
		platformTotal = platformTotal.Add(platformShare)

		if line.StorePrice.IsPositive() {
			lineRate := line.ListedPrice.Sub(line.StorePrice).Div(line.StorePrice).Mul(oneHundred)
			rateSum = rateSum.Add(lineRate)
			ratedLines++
		}
	}

	dispatch := decimal.Zero
	if hasDispatchAgent && deliveryFee.IsPositive() {
		dispatch = deliveryFee
	}

	rate := decimal.Zero
	if ratedLines > 0 {
		rate = rateSum.Div(decimal.NewFromInt(ratedLines))
	}

	vendorTotal = vendorTotal.Round(2)
	platformTotal = platformTotal.Round(2)
	dispatch = dispatch.Round(2)

	return Breakdown{
		VendorAmount:   vendorTotal,
		PlatformAmount: platformTotal,
		DispatchAmount: dispatch,
		PlatformRate:   rate.Round(4),
		TotalAmount:    vendorTotal.Add(platformTotal).Add(dispatch),
	}
}

// Scale multiplies every monetary component by ratio, rounding each to the
// minor unit. Used for partial refunds; the rate is carried unchanged.
func (b Breakdown) Scale(ratio decimal.Decimal) Breakdown {
	scaled := Breakdown{
		VendorAmount:   b.VendorAmount.Mul(ratio).Round(2),
		PlatformAmount: b.PlatformAmount.Mul(ratio).Round(2),
		DispatchAmount: b.DispatchAmount.Mul(ratio).Round(2),
		PlatformRate:   b.PlatformRate,
	}
	scaled.TotalAmount = scaled.VendorAmount.Add(scaled.PlatformAmount).Add(scaled.DispatchAmount)
	return scaled
}
