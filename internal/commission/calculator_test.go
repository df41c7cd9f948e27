package commission

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeSplitsVendorAndPlatform(t *testing.T) {
	lines := []models.OrderLineItem{
		{StorePrice: dec("9000"), ListedPrice: dec("9675"), Quantity: 1},
	}

	got := Compute(lines, dec("1075"), true)

	if !got.VendorAmount.Equal(dec("9000")) {
		t.Fatalf("vendor amount = %s, want 9000", got.VendorAmount)
	}
	if !got.PlatformAmount.Equal(dec("675")) {
		t.Fatalf("platform amount = %s, want 675", got.PlatformAmount)
	}
	if !got.DispatchAmount.Equal(dec("1075")) {
		t.Fatalf("dispatch amount = %s, want 1075", got.DispatchAmount)
	}
	if !got.TotalAmount.Equal(dec("10750")) {
		t.Fatalf("total = %s, want 10750", got.TotalAmount)
	}
	if !got.PlatformRate.Equal(dec("7.5")) {
		t.Fatalf("platform rate = %s, want 7.5", got.PlatformRate)
	}
}

func TestComputeMultipleLinesAggregatesOnce(t *testing.T) {
	lines := []models.OrderLineItem{
		{StorePrice: dec("1000.333"), ListedPrice: dec("1100.333"), Quantity: 3},
		{StorePrice: dec("500"), ListedPrice: dec("600"), Quantity: 2},
	}

	got := Compute(lines, decimal.Zero, false)

	// 3*1000.333 + 2*500 = 4000.999 -> 4001.00 at aggregation.
	if !got.VendorAmount.Equal(dec("4001.00")) {
		t.Fatalf("vendor amount = %s, want 4001.00", got.VendorAmount)
	}
	// 3*100 + 2*100 = 500.
	if !got.PlatformAmount.Equal(dec("500.00")) {
		t.Fatalf("platform amount = %s, want 500.00", got.PlatformAmount)
	}
	if !got.DispatchAmount.IsZero() {
		t.Fatalf("dispatch amount = %s, want 0", got.DispatchAmount)
	}
}

func TestComputeNoDispatchAgentIgnoresDeliveryFee(t *testing.T) {
	lines := []models.OrderLineItem{
		{StorePrice: dec("100"), ListedPrice: dec("120"), Quantity: 1},
	}

	got := Compute(lines, dec("500"), false)
	if !got.DispatchAmount.IsZero() {
		t.Fatalf("expected zero dispatch without agent, got %s", got.DispatchAmount)
	}
	if !got.TotalAmount.Equal(dec("120")) {
		t.Fatalf("total = %s, want 120", got.TotalAmount)
	}
}

func TestComputeEmptyOrderYieldsZero(t *testing.T) {
	got := Compute(nil, decimal.Zero, false)
	if !got.VendorAmount.IsZero() || !got.PlatformAmount.IsZero() || !got.DispatchAmount.IsZero() || !got.TotalAmount.IsZero() {
		t.Fatalf("expected all-zero breakdown, got %+v", got)
	}
	if !got.PlatformRate.IsZero() {
		t.Fatalf("expected zero rate, got %s", got.PlatformRate)
	}
}

func TestComputePlatformRateIsUnweightedAverage(t *testing.T) {
	// One big low-markup line and one tiny high-markup line. The
	// unweighted average ignores line value entirely.
	lines := []models.OrderLineItem{
		{StorePrice: dec("10000"), ListedPrice: dec("10500"), Quantity: 1}, // 5%
		{StorePrice: dec("100"), ListedPrice: dec("125"), Quantity: 1},     // 25%
	}

	got := Compute(lines, decimal.Zero, false)
	if !got.PlatformRate.Equal(dec("15")) {
		t.Fatalf("platform rate = %s, want 15", got.PlatformRate)
	}
}

func TestScalePreservesReconciliation(t *testing.T) {
	lines := []models.OrderLineItem{
		{StorePrice: dec("9000"), ListedPrice: dec("9675"), Quantity: 1},
	}
	full := Compute(lines, dec("1075"), true)

	half := full.Scale(dec("0.5"))
	if !half.VendorAmount.Equal(dec("4500")) {
		t.Fatalf("scaled vendor = %s, want 4500", half.VendorAmount)
	}
	if half.TotalAmount.GreaterThan(full.TotalAmount) {
		t.Fatalf("scaled total %s exceeds original %s", half.TotalAmount, full.TotalAmount)
	}
	if !half.PlatformRate.Equal(full.PlatformRate) {
		t.Fatalf("rate should carry through unchanged")
	}
}
