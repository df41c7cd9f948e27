package enums

import "fmt"

// VATResponsibility names the party liable to remit collected VAT.
type VATResponsibility string

const (
	VATResponsibilityPlatform VATResponsibility = "platform"
	VATResponsibilityVendor   VATResponsibility = "vendor"
)

// IsValid reports whether the responsibility is recognized.
func (r VATResponsibility) IsValid() bool {
	return r == VATResponsibilityPlatform || r == VATResponsibilityVendor
}

// ParseVATResponsibility converts raw input into VATResponsibility.
func ParseVATResponsibility(value string) (VATResponsibility, error) {
	switch VATResponsibility(value) {
	case VATResponsibilityPlatform:
		return VATResponsibilityPlatform, nil
	case VATResponsibilityVendor:
		return VATResponsibilityVendor, nil
	}
	return "", fmt.Errorf("invalid vat responsibility %q", value)
}
