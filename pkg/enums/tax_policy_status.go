package enums

import "fmt"

// TaxPolicyStatus maps to the tax_policy_status_enum enum in Postgres.
// At most one policy may be active for any point in time.
type TaxPolicyStatus string

const (
	TaxPolicyStatusDraft   TaxPolicyStatus = "draft"
	TaxPolicyStatusActive  TaxPolicyStatus = "active"
	TaxPolicyStatusRetired TaxPolicyStatus = "retired"
)

var validTaxPolicyStatuses = []TaxPolicyStatus{
	TaxPolicyStatusDraft,
	TaxPolicyStatusActive,
	TaxPolicyStatusRetired,
}

// IsValid reports whether the policy status is recognized.
func (s TaxPolicyStatus) IsValid() bool {
	for _, candidate := range validTaxPolicyStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTaxPolicyStatus converts raw input into TaxPolicyStatus.
func ParseTaxPolicyStatus(value string) (TaxPolicyStatus, error) {
	for _, candidate := range validTaxPolicyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tax policy status %q", value)
}
