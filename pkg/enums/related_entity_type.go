package enums

// RelatedEntityType names the entity class a transaction back-references.
// The reference is weak; it exists for audit and lookup, not ownership.
type RelatedEntityType string

const (
	RelatedEntityOrder  RelatedEntityType = "order"
	RelatedEntityWallet RelatedEntityType = "wallet"
)

// IsValid reports whether the related entity type is recognized.
func (t RelatedEntityType) IsValid() bool {
	return t == RelatedEntityOrder || t == RelatedEntityWallet
}
