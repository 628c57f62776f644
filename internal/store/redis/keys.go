package redis

const (
	// KeyPrefixCategory is the prefix for category documents
	KeyPrefixCategory = "stacklink:category:"
	// KeyPrefixLink is the prefix for link documents
	KeyPrefixLink = "stacklink:link:"
	// KeyPrefixOwner is the prefix for per-owner id lists
	KeyPrefixOwner = "stacklink:owner:"
)

// CategoryKey returns the Redis key for a category document
func CategoryKey(id string) string {
	return KeyPrefixCategory + id
}

// LinkKey returns the Redis key for a link document
func LinkKey(id string) string {
	return KeyPrefixLink + id
}

// OwnerCategoriesKey returns the key of the insertion-ordered list of an owner's category ids
func OwnerCategoriesKey(ownerID string) string {
	return KeyPrefixOwner + ownerID + ":categories"
}

// OwnerLinksKey returns the key of the insertion-ordered list of an owner's link ids
func OwnerLinksKey(ownerID string) string {
	return KeyPrefixOwner + ownerID + ":links"
}
