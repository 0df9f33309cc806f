package protocol

// Well-known item ids. The currency appears under two ids depending on the
// server build; both must be treated as gold.
const (
	ItemGold       int64 = 1
	ItemGoldLegacy int64 = 1001

	// Harvested produce occupies a contiguous id range in the bag.
	ProduceIDMin int64 = 1030000
	ProduceIDMax int64 = 1040000 // exclusive

	// Fertilizer containers hold accumulated fertilizer seconds.
	ContainerNormal  int64 = 1011
	ContainerOrganic int64 = 1012
)

// IsGold reports whether an item id is the currency under either alias.
func IsGold(id int64) bool {
	return id == ItemGold || id == ItemGoldLegacy
}

// IsProduce reports whether an item id falls in the sellable produce range.
func IsProduce(id int64) bool {
	return id >= ProduceIDMin && id < ProduceIDMax
}
