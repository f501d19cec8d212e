package dict

// Vendor is a vendor record (spec.md §3): a PEN, and the VSA header width
// conventions that attribute belongs to.
type Vendor struct {
	Name         string
	PEN          uint32
	TypeWidth    int // VSA header type width: 1, 2, or 4 bytes
	LengthWidth  int // VSA header length width: 0, 1, or 2 bytes
	Continuation bool
}

// WiMAXVendorName names the one well-known vendor whose VSA format legally
// carries a ",c" continuation suffix (spec.md §3, §4.2).
const WiMAXVendorName = "WiMAX"

// EnumValue is a named constant bound to a typed value of a specific
// attribute (spec.md §3, glossary "Enum/VALUE").
type EnumValue struct {
	Attribute *Attribute
	Alias     string
	Value     Value
}
