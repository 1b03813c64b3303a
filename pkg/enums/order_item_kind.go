package enums

import "fmt"

// OrderItemKind tags the line-item variant: a fixed catalog product or a saved
// custom design.
type OrderItemKind string

const (
	OrderItemKindProduct OrderItemKind = "product"
	OrderItemKindDesign  OrderItemKind = "design"
)

var validOrderItemKinds = []OrderItemKind{
	OrderItemKindProduct,
	OrderItemKindDesign,
}

// String implements fmt.Stringer.
func (o OrderItemKind) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderItemKind.
func (o OrderItemKind) IsValid() bool {
	for _, candidate := range validOrderItemKinds {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderItemKind converts raw input into an OrderItemKind.
func ParseOrderItemKind(value string) (OrderItemKind, error) {
	for _, candidate := range validOrderItemKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order item kind %q", value)
}
