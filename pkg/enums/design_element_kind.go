package enums

import "fmt"

// DesignElementKind classifies canvas elements for surcharge pricing.
type DesignElementKind string

const (
	DesignElementKindText  DesignElementKind = "text"
	DesignElementKindImage DesignElementKind = "image"
)

var validDesignElementKinds = []DesignElementKind{
	DesignElementKindText,
	DesignElementKindImage,
}

// String implements fmt.Stringer.
func (d DesignElementKind) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DesignElementKind.
func (d DesignElementKind) IsValid() bool {
	for _, candidate := range validDesignElementKinds {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDesignElementKind converts raw input into a DesignElementKind.
func ParseDesignElementKind(value string) (DesignElementKind, error) {
	for _, candidate := range validDesignElementKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid design element kind %q", value)
}
