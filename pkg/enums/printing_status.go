package enums

import "fmt"

// PrintingStatus is the manufacturing lifecycle layered on design orders.
// It is reconciled from the commercial order by an explicit step, never by a
// cascade.
type PrintingStatus string

const (
	PrintingStatusPending    PrintingStatus = "pending"
	PrintingStatusProcessing PrintingStatus = "processing"
	PrintingStatusPrinted    PrintingStatus = "printed"
	PrintingStatusShipped    PrintingStatus = "shipped"
)

var validPrintingStatuses = []PrintingStatus{
	PrintingStatusPending,
	PrintingStatusProcessing,
	PrintingStatusPrinted,
	PrintingStatusShipped,
}

// String implements fmt.Stringer.
func (p PrintingStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PrintingStatus.
func (p PrintingStatus) IsValid() bool {
	for _, candidate := range validPrintingStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePrintingStatus converts raw input into a PrintingStatus.
func ParsePrintingStatus(value string) (PrintingStatus, error) {
	for _, candidate := range validPrintingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid printing status %q", value)
}
