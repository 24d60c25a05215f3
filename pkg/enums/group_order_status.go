package enums

import "fmt"

// GroupOrderStatus tracks the lifecycle of a group order.
//
// The machine only ever moves forward:
//
//	open -> confirmed -> closed -> delivered
//	open -> closed                (expiry, thresholds unmet)
//	confirmed -> delivered
type GroupOrderStatus string

const (
	GroupOrderStatusOpen      GroupOrderStatus = "open"
	GroupOrderStatusConfirmed GroupOrderStatus = "confirmed"
	GroupOrderStatusClosed    GroupOrderStatus = "closed"
	GroupOrderStatusDelivered GroupOrderStatus = "delivered"
)

var validGroupOrderStatuses = []GroupOrderStatus{
	GroupOrderStatusOpen,
	GroupOrderStatusConfirmed,
	GroupOrderStatusClosed,
	GroupOrderStatusDelivered,
}

// String implements fmt.Stringer.
func (s GroupOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known GroupOrderStatus.
func (s GroupOrderStatus) IsValid() bool {
	for _, candidate := range validGroupOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave this status.
func (s GroupOrderStatus) IsTerminal() bool {
	return s == GroupOrderStatusDelivered
}

// ParseGroupOrderStatus converts raw input into a GroupOrderStatus.
func ParseGroupOrderStatus(value string) (GroupOrderStatus, error) {
	for _, candidate := range validGroupOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid group order status %q", value)
}
