package enums

import (
	"fmt"
	"strings"
)

// CommissionStatus tracks the lifecycle of an affiliate commission.
type CommissionStatus string

const (
	CommissionStatusPending  CommissionStatus = "PENDING"
	CommissionStatusInReview CommissionStatus = "IN_REVIEW"
	CommissionStatusApproved CommissionStatus = "APPROVED"
	CommissionStatusDeclined CommissionStatus = "DECLINED"
	CommissionStatusPaid     CommissionStatus = "PAID"
)

var validCommissionStatuses = []CommissionStatus{
	CommissionStatusPending,
	CommissionStatusInReview,
	CommissionStatusApproved,
	CommissionStatusDeclined,
	CommissionStatusPaid,
}

// commissionTransitions lists every edge of the state machine. PAID is only
// entered through a payout batch; see CanSetManually.
var commissionTransitions = map[CommissionStatus][]CommissionStatus{
	CommissionStatusPending:  {CommissionStatusInReview, CommissionStatusApproved, CommissionStatusDeclined},
	CommissionStatusInReview: {CommissionStatusApproved, CommissionStatusDeclined},
	CommissionStatusApproved: {CommissionStatusDeclined, CommissionStatusPaid},
}

// CommissionStatuses returns the known statuses in lifecycle order.
func CommissionStatuses() []CommissionStatus {
	out := make([]CommissionStatus, len(validCommissionStatuses))
	copy(out, validCommissionStatuses)
	return out
}

// String implements fmt.Stringer.
func (c CommissionStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CommissionStatus.
func (c CommissionStatus) IsValid() bool {
	for _, candidate := range validCommissionStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the status.
func (c CommissionStatus) IsTerminal() bool {
	return c == CommissionStatusPaid || c == CommissionStatusDeclined
}

// CanTransitionTo reports whether the state machine has an edge c -> next.
func (c CommissionStatus) CanTransitionTo(next CommissionStatus) bool {
	for _, candidate := range commissionTransitions[c] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CanSetManually reports whether an operator may move c to next through a
// single-record status change.
func (c CommissionStatus) CanSetManually(next CommissionStatus) bool {
	if next == CommissionStatusPaid {
		return false
	}
	return c.CanTransitionTo(next)
}

// ParseCommissionStatus converts raw input into a CommissionStatus. Matching is
// case-insensitive so "approved" and "APPROVED" are equivalent.
func ParseCommissionStatus(value string) (CommissionStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validCommissionStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission status %q", value)
}
