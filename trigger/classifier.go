package trigger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultConditionallyApprovedStatus is the sce_applicationstatus option set
// value for a conditionally approved application.
const DefaultConditionallyApprovedStatus = 8

// Decision is the outcome of classifying an opportunity update.
type Decision int

const (
	None Decision = iota
	NewApproval
	ApprovalUpdated
)

func (d Decision) String() string {
	switch d {
	case NewApproval:
		return "NewApproval"
	case ApprovalUpdated:
		return "ApprovalUpdated"
	default:
		return "None"
	}
}

// MarshalText lets a Decision appear by name in JSON responses.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Opportunity holds the opportunity fields the classifier cares about.
// Either field may be absent.
type Opportunity struct {
	ID                uuid.UUID
	ApprovedAmount    decimal.NullDecimal
	ApplicationStatus *int
}

// Classifier decides whether an opportunity update should notify the journey.
type Classifier struct {
	ConditionallyApprovedStatus int
}

// Classify applies the conditional approval rule.
//
// The effective status is newStatus when present, otherwise the previous status.
// Anything other than conditionally approved yields None. A first approval
// (no previous amount) always yields NewApproval, even when the new amount is
// absent. Otherwise an absent or unchanged amount yields None and a changed
// amount yields ApprovalUpdated.
func (c Classifier) Classify(newAmount decimal.NullDecimal, newStatus *int, previous Opportunity) Decision {
	status := newStatus
	if status == nil {
		status = previous.ApplicationStatus
	}
	if status == nil || *status != c.ConditionallyApprovedStatus {
		return None
	}
	if !previous.ApprovedAmount.Valid {
		return NewApproval
	}
	if AmountsEqual(newAmount, previous.ApprovedAmount) || !newAmount.Valid {
		return None
	}
	return ApprovalUpdated
}

// AmountsEqual reports whether both amounts are present and numerically equal.
// An absent amount is never equal to anything, including another absent amount.
func AmountsEqual(a, b decimal.NullDecimal) bool {
	return a.Valid && b.Valid && a.Decimal.Equal(b.Decimal)
}
