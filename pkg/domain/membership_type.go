package domain

import dErrors "membership/pkg/domain-errors"

// MembershipType is the tier an applicant applies for.
// Invariant: the value must be one of the supported membership types.
type MembershipType string

const (
	MembershipTypeFull      MembershipType = "full"
	MembershipTypeAssociate MembershipType = "associate"
)

// membershipFeesPence is the single source of truth for valid membership types
// and the flat fee payable for each.
var membershipFeesPence = map[MembershipType]int{
	MembershipTypeFull:      5000,
	MembershipTypeAssociate: 2500,
}

// ParseMembershipType constructs a MembershipType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseMembershipType(s string) (MembershipType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "membership type cannot be empty")
	}
	t := MembershipType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid membership type")
	}
	return t, nil
}

func (t MembershipType) IsValid() bool {
	_, ok := membershipFeesPence[t]
	return ok
}

// FeePence returns the fee in pence, or 0 for an unsupported type.
func (t MembershipType) FeePence() int {
	return membershipFeesPence[t]
}

func (t MembershipType) String() string {
	return string(t)
}

// MembershipStatus tracks a record through payment. Records are created
// PENDING; the transition to ACTIVE is driven by payment confirmation.
type MembershipStatus string

const (
	MembershipStatusPending MembershipStatus = "PENDING"
	MembershipStatusActive  MembershipStatus = "ACTIVE"
)
