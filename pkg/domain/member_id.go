package domain

import (
	"fmt"
	"strconv"
	"strings"

	dErrors "membership/pkg/domain-errors"
)

// MemberID is the sequential key of a membership record: "MEMBER#" followed by
// a six digit, zero padded counter.
//
// Invariants:
//   - counter is in [1, MaxMemberCounter]
//   - the string form is always exactly 13 characters
//
// Usage: construct via ParseMemberID at trust boundaries or NewMemberID from a
// counter; direct casting bypasses validation.
type MemberID string

const (
	// MemberIDPrefix is also the record type discriminator used by the index.
	MemberIDPrefix   = "MEMBER#"
	MaxMemberCounter = 999999
	memberDigits     = 6
)

// FirstMemberID is allocated when no membership record exists yet.
var FirstMemberID = MemberID(MemberIDPrefix + "000001")

// NewMemberID formats counter as a member identifier.
func NewMemberID(counter int) (MemberID, error) {
	if counter < 1 || counter > MaxMemberCounter {
		return "", dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("member counter %d out of range", counter))
	}
	return MemberID(fmt.Sprintf("%s%0*d", MemberIDPrefix, memberDigits, counter)), nil
}

// ParseMemberID validates an identifier read from a store or a request.
//
// Errors: returns CodeInvalidInput when the prefix, length or digits are wrong.
func ParseMemberID(s string) (MemberID, error) {
	suffix, ok := strings.CutPrefix(s, MemberIDPrefix)
	if !ok || len(suffix) != memberDigits {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid member id")
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid member id")
		}
	}
	n, _ := strconv.Atoi(suffix)
	if n < 1 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid member id")
	}
	return MemberID(s), nil
}

// Counter returns the numeric suffix. Only meaningful for parsed ids.
func (id MemberID) Counter() int {
	n, err := strconv.Atoi(strings.TrimPrefix(string(id), MemberIDPrefix))
	if err != nil {
		return 0
	}
	return n
}

// Next returns the identifier that follows id.
func (id MemberID) Next() (MemberID, error) {
	return NewMemberID(id.Counter() + 1)
}

func (id MemberID) String() string {
	return string(id)
}
