package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "membership/pkg/domain-errors"
)

// TestMemberID_Format validates the formatting invariant:
// "member ids are MEMBER# followed by exactly six zero padded digits"
func TestMemberID_Format(t *testing.T) {
	t.Run("first id", func(t *testing.T) {
		id, err := NewMemberID(1)
		require.NoError(t, err)
		assert.Equal(t, FirstMemberID, id)
		assert.Equal(t, "MEMBER#000001", id.String())
	})

	t.Run("pads to six digits", func(t *testing.T) {
		id, err := NewMemberID(4217)
		require.NoError(t, err)
		assert.Equal(t, MemberID("MEMBER#004217"), id)
	})

	t.Run("rejects counters outside range", func(t *testing.T) {
		for _, n := range []int{0, -1, MaxMemberCounter + 1} {
			_, err := NewMemberID(n)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		}
	})
}

func TestMemberID_Next(t *testing.T) {
	next, err := FirstMemberID.Next()
	require.NoError(t, err)
	assert.Equal(t, MemberID("MEMBER#000002"), next)

	next, err = MemberID("MEMBER#000999").Next()
	require.NoError(t, err)
	assert.Equal(t, MemberID("MEMBER#001000"), next)

	_, err = MemberID("MEMBER#999999").Next()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestParseMemberID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "MEMBER#000042", false},
		{"largest", "MEMBER#999999", false},
		{"zero counter", "MEMBER#000000", true},
		{"missing prefix", "000042", true},
		{"wrong prefix", "USER#000042", true},
		{"lowercase prefix", "member#000042", true},
		{"short counter", "MEMBER#42", true},
		{"long counter", "MEMBER#0000042", true},
		{"non digit", "MEMBER#00004a", true},
		{"signed", "MEMBER#+00042", true},
		{"empty", "", true},
		{"oversized", "MEMBER#" + strings.Repeat("1", 100), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseMemberID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, id.String())
		})
	}
}

func TestMembershipType(t *testing.T) {
	full, err := ParseMembershipType("full")
	require.NoError(t, err)
	assert.Equal(t, 5000, full.FeePence())

	associate, err := ParseMembershipType("associate")
	require.NoError(t, err)
	assert.Equal(t, 2500, associate.FeePence())

	for _, bad := range []string{"", "Full", "student"} {
		_, err := ParseMembershipType(bad)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	}
}
