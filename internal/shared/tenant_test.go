package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type ownedStub string

func (o ownedStub) OwnerTenant() string { return string(o) }

func TestValidateTenant(t *testing.T) {
	sec := NewSecurityContext("t-1", "u-1", nil, "")

	require.NoError(t, ValidateTenant(sec, ownedStub("t-1")))

	err := ValidateTenant(sec, ownedStub("t-2"))
	require.ErrorIs(t, err, ErrAuthorization)
	require.Equal(t, CodeTenantMismatch, CodeOf(err))
}

func TestValidateTenantSystemBypass(t *testing.T) {
	sec := NewSecurityContext("", SystemUserID, nil, "")
	require.True(t, sec.System())
	require.NoError(t, ValidateTenant(sec, ownedStub("t-anything")))
}

func TestNewSecurityContextMintsCorrelationID(t *testing.T) {
	sec := NewSecurityContext("t-1", "u-1", []string{"viewer"}, "")
	require.NotEmpty(t, sec.CorrelationID)
	require.False(t, sec.IssuedAt.IsZero())

	withID := NewSecurityContext("t-1", "u-1", nil, "corr-1")
	require.Equal(t, "corr-1", withID.CorrelationID)
}
