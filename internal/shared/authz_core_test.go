package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSensitivePermission(t *testing.T) {
	cases := []struct {
		perm string
		want bool
	}{
		{"admin:users:create", true},
		{"projects:delete", true},
		{"user:update", true},
		{"role:assign", true},
		{"permission:grant", true},
		{"tenant:configure", true},
		{"system:restart", true},
		{"reports:view", false},
		{"projects:update", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, IsSensitivePermission(tc.perm), "perm=%s", tc.perm)
	}
}

func TestCoreScopesCoverRoleAndGrantOps(t *testing.T) {
	scopes := CoreScopes()
	require.Contains(t, scopes, PermRolesAssign)
	require.Contains(t, scopes, PermRolesRevoke)
	require.Contains(t, scopes, PermGrantsIssue)
}
