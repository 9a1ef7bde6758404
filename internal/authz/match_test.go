package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchExact(t *testing.T) {
	require.True(t, Match("user:update", "user:update"))
	require.False(t, Match("user:update", "user:delete"))
	require.False(t, Match("user:update", "user:update:all"))
}

func TestMatchWildcard(t *testing.T) {
	cases := []struct {
		pattern string
		perm    string
		want    bool
	}{
		{"admin:*", "admin:delete", true},
		{"admin:*", "admin:users:create", true},
		{"admin:*", "reports:view", false},
		{"*:delete", "user:delete", true},
		{"*:delete", "user:update", false},
		{"projects:*", "projects:update", true},
		{"*", "anything:at:all", true},
		{"reports:*:export", "reports:finance:export", true},
		{"reports:*:export", "reports:finance:view", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Match(tc.pattern, tc.perm), "pattern=%s perm=%s", tc.pattern, tc.perm)
	}
}

func TestMatchWildcardNoOverlap(t *testing.T) {
	// "a*a" needs at least two characters; the anchors must not overlap.
	require.False(t, Match("a*a", "a"))
	require.True(t, Match("a*a", "aa"))
	require.True(t, Match("a*a", "aba"))
}
