package grants

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/praetor-io/praetor/internal/authz"
	"github.com/praetor-io/praetor/internal/platform/db"
)

type stubStore struct {
	grants []Grant
	err    error
}

func (s stubStore) ActiveUserGrants(ctx context.Context, q db.Querier, userID, tenantID string, scope *authz.ResourceScope) ([]Grant, error) {
	return s.grants, s.err
}

func TestDirectPermissionsMapsGrants(t *testing.T) {
	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	cond := authz.Condition{Type: authz.ConditionLocation, Operator: authz.OpEquals, Value: "berlin"}
	resolver := NewResolver(stubStore{grants: []Grant{
		{
			ID:           "g-1",
			Permission:   "reports:export",
			ResourceType: "Report",
			ResourceID:   "r-9",
			Conditions:   []authz.Condition{cond},
			ExpiresAt:    &expires,
		},
		{ID: "g-2", Permission: "projects:view"},
	}}, nil)

	perms := resolver.DirectPermissions(context.Background(), nil, "u-1", "t-1", nil)
	require.Len(t, perms, 2)

	scoped := perms[0]
	require.Equal(t, "reports:export", scoped.Permission)
	require.Equal(t, authz.SourceDirect, scoped.Source)
	require.Equal(t, "grant g-1", scoped.SourceDetails)
	require.True(t, scoped.Granted)
	require.NotNil(t, scoped.Scope)
	require.Equal(t, "Report", scoped.Scope.Type)
	require.Equal(t, "r-9", scoped.Scope.ID)
	require.Equal(t, []authz.Condition{cond}, scoped.Conditions)
	require.Equal(t, &expires, scoped.ExpiresAt)

	require.Nil(t, perms[1].Scope, "grants without a resource type stay unscoped")
}

func TestDirectPermissionsStoreErrorYieldsEmptySet(t *testing.T) {
	resolver := NewResolver(stubStore{err: errors.New("connection refused")}, nil)
	require.Empty(t, resolver.DirectPermissions(context.Background(), nil, "u-1", "t-1", nil))
}

func TestGrantScope(t *testing.T) {
	require.Nil(t, Grant{}.Scope())
	scope := Grant{ResourceType: "Report", ResourceID: "r-9"}.Scope()
	require.NotNil(t, scope)
	require.Equal(t, "Report", scope.Type)
	require.Equal(t, "r-9", scope.ID)
}
