package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/praetor-io/praetor/internal/assign"
	"github.com/praetor-io/praetor/internal/authz"
	"github.com/praetor-io/praetor/internal/grants"
	"github.com/praetor-io/praetor/internal/shared"
)

type fakeDecider struct {
	result authz.CheckResult
	err    error
	got    authz.CheckRequest
}

func (f *fakeDecider) Check(ctx context.Context, req authz.CheckRequest) (authz.CheckResult, error) {
	f.got = req
	return f.result, f.err
}

type fakeAssigner struct {
	err   error
	actor shared.SecurityContext
}

func (f *fakeAssigner) Assign(ctx context.Context, req assign.AssignRequest, actor shared.SecurityContext) error {
	f.actor = actor
	return f.err
}

func (f *fakeAssigner) Revoke(ctx context.Context, req assign.RevokeRequest, actor shared.SecurityContext) error {
	f.actor = actor
	return f.err
}

type fakeGranter struct{ err error }

func (f *fakeGranter) Revoke(ctx context.Context, req grants.RevokeRequest, actor shared.SecurityContext) error {
	return f.err
}

func TestCheckEndpointGranted(t *testing.T) {
	decider := &fakeDecider{result: authz.CheckResult{
		Granted: true,
		Reason:  authz.ReasonGranted,
		Matched: []authz.EffectivePermission{{Permission: "projects:*", Source: authz.SourceRole}},
	}}
	h := NewHandler(decider, &fakeAssigner{}, &fakeGranter{}, nil)

	body := `{"tenantId":"t-1","userId":"u-1","permission":"projects:update","resource":{"type":"Project","id":"p-1"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/permissions/check", strings.NewReader(body))
	req.Header.Set("X-Request-ID", "corr-1")
	rec := httptest.NewRecorder()

	h.Check(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Granted       bool   `json:"granted"`
		CorrelationID string `json:"correlationId"`
		Permissions   []struct {
			Permission string `json:"permission"`
			Source     string `json:"source"`
		} `json:"effectivePermissions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Granted)
	require.Equal(t, "corr-1", resp.CorrelationID)
	require.Len(t, resp.Permissions, 1)
	require.Equal(t, "ROLE", resp.Permissions[0].Source)

	require.Equal(t, "t-1", decider.got.TenantID)
	require.NotNil(t, decider.got.Resource)
	require.Equal(t, "p-1", decider.got.Resource.ID)
}

func TestCheckEndpointMalformedBody(t *testing.T) {
	h := NewHandler(&fakeDecider{}, &fakeAssigner{}, &fakeGranter{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/permissions/check", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	h.Check(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssignEndpointRequiresActor(t *testing.T) {
	h := NewHandler(&fakeDecider{}, &fakeAssigner{}, &fakeGranter{}, nil)

	body := `{"tenantId":"t-1","userId":"u-2","roleId":"r-pm"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/roles/assign", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Assign(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAssignEndpointMapsConflict(t *testing.T) {
	assigner := &fakeAssigner{err: shared.NewConflictError(shared.CodeRoleAlreadyAssigned, "role already assigned")}
	h := NewHandler(&fakeDecider{}, assigner, &fakeGranter{}, nil)

	body := `{"tenantId":"t-1","userId":"u-2","roleId":"r-pm"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/roles/assign", strings.NewReader(body))
	req.Header.Set(HeaderTenantID, "t-1")
	req.Header.Set(HeaderActorID, "u-admin")
	req.Header.Set(HeaderActorRoles, "tenant_admin, auditor")
	rec := httptest.NewRecorder()

	ActorContext(http.HandlerFunc(h.Assign)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), shared.CodeRoleAlreadyAssigned)

	require.Equal(t, "u-admin", assigner.actor.UserID)
	require.Equal(t, []string{"tenant_admin", "auditor"}, assigner.actor.Roles)
}

func TestRevokeGrantEndpoint(t *testing.T) {
	h := NewHandler(&fakeDecider{}, &fakeAssigner{}, &fakeGranter{}, nil)

	body := `{"tenantId":"t-1","grantId":"g-1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/grants/revoke", strings.NewReader(body))
	req.Header.Set(HeaderTenantID, "t-1")
	req.Header.Set(HeaderActorID, "u-admin")
	rec := httptest.NewRecorder()

	ActorContext(http.HandlerFunc(h.RevokeGrant)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":true`)
}
