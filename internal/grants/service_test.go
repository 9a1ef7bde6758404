package grants

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/praetor-io/praetor/internal/audit"
	"github.com/praetor-io/praetor/internal/authz"
	"github.com/praetor-io/praetor/internal/platform/db"
	"github.com/praetor-io/praetor/internal/shared"
)

type passRunner struct{}

func (passRunner) Run(ctx context.Context, sec shared.SecurityContext, fn func(context.Context, db.Querier) error) error {
	return fn(ctx, nil)
}

type allowDecider struct{ granted bool }

func (d allowDecider) Check(ctx context.Context, req authz.CheckRequest) (authz.CheckResult, error) {
	if d.granted {
		return authz.CheckResult{Granted: true}, nil
	}
	return authz.CheckResult{Granted: false, Code: shared.CodePermissionNotFound}, nil
}

type memorySink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *memorySink) Record(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

type grantKey struct{ grantID, tenantID string }

type memoryMutationStore struct {
	active map[grantKey]bool
}

func (s *memoryMutationStore) Deactivate(ctx context.Context, q db.Querier, grantID, tenantID string) error {
	key := grantKey{grantID, tenantID}
	if !s.active[key] {
		return ErrNotFound
	}
	delete(s.active, key)
	return nil
}

func newTestService(granted bool) (*Service, *memoryMutationStore, *memorySink) {
	store := &memoryMutationStore{active: map[grantKey]bool{
		{"g-1", "t-1"}: true,
	}}
	sink := &memorySink{}
	svc := NewService(ServiceParams{
		Runner:  passRunner{},
		Store:   store,
		Decider: allowDecider{granted: granted},
		Audit:   sink,
	})
	return svc, store, sink
}

func TestGrantRevokeSucceeds(t *testing.T) {
	svc, store, sink := newTestService(true)
	actor := shared.NewSecurityContext("t-1", "u-admin", []string{"tenant_admin"}, "corr-1")

	err := svc.Revoke(context.Background(), RevokeRequest{TenantID: "t-1", GrantID: "g-1"}, actor)
	require.NoError(t, err)
	require.Empty(t, store.active)

	require.Len(t, sink.events, 1)
	require.Equal(t, audit.TypeGrantRevocation, sink.events[0].Type)
	require.Equal(t, "corr-1", sink.events[0].CorrelationID)
}

func TestGrantRevokeValidationGate(t *testing.T) {
	svc, store, _ := newTestService(true)

	err := svc.Revoke(context.Background(), RevokeRequest{TenantID: "t-1"}, shared.NewSecurityContext("t-1", "u-1", nil, ""))
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Len(t, store.active, 1)
}

func TestGrantRevokeInsufficientPermissions(t *testing.T) {
	svc, store, sink := newTestService(false)

	err := svc.Revoke(context.Background(), RevokeRequest{TenantID: "t-1", GrantID: "g-1"}, shared.NewSecurityContext("t-1", "u-1", nil, ""))
	require.ErrorIs(t, err, shared.ErrAuthorization)
	require.Len(t, store.active, 1, "the grant stays active")

	require.Len(t, sink.events, 1)
	require.Equal(t, audit.TypeSecurityViolation, sink.events[0].Type)
	require.Equal(t, audit.SeverityHigh, sink.events[0].Severity)
}

func TestGrantRevokeSystemBypass(t *testing.T) {
	svc, store, _ := newTestService(false)

	err := svc.Revoke(context.Background(), RevokeRequest{TenantID: "t-1", GrantID: "g-1"},
		shared.NewSecurityContext("t-1", shared.SystemUserID, nil, ""))
	require.NoError(t, err)
	require.Empty(t, store.active)
}

func TestGrantRevokeNotFound(t *testing.T) {
	svc, _, _ := newTestService(true)

	err := svc.Revoke(context.Background(), RevokeRequest{TenantID: "t-1", GrantID: "g-ghost"},
		shared.NewSecurityContext("t-1", "u-admin", nil, ""))
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, shared.CodeGrantNotFound, shared.CodeOf(err))
}
