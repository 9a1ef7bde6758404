package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) *DecisionCache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDecisionCache(client, ttl, nil)
}

func TestDecisionCacheDisabled(t *testing.T) {
	require.Nil(t, NewDecisionCache(nil, time.Minute, nil))

	var cache *DecisionCache
	require.False(t, cache.Enabled())
	_, ok := cache.Get(context.Background(), CheckRequest{})
	require.False(t, ok)
	cache.Set(context.Background(), CheckRequest{}, CheckResult{})
	require.NoError(t, cache.Bump(context.Background(), "t-1"))
}

func TestDecisionCacheZeroTTLDisabled(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()
	require.Nil(t, NewDecisionCache(client, 0, nil))
}

func TestDecisionCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	ctx := context.Background()
	req := CheckRequest{TenantID: "t-1", UserID: "u-1", Permission: "reports:view"}

	_, ok := cache.Get(ctx, req)
	require.False(t, ok)

	want := CheckResult{Granted: true, Reason: ReasonGranted}
	cache.Set(ctx, req, want)

	got, ok := cache.Get(ctx, req)
	require.True(t, ok)
	require.Equal(t, want.Granted, got.Granted)
	require.Equal(t, want.Reason, got.Reason)
}

func TestDecisionCacheCorrelationIDDoesNotAffectKey(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	ctx := context.Background()

	first := CheckRequest{TenantID: "t-1", UserID: "u-1", Permission: "reports:view", CorrelationID: "corr-a"}
	cache.Set(ctx, first, CheckResult{Granted: true, Reason: ReasonGranted})

	second := first
	second.CorrelationID = "corr-b"
	_, ok := cache.Get(ctx, second)
	require.True(t, ok)
}

func TestDecisionCacheDigestDistinguishesEvaluationContext(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	ctx := context.Background()

	base := CheckRequest{TenantID: "t-1", UserID: "u-1", Permission: "reports:export"}
	berlin := base
	berlin.Evaluation = EvalContext{Location: "berlin"}
	munich := base
	munich.Evaluation = EvalContext{Location: "munich"}

	cache.Set(ctx, berlin, CheckResult{Granted: true, Reason: ReasonGranted})

	_, ok := cache.Get(ctx, munich)
	require.False(t, ok, "differing evaluation contexts never alias")

	_, ok = cache.Get(ctx, berlin)
	require.True(t, ok)
}

func TestDecisionCacheBumpInvalidates(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	ctx := context.Background()
	req := CheckRequest{TenantID: "t-1", UserID: "u-1", Permission: "reports:view"}

	cache.Set(ctx, req, CheckResult{Granted: true, Reason: ReasonGranted})
	_, ok := cache.Get(ctx, req)
	require.True(t, ok)

	require.NoError(t, cache.Bump(ctx, "t-1"))
	_, ok = cache.Get(ctx, req)
	require.False(t, ok, "mutations advance the tenant version")
}

func TestDecisionCacheBumpIsTenantScoped(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	ctx := context.Background()

	reqA := CheckRequest{TenantID: "t-1", UserID: "u-1", Permission: "reports:view"}
	reqB := CheckRequest{TenantID: "t-2", UserID: "u-1", Permission: "reports:view"}
	cache.Set(ctx, reqA, CheckResult{Granted: true, Reason: ReasonGranted})
	cache.Set(ctx, reqB, CheckResult{Granted: true, Reason: ReasonGranted})

	require.NoError(t, cache.Bump(ctx, "t-1"))

	_, ok := cache.Get(ctx, reqA)
	require.False(t, ok)
	_, ok = cache.Get(ctx, reqB)
	require.True(t, ok)
}

func TestDecisionCacheCollapse(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	calls := 0
	result := cache.Collapse(context.Background(), CheckRequest{TenantID: "t-1", UserID: "u-1", Permission: "p"}, func() CheckResult {
		calls++
		return CheckResult{Granted: true, Reason: ReasonGranted}
	})
	require.True(t, result.Granted)
	require.Equal(t, 1, calls)
}
