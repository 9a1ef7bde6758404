package authz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DecisionCache is an opt-in Redis cache for check results. Keys embed
// a per-tenant version counter; every role or grant mutation bumps the
// counter, so stale grants are unreachable the moment a mutation
// commits. A zero TTL disables caching entirely, preserving the default
// of recomputing effective permissions on every decision.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewDecisionCache constructs a cache. Returns nil when the client is
// absent or the TTL is non-positive; a nil cache is a no-op.
func NewDecisionCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *DecisionCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &DecisionCache{client: client, ttl: ttl, logger: logger}
}

// Enabled reports whether the cache participates in decisions.
func (c *DecisionCache) Enabled() bool { return c != nil }

// Get returns a cached result for the request, if present.
func (c *DecisionCache) Get(ctx context.Context, req CheckRequest) (CheckResult, bool) {
	if c == nil {
		return CheckResult{}, false
	}
	key, err := c.key(ctx, req)
	if err != nil {
		return CheckResult{}, false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn("decision cache get", slog.Any("error", err))
		}
		return CheckResult{}, false
	}
	var result CheckResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return CheckResult{}, false
	}
	return result, true
}

// Set stores a result under the tenant's current version.
func (c *DecisionCache) Set(ctx context.Context, req CheckRequest, result CheckResult) {
	if c == nil {
		return
	}
	key, err := c.key(ctx, req)
	if err != nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("decision cache set", slog.Any("error", err))
	}
}

// Collapse deduplicates concurrent identical computations while the
// cache is cold.
func (c *DecisionCache) Collapse(ctx context.Context, req CheckRequest, compute func() CheckResult) CheckResult {
	if c == nil {
		return compute()
	}
	key, err := c.key(ctx, req)
	if err != nil {
		return compute()
	}
	value, _, _ := c.group.Do(key, func() (any, error) {
		return compute(), nil
	})
	result, ok := value.(CheckResult)
	if !ok {
		return compute()
	}
	return result
}

// Bump invalidates every cached decision for the tenant by advancing
// its version counter. Called on every role/grant mutation.
func (c *DecisionCache) Bump(ctx context.Context, tenantID string) error {
	if c == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(tenantID)).Err()
}

func (c *DecisionCache) key(ctx context.Context, req CheckRequest) (string, error) {
	version, err := c.client.Get(ctx, versionKey(req.TenantID)).Result()
	if err != nil {
		if err != redis.Nil {
			return "", err
		}
		version = "0"
	}
	digest, err := requestDigest(req)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("authz:dec:%s:%s:%s", req.TenantID, version, digest), nil
}

func versionKey(tenantID string) string {
	return "authz:ver:" + tenantID
}

// requestDigest hashes the full request including the evaluation
// context (time truncated to the second), so condition-bearing
// decisions never alias across differing contexts.
func requestDigest(req CheckRequest) (string, error) {
	normalized := req
	normalized.CorrelationID = ""
	normalized.Evaluation.Time = req.Evaluation.Time.Truncate(time.Second)
	payload, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
