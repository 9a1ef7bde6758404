package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praetor-io/praetor/internal/audit"
	"github.com/praetor-io/praetor/internal/authz"
	"github.com/praetor-io/praetor/internal/grants"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGrantSweep deactivates permission grants past their expiry.
	TaskGrantSweep = "authz:grant_sweep"
)

// NewGrantSweepTask constructs the sweep task. The task carries no
// payload; it always sweeps the whole grant table.
func NewGrantSweepTask() *asynq.Task {
	return asynq.NewTask(TaskGrantSweep, nil)
}

// GrantSweeper deactivates expired grants and invalidates the decision
// cache for every tenant touched. The decision path never depends on
// the sweep: expiry is also filtered at query time.
type GrantSweeper struct {
	pool   *pgxpool.Pool
	repo   *grants.Repository
	cache  *authz.DecisionCache
	sink   audit.Sink
	logger *slog.Logger
}

// NewGrantSweeper constructs a sweeper. cache and sink may be nil.
func NewGrantSweeper(pool *pgxpool.Pool, repo *grants.Repository, cache *authz.DecisionCache, sink audit.Sink, logger *slog.Logger) *GrantSweeper {
	return &GrantSweeper{pool: pool, repo: repo, cache: cache, sink: sink, logger: logger}
}

// Handle processes TaskGrantSweep tasks.
func (s *GrantSweeper) Handle(ctx context.Context, t *asynq.Task) error {
	tenants, err := s.repo.SweepExpired(ctx, s.pool)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("grant sweep", slog.Any("error", err))
		}
		return err
	}
	for _, tenantID := range tenants {
		if err := s.cache.Bump(ctx, tenantID); err != nil && s.logger != nil {
			s.logger.Warn("grant sweep cache bump",
				slog.String("tenant_id", tenantID),
				slog.Any("error", err))
		}
	}
	if len(tenants) > 0 && s.sink != nil {
		if err := s.sink.Record(ctx, audit.Event{
			Type:        audit.TypeGrantSweep,
			Severity:    audit.SeverityLow,
			Description: "expired permission grants deactivated",
			Metadata:    map[string]any{"tenants": tenants},
		}); err != nil && s.logger != nil {
			s.logger.Error("grant sweep audit", slog.Any("error", err))
		}
	}
	if s.logger != nil {
		s.logger.Info("grant sweep completed", slog.Int("tenants_touched", len(tenants)))
	}
	return nil
}
