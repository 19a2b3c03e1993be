package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"together.backend/internal/metrics"
	"together.backend/pkg/logger"
)

type reaperRepo interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// ConnectionReaperJob deletes pending connections past their TTL so
// stale intents never match.
type ConnectionReaperJob struct {
	repo     reaperRepo
	interval time.Duration
	stop     chan struct{}
}

func NewConnectionReaperJob(repo reaperRepo, interval time.Duration) *ConnectionReaperJob {
	return &ConnectionReaperJob{
		repo:     repo,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (j *ConnectionReaperJob) Start(ctx context.Context) {
	logger.Info(ctx, "starting connection reaper", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "connection reaper stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "connection reaper stopped")
			return
		case <-ticker.C:
			j.reapExpired(ctx)
		}
	}
}

func (j *ConnectionReaperJob) Stop() {
	close(j.stop)
}

func (j *ConnectionReaperJob) reapExpired(ctx context.Context) {
	deleted, err := j.repo.DeleteExpired(ctx)
	if err != nil {
		logger.Error(ctx, "failed to delete expired pending connections", zap.Error(err))
		return
	}
	if deleted > 0 {
		metrics.ReaperDeletedTotal.Add(float64(deleted))
		logger.Info(ctx, "reaped expired pending connections", zap.Int64("deleted", deleted))
	}
}
