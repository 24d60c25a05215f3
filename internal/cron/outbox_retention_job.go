package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/supplylink/groupbuy-backend/pkg/logger"
)

const defaultRetention = 7 * 24 * time.Hour

// publishedPruner is the slice of the outbox repository the job needs.
type publishedPruner interface {
	DeletePublishedBefore(cutoff time.Time) (int64, error)
}

// OutboxRetentionJob prunes outbox events that were published longer ago than
// the retention window.
type OutboxRetentionJob struct {
	pruner    publishedPruner
	logg      *logger.Logger
	retention time.Duration
}

// NewOutboxRetentionJob builds the retention job.
func NewOutboxRetentionJob(pruner publishedPruner, logg *logger.Logger, retention time.Duration) (*OutboxRetentionJob, error) {
	if pruner == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	return &OutboxRetentionJob{pruner: pruner, logg: logg, retention: retention}, nil
}

// Name implements Job.
func (j *OutboxRetentionJob) Name() string {
	return "outbox_retention"
}

// Run implements Job.
func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.retention)
	deleted, err := j.pruner.DeletePublishedBefore(cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logCtx := j.logg.WithField(ctx, "deleted", deleted)
		j.logg.Info(logCtx, "published outbox events pruned")
	}
	return nil
}
