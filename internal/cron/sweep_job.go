package cron

import (
	"context"
	"fmt"

	"github.com/supplylink/groupbuy-backend/pkg/logger"
)

// expirySweeper is the slice of the group orders service the job needs.
type expirySweeper interface {
	Sweep(ctx context.Context, batchSize int) (int, error)
}

// SweepJob closes open group orders whose expiry has passed.
type SweepJob struct {
	sweeper   expirySweeper
	logg      *logger.Logger
	batchSize int
}

// NewSweepJob builds the expiry sweep job.
func NewSweepJob(sweeper expirySweeper, logg *logger.Logger, batchSize int) (*SweepJob, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SweepJob{sweeper: sweeper, logg: logg, batchSize: batchSize}, nil
}

// Name implements Job.
func (j *SweepJob) Name() string {
	return "group_order_expiry_sweep"
}

// Run implements Job. Repeats until a batch comes back smaller than the batch
// size so a backlog is drained in one cycle.
func (j *SweepJob) Run(ctx context.Context) error {
	total := 0
	for {
		closed, err := j.sweeper.Sweep(ctx, j.batchSize)
		if err != nil {
			return err
		}
		total += closed
		if closed < j.batchSize {
			break
		}
	}
	if total > 0 {
		logCtx := j.logg.WithField(ctx, "closed", total)
		j.logg.Info(logCtx, "expired group orders closed")
	}
	return nil
}
