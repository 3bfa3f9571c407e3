package jobs

import (
	"context"
	"errors"
	"io/fs"

	"error-english/manager-go/internal/entries"
	"error-english/manager-go/internal/utils"
)

const defaultReplenishThreshold = 10

// ReplenishJob tops the queue up with generated entries once the pending
// stock drops below the threshold.
type ReplenishJob struct{}

func NewReplenishJob() ReplenishJob { return ReplenishJob{} }

func (j ReplenishJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = jctx.Config.ReplenishThreshold
	}
	if threshold <= 0 {
		threshold = defaultReplenishThreshold
	}

	queue, err := entries.LoadQueue(jctx.Config.QueueFile())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		utils.Info("queue file not found, generating new entries", "path", jctx.Config.QueueFile())
	case err != nil:
		return err
	default:
		pending := entries.PendingCount(queue)
		utils.Info("current pending stock", "pending", pending, "threshold", threshold)
		if pending >= threshold {
			utils.Info("stock is sufficient")
			return nil
		}
		utils.Info("stock is low, replenishing")
	}
	return NewGenerateEntriesJob().Run(ctx, jctx, opts)
}
