package jobs

import (
	"context"
	"errors"

	"error-english/manager-go/internal/utils"
)

// CreateNextJob renders the first pending entry. Outside test mode the entry
// then moves from the queue to history.
type CreateNextJob struct{}

func NewCreateNextJob() CreateNextJob { return CreateNextJob{} }

func (j CreateNextJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	entry, err := nextPending(jctx)
	if errors.Is(err, ErrNoPending) {
		utils.Info("no pending items found")
		return nil
	}
	if err != nil {
		return err
	}
	utils.Info("found pending item", "word", entry.TargetWord)

	if _, err := produceVideo(ctx, jctx, entry); err != nil {
		return err
	}
	if opts.Test {
		utils.Info("test mode: item retained in queue", "word", entry.TargetWord)
		return nil
	}
	return completeEntry(jctx, entry.TargetWord)
}
