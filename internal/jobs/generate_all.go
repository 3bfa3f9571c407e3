package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"error-english/manager-go/internal/entries"
	"error-english/manager-go/internal/utils"
)

// GenerateAllJob renders every queued entry in order and stops at the first
// failure, leaving that entry queued for a retry.
type GenerateAllJob struct{}

func NewGenerateAllJob() GenerateAllJob { return GenerateAllJob{} }

func (j GenerateAllJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	queue, err := entries.LoadQueue(jctx.Config.QueueFile())
	if errors.Is(err, fs.ErrNotExist) {
		utils.Warn("queue file not found", "path", jctx.Config.QueueFile())
		return nil
	}
	if err != nil {
		return err
	}
	utils.Info("items to process", "count", len(queue))

	processed := 0
	for _, entry := range queue {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := produceVideo(ctx, jctx, entry); err != nil {
			return fmt.Errorf("failed to process %s, kept in queue for retry: %w", entry.TargetWord, err)
		}
		if err := completeEntry(jctx, entry.TargetWord); err != nil {
			return err
		}
		processed++
		utils.Info("processed", "word", entry.TargetWord, "remaining", len(queue)-processed)
	}
	utils.Info("all processing complete", "processed", processed)
	return nil
}
