package jobs

import (
	"context"
	"errors"

	"error-english/manager-go/internal/utils"
)

// RefreshThreadsTokenJob exchanges the long-lived Threads token for a fresh
// one and stores it in the token file.
type RefreshThreadsTokenJob struct{}

func NewRefreshThreadsTokenJob() RefreshThreadsTokenJob { return RefreshThreadsTokenJob{} }

func (j RefreshThreadsTokenJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	if jctx.Services.Refresher == nil {
		return errors.New("threads is not configured")
	}
	if _, err := jctx.Services.Refresher.RefreshToken(ctx); err != nil {
		return err
	}
	utils.Info("threads access token refreshed", "file", jctx.Config.ThreadsTokenFile)
	return nil
}
