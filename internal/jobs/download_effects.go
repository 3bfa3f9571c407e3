package jobs

import (
	"context"
	"net/http"
	"time"

	"error-english/manager-go/internal/audio"
	"error-english/manager-go/internal/utils"
)

type DownloadEffectsJob struct {
	Client *http.Client
}

func NewDownloadEffectsJob() DownloadEffectsJob {
	return DownloadEffectsJob{Client: &http.Client{Timeout: 60 * time.Second}}
}

func (j DownloadEffectsJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	n, err := audio.DownloadEffects(ctx, j.Client, jctx.Config.EffectsFolder(), audio.EffectDownloads)
	if err != nil {
		return err
	}
	utils.Info("sound effects downloaded", "count", n, "total", len(audio.EffectDownloads))
	return nil
}
