package jobs

import (
	"context"

	"error-english/manager-go/internal/entries"
	"error-english/manager-go/internal/utils"
)

// UpdateAudioJob re-synthesizes narration for every queued entry. The general
// meaning clip is always regenerated; other clips reuse cached files.
type UpdateAudioJob struct{}

func NewUpdateAudioJob() UpdateAudioJob { return UpdateAudioJob{} }

func (j UpdateAudioJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	queue, err := entries.LoadQueue(jctx.Config.QueueFile())
	if err != nil {
		return err
	}
	narrator, err := jctx.narrator(map[string]bool{"generalMeaning": true})
	if err != nil {
		return err
	}
	utils.Info("updating audio files", "entries", len(queue))
	for _, entry := range queue {
		if err := ctx.Err(); err != nil {
			return err
		}
		narration, err := narrator.GenerateNarration(ctx, entry)
		if err != nil {
			return err
		}
		utils.Info("audio updated", "word", entry.TargetWord, "clips", len(narration.Paths), "failed", len(narration.Failed))
	}
	utils.Info("all audio files updated")
	return nil
}
