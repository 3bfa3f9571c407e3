package jobs

import (
	"context"
	"errors"

	"error-english/manager-go/internal/audio"
	"error-english/manager-go/internal/utils"
)

// GenerateExtraAudioJob synthesizes the fixed interjections into public/se.
type GenerateExtraAudioJob struct{}

func NewGenerateExtraAudioJob() GenerateExtraAudioJob { return GenerateExtraAudioJob{} }

func (j GenerateExtraAudioJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	if jctx.Services.Synth == nil {
		return errors.New("tts is not configured")
	}
	if err := audio.GenerateExtras(ctx, jctx.Services.Synth, jctx.Config.EffectsFolder(), audio.ExtraPhrases); err != nil {
		return err
	}
	utils.Info("extra audio generated", "dir", jctx.Config.EffectsFolder())
	return nil
}
