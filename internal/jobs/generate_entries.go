package jobs

import (
	"context"
	"errors"

	"error-english/manager-go/internal/utils"
)

// GenerateEntriesJob asks the language model for new entries and appends the
// unseen ones to the queue.
type GenerateEntriesJob struct{}

func NewGenerateEntriesJob() GenerateEntriesJob { return GenerateEntriesJob{} }

func (j GenerateEntriesJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	if jctx.Services.Generator == nil {
		return errors.New("entry generator is not configured (set GEMINI_API_KEY or OPENAI_API_KEY)")
	}
	added, err := jctx.Services.Generator.Generate(ctx, jctx.Config.QueueFile(), jctx.Config.HistoryFile())
	if err != nil {
		return err
	}
	if len(added) == 0 {
		utils.Warn("no new unique entries generated")
		return nil
	}
	words := make([]string, 0, len(added))
	for _, e := range added {
		words = append(words, e.TargetWord)
	}
	utils.Info("added new entries", "count", len(added), "words", words)
	return nil
}
