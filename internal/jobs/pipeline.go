package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"error-english/manager-go/internal/audio"
	"error-english/manager-go/internal/entries"
	"error-english/manager-go/internal/render"
	"error-english/manager-go/internal/timeline"
	"error-english/manager-go/internal/utils"
)

// ErrNoPending is returned when the queue has nothing left to produce.
var ErrNoPending = errors.New("no pending entries")

func (jctx JobContext) layout() timeline.Layout {
	if len(jctx.Services.Layout) > 0 {
		return jctx.Services.Layout
	}
	return timeline.DefaultLayout()
}

func (jctx JobContext) narrator(regenerate map[string]bool) (audio.Narrator, error) {
	if jctx.Services.Synth == nil {
		return audio.Narrator{}, errors.New("tts is not configured")
	}
	if jctx.Services.Probe == nil {
		return audio.Narrator{}, errors.New("duration probe is not configured")
	}
	return audio.Narrator{
		Synth:      jctx.Services.Synth,
		Probe:      jctx.Services.Probe,
		AudioRoot:  jctx.Config.AudioFolder(),
		Regenerate: regenerate,
	}, nil
}

// computeTimeline measures the follow-me clip and lays out every scene.
func (jctx JobContext) computeTimeline(ctx context.Context, narration audio.Narration) (timeline.Timeline, error) {
	effects := audio.EffectDurations(ctx, jctx.Services.Probe, jctx.Config.EffectsFolder(), []string{audio.FollowMeEffect})
	return timeline.Compute(jctx.layout(), audio.ClipDurations(narration, effects), jctx.Config.RenderFPS)
}

// produceVideo narrates, lays out and renders one entry.
func produceVideo(ctx context.Context, jctx JobContext, entry entries.ErrorEntry) (render.Result, error) {
	if jctx.Services.Renderer == nil {
		return render.Result{}, errors.New("renderer is not configured")
	}
	if err := entry.Validate(); err != nil {
		return render.Result{}, err
	}
	log := utils.With("word", entry.TargetWord)
	log.Info("processing entry")

	narrator, err := jctx.narrator(nil)
	if err != nil {
		return render.Result{}, err
	}
	narration, err := narrator.GenerateNarration(ctx, entry)
	if err != nil {
		return render.Result{}, err
	}
	if len(narration.Failed) > 0 {
		log.Warn("rendering without some narration", "missing", narration.Failed)
	}

	tl, err := jctx.computeTimeline(ctx, narration)
	if err != nil {
		if !jctx.Config.KeepAudio {
			_ = utils.RemoveIfExists(narration.Dir)
		}
		return render.Result{}, fmt.Errorf("compute timeline for %s: %w", entry.TargetWord, err)
	}
	log.Info("timeline computed", "frames", tl.TotalFrames, "seconds", tl.Seconds(tl.TotalFrames))

	res, err := jctx.Services.Renderer.Render(ctx, entry, narration, tl)
	if err != nil {
		return render.Result{}, err
	}
	log.Info("video generated", "video", res.VideoPath, "thumbnail", res.ThumbnailPath)
	return res, nil
}

// nextPending loads the queue and returns its first pending entry.
func nextPending(jctx JobContext) (entries.ErrorEntry, error) {
	queue, err := entries.LoadQueue(jctx.Config.QueueFile())
	if err != nil {
		return entries.ErrorEntry{}, fmt.Errorf("load queue: %w", err)
	}
	entry, ok := entries.FirstPending(queue)
	if !ok {
		return entries.ErrorEntry{}, ErrNoPending
	}
	return entry, nil
}

// findEntry loads the queue and returns the entry for word.
func findEntry(jctx JobContext, word string) (entries.ErrorEntry, error) {
	queue, err := entries.LoadQueue(jctx.Config.QueueFile())
	if err != nil {
		return entries.ErrorEntry{}, fmt.Errorf("load queue: %w", err)
	}
	for _, e := range queue {
		if e.TargetWord == word {
			return e, nil
		}
	}
	return entries.ErrorEntry{}, fmt.Errorf("word %q is not in %s", word, filepath.Base(jctx.Config.QueueFile()))
}

func completeEntry(jctx JobContext, word string) error {
	if err := entries.Complete(jctx.Config.QueueFile(), jctx.Config.HistoryFile(), word); err != nil {
		return err
	}
	utils.Info("removed from queue and added to history", "word", word)
	return nil
}
