package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"error-english/manager-go/internal/audio"
	"error-english/manager-go/internal/entries"
	"error-english/manager-go/internal/timeline"
	"error-english/manager-go/internal/utils"
)

// ShowTimelineJob prints the frame layout of a queued entry using whatever
// narration is already on disk. Nothing is synthesized or rendered.
type ShowTimelineJob struct{}

func NewShowTimelineJob() ShowTimelineJob { return ShowTimelineJob{} }

func (j ShowTimelineJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	if jctx.Services.Probe == nil {
		return errors.New("duration probe is not configured")
	}
	var (
		entry entries.ErrorEntry
		err   error
	)
	if opts.Word != "" {
		entry, err = findEntry(jctx, opts.Word)
	} else {
		entry, err = nextPending(jctx)
	}
	if err != nil {
		return err
	}

	narration := existingNarration(ctx, jctx, entry)
	tl, err := jctx.computeTimeline(ctx, narration)
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(jctx.stdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tl)
	}
	return writeTimelineTable(jctx, entry.TargetWord, tl)
}

// existingNarration probes the cached clips of entry. Missing clips count as 0.
func existingNarration(ctx context.Context, jctx JobContext, entry entries.ErrorEntry) audio.Narration {
	dir := filepath.Join(jctx.Config.AudioFolder(), entry.TargetWord)
	narration := audio.Narration{
		Dir:       dir,
		Paths:     map[string]string{},
		Durations: map[string]float64{},
	}
	for _, task := range audio.NarrationTasks(entry) {
		path := filepath.Join(dir, task.Key+".mp3")
		if !utils.FileExists(path) {
			narration.Failed = append(narration.Failed, task.Key)
			narration.Durations[task.Key] = 0
			continue
		}
		seconds, err := jctx.Services.Probe.Duration(ctx, path)
		if err != nil {
			utils.Warn("could not measure clip", "clip", task.Key, "err", err)
		}
		narration.Paths[task.Key] = "/audio/" + entry.TargetWord + "/" + task.Key + ".mp3"
		narration.Durations[task.Key] = seconds
	}
	if len(narration.Failed) > 0 {
		utils.Warn("some narration is missing and counts as silence", "word", entry.TargetWord, "missing", narration.Failed)
	}
	return narration
}

func writeTimelineTable(jctx JobContext, word string, tl timeline.Timeline) error {
	w := tabwriter.NewWriter(jctx.stdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%d frames\t%.2fs @ %dfps\n", word, tl.TotalFrames, tl.Seconds(tl.TotalFrames), tl.FPS)
	fmt.Fprintln(w, "SCENE\tITEM\tSTART\tFRAMES\tEND")
	for _, scene := range tl.Scenes {
		fmt.Fprintf(w, "%s\t\t%d\t%d\t%d\n", scene.Name, scene.Start, scene.Duration, scene.End())
		for _, clip := range scene.Clips {
			fmt.Fprintf(w, "\t%s\t%d\t%d\t%d\n", clip.ID, clip.AbsoluteStart, clip.Frames, clip.AbsoluteStart+clip.Frames)
		}
		for _, effect := range scene.Effects {
			fmt.Fprintf(w, "\t*%s\t%d\t\t\n", effect.Name, effect.AbsoluteStart)
		}
	}
	return w.Flush()
}
