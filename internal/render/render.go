// Package render turns an entry, its narration and the computed timeline into
// an MP4, a thumbnail and a caption file by driving the Remotion CLI.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"error-english/manager-go/internal/audio"
	"error-english/manager-go/internal/entries"
	"error-english/manager-go/internal/subtitles"
	"error-english/manager-go/internal/timeline"
	"error-english/manager-go/internal/utils"
)

// thumbnailSettleFrames lets the "what does this mean" card settle after the
// error message has been read.
const thumbnailSettleFrames = 30

// Props is the input bundle of the ErrorEnglishVideo composition.
type Props struct {
	entries.ErrorEntry
	AudioPaths            map[string]string  `json:"audioPaths"`
	AudioDurations        map[string]float64 `json:"audioDurations"`
	SceneDurations        map[string]int     `json:"sceneDurations"`
	SceneStartFrames      map[string]int     `json:"sceneStartFrames"`
	ClipStartFrames       map[string]int     `json:"clipStartFrames"`
	EffectStartFrames     map[string]int     `json:"effectStartFrames"`
	TotalDurationInFrames int                `json:"totalDurationInFrames"`
	FPS                   int                `json:"fps"`
}

func BuildProps(entry entries.ErrorEntry, narration audio.Narration, tl timeline.Timeline) Props {
	paths := narration.Paths
	if paths == nil {
		paths = map[string]string{}
	}
	durations := narration.Durations
	if durations == nil {
		durations = map[string]float64{}
	}
	return Props{
		ErrorEntry:            entry,
		AudioPaths:            paths,
		AudioDurations:        durations,
		SceneDurations:        tl.SceneDurations(),
		SceneStartFrames:      tl.SceneStarts(),
		ClipStartFrames:       tl.ClipStarts(),
		EffectStartFrames:     tl.EffectStarts(),
		TotalDurationInFrames: tl.TotalFrames,
		FPS:                   tl.FPS,
	}
}

// ThumbnailFrame is the frame just after the error message has been read.
// It stays inside the video.
func ThumbnailFrame(tl timeline.Timeline) int {
	frame := thumbnailSettleFrames
	if clip, ok := tl.Clip(timeline.ClipErrorMessage); ok {
		frame = clip.AbsoluteStart + clip.Frames + thumbnailSettleFrames
	}
	if tl.TotalFrames > 0 && frame >= tl.TotalFrames {
		frame = tl.TotalFrames - 1
	}
	return frame
}

// CaptionTexts maps every clip id of the timeline to the text it narrates.
func CaptionTexts(entry entries.ErrorEntry, tl timeline.Timeline) map[string]string {
	texts := map[string]string{}
	for _, scene := range tl.Scenes {
		for _, clip := range scene.Clips {
			if text, ok := entry.Field(clip.ID); ok {
				if clip.ID == timeline.ClipGeneralMeaning {
					text = entries.CleanMeaning(text)
				}
				texts[clip.ID] = text
			}
		}
	}
	return texts
}

// Runner executes a shell command in dir.
type Runner func(ctx context.Context, dir, command string) (string, error)

type Options struct {
	// Command is the Remotion CLI, e.g. "npx remotion".
	Command     string
	Entry       string
	Composition string
	ProjectDir  string
	OutputDir   string
	TimeoutMS   int
	Concurrency int
	// KeepAudio leaves the per-word narration directory in place.
	KeepAudio bool
}

type Renderer struct {
	opts Options
	run  Runner
}

func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts, run: utils.RunCommand}
}

// WithRunner replaces the command runner (tests, dry runs).
func (r *Renderer) WithRunner(run Runner) *Renderer {
	r.run = run
	return r
}

type Result struct {
	RunID          string
	VideoPath      string
	ThumbnailPath  string
	CaptionsPath   string
	ThumbnailFrame int
	Timeline       timeline.Timeline
}

// Render writes the props bundle, renders the video and the thumbnail still,
// and writes captions. The props file and, unless KeepAudio is set, the
// narration directory are removed whether rendering succeeds or not.
func (r *Renderer) Render(ctx context.Context, entry entries.ErrorEntry, narration audio.Narration, tl timeline.Timeline) (Result, error) {
	runID := uuid.NewString()
	log := utils.With("word", entry.TargetWord, "run_id", runID)

	if err := utils.EnsureDir(r.opts.OutputDir); err != nil {
		return Result{}, err
	}
	propsFile := filepath.Join(r.opts.ProjectDir, fmt.Sprintf("temp-props-%s-%s.json", entry.TargetWord, runID))
	defer func() {
		if err := utils.RemoveIfExists(propsFile); err != nil {
			log.Warn("could not remove props file", "file", propsFile, "err", err)
		}
		if narration.Dir != "" && !r.opts.KeepAudio {
			if err := utils.RemoveIfExists(narration.Dir); err != nil {
				log.Warn("could not remove audio dir", "dir", narration.Dir, "err", err)
			} else {
				log.Info("cleaned up audio directory", "dir", narration.Dir)
			}
		}
	}()

	data, err := json.Marshal(BuildProps(entry, narration, tl))
	if err != nil {
		return Result{}, fmt.Errorf("marshal props: %w", err)
	}
	if err := os.WriteFile(propsFile, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("write props: %w", err)
	}

	res := Result{
		RunID:          runID,
		VideoPath:      filepath.Join(r.opts.OutputDir, "video-"+entry.TargetWord+".mp4"),
		ThumbnailPath:  filepath.Join(r.opts.OutputDir, "thumbnail-"+entry.TargetWord+".png"),
		CaptionsPath:   filepath.Join(r.opts.OutputDir, "captions-"+entry.TargetWord+".srt"),
		ThumbnailFrame: ThumbnailFrame(tl),
		Timeline:       tl,
	}

	log.Info("rendering video", "frames", tl.TotalFrames, "output", res.VideoPath)
	if _, err := r.run(ctx, r.opts.ProjectDir, r.videoCommand(res.VideoPath, propsFile, tl.TotalFrames)); err != nil {
		return Result{}, fmt.Errorf("render video for %s: %w", entry.TargetWord, err)
	}

	log.Info("rendering thumbnail", "frame", res.ThumbnailFrame)
	if _, err := r.run(ctx, r.opts.ProjectDir, r.stillCommand(res.ThumbnailPath, propsFile, res.ThumbnailFrame)); err != nil {
		return Result{}, fmt.Errorf("render thumbnail for %s: %w", entry.TargetWord, err)
	}

	captions := subtitles.FromTimeline(tl, CaptionTexts(entry, tl))
	if err := os.WriteFile(res.CaptionsPath, []byte(subtitles.SerializeSRT(captions)), 0o644); err != nil {
		return Result{}, fmt.Errorf("write captions: %w", err)
	}
	return res, nil
}

func (r *Renderer) videoCommand(output, propsFile string, frames int) string {
	parts := []string{
		r.opts.Command, "render",
		utils.ShellEscape(r.opts.Entry),
		utils.ShellEscape(r.opts.Composition),
		utils.ShellEscape(output),
		"--props=" + utils.ShellEscape(propsFile),
		fmt.Sprintf("--duration-in-frames=%d", frames),
	}
	if r.opts.TimeoutMS > 0 {
		parts = append(parts, fmt.Sprintf("--timeout=%d", r.opts.TimeoutMS))
	}
	if r.opts.Concurrency > 0 {
		parts = append(parts, fmt.Sprintf("--concurrency=%d", r.opts.Concurrency))
	}
	return strings.Join(parts, " ")
}

func (r *Renderer) stillCommand(output, propsFile string, frame int) string {
	return strings.Join([]string{
		r.opts.Command, "still",
		utils.ShellEscape(r.opts.Entry),
		utils.ShellEscape(r.opts.Composition),
		utils.ShellEscape(output),
		"--props=" + utils.ShellEscape(propsFile),
		fmt.Sprintf("--frame=%d", frame),
	}, " ")
}
