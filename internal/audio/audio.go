// Package audio produces narration clips for an entry and measures how long
// every clip and sound effect plays.
package audio

import (
	"context"
	"fmt"
	"path/filepath"

	"error-english/manager-go/internal/entries"
	"error-english/manager-go/internal/timeline"
	"error-english/manager-go/internal/utils"
)

// FollowMeEffect is the sound file narrated in the outro scene.
const FollowMeEffect = "follow_me"

// Synthesizer turns text into an audio file at outputFile.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outputFile string) error
}

// Prober reports the playing time of an audio file in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Task is one narrated field of an entry.
type Task struct {
	Key    string
	Text   string
	Lang   string
	Gender string
}

// NarrationTasks lists the narrated fields of entry in playback order.
func NarrationTasks(e entries.ErrorEntry) []Task {
	return []Task{
		{Key: timeline.ClipErrorMessage, Text: e.ErrorMessage, Lang: "en-US", Gender: "FEMALE"},
		{Key: timeline.ClipMessageTranslation, Text: e.MessageTranslation, Lang: "ja-JP", Gender: "FEMALE"},
		{Key: timeline.ClipTargetWord, Text: e.TargetWord, Lang: "en-US", Gender: "FEMALE"},
		{Key: timeline.ClipGeneralMeaning, Text: entries.CleanMeaning(e.GeneralMeaning), Lang: "ja-JP", Gender: "FEMALE"},
		{Key: timeline.ClipGeneralExample, Text: e.GeneralExample, Lang: "en-US", Gender: "MALE"},
		{Key: timeline.ClipTechMeaning, Text: e.TechMeaning, Lang: "ja-JP", Gender: "MALE"},
		{Key: timeline.ClipExplanation, Text: e.Explanation, Lang: "ja-JP", Gender: "FEMALE"},
		{Key: timeline.ClipUsageContext, Text: e.UsageContext, Lang: "ja-JP", Gender: "FEMALE"},
		{Key: timeline.ClipUsageExample, Text: e.UsageExample, Lang: "en-US", Gender: "MALE"},
		{Key: timeline.ClipUsageExampleTranslation, Text: e.UsageExampleTranslation, Lang: "ja-JP", Gender: "MALE"},
		{Key: timeline.ClipUsagePunchline, Text: e.UsagePunchline, Lang: "en-US", Gender: "FEMALE"},
		{Key: timeline.ClipUsagePunchlineTranslation, Text: e.UsagePunchlineTranslation, Lang: "ja-JP", Gender: "FEMALE"},
	}
}

// Narration is the audio generated for one entry.
type Narration struct {
	// Dir holds the clip files; it is removed after rendering.
	Dir string
	// Paths are public-relative ("/audio/<word>/<key>.mp3") so the composition can load them.
	Paths     map[string]string
	Durations map[string]float64
	Failed    []string
}

// Narrator generates the per-entry clips below AudioRoot (public/audio).
type Narrator struct {
	Synth     Synthesizer
	Probe     Prober
	AudioRoot string
	// Regenerate lists clip keys whose cached file is deleted first.
	Regenerate map[string]bool
}

// GenerateNarration synthesizes every narration clip of entry. A clip that
// fails to synthesize or probe is logged and left out with duration 0; only
// an unusable audio directory is an error.
func (n Narrator) GenerateNarration(ctx context.Context, entry entries.ErrorEntry) (Narration, error) {
	dir := filepath.Join(n.AudioRoot, entry.TargetWord)
	if err := utils.EnsureDir(dir); err != nil {
		return Narration{}, fmt.Errorf("create audio dir: %w", err)
	}
	log := utils.With("word", entry.TargetWord)

	out := Narration{
		Dir:       dir,
		Paths:     map[string]string{},
		Durations: map[string]float64{},
	}
	for _, task := range NarrationTasks(entry) {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		fileName := task.Key + ".mp3"
		filePath := filepath.Join(dir, fileName)
		if n.Regenerate[task.Key] {
			if err := utils.RemoveIfExists(filePath); err != nil {
				log.Warn("could not remove cached clip", "clip", task.Key, "err", err)
			}
		}

		if err := n.Synth.Synthesize(ctx, task.Text, filePath); err != nil {
			log.Warn("audio generation failed, continuing without it", "clip", task.Key, "err", err)
			out.Failed = append(out.Failed, task.Key)
			out.Durations[task.Key] = 0
			continue
		}
		out.Paths[task.Key] = "/audio/" + entry.TargetWord + "/" + fileName

		seconds, err := n.Probe.Duration(ctx, filePath)
		if err != nil {
			log.Warn("could not measure clip", "clip", task.Key, "err", err)
			seconds = 0
		}
		out.Durations[task.Key] = seconds
	}
	return out, nil
}

// EffectDurations measures <seDir>/<name>.mp3 for every name. Missing or
// unreadable files count as 0 seconds.
func EffectDurations(ctx context.Context, probe Prober, seDir string, names []string) map[string]float64 {
	durations := make(map[string]float64, len(names))
	for _, name := range names {
		path := filepath.Join(seDir, name+".mp3")
		if !utils.FileExists(path) {
			utils.Logf("sound effect missing: %s", path)
			durations[name] = 0
			continue
		}
		seconds, err := probe.Duration(ctx, path)
		if err != nil {
			utils.Warn("could not measure sound effect", "effect", name, "err", err)
			seconds = 0
		}
		durations[name] = seconds
	}
	return durations
}

// ClipDurations merges narration durations with the outro's follow-me clip
// into the map the timeline builder expects.
func ClipDurations(narration Narration, effects map[string]float64) map[string]float64 {
	durations := make(map[string]float64, len(narration.Durations)+1)
	for key, seconds := range narration.Durations {
		durations[key] = seconds
	}
	durations[timeline.ClipFollowMe] = effects[FollowMeEffect]
	return durations
}
