package render

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"error-english/manager-go/internal/audio"
	"error-english/manager-go/internal/entries"
	"error-english/manager-go/internal/timeline"
)

func fixture(t *testing.T) (entries.ErrorEntry, audio.Narration, timeline.Timeline) {
	t.Helper()
	entry := entries.ErrorEntry{
		TargetWord:     "deprecated",
		ErrorMessage:   "Warning: function is deprecated",
		GeneralMeaning: "非推奨の【けいようし】",
	}
	durations := map[string]float64{
		timeline.ClipErrorMessage:   2,
		timeline.ClipGeneralMeaning: 1,
	}
	tl, err := timeline.Compute(timeline.DefaultLayout(), durations, 30)
	if err != nil {
		t.Fatal(err)
	}
	narration := audio.Narration{
		Paths:     map[string]string{timeline.ClipErrorMessage: "/audio/deprecated/errorMessage.mp3"},
		Durations: durations,
	}
	return entry, narration, tl
}

func TestThumbnailFrame(t *testing.T) {
	_, _, tl := fixture(t)
	// errorMessage starts at 45 and plays 60 frames
	if got := ThumbnailFrame(tl); got != 45+60+30 {
		t.Errorf("Expected frame 135, got %d", got)
	}

	short, err := timeline.Compute(timeline.Layout{{Name: "only", Clips: []string{timeline.ClipErrorMessage}, MinimumFrames: 20}}, nil, 30)
	if err != nil {
		t.Fatal(err)
	}
	if got := ThumbnailFrame(short); got != 19 {
		t.Errorf("frame should be clamped into the video, got %d", got)
	}
}

func TestBuildProps(t *testing.T) {
	entry, narration, tl := fixture(t)
	data, err := json.Marshal(BuildProps(entry, narration, tl))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["targetWord"] != "deprecated" {
		t.Errorf("entry fields should be flattened, got %v", decoded["targetWord"])
	}
	if decoded["totalDurationInFrames"] != float64(tl.TotalFrames) {
		t.Errorf("unexpected total %v", decoded["totalDurationInFrames"])
	}
	scenes := decoded["sceneDurations"].(map[string]any)
	if scenes[timeline.ScenePanic] != float64(45+60+60) {
		t.Errorf("unexpected panic duration %v", scenes[timeline.ScenePanic])
	}
	effects := decoded["effectStartFrames"].(map[string]any)
	if effects[timeline.EffectWhatMean] != float64(45+60+10) {
		t.Errorf("unexpected what_mean start %v", effects[timeline.EffectWhatMean])
	}
	for _, key := range []string{"audioPaths", "audioDurations", "sceneStartFrames", "clipStartFrames", "fps"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("props missing %s", key)
		}
	}
}

func TestCaptionTexts(t *testing.T) {
	entry, _, tl := fixture(t)
	texts := CaptionTexts(entry, tl)
	if texts[timeline.ClipGeneralMeaning] != "非推奨の" {
		t.Errorf("generalMeaning should be cleaned, got %q", texts[timeline.ClipGeneralMeaning])
	}
	if _, ok := texts[timeline.ClipFollowMe]; ok {
		t.Error("followMe has no entry text")
	}
}

func TestRender(t *testing.T) {
	entry, narration, tl := fixture(t)
	project := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	narration.Dir = filepath.Join(project, "public", "audio", "deprecated")
	if err := os.MkdirAll(narration.Dir, 0o755); err != nil {
		t.Fatal(err)
	}

	var commands []string
	var propsSeen bool
	propsRe := regexp.MustCompile(`--props='([^']+)'`)
	r := NewRenderer(Options{
		Command:     "npx remotion",
		Entry:       "src/index.ts",
		Composition: "ErrorEnglishVideo",
		ProjectDir:  project,
		OutputDir:   out,
		TimeoutMS:   240000,
		Concurrency: 1,
	}).WithRunner(func(_ context.Context, dir, command string) (string, error) {
		if dir != project {
			t.Errorf("command should run in project dir, got %s", dir)
		}
		commands = append(commands, command)
		if m := propsRe.FindStringSubmatch(command); m != nil {
			if _, err := os.Stat(m[1]); err == nil {
				propsSeen = true
			}
		}
		return "", nil
	})

	res, err := r.Render(context.Background(), entry, narration, tl)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(commands) != 2 {
		t.Fatalf("Expected 2 commands, got %d", len(commands))
	}
	if !propsSeen {
		t.Error("props file should exist while rendering")
	}
	wantVideo := "npx remotion render 'src/index.ts' 'ErrorEnglishVideo' '" + res.VideoPath + "'"
	if !strings.HasPrefix(commands[0], wantVideo) {
		t.Errorf("unexpected render command %s", commands[0])
	}
	for _, flag := range []string{"--duration-in-frames=", "--timeout=240000", "--concurrency=1"} {
		if !strings.Contains(commands[0], flag) {
			t.Errorf("render command missing %s: %s", flag, commands[0])
		}
	}
	if !strings.Contains(commands[1], " still ") || !strings.HasSuffix(commands[1], "--frame=135") {
		t.Errorf("unexpected still command %s", commands[1])
	}

	leftovers, _ := filepath.Glob(filepath.Join(project, "temp-props-*.json"))
	if len(leftovers) != 0 {
		t.Errorf("props file not removed: %v", leftovers)
	}
	if _, err := os.Stat(narration.Dir); !os.IsNotExist(err) {
		t.Error("audio dir should be removed")
	}
	srt, err := os.ReadFile(res.CaptionsPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(srt), "1\n00:00:01,500 --> 00:00:03,500\nWarning: function is deprecated\n") {
		t.Errorf("unexpected captions:\n%s", srt)
	}
	if res.RunID == "" {
		t.Error("run id should be set")
	}
}

func TestRenderCleansUpOnFailure(t *testing.T) {
	entry, narration, tl := fixture(t)
	project := t.TempDir()
	narration.Dir = filepath.Join(project, "audio")
	if err := os.MkdirAll(narration.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	r := NewRenderer(Options{Command: "npx remotion", ProjectDir: project, OutputDir: t.TempDir(), KeepAudio: true}).
		WithRunner(func(context.Context, string, string) (string, error) {
			return "", errors.New("chrome crashed")
		})
	if _, err := r.Render(context.Background(), entry, narration, tl); err == nil {
		t.Fatal("expected render error")
	}
	leftovers, _ := filepath.Glob(filepath.Join(project, "temp-props-*.json"))
	if len(leftovers) != 0 {
		t.Errorf("props file not removed: %v", leftovers)
	}
	if _, err := os.Stat(narration.Dir); err != nil {
		t.Error("KeepAudio should leave the audio dir in place")
	}
}
