package audio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"error-english/manager-go/internal/entries"
	"error-english/manager-go/internal/timeline"
)

type fakeSynth struct {
	fail  map[string]bool
	texts map[string]string
}

func (f *fakeSynth) Synthesize(_ context.Context, text, outputFile string) error {
	key := strings.TrimSuffix(filepath.Base(outputFile), ".mp3")
	if f.fail[key] {
		return errors.New("boom")
	}
	if f.texts == nil {
		f.texts = map[string]string{}
	}
	f.texts[key] = text
	return os.WriteFile(outputFile, []byte(text), 0o644)
}

// fakeProbe reports one second per byte.
type fakeProbe struct{}

func (fakeProbe) Duration(_ context.Context, path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return float64(info.Size()), nil
}

func entry() entries.ErrorEntry {
	return entries.ErrorEntry{
		TargetWord:     "deprecated",
		ErrorMessage:   "abc",
		GeneralMeaning: "ab【めいし】",
		UsageExample:   "abcd",
	}
}

func TestNarrationTasksCoverLayoutClips(t *testing.T) {
	tasks := NarrationTasks(entry())
	ids := timeline.DefaultLayout().ClipIDs()
	// every narrated field plus followMe from the effects folder
	if len(tasks) != len(ids)-1 {
		t.Fatalf("Expected %d tasks, got %d", len(ids)-1, len(tasks))
	}
	for i, task := range tasks {
		if task.Key != ids[i] {
			t.Errorf("task %d = %s, want %s", i, task.Key, ids[i])
		}
	}
	if tasks[3].Text != "ab" {
		t.Errorf("generalMeaning should be cleaned, got %q", tasks[3].Text)
	}
}

func TestGenerateNarration(t *testing.T) {
	root := t.TempDir()
	synth := &fakeSynth{fail: map[string]bool{timeline.ClipExplanation: true}}
	n := Narrator{Synth: synth, Probe: fakeProbe{}, AudioRoot: root}

	got, err := n.GenerateNarration(context.Background(), entry())
	if err != nil {
		t.Fatalf("GenerateNarration failed: %v", err)
	}
	if got.Dir != filepath.Join(root, "deprecated") {
		t.Errorf("unexpected dir %s", got.Dir)
	}
	if got.Durations[timeline.ClipErrorMessage] != 3 {
		t.Errorf("Expected 3s errorMessage, got %v", got.Durations[timeline.ClipErrorMessage])
	}
	if got.Paths[timeline.ClipUsageExample] != "/audio/deprecated/usageExample.mp3" {
		t.Errorf("unexpected path %s", got.Paths[timeline.ClipUsageExample])
	}
	if _, ok := got.Paths[timeline.ClipExplanation]; ok {
		t.Error("failed clip should have no path")
	}
	if d, ok := got.Durations[timeline.ClipExplanation]; !ok || d != 0 {
		t.Errorf("failed clip should have duration 0, got %v (present=%v)", d, ok)
	}
	if len(got.Failed) != 1 || got.Failed[0] != timeline.ClipExplanation {
		t.Errorf("Failed = %v", got.Failed)
	}
}

func TestGenerateNarrationRegenerate(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "deprecated")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(dir, timeline.ClipGeneralMeaning+".mp3")
	if err := os.WriteFile(stale, []byte("stale-audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	aivis := NewAivisClient(AivisOptions{APIKey: "unused", Endpoint: "http://127.0.0.1:0"})
	// cached files short-circuit before any request
	if err := aivis.Synthesize(context.Background(), "x", stale); err != nil {
		t.Fatalf("cached file should be kept: %v", err)
	}

	synth := &fakeSynth{}
	n := Narrator{
		Synth:      synth,
		Probe:      fakeProbe{},
		AudioRoot:  root,
		Regenerate: map[string]bool{timeline.ClipGeneralMeaning: true},
	}
	got, err := n.GenerateNarration(context.Background(), entry())
	if err != nil {
		t.Fatal(err)
	}
	if got.Durations[timeline.ClipGeneralMeaning] != 2 {
		t.Errorf("generalMeaning should be regenerated, got %v", got.Durations[timeline.ClipGeneralMeaning])
	}
}

func TestEffectDurationsAndClipDurations(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FollowMeEffect+".mp3"), []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}
	effects := EffectDurations(context.Background(), fakeProbe{}, dir, []string{FollowMeEffect, "what_mean"})
	if effects[FollowMeEffect] != 5 || effects["what_mean"] != 0 {
		t.Errorf("unexpected effects %v", effects)
	}

	clips := ClipDurations(Narration{Durations: map[string]float64{"errorMessage": 1.5}}, effects)
	if clips[timeline.ClipFollowMe] != 5 || clips["errorMessage"] != 1.5 {
		t.Errorf("unexpected clip durations %v", clips)
	}
}

func TestAivisClientSynthesize(t *testing.T) {
	var got synthesizeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	client := NewAivisClient(AivisOptions{
		Endpoint:   server.URL,
		APIKey:     "key",
		ModelUUID:  "model",
		Speed:      1.0,
		Intonation: 1.0,
	})
	out := filepath.Join(t.TempDir(), "nested", "clip.mp3")
	if err := client.Synthesize(context.Background(), "こんにちは", out); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "mp3-bytes" {
		t.Errorf("unexpected file contents %q (%v)", data, err)
	}
	want := synthesizeRequest{ModelUUID: "model", Text: "こんにちは", Speed: 1.0, Intonation: 1.0}
	if got != want {
		t.Errorf("request = %+v, want %+v", got, want)
	}
}

func TestAivisClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewAivisClient(AivisOptions{Endpoint: server.URL, APIKey: "key"})
	out := filepath.Join(t.TempDir(), "clip.mp3")
	err := client.Synthesize(context.Background(), "text", out)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || !apiErr.IsRetryable() {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if !strings.Contains(apiErr.Body, "quota exceeded") {
		t.Errorf("body not captured: %q", apiErr.Body)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("no file should be written on error")
	}
}

func TestAivisClientRequiresKey(t *testing.T) {
	client := NewAivisClient(AivisOptions{Endpoint: "http://127.0.0.1:0"})
	if err := client.Synthesize(context.Background(), "x", filepath.Join(t.TempDir(), "a.mp3")); err == nil {
		t.Error("expected error without api key")
	}
}

func TestParseProbeDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{`{"format":{"duration":"2.345000"}}`, 2.345, false},
		{`{"streams":[],"format":{"filename":"a.mp3","duration":"0.000000"}}`, 0, false},
		{`{"format":{}}`, 0, true},
		{`{"format":{"duration":"abc"}}`, 0, true},
		{`not json`, 0, true},
	}
	for _, tt := range tests {
		got, err := parseProbeDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseProbeDuration(%s) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseProbeDuration(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGenerateExtras(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "se")
	synth := &fakeSynth{fail: map[string]bool{"type": true}}
	err := GenerateExtras(context.Background(), synth, dir, ExtraPhrases)
	if err == nil || !strings.Contains(err.Error(), "type") {
		t.Errorf("expected joined error mentioning type, got %v", err)
	}
	if synth.texts[FollowMeEffect] != "フォローしてね" {
		t.Errorf("follow_me not generated: %v", synth.texts)
	}
	if _, err := os.Stat(filepath.Join(dir, "what_mean.mp3")); err != nil {
		t.Errorf("what_mean.mp3 missing: %v", err)
	}
}

func TestDownloadEffects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp3" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("sound"))
	}))
	defer server.Close()

	dir := t.TempDir()
	n, err := DownloadEffects(context.Background(), server.Client(), dir, []Download{
		{URL: server.URL + "/alert.mp3", Name: "alert"},
		{URL: server.URL + "/missing.mp3", Name: "pop"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Expected 1 download, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "alert.mp3")); err != nil {
		t.Errorf("alert.mp3 missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "pop.mp3")); !os.IsNotExist(err) {
		t.Error("failed download should not leave a file")
	}
}
