package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"error-english/manager-go/internal/timeline"
	"error-english/manager-go/internal/utils"
)

// Phrase is a fixed line synthesized into public/se/<Name>.mp3.
type Phrase struct {
	Name string
	Text string
}

var ExtraPhrases = []Phrase{
	{Name: "type", Text: "Tap"},
	{Name: timeline.EffectWhatMean, Text: "どういう意味？"},
	{Name: timeline.EffectContextEnd, Text: "なるほど！"},
	{Name: timeline.EffectUsageIntro, Text: "こうやって使おう"},
	{Name: timeline.EffectUsageOutro, Text: "明日から使ってみよう"},
	{Name: FollowMeEffect, Text: "フォローしてね"},
}

// GenerateExtras synthesizes every phrase that is not on disk yet. Failures
// are logged and returned together after all phrases were tried.
func GenerateExtras(ctx context.Context, synth Synthesizer, seDir string, phrases []Phrase) error {
	if err := utils.EnsureDir(seDir); err != nil {
		return err
	}
	var errs []error
	for _, phrase := range phrases {
		path := filepath.Join(seDir, phrase.Name+".mp3")
		if err := synth.Synthesize(ctx, phrase.Text, path); err != nil {
			utils.Error("extra audio failed", "name", phrase.Name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", phrase.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Download is a sound effect fetched from a public URL.
type Download struct {
	URL  string
	Name string
}

var EffectDownloads = []Download{
	{URL: "https://github.com/mayfrost/guides/raw/master/notification_sound/alert.mp3", Name: "alert"},
	{URL: "https://github.com/wesbos/key-sound/raw/master/sounds/01.mp3", Name: "pop"},
	{URL: "https://github.com/wesbos/key-sound/raw/master/sounds/02.mp3", Name: "type"},
}

// DownloadEffects fetches every download into seDir and returns how many
// succeeded. A failed file is logged and skipped.
func DownloadEffects(ctx context.Context, client *http.Client, seDir string, downloads []Download) (int, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if err := utils.EnsureDir(seDir); err != nil {
		return 0, err
	}
	ok := 0
	for _, d := range downloads {
		dest := filepath.Join(seDir, d.Name+".mp3")
		if err := downloadFile(ctx, client, d.URL, dest); err != nil {
			utils.Error("download failed", "url", d.URL, "err", err)
			continue
		}
		utils.Info("downloaded", "file", dest)
		ok++
	}
	return ok, nil
}

func downloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch %s: %s", url, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
