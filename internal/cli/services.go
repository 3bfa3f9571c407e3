package cli

import (
	"context"
	"fmt"

	"error-english/manager-go/internal/audio"
	"error-english/manager-go/internal/config"
	"error-english/manager-go/internal/generator"
	"error-english/manager-go/internal/jobs"
	"error-english/manager-go/internal/publish"
	"error-english/manager-go/internal/render"
	"error-english/manager-go/internal/timeline"
	"error-english/manager-go/internal/utils"
)

// buildServices wires the collaborators that cfg has credentials for. The
// rest stay nil and the jobs that need them report it.
func buildServices(ctx context.Context, cfg config.Config) (jobs.Services, error) {
	var svc jobs.Services

	layout := timeline.DefaultLayout()
	if cfg.LayoutFile != "" {
		loaded, err := timeline.LoadLayout(cfg.LayoutFile)
		if err != nil {
			return svc, fmt.Errorf("layout: %w", err)
		}
		layout = loaded
		utils.Logf("layout loaded from %s (%d scenes)", cfg.LayoutFile, len(layout))
	}
	svc.Layout = layout

	svc.Synth = audio.NewAivisClient(audio.AivisOptions{
		Endpoint:   cfg.TTSEndpoint,
		APIKey:     cfg.TTSAPIKey,
		ModelUUID:  cfg.TTSModelUUID,
		StyleID:    cfg.TTSStyleID,
		Speed:      cfg.TTSSpeed,
		Pitch:      cfg.TTSPitch,
		Intonation: cfg.TTSIntonation,
	})
	svc.Probe = audio.FFProbe{}
	svc.Renderer = render.NewRenderer(render.Options{
		Command:     cfg.RenderCommand,
		Entry:       cfg.RenderEntry,
		Composition: cfg.RenderComposition,
		ProjectDir:  cfg.BaseFolder,
		OutputDir:   cfg.OutputFolder,
		TimeoutMS:   cfg.RenderTimeoutMS,
		Concurrency: cfg.RenderConcurrency,
		KeepAudio:   cfg.KeepAudio,
	})

	ytCfg := publish.YouTubeConfig{
		ClientID:       cfg.YouTubeClientID,
		ClientSecret:   cfg.YouTubeClientSecret,
		RefreshToken:   cfg.YouTubeRefreshToken,
		CategoryID:     cfg.YouTubeCategoryID,
		PrivacyStatus:  cfg.YouTubePrivacyStatus,
		UploadCaptions: cfg.YouTubeUploadCaptions,
	}
	if ytCfg.Validate() == nil {
		yt, err := publish.NewYouTubeClient(ctx, ytCfg)
		if err != nil {
			return svc, fmt.Errorf("youtube: %w", err)
		}
		svc.YouTube = yt
	} else {
		utils.Debug("youtube disabled (missing credentials)")
	}

	threads := publish.NewThreadsClient(cfg.ThreadsAPIBase, cfg.ThreadsTokenFile, cfg.ThreadsAccessToken)
	if _, err := threads.AccessToken(); err == nil {
		svc.Threads = threads
		svc.Refresher = threads
	} else {
		utils.Debug("threads disabled", "err", err)
	}

	if cfg.InstagramAccountID != "" && cfg.InstagramAccessToken != "" {
		svc.Instagram = publish.NewInstagramClient(cfg.InstagramAPIBase, cfg.InstagramAccountID, cfg.InstagramAccessToken)
	} else {
		utils.Debug("instagram disabled (missing account id or token)")
	}

	if cfg.LLMAPIKey != "" {
		completer, err := generator.NewOpenAICompleter(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
		if err != nil {
			return svc, fmt.Errorf("generator: %w", err)
		}
		prompt, err := generator.LoadPrompt(cfg.PromptFile)
		if err != nil {
			return svc, fmt.Errorf("prompt: %w", err)
		}
		svc.Generator = generator.Generator{Model: completer, PromptTemplate: prompt}
	} else {
		utils.Debug("generator disabled (no LLM api key)")
	}

	return svc, nil
}
