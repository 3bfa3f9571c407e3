package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"error-english/manager-go/internal/db"
	"error-english/manager-go/internal/publish"
	"error-english/manager-go/internal/utils"
)

// UploadSingleJob uploads a hand-made video with default metadata. With Info
// set it prints the metadata and records a video id uploaded elsewhere.
type UploadSingleJob struct{}

func NewUploadSingleJob() UploadSingleJob { return UploadSingleJob{} }

func (j UploadSingleJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	if opts.Path == "" {
		return errors.New("a video file path is required")
	}
	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return err
	}
	if !utils.FileExists(path) {
		return fmt.Errorf("file not found: %s", path)
	}
	meta := publish.ManualMetadata(path)

	var videoID string
	if opts.Info {
		videoID, err = j.promptForID(jctx, meta)
	} else {
		videoID, err = j.upload(ctx, jctx, path, meta)
	}
	if err != nil {
		return err
	}
	utils.Info("upload complete", "video_id", videoID, "url", publish.ShortsURL(videoID))

	if jctx.Store != nil {
		sum, _ := utils.SHA256File(path)
		_, err := jctx.Store.InsertPublication(ctx, db.Publication{
			TargetWord:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			YouTubeID:   videoID,
			VideoSHA256: sum,
			Hostname:    jctx.Config.Hostname,
			PublishedAt: time.Now(),
		})
		if err != nil {
			utils.Warn("publication ledger insert failed", "video_id", videoID, "err", err)
		}
	}
	return nil
}

func (j UploadSingleJob) upload(ctx context.Context, jctx JobContext, path string, meta publish.Metadata) (string, error) {
	if jctx.Services.YouTube == nil {
		return "", errors.New("youtube is not configured")
	}
	videoID, err := jctx.Services.YouTube.Upload(ctx, publish.Upload{VideoPath: path, Metadata: meta})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return videoID, nil
}

func (j UploadSingleJob) promptForID(jctx JobContext, meta publish.Metadata) (string, error) {
	out := jctx.stdout()
	fmt.Fprintf(out, "Title: %s\n", meta.Title)
	fmt.Fprintf(out, "Description: %s\n", meta.Description)
	fmt.Fprintf(out, "Category: %s\nKeywords: %s\nPrivacy status: %s\n",
		jctx.Config.YouTubeCategoryID, strings.Join(meta.Tags, ","), jctx.Config.YouTubePrivacyStatus)

	input, err := utils.PromptFrom(jctx.stdin(), out, "Enter video ID or URL")
	if err != nil {
		return "", err
	}
	videoID := publish.ExtractYouTubeID(input)
	if videoID == "" {
		return "", errors.New("invalid YouTube video ID or URL")
	}
	return videoID, nil
}
