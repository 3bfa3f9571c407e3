package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"error-english/manager-go/internal/db"
	"error-english/manager-go/internal/entries"
	"error-english/manager-go/internal/publish"
	"error-english/manager-go/internal/queue"
	"error-english/manager-go/internal/render"
	"error-english/manager-go/internal/utils"
)

// PublishedEvent is sent to the video.published queue after a video is live.
type PublishedEvent struct {
	TargetWord  string    `json:"target_word"`
	YouTubeID   string    `json:"youtube_id"`
	ThreadsID   string    `json:"threads_id,omitempty"`
	InstagramID string    `json:"instagram_id,omitempty"`
	Hostname    string    `json:"hostname"`
	PublishedAt time.Time `json:"published_at"`
}

type DailyPublishJob struct {
	BaseJob
	now func() time.Time
}

func NewDailyPublishJob() DailyPublishJob {
	return DailyPublishJob{
		BaseJob: BaseJob{
			QueueInput:  queue.VideoRequested,
			QueueOutput: queue.VideoPublished,
		},
		now: time.Now,
	}
}

func (j DailyPublishJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	if opts.Queue {
		return j.RunQueue(ctx, jctx, opts, func(ctx context.Context, word string) error {
			if published, err := alreadyPublished(ctx, jctx, word); err != nil || published {
				return err
			}
			entry, err := findEntry(jctx, word)
			if err != nil {
				return err
			}
			return j.publishEntry(ctx, jctx, opts, entry)
		})
	}

	entry, err := nextPending(jctx)
	if errors.Is(err, ErrNoPending) {
		utils.Warn("no pending items found in queue")
		return nil
	}
	if err != nil {
		return err
	}
	return j.publishEntry(ctx, jctx, opts, entry)
}

// alreadyPublished consults the ledger so a redelivered request does not
// upload the same word twice.
func alreadyPublished(ctx context.Context, jctx JobContext, word string) (bool, error) {
	if jctx.Store == nil {
		return false, nil
	}
	p, err := jctx.Store.GetPublicationByWord(ctx, word)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger lookup %s: %w", word, err)
	}
	utils.Warn("word already published, skipping", "word", word, "youtube_id", p.YouTubeID)
	return true, nil
}

func (j DailyPublishJob) publishEntry(ctx context.Context, jctx JobContext, opts JobOptions, entry entries.ErrorEntry) error {
	if jctx.Services.YouTube == nil {
		return errors.New("youtube is not configured")
	}
	log := utils.With("word", entry.TargetWord)
	log.Info("daily publish started")

	res, err := produceVideo(ctx, jctx, entry)
	if err != nil {
		return err
	}

	upload := publish.Upload{
		VideoPath:     res.VideoPath,
		ThumbnailPath: res.ThumbnailPath,
		Metadata:      publish.EntryMetadata(entry),
	}
	if jctx.Config.YouTubeUploadCaptions {
		upload.CaptionsPath = res.CaptionsPath
	}
	videoID, err := jctx.Services.YouTube.Upload(ctx, upload)
	if err != nil {
		return fmt.Errorf("youtube upload: %w", err)
	}
	log.Info("uploaded to youtube", "video_id", videoID, "url", publish.ShortsURL(videoID))

	event := PublishedEvent{
		TargetWord: entry.TargetWord,
		YouTubeID:  videoID,
		Hostname:   jctx.Config.Hostname,
	}
	event.ThreadsID = j.announceThreads(ctx, jctx, opts, entry, videoID)
	event.InstagramID = j.postReel(ctx, jctx, opts, entry, res)

	if err := completeEntry(jctx, entry.TargetWord); err != nil {
		return err
	}
	event.PublishedAt = j.clock()()

	j.recordPublication(ctx, jctx, event, res)
	j.publishEvent(jctx, event)

	if err := utils.RemoveIfExists(res.VideoPath); err != nil {
		log.Warn("failed to delete local video", "path", res.VideoPath, "err", err)
	} else {
		log.Info("deleted local video", "path", res.VideoPath)
	}
	log.Info("daily publish finished")
	return nil
}

func (j DailyPublishJob) clock() func() time.Time {
	if j.now == nil {
		return time.Now
	}
	return j.now
}

func (j DailyPublishJob) announceThreads(ctx context.Context, jctx JobContext, opts JobOptions, entry entries.ErrorEntry, videoID string) string {
	if opts.SkipThreads || jctx.Services.Threads == nil {
		utils.Debug("threads post skipped", "word", entry.TargetWord)
		return ""
	}
	id, err := jctx.Services.Threads.Post(ctx, publish.AnnouncementText(entry, videoID))
	if err != nil {
		utils.Warn("threads post failed", "word", entry.TargetWord, "err", err)
		return ""
	}
	utils.Info("posted to threads", "word", entry.TargetWord, "threads_id", id)
	return id
}

func (j DailyPublishJob) postReel(ctx context.Context, jctx JobContext, opts JobOptions, entry entries.ErrorEntry, res render.Result) string {
	base := strings.TrimRight(jctx.Config.InstagramVideoBaseURL, "/")
	if opts.SkipInstagram || jctx.Services.Instagram == nil || base == "" {
		utils.Debug("instagram post skipped", "word", entry.TargetWord)
		return ""
	}
	videoURL := base + "/" + filepath.Base(res.VideoPath)
	coverURL := ""
	if res.ThumbnailPath != "" {
		coverURL = base + "/" + filepath.Base(res.ThumbnailPath)
	}
	id, err := jctx.Services.Instagram.PostReel(ctx, publish.ReelCaption(entry), videoURL, coverURL)
	if err != nil {
		utils.Warn("instagram post failed", "word", entry.TargetWord, "err", err)
		return ""
	}
	utils.Info("posted to instagram", "word", entry.TargetWord, "media_id", id)
	return id
}

// recordPublication writes the ledger row. The video is already public at
// this point, so failures are only logged.
func (j DailyPublishJob) recordPublication(ctx context.Context, jctx JobContext, event PublishedEvent, res render.Result) {
	if jctx.Store == nil {
		return
	}
	sum, err := utils.SHA256File(res.VideoPath)
	if err != nil {
		utils.Warn("video checksum failed", "path", res.VideoPath, "err", err)
	}
	id, err := jctx.Store.InsertPublication(ctx, db.Publication{
		TargetWord:  event.TargetWord,
		YouTubeID:   event.YouTubeID,
		ThreadsID:   event.ThreadsID,
		InstagramID: event.InstagramID,
		TotalFrames: res.Timeline.TotalFrames,
		VideoSHA256: sum,
		Hostname:    event.Hostname,
		PublishedAt: event.PublishedAt,
	})
	if err != nil {
		utils.Warn("publication ledger insert failed", "word", event.TargetWord, "err", err)
		return
	}
	utils.Debug("publication recorded", "word", event.TargetWord, "id", id)
}
