package publish

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"error-english/manager-go/internal/utils"
)

type YouTubeConfig struct {
	ClientID       string
	ClientSecret   string
	RefreshToken   string
	CategoryID     string
	PrivacyStatus  string
	UploadCaptions bool
}

func (c YouTubeConfig) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
		return errors.New("youtube client_id, client_secret and refresh_token are required")
	}
	return nil
}

// Upload is one video with its side files. Empty paths are skipped.
type Upload struct {
	VideoPath     string
	ThumbnailPath string
	CaptionsPath  string
	Metadata      Metadata
}

// VideoUploader publishes a video and returns its id.
type VideoUploader interface {
	Upload(ctx context.Context, upload Upload) (string, error)
}

type YouTubeClient struct {
	cfg     YouTubeConfig
	service *youtube.Service
}

// NewYouTubeClient authenticates with the stored refresh token. Extra
// options are passed to the API client (endpoint overrides in tests).
func NewYouTubeClient(ctx context.Context, cfg YouTubeConfig, opts ...option.ClientOption) (*YouTubeClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeForceSslScope},
	}
	tokens := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	opts = append([]option.ClientOption{option.WithTokenSource(tokens)}, opts...)

	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	if cfg.CategoryID == "" {
		cfg.CategoryID = "28"
	}
	if cfg.PrivacyStatus == "" {
		cfg.PrivacyStatus = "public"
	}
	return &YouTubeClient{cfg: cfg, service: service}, nil
}

// Upload inserts the video, then sets the thumbnail and captions. Side file
// failures are logged; the video id is still returned.
func (c *YouTubeClient) Upload(ctx context.Context, upload Upload) (string, error) {
	file, err := os.Open(upload.VideoPath)
	if err != nil {
		return "", fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       upload.Metadata.Title,
			Description: upload.Metadata.Description,
			Tags:        upload.Metadata.Tags,
			CategoryId:  c.cfg.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           c.cfg.PrivacyStatus,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	utils.Info("uploading to youtube", "file", upload.VideoPath, "title", upload.Metadata.Title)
	res, err := c.service.Videos.Insert([]string{"snippet", "status"}, video).Media(file).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}
	utils.Info("upload successful", "video_id", res.Id)

	if upload.ThumbnailPath != "" && utils.FileExists(upload.ThumbnailPath) {
		if err := c.setThumbnail(ctx, res.Id, upload.ThumbnailPath); err != nil {
			utils.Warn("thumbnail upload failed", "video_id", res.Id, "err", err)
		}
	}
	if c.cfg.UploadCaptions && upload.CaptionsPath != "" && utils.FileExists(upload.CaptionsPath) {
		if err := c.insertCaptions(ctx, res.Id, upload.CaptionsPath); err != nil {
			utils.Warn("caption upload failed", "video_id", res.Id, "err", err)
		}
	}
	return res.Id, nil
}

func (c *YouTubeClient) setThumbnail(ctx context.Context, videoID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = c.service.Thumbnails.Set(videoID).Media(f).Context(ctx).Do()
	return err
}

func (c *YouTubeClient) insertCaptions(ctx context.Context, videoID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	caption := &youtube.Caption{
		Snippet: &youtube.CaptionSnippet{
			VideoId:  videoID,
			Language: "ja",
			Name:     "日本語",
		},
	}
	_, err = c.service.Captions.Insert([]string{"snippet"}, caption).Media(f).Context(ctx).Do()
	return err
}
