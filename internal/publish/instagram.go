package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"error-english/manager-go/internal/utils"
)

// ReelPoster publishes a public video URL as a reel and returns its id.
type ReelPoster interface {
	PostReel(ctx context.Context, caption, videoURL, coverURL string) (string, error)
}

type InstagramClient struct {
	BaseURL     string
	AccountID   string
	AccessToken string
	// MaxPolls and PollInterval bound the wait for the uploaded video to be processed.
	MaxPolls     int
	PollInterval time.Duration

	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewInstagramClient(baseURL, accountID, accessToken string) *InstagramClient {
	if baseURL == "" {
		baseURL = "https://graph.facebook.com/v19.0"
	}
	return &InstagramClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		AccountID:    accountID,
		AccessToken:  accessToken,
		MaxPolls:     20,
		PollInterval: 10 * time.Second,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		sleep:        sleepContext,
	}
}

type containerStatus struct {
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

// PostReel creates a REELS container, waits until Instagram has fetched and
// processed the video, then publishes it.
func (c *InstagramClient) PostReel(ctx context.Context, caption, videoURL, coverURL string) (string, error) {
	if c.AccountID == "" || c.AccessToken == "" {
		return "", errors.New("instagram account_id and access_token are required")
	}

	body := map[string]string{
		"media_type":   "REELS",
		"video_url":    videoURL,
		"caption":      caption,
		"access_token": c.AccessToken,
	}
	if coverURL != "" {
		body["cover_url"] = coverURL
	}
	var container idResponse
	if err := postJSON(ctx, c.httpClient, "instagram container", c.BaseURL+"/"+c.AccountID+"/media", body, &container); err != nil {
		return "", err
	}
	log := utils.With("container_id", container.ID)
	log.Info("instagram container created")

	q := url.Values{}
	q.Set("fields", "status_code,status")
	q.Set("access_token", c.AccessToken)
	statusURL := c.BaseURL + "/" + container.ID + "?" + q.Encode()

	for attempt := 1; attempt <= c.MaxPolls; attempt++ {
		var status containerStatus
		if err := getJSON(ctx, c.httpClient, "instagram container status", statusURL, &status); err != nil {
			log.Warn("waiting for instagram container", "attempt", attempt, "err", err)
		} else {
			log.Info("instagram container status", "status_code", status.StatusCode, "status", status.Status)
			if status.StatusCode == "FINISHED" {
				break
			}
			if status.StatusCode == "ERROR" {
				return "", fmt.Errorf("instagram container %s failed: %s", container.ID, status.Status)
			}
		}
		if err := c.sleep(ctx, c.PollInterval); err != nil {
			return "", err
		}
	}

	var published idResponse
	if err := postJSON(ctx, c.httpClient, "instagram publish", c.BaseURL+"/"+c.AccountID+"/media_publish", map[string]string{
		"creation_id":  container.ID,
		"access_token": c.AccessToken,
	}, &published); err != nil {
		return "", err
	}
	log.Info("posted to instagram reels", "id", published.ID)
	return published.ID, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
