package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"error-english/manager-go/internal/utils"
)

// APIError is a non-200 answer from the speech API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tts request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for rate limits and server errors.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type AivisOptions struct {
	Endpoint   string
	APIKey     string
	ModelUUID  string
	StyleID    int
	Speed      float64
	Pitch      float64
	Intonation float64
}

// AivisClient calls the Aivis Cloud synthesis endpoint.
type AivisClient struct {
	opts       AivisOptions
	httpClient *http.Client
}

func NewAivisClient(opts AivisOptions) *AivisClient {
	return &AivisClient{
		opts: opts,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type synthesizeRequest struct {
	ModelUUID  string  `json:"model_uuid"`
	Text       string  `json:"text"`
	StyleID    int     `json:"style_id"`
	Speed      float64 `json:"speed"`
	Pitch      float64 `json:"pitch"`
	Intonation float64 `json:"intonation"`
}

// Synthesize writes the spoken text to outputFile. An existing file is kept
// as is, so reruns only pay for missing clips.
func (c *AivisClient) Synthesize(ctx context.Context, text, outputFile string) error {
	if utils.FileExists(outputFile) {
		utils.Logf("audio already exists: %s", outputFile)
		return nil
	}
	if c.opts.APIKey == "" {
		return errors.New("tts api key is not configured")
	}
	if err := utils.EnsureDir(filepath.Dir(outputFile)); err != nil {
		return err
	}

	body, err := json.Marshal(synthesizeRequest{
		ModelUUID:  c.opts.ModelUUID,
		Text:       text,
		StyleID:    c.opts.StyleID,
		Speed:      c.opts.Speed,
		Pitch:      c.opts.Pitch,
		Intonation: c.opts.Intonation,
	})
	if err != nil {
		return fmt.Errorf("marshal tts request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	// Write next to the target and rename so a broken download never
	// looks like a cached clip.
	tmp, err := os.CreateTemp(filepath.Dir(outputFile), ".tts-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), outputFile); err != nil {
		return err
	}
	utils.Info("generated audio", "file", outputFile)
	return nil
}
