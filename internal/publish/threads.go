package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"error-english/manager-go/internal/utils"
)

// ErrNoThreadsToken means neither the token file nor the environment has a token.
var ErrNoThreadsToken = errors.New("no Threads access token found")

// TextPoster publishes a text post and returns its id.
type TextPoster interface {
	Post(ctx context.Context, text string) (string, error)
}

type threadsToken struct {
	AccessToken string `json:"access_token"`
	UpdatedAt   string `json:"updated_at"`
}

// ThreadsClient talks to graph.threads.net. A refreshed token is stored in
// TokenFile, which wins over the configured token.
type ThreadsClient struct {
	BaseURL     string
	TokenFile   string
	StaticToken string

	httpClient *http.Client
	now        func() time.Time
}

func NewThreadsClient(baseURL, tokenFile, staticToken string) *ThreadsClient {
	if baseURL == "" {
		baseURL = "https://graph.threads.net"
	}
	return &ThreadsClient{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		TokenFile:   tokenFile,
		StaticToken: staticToken,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		now:         time.Now,
	}
}

func (c *ThreadsClient) AccessToken() (string, error) {
	if c.TokenFile != "" {
		var tok threadsToken
		err := utils.ReadJSONFile(c.TokenFile, &tok)
		switch {
		case err == nil && tok.AccessToken != "":
			return tok.AccessToken, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("read threads token: %w", err)
		}
	}
	if c.StaticToken != "" {
		return c.StaticToken, nil
	}
	return "", ErrNoThreadsToken
}

func (c *ThreadsClient) saveAccessToken(token string) error {
	return utils.WriteJSONFile(c.TokenFile, threadsToken{
		AccessToken: token,
		UpdatedAt:   c.now().UTC().Format(time.RFC3339),
	}, "  ")
}

// RefreshToken exchanges the current long-lived token for a new one and
// stores it in TokenFile.
func (c *ThreadsClient) RefreshToken(ctx context.Context) (string, error) {
	token, err := c.AccessToken()
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("grant_type", "th_refresh_token")
	q.Set("access_token", token)

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := getJSON(ctx, c.httpClient, "threads token refresh", c.BaseURL+"/refresh_access_token?"+q.Encode(), &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("threads token refresh returned no token")
	}
	if c.TokenFile == "" {
		return "", errors.New("threads token file is not configured")
	}
	if err := c.saveAccessToken(out.AccessToken); err != nil {
		return "", fmt.Errorf("save threads token: %w", err)
	}
	utils.Info("threads token refreshed", "expires_in_s", out.ExpiresIn)
	return out.AccessToken, nil
}

// Post creates a TEXT container for the current user and publishes it.
func (c *ThreadsClient) Post(ctx context.Context, text string) (string, error) {
	token, err := c.AccessToken()
	if err != nil {
		return "", err
	}

	var me idResponse
	q := url.Values{}
	q.Set("fields", "id")
	q.Set("access_token", token)
	if err := getJSON(ctx, c.httpClient, "threads user lookup", c.BaseURL+"/v1.0/me?"+q.Encode(), &me); err != nil {
		return "", err
	}

	var container idResponse
	if err := postJSON(ctx, c.httpClient, "threads container", c.BaseURL+"/v1.0/"+me.ID+"/threads", map[string]string{
		"media_type":   "TEXT",
		"text":         text,
		"access_token": token,
	}, &container); err != nil {
		return "", err
	}

	var published idResponse
	if err := postJSON(ctx, c.httpClient, "threads publish", c.BaseURL+"/v1.0/"+me.ID+"/threads_publish", map[string]string{
		"creation_id":  container.ID,
		"access_token": token,
	}, &published); err != nil {
		return "", err
	}
	utils.Info("posted to threads", "id", published.ID)
	return published.ID, nil
}
