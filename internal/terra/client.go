package terra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the production Terra REST endpoint.
const DefaultBaseURL = "https://api.tryterra.co/v2"

const clientTimeout = 15 * time.Second

// ClientConfig carries the Terra developer credentials. They are injected
// explicitly; the client never reads the environment.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	DeveloperID string
}

// Client fetches workout payloads on demand for the device poll and
// connect/resync paths. Payloads are returned as raw JSON so normalization
// sees the exact vendor bytes.
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: clientTimeout},
		logger: logger,
	}
}

// Enabled reports whether developer credentials are configured. A webhook-only
// deployment runs without them; fetches then degrade to empty results.
func (c *Client) Enabled() bool {
	return c.cfg.APIKey != "" && c.cfg.DeveloperID != ""
}

// FetchSince lists activity payloads for one external user from since until
// now. The window end is clamped so it never precedes the start.
func (c *Client) FetchSince(ctx context.Context, terraUserID, provider string, since time.Time) ([]json.RawMessage, error) {
	if !c.Enabled() {
		c.logger.Warn("terra credentials missing, returning empty collection", "terra_user_id", terraUserID)
		return nil, nil
	}

	startSeconds := since.Unix()
	endSeconds := time.Now().Unix()
	if endSeconds < startSeconds {
		endSeconds = startSeconds
	}

	params := url.Values{}
	params.Set("user_id", terraUserID)
	params.Set("start_date", strconv.FormatInt(startSeconds, 10))
	params.Set("end_date", strconv.FormatInt(endSeconds, 10))
	params.Set("to_webhook", "false")
	params.Set("providers", provider)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/activity?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build terra request: %w", err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("dev-id", c.cfg.DeveloperID)
	req.Header.Set("x-user-id", terraUserID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("terra activity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("terra activity request failed: status %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode terra activity response: %w", err)
	}
	return envelope.Data, nil
}

// FetchRecent lists activity payloads for the trailing number of days.
func (c *Client) FetchRecent(ctx context.Context, terraUserID, provider string, days int) ([]json.RawMessage, error) {
	return c.FetchSince(ctx, terraUserID, provider, time.Now().AddDate(0, 0, -days))
}
