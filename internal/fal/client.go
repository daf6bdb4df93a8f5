package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/digkill/themeshot/internal/config"
)

var ErrEmptyResult = errors.New("fal returned no image url")

// APIError is a non-2xx answer from fal.
type APIError struct {
	StatusCode int
	Model      string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fal error: status=%d model=%s body=%s", e.StatusCode, e.Model, e.Body)
}

func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Client calls fal's synchronous run endpoint: POST {base}/{model}.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		apiKey:  cfg.FalKey,
		baseURL: strings.TrimRight(cfg.FalBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Generate runs model with input and returns the URL of the produced image.
func (c *Client) Generate(ctx context.Context, model string, input map[string]any) (string, error) {
	fullURL := c.baseURL + "/" + strings.TrimLeft(model, "/")

	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post fal: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("fal request failed", "status", resp.StatusCode, "model", model, "body", truncateBody(rawBody))
		}
		return "", &APIError{StatusCode: resp.StatusCode, Model: model, Body: truncateBody(rawBody)}
	}

	var result struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
		Image *struct {
			URL string `json:"url"`
		} `json:"image"`
		Output *struct {
			URL string `json:"url"`
		} `json:"output"`
	}
	if err := json.Unmarshal(rawBody, &result); err != nil {
		return "", fmt.Errorf("decode fal response: %w (body=%s)", err, truncateBody(rawBody))
	}

	var imageURL string
	switch {
	case len(result.Images) > 0 && result.Images[0].URL != "":
		imageURL = result.Images[0].URL
	case result.Image != nil && result.Image.URL != "":
		imageURL = result.Image.URL
	case result.Output != nil && result.Output.URL != "":
		imageURL = result.Output.URL
	default:
		return "", ErrEmptyResult
	}

	if c.log != nil {
		c.log.Info("fal request completed", "model", model, "duration", time.Since(started))
	}
	return imageURL, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
