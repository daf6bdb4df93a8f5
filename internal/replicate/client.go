package replicate

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

var (
	ErrEmptyResult = errors.New("replicate returned no output")
	ErrTimeout     = errors.New("replicate prediction did not finish in time")
)

// APIError is a non-2xx answer from the Replicate API.
type APIError struct {
	StatusCode int
	Model      string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("replicate error: status=%d model=%s body=%s", e.StatusCode, e.Model, e.Body)
}

func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// PredictionError reports a prediction that reached failed or canceled.
type PredictionError struct {
	ID     string
	Status string
	Detail string
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction %s %s: %s", e.ID, e.Status, e.Detail)
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

type Client struct {
	token        string
	baseURL      string
	httpClient   *http.Client
	log          *slog.Logger
	pollInterval time.Duration
	maxAttempts  int
}

type Option func(*Client)

func WithPolling(interval time.Duration, maxAttempts int) Option {
	return func(c *Client) {
		c.pollInterval = interval
		c.maxAttempts = maxAttempts
	}
}

func NewClient(cfg config.Config, log *slog.Logger, opts ...Option) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	c := &Client{
		token:   cfg.ReplicateToken,
		baseURL: strings.TrimRight(cfg.ReplicateBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:          log,
		pollInterval: 2 * time.Second,
		maxAttempts:  60,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate creates a prediction and waits for it to finish, returning the
// first output URL. model is "owner/name" or "owner/name:version".
func (c *Client) Generate(ctx context.Context, model string, input map[string]any) (string, error) {
	pred, err := c.createPrediction(ctx, model, input)
	if err != nil {
		return "", err
	}
	for attempt := 0; !isTerminal(pred.Status); attempt++ {
		if attempt >= c.maxAttempts {
			return "", fmt.Errorf("%w: id=%s after %d polls", ErrTimeout, pred.ID, c.maxAttempts)
		}
		if c.log != nil && attempt%10 == 0 {
			c.log.Info("replicate prediction waiting", "id", pred.ID, "status", pred.Status, "attempt", attempt+1)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
		pred, err = c.getPrediction(ctx, model, pred.ID)
		if err != nil {
			return "", err
		}
	}

	if pred.Status != "succeeded" {
		detail := "unknown error"
		if pred.Error != nil {
			detail = fmt.Sprint(pred.Error)
		}
		if c.log != nil {
			c.log.Error("replicate prediction failed", "id", pred.ID, "status", pred.Status, "error", detail)
		}
		return "", &PredictionError{ID: pred.ID, Status: pred.Status, Detail: detail}
	}

	url, err := firstOutput(pred.Output)
	if err != nil {
		return "", err
	}
	if c.log != nil {
		c.log.Info("replicate prediction completed", "id", pred.ID, "model", model)
	}
	return url, nil
}

func (c *Client) createPrediction(ctx context.Context, model string, input map[string]any) (*prediction, error) {
	payload := map[string]any{"input": input}
	endpoint := c.baseURL + "/v1/models/" + model + "/predictions"
	if _, version, ok := strings.Cut(model, ":"); ok {
		endpoint = c.baseURL + "/v1/predictions"
		payload["version"] = version
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")

	pred, err := c.do(req, model)
	if err != nil {
		return nil, fmt.Errorf("create prediction: %w", err)
	}
	if pred.ID == "" {
		return nil, fmt.Errorf("create prediction: empty id in response")
	}
	return pred, nil
}

func (c *Client) getPrediction(ctx context.Context, model, id string) (*prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/predictions/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	pred, err := c.do(req, model)
	if err != nil {
		return nil, fmt.Errorf("get prediction: %w", err)
	}
	return pred, nil
}

func (c *Client) do(req *http.Request, model string) (*prediction, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("replicate request failed", "status", resp.StatusCode, "url", req.URL.String(), "body", truncateBody(rawBody))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Model: model, Body: truncateBody(rawBody)}
	}

	var pred prediction
	if err := json.Unmarshal(rawBody, &pred); err != nil {
		return nil, fmt.Errorf("decode prediction: %w (body=%s)", err, truncateBody(rawBody))
	}
	return &pred, nil
}

func isTerminal(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

// firstOutput accepts both shapes models use: a single URL or a list of URLs.
func firstOutput(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", ErrEmptyResult
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return "", ErrEmptyResult
		}
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return "", fmt.Errorf("decode prediction output: %w", err)
	}
	if len(many) == 0 || many[0] == "" {
		return "", ErrEmptyResult
	}
	return many[0], nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
