// Package fetch downloads generated images. Only this idempotent GET is
// retried; generation requests themselves never are.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const maxImageBytes = 20 << 20

var ErrNotImage = errors.New("downloaded file is not an image")

// StatusError is a non-2xx answer from the image host.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

type Image struct {
	URL         string
	Bytes       []byte
	ContentType string
}

type Config struct {
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

type Client struct {
	httpClient *http.Client
	executor   failsafe.Executor[*Image]
	log        *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 250 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay * 8
	}

	policy := retrypolicy.NewBuilder[*Image]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ *Image, err error) bool {
			return shouldRetry(err)
		}).
		ReturnLastFailure().
		Build()

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		executor:   failsafe.With(policy),
		log:        log,
	}
}

// Fetch downloads url and verifies that the payload is a JPEG, PNG or WebP image.
func (c *Client) Fetch(ctx context.Context, url string) (*Image, error) {
	attempt := 0
	img, err := c.executor.WithContext(ctx).Get(func() (*Image, error) {
		attempt++
		img, err := c.get(ctx, url)
		if err != nil && c.log != nil {
			c.log.Warn("image fetch attempt failed", "url", url, "attempt", attempt, "err", err)
		}
		return img, err
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (c *Client) get(ctx context.Context, url string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	contentType, err := NormalizeImageContentType(resp.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, err
	}
	return &Image{URL: url, Bytes: data, ContentType: contentType}, nil
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrNotImage) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
			http.StatusTooManyRequests:
			return true
		default:
			return false
		}
	}
	return true
}

// NormalizeImageContentType trusts the header when it names an image type and
// sniffs the payload otherwise.
func NormalizeImageContentType(headerCT string, data []byte) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(headerCT))
	if idx := strings.Index(ct, ";"); idx > 0 {
		ct = ct[:idx]
	}
	if ct == "" || ct == "application/octet-stream" || !strings.HasPrefix(ct, "image/") {
		if len(data) > 0 {
			ct = http.DetectContentType(data)
			if idx := strings.Index(ct, ";"); idx > 0 {
				ct = ct[:idx]
			}
		}
	}

	switch ct {
	case "image/jpeg", "image/jpg":
		return "image/jpeg", nil
	case "image/png":
		return "image/png", nil
	case "image/webp":
		return "image/webp", nil
	default:
		return "", ErrNotImage
	}
}
