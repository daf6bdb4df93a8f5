package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/themeshot/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.Config{ReplicateToken: "r8_test", ReplicateBaseURL: srv.URL}, nil, WithPolling(time.Millisecond, 5))
}

func TestGenerateSynchronousAnswer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models/black-forest-labs/flux-schnell/predictions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer r8_test", r.Header.Get("Authorization"))
		assert.Equal(t, "wait", r.Header.Get("Prefer"))
		var body struct {
			Input map[string]any `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "harbor at dusk", body.Input["prompt"])
		_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":["https://replicate.delivery/out-0.webp"]}`))
	})
	c := newTestClient(t, mux)

	url, err := c.Generate(context.Background(), "black-forest-labs/flux-schnell", map[string]any{"prompt": "harbor at dusk"})
	require.NoError(t, err)
	assert.Equal(t, "https://replicate.delivery/out-0.webp", url)
}

func TestGeneratePollsUntilTerminal(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/predictions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc123", body["version"])
		_, _ = w.Write([]byte(`{"id":"p2","status":"starting"}`))
	})
	mux.HandleFunc("/v1/predictions/p2", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"id":"p2","status":"processing"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"p2","status":"succeeded","output":"https://replicate.delivery/swap.jpg"}`))
	})
	c := newTestClient(t, mux)

	url, err := c.Generate(context.Background(), "cdingram/face-swap:abc123", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "https://replicate.delivery/swap.jpg", url)
	assert.Equal(t, int32(3), polls.Load())
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		code  int
		check func(t *testing.T, err error)
	}{
		{
			name: "prediction failed",
			body: `{"id":"p3","status":"failed","error":"NSFW content detected"}`,
			code: http.StatusCreated,
			check: func(t *testing.T, err error) {
				var predErr *PredictionError
				require.True(t, errors.As(err, &predErr))
				assert.Equal(t, "failed", predErr.Status)
				assert.Contains(t, predErr.Detail, "NSFW")
			},
		},
		{
			name: "empty output",
			body: `{"id":"p4","status":"succeeded","output":[]}`,
			code: http.StatusCreated,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyResult)
			},
		},
		{
			name: "rate limited",
			body: `{"detail":"throttled"}`,
			code: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, http.StatusTooManyRequests, apiErr.HTTPStatus())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			_, err := c.Generate(context.Background(), "zsxkib/instant-id", map[string]any{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGenerateTimesOut(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p5","status":"processing"}`))
	}))
	_, err := c.Generate(context.Background(), "zsxkib/instant-id", map[string]any{})
	assert.ErrorIs(t, err, ErrTimeout)
}
