package fal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/themeshot/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.Config{FalKey: "fal-key", FalBaseURL: srv.URL + "/"}, nil)
}

func TestGenerateSendsModelAndKey(t *testing.T) {
	var gotInput map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/fal-ai/flux/schnell", r.URL.Path)
		assert.Equal(t, "Key fal-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotInput))
		_, _ = w.Write([]byte(`{"images":[{"url":"https://fal.media/scene.jpg"}]}`))
	})

	url, err := c.Generate(context.Background(), "fal-ai/flux/schnell", map[string]any{"prompt": "castle"})
	require.NoError(t, err)
	assert.Equal(t, "https://fal.media/scene.jpg", url)
	assert.Equal(t, "castle", gotInput["prompt"])
}

func TestGenerateResultShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{name: "images list", body: `{"images":[{"url":"https://a"}]}`, want: "https://a"},
		{name: "single image", body: `{"image":{"url":"https://b"}}`, want: "https://b"},
		{name: "output", body: `{"output":{"url":"https://c"}}`, want: "https://c"},
		{name: "empty", body: `{"images":[]}`, wantErr: ErrEmptyResult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			url, err := c.Generate(context.Background(), "fal-ai/face-swap", nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, url)
		})
	}
}

func TestGenerateReportsStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"face not detected"}`, http.StatusUnprocessableEntity)
	})

	_, err := c.Generate(context.Background(), "fal-ai/face-swap", map[string]any{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.HTTPStatus())
	assert.Contains(t, apiErr.Body, "face not detected")
}
