package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/digkill/themeshot/internal/replicate"
)

func TestPreview(t *testing.T) {
	gen := new(mockGenerator)
	fetcher := &fakeFetcher{}
	gen.On("Generate", mock.Anything, "black-forest-labs/flux-schnell", mock.MatchedBy(func(in map[string]any) bool {
		return in["prompt"] == "cozy cabin" && in["output_format"] == "webp"
	})).Return("https://replicate.delivery/preview.webp", nil)

	res, err := NewPreviewService(gen, fetcher, testLogger()).Preview(context.Background(), "cozy cabin")
	require.NoError(t, err)
	assert.Equal(t, "https://replicate.delivery/preview.webp", res.URL)
	assert.Equal(t, []byte("image:https://replicate.delivery/preview.webp"), res.Image.Bytes)
}

func TestPreviewFailures(t *testing.T) {
	t.Run("missing prompt", func(t *testing.T) {
		gen := new(mockGenerator)
		_, err := NewPreviewService(gen, &fakeFetcher{}, testLogger()).Preview(context.Background(), "")
		assert.ErrorIs(t, err, ErrInvalidInput)
		gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty output", func(t *testing.T) {
		gen := new(mockGenerator)
		gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", replicate.ErrEmptyResult)
		_, err := NewPreviewService(gen, &fakeFetcher{}, testLogger()).Preview(context.Background(), "x")
		assert.ErrorIs(t, err, ErrNoImageGenerated)
	})

	t.Run("provider error", func(t *testing.T) {
		gen := new(mockGenerator)
		gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("boom"))
		_, err := NewPreviewService(gen, &fakeFetcher{}, testLogger()).Preview(context.Background(), "x")
		assert.ErrorIs(t, err, ErrUpstreamGeneration)
	})
}
