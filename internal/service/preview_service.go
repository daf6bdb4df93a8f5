package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/digkill/themeshot/internal/fal"
	"github.com/digkill/themeshot/internal/fetch"
	"github.com/digkill/themeshot/internal/pipeline"
	"github.com/digkill/themeshot/internal/replicate"
)

type PreviewResult struct {
	URL   string
	Image *fetch.Image
}

// PreviewService renders a free, unauthenticated sample for a theme prompt.
type PreviewService struct {
	generator Generator
	fetcher   ImageFetcher
	step      pipeline.Step
	log       *slog.Logger
}

func NewPreviewService(generator Generator, fetcher ImageFetcher, log *slog.Logger) *PreviewService {
	return &PreviewService{
		generator: generator,
		fetcher:   fetcher,
		step:      pipeline.Preview(),
		log:       log,
	}
}

func (s *PreviewService) Preview(ctx context.Context, prompt string) (*PreviewResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	if s.log != nil {
		s.log.Info("generating theme preview", "prompt", truncate(prompt, 100))
	}

	url, err := s.generator.Generate(ctx, s.step.Model, s.step.Input(pipeline.StepInput{Prompt: prompt}))
	if err != nil {
		if errors.Is(err, replicate.ErrEmptyResult) || errors.Is(err, fal.ErrEmptyResult) {
			return nil, ErrNoImageGenerated
		}
		return nil, &UpstreamError{Pipeline: "preview", Step: s.step.Name, Provider: s.step.Provider, Status: upstreamStatus(err), Err: err}
	}
	if url == "" {
		return nil, ErrNoImageGenerated
	}

	img, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &UpstreamError{Pipeline: "preview", Step: "fetch", Status: upstreamStatus(err), Err: err}
	}
	return &PreviewResult{URL: url, Image: img}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
