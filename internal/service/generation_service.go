package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/digkill/themeshot/internal/fetch"
	"github.com/digkill/themeshot/internal/metrics"
	"github.com/digkill/themeshot/internal/models"
	"github.com/digkill/themeshot/internal/pipeline"
)

var errEmptyOutput = errors.New("provider returned no image")

type RunState int

const (
	StateIdle RunState = iota
	StateStep1Running
	StateStep2Running
	StateFinalizing
	StateDebiting
	StateDone
	StateAborted
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStep1Running:
		return "step1_running"
	case StateStep2Running:
		return "step2_running"
	case StateFinalizing:
		return "finalizing"
	case StateDebiting:
		return "debiting"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

type GenerationRequest struct {
	UserID      string
	SourceImage []byte
	Prompt      string
	ThemeName   string
	Pipeline    models.PipelineName
}

type GenerationResult struct {
	Pipeline         models.PipelineName
	OutputURL        string
	Image            *fetch.Image
	FallbackUsed     bool
	RemainingCredits int
	CreditWarning    string
	State            RunState
}

// GenerationService runs a pipeline for a user and charges one credit for
// every image it hands back.
type GenerationService struct {
	log             *slog.Logger
	ledger          *Ledger
	pipelines       *pipeline.Registry
	providers       map[models.ProviderName]Generator
	fetcher         ImageFetcher
	defaultPipeline models.PipelineName
	metrics         *metrics.Collector
}

func NewGenerationService(log *slog.Logger, ledger *Ledger, pipelines *pipeline.Registry, providers map[models.ProviderName]Generator, fetcher ImageFetcher, defaultPipeline models.PipelineName, m *metrics.Collector) (*GenerationService, error) {
	if _, ok := pipelines.Get(defaultPipeline); !ok {
		return nil, fmt.Errorf("default pipeline %q is not registered", defaultPipeline)
	}
	for _, name := range pipelines.Names() {
		p, _ := pipelines.Get(name)
		for _, step := range p.Steps {
			if _, ok := providers[step.Provider]; !ok {
				return nil, fmt.Errorf("pipeline %s: no client for provider %s", name, step.Provider)
			}
		}
	}
	return &GenerationService{
		log:             log,
		ledger:          ledger,
		pipelines:       pipelines,
		providers:       providers,
		fetcher:         fetcher,
		defaultPipeline: defaultPipeline,
		metrics:         m,
	}, nil
}

func (s *GenerationService) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	if len(req.SourceImage) == 0 || strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: image and prompt are required", ErrInvalidInput)
	}
	name := req.Pipeline
	if name == "" {
		name = s.defaultPipeline
	}
	p, ok := s.pipelines.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown pipeline %q", ErrInvalidInput, name)
	}

	balance, err := s.ledger.GetBalance(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if balance < 1 {
		s.metrics.GenerationFinished(string(name), "insufficient_credit")
		return nil, ErrInsufficientCredit
	}

	log := s.log.With("user_id", req.UserID, "pipeline", name)
	result := &GenerationResult{Pipeline: name, State: StateIdle}
	abort := func(err error) (*GenerationResult, error) {
		result.State = StateAborted
		s.metrics.GenerationFinished(string(name), "aborted")
		log.Error("generation aborted", "state", result.State, "err", err)
		return nil, err
	}

	input := pipeline.StepInput{
		Prompt:         req.Prompt,
		SourceImageURI: pipeline.DataURI(req.SourceImage),
	}
	var current string
	for i, step := range p.Steps {
		result.State = StateStep1Running
		if i > 0 {
			result.State = StateStep2Running
		}
		input.PreviousURL = current

		url, err := s.runStep(ctx, step, input)
		if err == nil {
			current = url
			continue
		}
		if step.Mandatory || ctx.Err() != nil {
			return abort(&UpstreamError{
				Pipeline: name,
				Step:     step.Name,
				Provider: step.Provider,
				Status:   upstreamStatus(err),
				Err:      err,
			})
		}
		result.FallbackUsed = true
		log.Warn("optional step failed, using previous output", "step", step.Name, "err", err)
	}

	result.State = StateFinalizing
	result.OutputURL = current
	img, err := s.fetcher.Fetch(ctx, current)
	if err != nil {
		return abort(&UpstreamError{Pipeline: name, Step: "fetch", Status: upstreamStatus(err), Err: err})
	}
	if err := ctx.Err(); err != nil {
		return abort(fmt.Errorf("generation cancelled: %w", err))
	}
	result.Image = img

	// The image is in hand; finish charging even if the caller goes away now.
	chargeCtx := context.WithoutCancel(ctx)
	result.State = StateDebiting
	remaining, err := s.ledger.DebitOne(chargeCtx, req.UserID)
	if err != nil {
		log.Error("debit after generation failed", "err", err)
		result.CreditWarning = "Image generated, but the credit could not be deducted"
		if isInsufficient(err) {
			result.CreditWarning = "Image generated, but no credits were left to deduct"
		}
		if bal, balanceErr := s.ledger.GetBalance(chargeCtx, req.UserID); balanceErr == nil {
			remaining = bal
		}
	} else {
		s.ledger.LogUsage(chargeCtx, req.UserID, 1, req.ThemeName, name)
	}
	result.RemainingCredits = remaining
	result.State = StateDone

	outcome := "success"
	if result.FallbackUsed {
		outcome = "fallback"
	}
	s.metrics.GenerationFinished(string(name), outcome)
	log.Info("generation completed", "fallback", result.FallbackUsed, "remaining_credits", remaining)
	return result, nil
}

func (s *GenerationService) runStep(ctx context.Context, step pipeline.Step, input pipeline.StepInput) (string, error) {
	started := time.Now()
	url, err := s.providers[step.Provider].Generate(ctx, step.Model, step.Input(input))
	if err == nil && url == "" {
		err = errEmptyOutput
	}
	s.metrics.StepObserved(string(step.Provider), step.Name, time.Since(started), err != nil)
	return url, err
}
