package service

import (
	"errors"
	"fmt"

	"github.com/digkill/themeshot/internal/models"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInsufficientCredit = errors.New("insufficient credits")
	ErrInvalidAmount      = errors.New("invalid credit amount")
	ErrUpstreamGeneration = errors.New("upstream generation failed")
	ErrNoImageGenerated   = errors.New("no image generated")
	ErrStorage            = errors.New("storage failure")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// UpstreamError describes which step of a generation run failed and the HTTP
// status the provider answered with, when there was one.
type UpstreamError struct {
	Pipeline models.PipelineName
	Step     string
	Provider models.ProviderName
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: pipeline %s step %s", ErrUpstreamGeneration, e.Pipeline, e.Step)
	if e.Provider != "" {
		msg += " (" + string(e.Provider) + ")"
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstreamGeneration, e.Err}
}

func upstreamStatus(err error) int {
	var withStatus interface{ HTTPStatus() int }
	if errors.As(err, &withStatus) {
		return withStatus.HTTPStatus()
	}
	return 0
}
