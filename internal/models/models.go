package models

import "time"

type PipelineName string

const (
	PipelineFalFluxFaceSwap       PipelineName = "fal-flux-faceswap"
	PipelineFalPulid              PipelineName = "fal-pulid"
	PipelineReplicateFluxFaceSwap PipelineName = "replicate-flux-faceswap"
	PipelineReplicateInstantID    PipelineName = "replicate-instantid"
)

type ProviderName string

const (
	ProviderFal       ProviderName = "fal"
	ProviderReplicate ProviderName = "replicate"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type CreditBalance struct {
	UserID    string
	Balance   int
	UpdatedAt time.Time
}

type Transaction struct {
	ID            int64
	TransactionID string
	UserID        string
	CreditsAdded  int
	CreatedAt     time.Time
}

type UsageLog struct {
	ID          int64
	UserID      string
	CreditsUsed int
	ThemeName   string
	Pipeline    PipelineName
	CreatedAt   time.Time
}

// UserSummary is a user joined with their balance, used by operator tooling.
type UserSummary struct {
	ID      string
	Email   string
	Balance int
}
