package providers

import (
	"context"

	"github.com/ageless-collectibles/cardcataloger/internal/models"
)

// Request carries one item's prepared images and hint payload to a provider.
type Request struct {
	FrontImage  string
	BackImage   string
	Hints       models.HintPayload
	Model       string
	MaxTokens   int
	Temperature float64
}

// Provider defines the interface for a card analysis backend.
type Provider interface {
	// Name identifies the backend in logs.
	Name() string
	// Live reports whether calls reach a real model. Re-querying is skipped otherwise.
	Live() bool
	// Analyze sends the images and hints and returns the decoded JSON object.
	Analyze(ctx context.Context, req Request) (models.RawResponse, error)
}
