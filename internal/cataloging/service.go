package cataloging

import (
	"fmt"

	"github.com/ageless-collectibles/cardcataloger/internal/config"
	"github.com/ageless-collectibles/cardcataloger/internal/gemini"
	"github.com/ageless-collectibles/cardcataloger/internal/mock"
	"github.com/ageless-collectibles/cardcataloger/internal/ollama"
	"github.com/ageless-collectibles/cardcataloger/internal/openai"
	"github.com/ageless-collectibles/cardcataloger/internal/providers"
)

// NewProvider returns the provider selected by cfg. The mock provider is used
// unless cfg asks for a live one.
func NewProvider(cfg *config.Config) (providers.Provider, error) {
	if !cfg.Live() {
		return mock.New(), nil
	}

	switch cfg.Backend {
	case config.BackendOpenAI:
		return openai.New(openai.WithBaseURL(cfg.BaseURL)), nil
	case config.BackendGemini:
		return gemini.New(), nil
	case config.BackendOllama:
		return ollama.New(ollama.WithBaseURL(cfg.BaseURL)), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// DefaultModel returns the model used when the configuration names none.
func DefaultModel(backend string) string {
	switch backend {
	case config.BackendOpenAI:
		return openai.DefaultModel
	case config.BackendGemini:
		return gemini.DefaultModel
	case config.BackendOllama:
		return ollama.DefaultModel
	default:
		return ""
	}
}
