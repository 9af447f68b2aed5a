package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProvider() error {
	switch c.Provider {
	case ProviderLive, ProviderMock:
	default:
		return fmt.Errorf("provider must be %q or %q, got %q", ProviderLive, ProviderMock, c.Provider)
	}
	switch c.Backend {
	case BackendOpenAI, BackendGemini, BackendOllama:
	default:
		return fmt.Errorf("backend must be one of openai, gemini, ollama, got %q", c.Backend)
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.MaxTokens <= 0 {
		return errors.New("max_tokens must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("temperature must be between 0 and 2")
	}
	if c.ImageMaxEdge <= 0 {
		return errors.New("image_max_edge must be positive")
	}
	if c.PerItemTimeout <= 0 {
		return errors.New("per_item_timeout must be positive")
	}
	if c.MaxFailures < 1 {
		return errors.New("max_failures must be at least 1")
	}
	if c.PrimaryExemplars < 0 || c.RetryExemplars < 0 {
		return errors.New("exemplar limits must not be negative")
	}
	if c.BatchSize <= 0 {
		return errors.New("batch_size must be positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.Ready == "" {
		return errors.New("paths.ready must be set")
	}
	if c.Paths.Batches == "" {
		return errors.New("paths.batches must be set")
	}
	if c.Paths.Output == "" {
		return errors.New("paths.output must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
