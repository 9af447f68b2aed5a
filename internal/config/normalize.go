package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

var providerAliases = map[string]string{
	"live":         ProviderLive,
	"gpt-5 vision": ProviderLive,
	"vision":       ProviderLive,
	"mock":         ProviderMock,
}

func (c *Config) normalize() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	c.normalizeProvider()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) applyEnv() error {
	if value, ok := os.LookupEnv("PIPELINE_PROVIDER"); ok && strings.TrimSpace(value) != "" {
		c.Provider = value
	}
	if value, ok := os.LookupEnv("PIPELINE_BACKEND"); ok && strings.TrimSpace(value) != "" {
		c.Backend = value
	}
	if value, ok := os.LookupEnv("MODEL_NAME"); ok && strings.TrimSpace(value) != "" {
		c.ModelName = value
	}
	ints := []struct {
		env    string
		target *int
	}{
		{"TOKEN_LIMIT", &c.MaxTokens},
		{"IMAGE_MAX_EDGE", &c.ImageMaxEdge},
		{"PIPELINE_ITEM_TIMEOUT", &c.PerItemTimeout},
		{"PIPELINE_MAX_FAILURES", &c.MaxFailures},
	}
	for _, item := range ints {
		value, ok := os.LookupEnv(item.env)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", item.env, value)
		}
		*item.target = parsed
	}
	return nil
}

func (c *Config) normalizeProvider() {
	key := strings.ToLower(strings.TrimSpace(c.Provider))
	if mapped, ok := providerAliases[key]; ok {
		c.Provider = mapped
	} else {
		c.Provider = key
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = defaultBackend
	}
	c.ModelName = strings.TrimSpace(c.ModelName)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key   string
		value *string
	}{
		{"paths.inbox", &c.Paths.Inbox},
		{"paths.ready", &c.Paths.Ready},
		{"paths.error", &c.Paths.Error},
		{"paths.batches", &c.Paths.Batches},
		{"paths.output", &c.Paths.Output},
		{"paths.tmp", &c.Paths.Tmp},
		{"paths.prompts", &c.Paths.Prompts},
		{"paths.log_dir", &c.Paths.LogDir},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
