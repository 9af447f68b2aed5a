package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Provider values.
const (
	ProviderLive = "live"
	ProviderMock = "mock"
)

// Backend values for the live provider.
const (
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
	BackendOllama = "ollama"
)

// Paths contains the pipeline's working directories.
type Paths struct {
	Inbox   string `toml:"inbox"`
	Ready   string `toml:"ready"`
	Error   string `toml:"error"`
	Batches string `toml:"batches"`
	Output  string `toml:"output"`
	Tmp     string `toml:"tmp"`
	Prompts string `toml:"prompts"`
	LogDir  string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the pipeline configuration.
type Config struct {
	Provider         string  `toml:"provider"`
	Backend          string  `toml:"backend"`
	ModelName        string  `toml:"model_name"`
	MaxTokens        int     `toml:"max_tokens"`
	Temperature      float64 `toml:"temperature"`
	BaseURL          string  `toml:"base_url"`
	CompressImages   bool    `toml:"compress_images"`
	ImageMaxEdge     int     `toml:"image_max_edge"`
	PerItemTimeout   int     `toml:"per_item_timeout"`
	MaxFailures      int     `toml:"max_failures"`
	PrimaryExemplars int     `toml:"primary_exemplars"`
	RetryExemplars   int     `toml:"retry_exemplars"`
	BatchSize        int     `toml:"batch_size"`

	Paths   Paths   `toml:"paths"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the user-level config location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/cardcataloger/config.toml")
}

// Load reads the configuration at path (or the default locations when path is
// empty), applies environment overrides, and validates the result. It returns
// the resolved path and whether a file was found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs("cardcataloger.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// Live reports whether the configured provider calls a real model.
func (c *Config) Live() bool {
	return c.Provider == ProviderLive
}

// ItemTimeout is the per-call provider deadline.
func (c *Config) ItemTimeout() time.Duration {
	return time.Duration(c.PerItemTimeout) * time.Second
}

// BatchFile returns the description file for a job.
func (c *Config) BatchFile(jobID string) string {
	return filepath.Join(c.Paths.Batches, jobID+".jsonl")
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.Ready, c.Paths.Error, c.Paths.Batches, c.Paths.Output, c.Paths.Tmp, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
