// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// defaultRequestTimeout is the default timeout for a single backend HTTP request.
	defaultRequestTimeout = 120 * time.Second
	// defaultCheckpointInterval is how many catalogue entries are processed between checkpoint writes.
	defaultCheckpointInterval = 10
	// defaultMaxAttempts is how many times a backend request is attempted before giving up.
	defaultMaxAttempts = 3
	// defaultOutputDir is where checkpoints, results, and summaries are written.
	defaultOutputDir = "results"
)

// Backend kinds understood by the client factory. The set is closed: a
// backend entry with any other type is rejected at load time.
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
)

// Config represents the top-level application configuration. The root
// command decodes it through viper, which uses the mapstructure tags; the
// json tags keep the on-disk key names documented alongside. The two tag
// sets must name the same keys.
type Config struct {
	Backends           []Backend `json:"backends" mapstructure:"backends"`
	GroundTruthFile    string    `json:"groundTruthFile" mapstructure:"groundTruthFile"`
	OutputDir          string    `json:"outputDir,omitempty" mapstructure:"outputDir"`
	CheckpointInterval int       `json:"checkpointInterval,omitempty" mapstructure:"checkpointInterval"`
	MaxAttempts        int       `json:"maxAttempts,omitempty" mapstructure:"maxAttempts"`
	TimeoutSeconds     int       `json:"timeout,omitempty" mapstructure:"timeout"`
	LogFile            string    `json:"logFile,omitempty" mapstructure:"logFile"`
	Debug              bool      `json:"debug" mapstructure:"debug"`
	Progress           bool      `json:"progress" mapstructure:"progress"`
	Embedding          Embedding `json:"embedding" mapstructure:"embedding"`

	// OpenAIAPIKey is read from the environment, never from the config file.
	OpenAIAPIKey string `json:"-" mapstructure:"-"`
	// ResumeFrom is a prior results file to seed the run with; set by flag only.
	ResumeFrom string `json:"-" mapstructure:"-"`
	ConfigPath string `json:"-" mapstructure:"-"`
}

// Backend describes a single named language-model backend to evaluate.
type Backend struct {
	Name             string  `json:"name" mapstructure:"name"`
	Type             string  `json:"type" mapstructure:"type"`
	Model            string  `json:"model" mapstructure:"model"`
	URL              string  `json:"url,omitempty" mapstructure:"url"`
	Temperature      float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens        int     `json:"maxTokens,omitempty" mapstructure:"maxTokens"`
	RateLimitDelayMs int     `json:"rateLimitDelayMs,omitempty" mapstructure:"rateLimitDelayMs"`
}

// Embedding configures the similarity oracle's embedding endpoint.
type Embedding struct {
	URL   string `json:"url" mapstructure:"url"`
	Model string `json:"model" mapstructure:"model"`
}

// RequestTimeout returns the timeout duration for backend HTTP requests,
// falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CheckpointEvery returns the checkpoint interval, applying the default
// when the config omits or zeroes the value.
func (c Config) CheckpointEvery() int {
	if c.CheckpointInterval <= 0 {
		return defaultCheckpointInterval
	}
	return c.CheckpointInterval
}

// Attempts returns the bounded retry count for a single logical request.
func (c Config) Attempts() int {
	if c.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return c.MaxAttempts
}

// ResultsDir returns the output directory, applying a default if not set.
func (c Config) ResultsDir() string {
	if dir := strings.TrimSpace(c.OutputDir); dir != "" {
		return dir
	}
	return defaultOutputDir
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := strings.TrimSpace(c.LogFile); path != "" {
		return path
	}
	return "krites.log"
}

// RateLimitDelay returns the configured inter-request delay for the backend.
func (b Backend) RateLimitDelay() time.Duration {
	if b.RateLimitDelayMs <= 0 {
		return 0
	}
	return time.Duration(b.RateLimitDelayMs) * time.Millisecond
}

// Validate checks that the configuration is complete enough to start a run.
// Errors returned here are fatal: the process must exit before any work begins.
func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("config must contain at least one backend")
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if strings.TrimSpace(b.Name) == "" {
			return errors.New("every backend must have a name")
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate backend name %q", b.Name)
		}
		seen[b.Name] = true
		switch b.Type {
		case BackendOpenAI:
			if strings.TrimSpace(c.OpenAIAPIKey) == "" {
				return fmt.Errorf("backend %q requires OPENAI_API_KEY to be set", b.Name)
			}
		case BackendOllama:
			if strings.TrimSpace(b.URL) == "" {
				return fmt.Errorf("backend %q requires a url", b.Name)
			}
		default:
			return fmt.Errorf("backend %q has unsupported type %q", b.Name, b.Type)
		}
		if strings.TrimSpace(b.Model) == "" {
			return fmt.Errorf("backend %q must name a model", b.Name)
		}
	}
	if strings.TrimSpace(c.GroundTruthFile) == "" {
		return errors.New("config must set groundTruthFile")
	}
	return nil
}
