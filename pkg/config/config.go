// Package config centralizes process-wide configuration for the tabflow
// engine: LLM endpoint settings and the upload/data directories the file
// resolver and output sink read from and write to.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the process-wide settings consumed by the engine. All
// fields are overridable via environment variables; there is no other
// global state.
type Config struct {
	// LLMBaseURL is the base URL of the chat-completion provider.
	LLMBaseURL string
	// LLMAPIKey is the bearer token sent with every LLM request.
	LLMAPIKey string
	// LLMModel is the model name passed to the provider.
	LLMModel string
	// LLMRequestTimeout bounds a single chat-completion call. Never less
	// than 60s per spec.md §5.
	LLMRequestTimeout time.Duration

	// UploadDir is where source files are resolved from.
	UploadDir string
	// DataDir is where output sink files are written.
	DataDir string

	// EnableCodeNode gates the scripted "code" operator (spec.md §4.4.5,
	// SPEC_FULL.md open question (c)). Disabled by default.
	EnableCodeNode bool
}

// Default returns a Config with conservative defaults, then applies any
// environment overrides.
func Default() *Config {
	cfg := &Config{
		LLMBaseURL:        "https://api.openai.com/v1",
		LLMModel:          "gpt-4o-mini",
		LLMRequestTimeout: 60 * time.Second,
		UploadDir:         "./data/uploads",
		DataDir:           "./data/output",
		EnableCodeNode:    false,
	}
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TABFLOW_LLM_BASE_URL"); v != "" {
		c.LLMBaseURL = v
	}
	if v := os.Getenv("TABFLOW_LLM_API_KEY"); v != "" {
		c.LLMAPIKey = v
	}
	if v := os.Getenv("TABFLOW_LLM_MODEL"); v != "" {
		c.LLMModel = v
	}
	if v := os.Getenv("TABFLOW_UPLOAD_DIR"); v != "" {
		c.UploadDir = v
	}
	if v := os.Getenv("TABFLOW_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("TABFLOW_ENABLE_CODE_NODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.EnableCodeNode = b
		}
	}
	if v := os.Getenv("TABFLOW_LLM_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.LLMRequestTimeout = time.Duration(n) * time.Second
		}
	}
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.LLMRequestTimeout < 60*time.Second {
		return ErrLLMTimeoutTooShort
	}
	if c.UploadDir == "" {
		return ErrUploadDirRequired
	}
	if c.DataDir == "" {
		return ErrDataDirRequired
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
