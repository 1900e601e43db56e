package config

import "errors"

var (
	ErrLLMTimeoutTooShort = errors.New("config: llm request timeout must be at least 60s")
	ErrUploadDirRequired  = errors.New("config: upload directory must be set")
	ErrDataDirRequired    = errors.New("config: data directory must be set")
)
