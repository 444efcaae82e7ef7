// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads daemon configuration from the environment and the
// optional fallback-chain file.
package config

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all daemon configuration. Secrets are masked in JSON.
type Config struct {
	// Staging root holding queue.db, videos/, exports/ and temp/.
	StagingDir string `env:"STAGING_DIR, default=storage" json:"staging_dir"`

	// SecureErase enables multi-pass overwrite before unlinking.
	SecureErase bool `env:"SECURE_ERASE" json:"secure_erase"`

	// Queue settings.
	MaxConcurrent int  `env:"MAX_CONCURRENT, default=1" json:"max_concurrent" validate:"min=1,max=16"`
	AutoStart     bool `env:"AUTO_START, default=true" json:"auto_start"`

	// Toolchain binaries; resolved on PATH when bare names.
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path" validate:"required"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path" validate:"required"`

	// Control surface.
	ListenAddr string `env:"LISTEN_ADDR, default=127.0.0.1:8480" json:"listen_addr" validate:"hostname_port"`

	// AI provider credentials, consumed only by the adapters.
	GeminiAPIKey   string `env:"GEMINI_API_KEY" json:"-"`
	OpenAIAPIKey   string `env:"OPENAI_API_KEY" json:"-"`
	DeepSeekAPIKey string `env:"DEEPSEEK_API_KEY" json:"-"`

	// ChainConfigPath points at the YAML fallback-chain definition;
	// empty selects the built-in default chain.
	ChainConfigPath string `env:"CHAIN_CONFIG" json:"chain_config_path"`

	// Logging.
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat string `env:"LOG_FORMAT, default=json" json:"log_format" validate:"oneof=json console"`

	// Telemetry; empty disables the exporter.
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" json:"otlp_endpoint"`
}

// Load reads the environment and validates the result.
func Load(ctx context.Context) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct-level constraints.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
