// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/clipforge/internal/ai"
)

// chainFile is the YAML shape of the fallback-chain definition.
type chainFile struct {
	Models []ai.ModelConfig `yaml:"models"`
}

// DefaultChain returns the built-in fallback order: Gemini first, then
// the OpenAI-compatible providers. Entries without a key stay disabled.
func (c *Config) DefaultChain() []ai.ModelConfig {
	return []ai.ModelConfig{
		{Provider: "gemini", ModelName: "gemini-2.0-flash", Enabled: c.GeminiAPIKey != "", APIKey: c.GeminiAPIKey},
		{Provider: "openai", ModelName: "gpt-4o", Enabled: c.OpenAIAPIKey != "", APIKey: c.OpenAIAPIKey},
		{Provider: "deepseek", ModelName: "deepseek-chat", Enabled: c.DeepSeekAPIKey != "", APIKey: c.DeepSeekAPIKey},
	}
}

// LoadChain reads the fallback chain from ChainConfigPath, falling back
// to DefaultChain when no path is configured. Entries in the file that
// omit an api key inherit the matching provider credential from the
// environment.
func (c *Config) LoadChain() ([]ai.ModelConfig, error) {
	if c.ChainConfigPath == "" {
		return c.DefaultChain(), nil
	}

	raw, err := os.ReadFile(c.ChainConfigPath)
	if err != nil {
		return nil, fmt.Errorf("read chain config: %w", err)
	}
	var file chainFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse chain config: %w", err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("chain config %s defines no models", c.ChainConfigPath)
	}

	for i := range file.Models {
		if file.Models[i].APIKey != "" {
			continue
		}
		switch file.Models[i].Provider {
		case "gemini":
			file.Models[i].APIKey = c.GeminiAPIKey
		case "openai":
			file.Models[i].APIKey = c.OpenAIAPIKey
		case "deepseek":
			file.Models[i].APIKey = c.DeepSeekAPIKey
		}
	}
	return file.Models, nil
}
