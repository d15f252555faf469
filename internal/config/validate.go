package config

import (
	"errors"
	"fmt"
)

var knownProviders = map[string]bool{"onnx": true, "openai": true, "gemini": true}

// Validate checks the settings shared by every command. The first problem
// found is returned.
func (c *Config) Validate() error {
	if len(c.Embedding.Providers) == 0 {
		return errors.New("embedding.providers must list at least one provider")
	}
	for _, p := range c.Embedding.Providers {
		if !knownProviders[p] {
			return fmt.Errorf("embedding.providers contains unknown provider '%s'", p)
		}
		switch p {
		case "openai":
			if c.Embedding.OpenaiApiKey == "" {
				return errors.New("embedding.openai_api_key is required when the openai provider is enabled")
			}
		case "gemini":
			if c.Embedding.GoogleApiKey == "" {
				return errors.New("embedding.google_api_key is required when the gemini provider is enabled")
			}
			if c.Embedding.GeminiModelName == "" {
				return errors.New("embedding.gemini_model_name is required when the gemini provider is enabled")
			}
		case "onnx":
			if c.Embedding.Onnx.ModelFile == "" || c.Embedding.Onnx.TokenizerFile == "" {
				return errors.New("embedding.onnx.model_file and embedding.onnx.tokenizer_file are required")
			}
		}
	}
	if c.Embedding.Dimension <= 0 {
		return errors.New("embedding.dimension must be a positive integer")
	}
	if c.Embedding.Cache.Enabled && c.Embedding.Cache.TTL <= 0 {
		return errors.New("embedding.cache.ttl must be positive when the cache is enabled")
	}

	switch c.Path.Strategy {
	case "embedding":
	case "llm":
		if c.Path.LLM.Provider != "openai" {
			return fmt.Errorf("path.llm.provider '%s' is not supported", c.Path.LLM.Provider)
		}
		if c.Path.LLM.Model == "" {
			return errors.New("path.llm.model is required when path.strategy is llm")
		}
		if c.Embedding.OpenaiApiKey == "" {
			return errors.New("embedding.openai_api_key is required when path.strategy is llm")
		}
	default:
		return fmt.Errorf("path.strategy must be 'embedding' or 'llm', got '%s'", c.Path.Strategy)
	}
	if c.Path.Threshold < 0 || c.Path.Threshold > 1 {
		return fmt.Errorf("path.threshold (%g) must be within [0, 1]", c.Path.Threshold)
	}

	if c.EOU.Enabled {
		switch c.EOU.Backend {
		case "phrases", "onnx":
		default:
			return fmt.Errorf("eou.backend must be 'onnx' or 'phrases', got '%s'", c.EOU.Backend)
		}
	}

	for provider, models := range c.Pricing {
		for model, price := range models {
			if price.InputPerToken < 0 || price.OutputPerToken < 0 {
				return fmt.Errorf("pricing for provider '%s', model '%s' has negative token cost", provider, model)
			}
		}
	}
	return nil
}

// ValidateServer adds the checks needed before accepting connections.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Auth.APIKey == "" {
		return errors.New("auth.api_key is required (set EOU_API_KEY)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port (%d) is out of range", c.Server.Port)
	}
	if c.Server.ReadLimitBytes <= 0 {
		return errors.New("server.read_limit_bytes must be positive")
	}
	return nil
}
