package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOST", "")
	t.Setenv("PORT", "")
	t.Setenv("EOU_API_KEY", "")
	cfg, err := load(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"onnx"}, cfg.Embedding.Providers)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, 30*time.Minute, cfg.Embedding.Cache.TTL)
	assert.Equal(t, "embedding", cfg.Path.Strategy)
	assert.InDelta(t, 0.3, cfg.Path.Threshold, 1e-9)
	assert.Equal(t, "phrases", cfg.EOU.Backend)
	assert.Equal(t, "models/eou_tuned_model-en", cfg.EOU.Dir)
	assert.Equal(t, "virtualscale/eou-prediction-en", cfg.EOU.HFRepo)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9000
  read_limit_bytes: 1024
path:
  threshold: 0.45
eou:
  backend: onnx
  model_dir: /opt/eou
pricing:
  openai:
    text-embedding-3-small:
      input_per_token: 0.00000002
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("EOU_API_KEY", "secret")
	t.Setenv("PORT", "7000")

	cfg, err := load(viper.New(), dir)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port, "env must win over the file")
	assert.EqualValues(t, 1024, cfg.Server.ReadLimitBytes)
	assert.Equal(t, "secret", cfg.Auth.APIKey)
	assert.InDelta(t, 0.45, cfg.Path.Threshold, 1e-9)
	assert.Equal(t, "onnx", cfg.EOU.Backend)
	assert.Equal(t, "/opt/eou", cfg.EOU.Dir)
	assert.Equal(t, "model.onnx", cfg.EOU.ModelFile)
	assert.InDelta(t, 2e-8, cfg.Pricing["openai"]["text-embedding-3-small"].InputPerToken, 1e-12)
}

func TestLoadPathSectionIgnoresPATH(t *testing.T) {
	t.Setenv("PATH", "/usr/local/bin:/usr/bin:/bin")
	t.Setenv("EOU_API_KEY", "k")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("path:\n  strategy: embedding\n  threshold: 0.42\n"), 0o600))

	cfg, err := load(viper.New(), dir)
	require.NoError(t, err)
	assert.Equal(t, "embedding", cfg.Path.Strategy)
	assert.InDelta(t, 0.42, cfg.Path.Threshold, 1e-9)
	assert.Equal(t, "gpt-4o-mini", cfg.Path.LLM.Model)
	assert.NoError(t, cfg.Validate())
}

func TestLoadPrefixedEnv(t *testing.T) {
	t.Setenv("EOU_PATH_THRESHOLD", "0.6")
	t.Setenv("EOU_EOU_BACKEND", "onnx")
	cfg, err := load(viper.New(), t.TempDir())
	require.NoError(t, err)
	assert.InDelta(t, 0.6, cfg.Path.Threshold, 1e-9)
	assert.Equal(t, "onnx", cfg.EOU.Backend)
}

func TestLoadBrokenFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [\n"), 0o600))
	_, err := load(viper.New(), dir)
	assert.Error(t, err)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("EOU_API_KEY", "k")
	cfg, err := load(viper.New(), t.TempDir())
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"no providers", func(c *Config) { c.Embedding.Providers = nil }, "embedding.providers"},
		{"unknown provider", func(c *Config) { c.Embedding.Providers = []string{"bert"} }, "unknown provider"},
		{"openai without key", func(c *Config) { c.Embedding.Providers = []string{"openai"}; c.Embedding.OpenaiApiKey = "" }, "openai_api_key"},
		{"gemini without key", func(c *Config) { c.Embedding.Providers = []string{"gemini"}; c.Embedding.GoogleApiKey = "" }, "google_api_key"},
		{"bad dimension", func(c *Config) { c.Embedding.Dimension = 0 }, "dimension"},
		{"bad strategy", func(c *Config) { c.Path.Strategy = "regex" }, "path.strategy"},
		{"llm without key", func(c *Config) { c.Path.Strategy = "llm"; c.Embedding.OpenaiApiKey = "" }, "openai_api_key"},
		{"threshold above one", func(c *Config) { c.Path.Threshold = 1.5 }, "path.threshold"},
		{"bad eou backend", func(c *Config) { c.EOU.Backend = "vad" }, "eou.backend"},
		{"disabled eou ignores backend", func(c *Config) { c.EOU.Enabled = false; c.EOU.Backend = "vad" }, ""},
		{"negative price", func(c *Config) {
			c.Pricing = map[string]map[string]PricingInfo{"openai": {"m": {InputPerToken: -1}}}
		}, "negative token cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateServerRequiresAPIKey(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, cfg.ValidateServer())

	cfg.Auth.APIKey = ""
	err := cfg.ValidateServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.api_key")
}

func TestLoadPromptContentFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	got, err := LoadPromptContent("", "path.txt", "builtin")
	require.NoError(t, err)
	assert.Equal(t, "builtin", got)

	_, err = LoadPromptContent("missing.txt", "path.txt", "builtin")
	assert.Error(t, err)

	abs := filepath.Join(t.TempDir(), "p.txt")
	require.NoError(t, os.WriteFile(abs, []byte("custom"), 0o600))
	got, err = LoadPromptContent(abs, "path.txt", "builtin")
	require.NoError(t, err)
	assert.Equal(t, "custom", got)
}
