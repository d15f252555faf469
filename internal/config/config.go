package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// PricingInfo holds cost details per token for a specific model.
type PricingInfo struct {
	InputPerToken  float64 `mapstructure:"input_per_token"`
	OutputPerToken float64 `mapstructure:"output_per_token"`
}

// OnnxModel points at a local ONNX model and its tokenizer. When Dir does
// not exist the files are fetched from HFRepo into CacheDir.
type OnnxModel struct {
	ORTLibrary    string `mapstructure:"ort_library"`
	Dir           string `mapstructure:"model_dir"`
	HFRepo        string `mapstructure:"hf_repo"`
	ModelFile     string `mapstructure:"model_file"`
	TokenizerFile string `mapstructure:"tokenizer_file"`
	MaxSeqLen     int    `mapstructure:"max_seq_len"`
	CacheDir      string `mapstructure:"cache_dir"`
}

type Config struct {
	Server struct {
		Host           string   `mapstructure:"host"`
		Port           int      `mapstructure:"port"`
		ReadLimitBytes int64    `mapstructure:"read_limit_bytes"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"server"`

	Auth struct {
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"auth"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // "text" or "json"
	} `mapstructure:"log"`

	Embedding struct {
		Providers       []string  `mapstructure:"providers"` // tried in order: onnx, openai, gemini
		Dimension       int       `mapstructure:"dimension"`
		Model           string    `mapstructure:"model"`
		OpenaiApiKey    string    `mapstructure:"openai_api_key"`
		GoogleApiKey    string    `mapstructure:"google_api_key"`
		GeminiModelName string    `mapstructure:"gemini_model_name"`
		Onnx            OnnxModel `mapstructure:"onnx"`
		Cache           struct {
			Enabled    bool          `mapstructure:"enabled"`
			TTL        time.Duration `mapstructure:"ttl"`
			MaxTextLen int           `mapstructure:"max_text_len"`
		} `mapstructure:"cache"`
	} `mapstructure:"embedding"`

	Path struct {
		Strategy  string  `mapstructure:"strategy"` // "embedding" or "llm"
		Threshold float64 `mapstructure:"threshold"`
		LLM       struct {
			Provider       string `mapstructure:"provider"`
			Model          string `mapstructure:"model"`
			PromptTemplate string `mapstructure:"prompt_template"` // Path to prompt template file
		} `mapstructure:"llm"`
	} `mapstructure:"path"`

	EOU struct {
		Enabled     bool   `mapstructure:"enabled"`
		Backend     string `mapstructure:"backend"` // "onnx" or "phrases"
		OnnxModel   `mapstructure:",squash"`
		PhrasesFile string `mapstructure:"phrases_file"`
	} `mapstructure:"eou"`

	// Pricing: map[provider][model] = struct{input_per_token, output_per_token}
	Pricing map[string]map[string]PricingInfo `mapstructure:"pricing"`
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_limit_bytes", 65536)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("embedding.providers", []string{"onnx"})
	v.SetDefault("embedding.dimension", 384)
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.gemini_model_name", "text-embedding-004")
	v.SetDefault("embedding.onnx.model_dir", "models/paraphrase-multilingual-MiniLM-L12-v2")
	v.SetDefault("embedding.onnx.hf_repo", "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2")
	v.SetDefault("embedding.onnx.model_file", "onnx/model.onnx")
	v.SetDefault("embedding.onnx.tokenizer_file", "tokenizer.json")
	v.SetDefault("embedding.onnx.max_seq_len", 128)
	v.SetDefault("embedding.onnx.cache_dir", "models/.cache")
	v.SetDefault("embedding.cache.enabled", true)
	v.SetDefault("embedding.cache.ttl", "30m")
	v.SetDefault("embedding.cache.max_text_len", 2048)

	v.SetDefault("path.strategy", "embedding")
	v.SetDefault("path.threshold", 0.3)
	v.SetDefault("path.llm.provider", "openai")
	v.SetDefault("path.llm.model", "gpt-4o-mini")

	v.SetDefault("eou.enabled", true)
	v.SetDefault("eou.backend", "phrases")
	v.SetDefault("eou.model_dir", "models/eou_tuned_model-en")
	v.SetDefault("eou.hf_repo", "virtualscale/eou-prediction-en")
	v.SetDefault("eou.model_file", "model.onnx")
	v.SetDefault("eou.tokenizer_file", "tokenizer.json")
	v.SetDefault("eou.max_seq_len", 512)
	v.SetDefault("eou.cache_dir", "models/.cache")
	v.SetDefault("eou.phrases_file", "phrases.json")
}

// LoadConfig reads .env, config.yaml from the working directory and the
// environment, in increasing order of precedence. Any key can be set as
// EOU_<SECTION>_<KEY>, e.g. EOU_PATH_THRESHOLD.
func LoadConfig() (*Config, error) {
	return load(viper.GetViper(), ".")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("Failed to load .env: %v", err)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

	// Unprefixed automatic env would let PATH shadow the path.* section.
	v.SetEnvPrefix("EOU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("server.host", "HOST")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.api_key", "EOU_API_KEY")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("embedding.openai_api_key", "OPENAI_API_KEY")
	v.BindEnv("embedding.google_api_key", "GOOGLE_API_KEY")
	v.BindEnv("embedding.onnx.ort_library", "ONNXRUNTIME_LIB")
	v.BindEnv("eou.ort_library", "ONNXRUNTIME_LIB")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		log.Debugf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
