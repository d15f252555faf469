package app

import (
	"context"
	"fmt"
	"path/filepath"

	"eou/internal/config"
	"eou/internal/costtracker"
	"eou/internal/modelfiles"
	"eou/internal/services"
	"eou/pkg/categorizer"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

type App struct {
	Config      *config.Config
	CostTracker costtracker.CostTracker

	// EmbeddingService is nil when the path strategy does not embed.
	EmbeddingService services.EmbeddingService
	PathService      *services.PathService
	// EOUService is nil when eou.enabled is false.
	EOUService *services.EOUService

	resolver     *modelfiles.Resolver
	openaiClient *openai.Client
	closers      []services.Closer
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config:      cfg,
		CostTracker: costtracker.New(),
		resolver:    modelfiles.NewResolver(cfg.Embedding.Onnx.CacheDir),
	}
	if cfg.Embedding.OpenaiApiKey != "" {
		app.openaiClient = openai.NewClient(cfg.Embedding.OpenaiApiKey)
	}

	if err := app.initPathService(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.initEOUService(ctx); err != nil {
		app.Close()
		return nil, err
	}

	log.Info("Application initialization complete.")
	return app, nil
}

func (a *App) initEmbeddingService(ctx context.Context) error {
	cfg := a.Config
	var providers []services.EmbeddingProvider

	for _, name := range cfg.Embedding.Providers {
		switch name {
		case "onnx":
			p, err := a.newOnnxProvider(ctx)
			if err != nil {
				log.Warnf("Failed to initialize ONNX embedding provider: %v", err)
				continue
			}
			a.closers = append(a.closers, p)
			providers = append(providers, p)
		case "openai":
			if a.openaiClient == nil {
				log.Warn("OpenAI embedding provider requested without an API key, skipping.")
				continue
			}
			providers = append(providers, services.NewOpenAIProvider(
				a.openaiClient, cfg.Embedding.Model, cfg.Embedding.Dimension, a.CostTracker, cfg.Pricing["openai"],
			))
		case "gemini":
			p, err := services.NewGeminiProvider(ctx, cfg.Embedding.GoogleApiKey, cfg.Embedding.GeminiModelName)
			if err != nil {
				log.Warnf("Failed to initialize Gemini provider: %v", err)
				continue
			}
			a.closers = append(a.closers, p)
			providers = append(providers, p)
		default:
			log.Warnf("Unknown embedding provider '%s', skipping.", name)
		}
	}
	if len(providers) == 0 {
		return fmt.Errorf("no embedding providers were successfully initialized")
	}

	retryStrategy := &services.SimpleRetryStrategy{MaxAttempts: 3, BaseDelayMs: 200}
	fallback, err := services.NewFallbackEmbeddingService(providers, retryStrategy)
	if err != nil {
		return fmt.Errorf("init embedding service: %w", err)
	}
	a.EmbeddingService = fallback
	if cfg.Embedding.Cache.Enabled {
		a.EmbeddingService = services.NewCachedEmbeddingService(fallback, cfg.Embedding.Cache.TTL, cfg.Embedding.Cache.MaxTextLen)
	}
	log.Infof("Embedding service ready (active provider %s, model %s)", a.EmbeddingService.Name(), a.EmbeddingService.ModelName())
	return nil
}

func (a *App) newOnnxProvider(ctx context.Context) (*services.OnnxProvider, error) {
	m := a.Config.Embedding.Onnx
	files, err := a.resolver.Resolve(ctx, m.Dir, m.HFRepo, m.ModelFile, m.TokenizerFile)
	if err != nil {
		return nil, err
	}
	modelID := m.HFRepo
	if modelID == "" {
		modelID = filepath.Base(m.Dir)
	}
	return services.NewOnnxProvider(m.ORTLibrary, files[0].Path, files[1].Path, modelID, m.MaxSeqLen)
}

func (a *App) initPathService(ctx context.Context) error {
	cfg := a.Config
	var pathCategorizer categorizer.PathCategorizer

	switch cfg.Path.Strategy {
	case "llm":
		if a.openaiClient == nil {
			return fmt.Errorf("OpenAI API key is required for the llm path strategy but not set")
		}
		promptContent, err := config.LoadPromptContent(cfg.Path.LLM.PromptTemplate, "path.txt", categorizer.DefaultPathPrompt)
		if err != nil {
			log.Warnf("Failed to load path prompt: %v. Using the built-in prompt.", err)
			promptContent = categorizer.DefaultPathPrompt
		}
		pathCategorizer = categorizer.NewLLMCategorizer(
			a.openaiClient, cfg.Path.LLM.Model, promptContent,
			a.CostTracker, cfg.Pricing["openai"],
		)
	default:
		if err := a.initEmbeddingService(ctx); err != nil {
			return err
		}
		pathCategorizer = categorizer.NewEmbeddingCategorizer(a.EmbeddingService)
	}

	a.PathService = services.NewPathService(pathCategorizer, cfg.Path.Threshold)
	log.Infof("Path service ready (strategy %s, threshold %.2f)", pathCategorizer.Name(), cfg.Path.Threshold)
	return nil
}

func (a *App) initEOUService(ctx context.Context) error {
	cfg := a.Config
	if !cfg.EOU.Enabled {
		log.Info("EOU prediction is disabled, skipping EOUService initialization.")
		return nil
	}

	var backend services.EOUBackend
	switch cfg.EOU.Backend {
	case "onnx":
		resolver := modelfiles.NewResolver(cfg.EOU.CacheDir)
		files, err := resolver.Resolve(ctx, cfg.EOU.Dir, cfg.EOU.HFRepo, cfg.EOU.ModelFile, cfg.EOU.TokenizerFile)
		if err != nil {
			return fmt.Errorf("resolve EOU model: %w", err)
		}
		b, err := services.NewOnnxEOUBackend(cfg.EOU.ORTLibrary, files[0].Path, files[1].Path, cfg.EOU.MaxSeqLen)
		if err != nil {
			return fmt.Errorf("load EOU model: %w", err)
		}
		a.closers = append(a.closers, b)
		backend = b
	default:
		b, err := services.NewPhraseBackend(services.LoadPhrases(a.phrasesPath(ctx)))
		if err != nil {
			return err
		}
		backend = b
	}

	a.EOUService = services.NewEOUService(backend)
	log.Infof("EOU service ready (backend %s)", backend.Name())
	return nil
}

// phrasesPath returns the phrases file path, or "" when it cannot be found.
func (a *App) phrasesPath(ctx context.Context) string {
	eou := a.Config.EOU
	if filepath.IsAbs(eou.PhrasesFile) {
		return eou.PhrasesFile
	}
	meta, ok := modelfiles.NewResolver(eou.CacheDir).ResolveOptional(ctx, eou.Dir, eou.HFRepo, eou.PhrasesFile)
	if !ok {
		return ""
	}
	return meta.Path
}

// Close releases model sessions and API clients.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Warnf("Error closing resource: %v", err)
		}
	}
	a.closers = nil
}
