package services

import (
	"context"
	"fmt"

	"eou/internal/models"

	"github.com/google/generative-ai-go/genai"
	"github.com/pgvector/pgvector-go"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GeminiProvider implements EmbeddingProvider using the Google Gemini API.
type GeminiProvider struct {
	client         *genai.Client
	embeddingModel string
	dim            int
}

// NewGeminiProvider creates a new Gemini embedding provider. An empty key
// yields a disabled provider.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if apiKey == "" {
		log.Warn("Gemini API key not provided. Gemini provider will be disabled.")
		return &GeminiProvider{embeddingModel: modelName}, nil
	}

	var dim int
	switch modelName {
	case "embedding-001", "models/embedding-001", "text-embedding-004", "models/text-embedding-004":
		dim = 768
	default:
		log.Warnf("Unknown Gemini embedding model '%s', defaulting dimension to 768. Accuracy may be affected.", modelName)
		dim = 768
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Infof("Gemini provider initialized with model %s (dimension %d)", modelName, dim)
	return &GeminiProvider{client: client, embeddingModel: modelName, dim: dim}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) ModelName() string { return p.embeddingModel }

func (p *GeminiProvider) Dimension() int { return p.dim }

func (p *GeminiProvider) Status() ProviderStatus {
	if p.client == nil {
		return ProviderStatusDisabled
	}
	return ProviderStatusActive
}

func (p *GeminiProvider) GenerateEmbedding(ctx context.Context, text string) (pgvector.Vector, error) {
	vecs, err := p.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return pgvector.Vector{}, err
	}
	return vecs[0], nil
}

// GenerateEmbeddings uses one batch request for all non-empty texts.
func (p *GeminiProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	if p.client == nil {
		return nil, fmt.Errorf("gemini: %w (missing API key)", models.ErrProviderDisabled)
	}
	results := make([]pgvector.Vector, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	em := p.client.EmbeddingModel(p.embeddingModel)
	batch := em.NewBatch()
	var indices []int
	for i, text := range texts {
		if text == "" {
			results[i] = pgvector.NewVector(make([]float32, p.dim))
			continue
		}
		batch = batch.AddContent(genai.Text(text))
		indices = append(indices, i)
	}
	if len(indices) == 0 {
		return results, nil
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("Gemini API error generating embeddings: %w", err)
	}
	if res == nil || len(res.Embeddings) != len(indices) {
		return nil, fmt.Errorf("Gemini API returned an unexpected number of embeddings")
	}
	for j, e := range res.Embeddings {
		if e == nil || len(e.Values) != p.dim {
			return nil, fmt.Errorf("Gemini API returned unexpected embedding dimension at index %d", indices[j])
		}
		results[indices[j]] = pgvector.NewVector(e.Values)
	}
	return results, nil
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

var _ EmbeddingProvider = (*GeminiProvider)(nil)
