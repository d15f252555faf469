package services

import (
	"context"
	"fmt"
	"strings"

	"eou/internal/config"
	"eou/internal/costtracker"
	"eou/internal/models"

	"github.com/pgvector/pgvector-go"
	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

// EmbeddingsCreator is the subset of *openai.Client used for embeddings.
type EmbeddingsCreator interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIProvider implements EmbeddingProvider using the OpenAI API.
type OpenAIProvider struct {
	client       EmbeddingsCreator
	model        openai.EmbeddingModel
	dim          int
	requestedDim int // sent as "dimensions" for text-embedding-3 models
	costTracker  costtracker.CostTracker
	pricing      map[string]config.PricingInfo
}

// NewOpenAIProvider creates a new OpenAI embedding provider. For the
// text-embedding-3 family the output is shortened to dimension so it can
// share a fallback chain with local models. A nil client disables the provider.
func NewOpenAIProvider(client EmbeddingsCreator, modelID string, dimension int, tracker costtracker.CostTracker, pricing map[string]config.PricingInfo) *OpenAIProvider {
	if client == nil {
		log.Warn("OpenAI client not provided. OpenAI provider will be disabled.")
		return &OpenAIProvider{model: openai.EmbeddingModel(modelID)}
	}

	var dim, requested int
	switch {
	case strings.HasPrefix(modelID, "text-embedding-3") && dimension > 0:
		dim, requested = dimension, dimension
	case modelID == "text-embedding-3-large":
		dim = 3072
	case modelID == string(openai.AdaEmbeddingV2), modelID == "text-embedding-3-small":
		dim = 1536
	default:
		log.Warnf("Unknown OpenAI embedding model '%s', defaulting dimension to 1536 (AdaV2). Accuracy may be affected.", modelID)
		dim = 1536
	}

	log.Infof("OpenAI provider initialized with model %s (dimension %d)", modelID, dim)
	return &OpenAIProvider{
		client:       client,
		model:        openai.EmbeddingModel(modelID),
		dim:          dim,
		requestedDim: requested,
		costTracker:  tracker,
		pricing:      pricing,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) ModelName() string { return string(p.model) }

func (p *OpenAIProvider) Dimension() int { return p.dim }

func (p *OpenAIProvider) Status() ProviderStatus {
	if p.client == nil {
		return ProviderStatusDisabled
	}
	return ProviderStatusActive
}

func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) (pgvector.Vector, error) {
	vecs, err := p.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return pgvector.Vector{}, err
	}
	return vecs[0], nil
}

// GenerateEmbeddings sends all non-empty texts in one request. Empty texts
// get a zero vector.
func (p *OpenAIProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	if p.client == nil {
		return nil, fmt.Errorf("openai: %w (missing API key)", models.ErrProviderDisabled)
	}
	if len(texts) == 0 {
		return []pgvector.Vector{}, nil
	}

	results := make([]pgvector.Vector, len(texts))
	validTexts := make([]string, 0, len(texts))
	originalIndices := make([]int, 0, len(texts))
	for i, t := range texts {
		if t == "" {
			results[i] = pgvector.NewVector(make([]float32, p.dim))
			continue
		}
		originalIndices = append(originalIndices, i)
		validTexts = append(validTexts, t)
	}
	if len(validTexts) == 0 {
		return results, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      validTexts,
		Model:      p.model,
		Dimensions: p.requestedDim,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error generating embeddings: %w", err)
	}
	if len(resp.Data) != len(validTexts) {
		return nil, fmt.Errorf("OpenAI API returned %d embeddings, expected %d", len(resp.Data), len(validTexts))
	}

	p.recordCost(ctx, resp.Usage)

	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(validTexts) {
			return nil, fmt.Errorf("OpenAI API returned out of range index %d", data.Index)
		}
		if len(data.Embedding) != p.dim {
			return nil, fmt.Errorf("OpenAI API returned unexpected embedding dimension: got %d, want %d at index %d", len(data.Embedding), p.dim, data.Index)
		}
		results[originalIndices[data.Index]] = pgvector.NewVector(data.Embedding)
	}
	return results, nil
}

func (p *OpenAIProvider) recordCost(ctx context.Context, usage openai.Usage) {
	if p.costTracker == nil || usage.TotalTokens == 0 {
		return
	}
	priceInfo, ok := p.pricing[p.ModelName()]
	if !ok {
		log.Warnf("Pricing info not found for model '%s'. Cannot record cost.", p.model)
		return
	}
	err := p.costTracker.RecordCost(ctx, costtracker.CostEvent{
		Operation:   "embedding",
		Provider:    p.Name(),
		Model:       p.ModelName(),
		InputTokens: usage.TotalTokens,
		AmountUSD:   float64(usage.TotalTokens) * priceInfo.InputPerToken,
	})
	if err != nil {
		log.Errorf("Failed to record AI usage for embedding: %v", err)
	}
}

var _ EmbeddingProvider = (*OpenAIProvider)(nil)
