package services

import (
	"context"
	"fmt"
	"path/filepath"

	"eou/internal/models"

	"github.com/pgvector/pgvector-go"
)

// OnnxProvider runs a local sentence-transformer: mean pooling over
// last_hidden_state followed by L2 normalisation.
type OnnxProvider struct {
	model   *onnxModel
	modelID string
	dim     int
}

// NewOnnxProvider loads modelPath and tokenizerPath and probes the output
// dimension with a short input.
func NewOnnxProvider(libPath, modelPath, tokenizerPath, modelID string, maxSeqLen int) (*OnnxProvider, error) {
	m, err := loadOnnxModel(libPath, modelPath, tokenizerPath, maxSeqLen, "last_hidden_state")
	if err != nil {
		return nil, err
	}
	if modelID == "" {
		modelID = filepath.Base(filepath.Dir(modelPath))
	}
	p := &OnnxProvider{model: m, modelID: modelID}

	vec, err := p.embed("dimension probe")
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("probe onnx model: %w", err)
	}
	p.dim = len(vec)
	return p, nil
}

func (p *OnnxProvider) Name() string { return "onnx" }

func (p *OnnxProvider) ModelName() string { return p.modelID }

func (p *OnnxProvider) Dimension() int { return p.dim }

func (p *OnnxProvider) Status() ProviderStatus {
	if p.model == nil || !p.model.loaded() {
		return ProviderStatusDisabled
	}
	return ProviderStatusActive
}

func (p *OnnxProvider) embed(text string) ([]float32, error) {
	data, shape, mask, err := p.model.run(text)
	if err != nil {
		return nil, err
	}
	switch len(shape) {
	case 3:
		seq, hidden := int(shape[1]), int(shape[2])
		if len(data) != seq*hidden {
			return nil, fmt.Errorf("output size %d does not match shape %v", len(data), shape)
		}
		return l2Normalize(meanPool(data, seq, hidden, mask)), nil
	case 2:
		// Already pooled, e.g. a sentence_embedding output.
		return l2Normalize(data), nil
	default:
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
}

func (p *OnnxProvider) GenerateEmbedding(ctx context.Context, text string) (pgvector.Vector, error) {
	vecs, err := p.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return pgvector.Vector{}, err
	}
	return vecs[0], nil
}

func (p *OnnxProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	if p.Status() != ProviderStatusActive {
		return nil, models.ErrModelNotLoaded
	}
	out := make([]pgvector.Vector, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := p.embed(t)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = pgvector.NewVector(vec)
	}
	return out, nil
}

func (p *OnnxProvider) Close() error {
	if p.model == nil {
		return nil
	}
	return p.model.Close()
}

var _ EmbeddingProvider = (*OnnxProvider)(nil)
