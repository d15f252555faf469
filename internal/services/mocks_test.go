package services

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/mock"
)

// mockProvider is a testify mock for EmbeddingProvider.
type mockProvider struct {
	mock.Mock
	name  string
	model string
	dim   int
}

func newMockProvider(name, model string, dim int) *mockProvider {
	return &mockProvider{name: name, model: model, dim: dim}
}

func (m *mockProvider) Name() string           { return m.name }
func (m *mockProvider) ModelName() string      { return m.model }
func (m *mockProvider) Dimension() int         { return m.dim }
func (m *mockProvider) Status() ProviderStatus { return ProviderStatusActive }

func (m *mockProvider) GenerateEmbedding(ctx context.Context, text string) (pgvector.Vector, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(pgvector.Vector), args.Error(1)
}

func (m *mockProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	args := m.Called(ctx, texts)
	vecs, _ := args.Get(0).([]pgvector.Vector)
	return vecs, args.Error(1)
}

// lookupProvider embeds known texts deterministically and counts calls.
type lookupProvider struct {
	name    string
	model   string
	vectors map[string][]float32
	calls   [][]string
}

func (p *lookupProvider) Name() string           { return p.name }
func (p *lookupProvider) ModelName() string      { return p.model }
func (p *lookupProvider) Dimension() int         { return 3 }
func (p *lookupProvider) Status() ProviderStatus { return ProviderStatusActive }

func (p *lookupProvider) GenerateEmbedding(ctx context.Context, text string) (pgvector.Vector, error) {
	v, err := p.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return pgvector.Vector{}, err
	}
	return v[0], nil
}

func (p *lookupProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	p.calls = append(p.calls, append([]string(nil), texts...))
	out := make([]pgvector.Vector, len(texts))
	for i, t := range texts {
		v, ok := p.vectors[t]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = pgvector.NewVector(v)
	}
	return out, nil
}

func vecs(vs ...[]float32) []pgvector.Vector {
	out := make([]pgvector.Vector, len(vs))
	for i, v := range vs {
		out[i] = pgvector.NewVector(v)
	}
	return out
}
