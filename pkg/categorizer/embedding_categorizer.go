package categorizer

import (
	"context"
	"fmt"

	"eou/internal/models"
	"eou/internal/util"

	"github.com/pgvector/pgvector-go"
)

// Embedder is the part of an embedding service the categorizer uses.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([]pgvector.Vector, error)
	ModelName() string
}

// EmbeddingCategorizer ranks candidates by cosine similarity between the
// input and each description. All texts are normalized before embedding.
type EmbeddingCategorizer struct {
	embedder Embedder
}

func NewEmbeddingCategorizer(embedder Embedder) *EmbeddingCategorizer {
	return &EmbeddingCategorizer{embedder: embedder}
}

func (c *EmbeddingCategorizer) Name() string { return "embedding" }

func (c *EmbeddingCategorizer) Categorize(ctx context.Context, req Request) (Decision, error) {
	if len(req.Candidates) == 0 {
		return Decision{}, models.ErrEmptyCandidates
	}

	// Descriptions first, input last, so one provider call covers the request.
	texts := append(req.Candidates.Descriptions(), req.Input)
	for i, t := range texts {
		texts[i] = util.NormalizeText(t)
	}
	vecs, err := c.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", models.ErrEmbeddingFailed, err)
	}
	if len(vecs) != len(texts) {
		return Decision{}, fmt.Errorf("%w: got %d vectors for %d texts", models.ErrEmbeddingFailed, len(vecs), len(texts))
	}

	input := vecs[len(vecs)-1].Slice()
	scores := make([]models.CandidateScore, len(req.Candidates))
	for i, cand := range req.Candidates {
		scores[i] = models.CandidateScore{
			Label: cand.Label,
			Score: ClampScore(CosineSimilarity(input, vecs[i].Slice())),
		}
	}
	return Decide(scores, req.Threshold), nil
}

var _ PathCategorizer = (*EmbeddingCategorizer)(nil)
