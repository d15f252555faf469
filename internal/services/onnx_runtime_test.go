package services

import (
	"context"
	"math"
	"testing"

	"eou/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateTokens(t *testing.T) {
	tokens := []int64{101, 1, 2, 3, 4, 102}
	assert.Equal(t, []int64{101, 1, 2, 102}, truncateTokens(tokens, 4))
	assert.Equal(t, tokens, truncateTokens(tokens, 6))
	assert.Equal(t, tokens, truncateTokens(tokens, 0))
}

func TestTruncateTokensTailKeepsLatestTurn(t *testing.T) {
	// [CLS] opening turn ... latest turn [SEP]
	tokens := []int64{0, 11, 12, 13, 14, 91, 92, 93, 2}
	assert.Equal(t, []int64{0, 92, 93, 2}, truncateTokensTail(tokens, 4))
	assert.Equal(t, []int64{0, 91, 92, 93, 2}, truncateTokensTail(tokens, 5))
	assert.Equal(t, tokens, truncateTokensTail(tokens, 9))
	assert.Equal(t, tokens, truncateTokensTail(tokens, 0))
}

func TestOnnxModelClipByMode(t *testing.T) {
	tokens := []int64{0, 11, 12, 13, 14, 91, 92, 93, 2}

	embedder := &onnxModel{maxSeqLen: 5}
	assert.Equal(t, []int64{0, 11, 12, 13, 2}, embedder.clip(tokens))

	classifier := &onnxModel{maxSeqLen: 5, keepTail: true}
	assert.Equal(t, []int64{0, 91, 92, 93, 2}, classifier.clip(tokens))
}

func TestOnnxModelWithoutSession(t *testing.T) {
	m := &onnxModel{}
	assert.False(t, m.loaded())
	assert.NoError(t, m.Close())

	p := &OnnxProvider{model: m}
	assert.Equal(t, ProviderStatusDisabled, p.Status())
	_, err := p.GenerateEmbeddings(context.Background(), []string{"hi"})
	assert.ErrorIs(t, err, models.ErrModelNotLoaded)
}

func TestMeanPoolRespectsMask(t *testing.T) {
	// seq=3, hidden=2; the last token is padding.
	data := []float32{1, 2, 3, 4, 100, 100}
	got := meanPool(data, 3, 2, []int64{1, 1, 0})
	assert.Equal(t, []float32{2, 3}, got)

	assert.Equal(t, []float32{0, 0}, meanPool(data, 3, 2, []int64{0, 0, 0}))
}

func TestL2Normalize(t *testing.T) {
	got := l2Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, got[0], 1e-6)
	assert.InDelta(t, 0.8, got[1], 1e-6)
	assert.Equal(t, []float32{0, 0}, l2Normalize([]float32{0, 0}))
}

func TestSoftmax(t *testing.T) {
	p := softmax([]float32{0, 0})
	assert.InDelta(t, 0.5, p[1], 1e-9)

	p = softmax([]float32{1000, 1001})
	assert.InDelta(t, 1/(1+math.Exp(-1)), p[1], 1e-9)
	assert.Nil(t, softmax(nil))
}

func TestCompleteProbability(t *testing.T) {
	p, err := completeProbability([]float32{-2, 2}, []int64{1, 2})
	require.NoError(t, err)
	assert.Greater(t, p, 0.98)

	_, err = completeProbability([]float32{1}, []int64{1, 1})
	assert.Error(t, err)
	_, err = completeProbability([]float32{1, 2, 3}, []int64{3})
	assert.Error(t, err)
}
