package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"eou/internal/models"
	"eou/pkg/categorizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePathRequest(t *testing.T, raw string) models.PathRequest {
	t.Helper()
	var req models.PathRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	return req
}

func newTestPathService(threshold float64) (*PathService, *lookupProvider) {
	inner := &lookupProvider{name: "fake", model: "m", vectors: map[string][]float32{
		"When the lead asks for the finance support":   {1, 0, 0},
		"When the lead asks for the technical support": {0, 1, 0},
		"When the lead asks for the customer support":  {0.7, 0.7, 0},
		"I want to know about my bill":                 {0.95, 0.05, 0.1},
		"My internet is not working":                   {0.1, 0.98, 0},
		"What is the weather like":                     {0, 0, 1},
	}}
	cached := NewCachedEmbeddingService(inner, time.Minute, 0)
	return NewPathService(categorizer.NewEmbeddingCategorizer(cached), threshold), inner
}

const routingSet = `{"A": "When the lead asks for the finance support",
	"B": "When the lead asks for the technical support",
	"C": "When the lead asks for the customer support"}`

func TestPathServicePredict(t *testing.T) {
	svc, _ := newTestPathService(0.3)
	ctx := context.Background()

	res, err := svc.Predict(ctx, decodePathRequest(t, `{"input": "I want to know about my bill", "path_descriptions": `+routingSet+`}`))
	require.NoError(t, err)
	assert.Equal(t, "A", res.Path)
	assert.Greater(t, res.Score, 0.9)
	assert.GreaterOrEqual(t, res.CalculationTime, 0.0)
	require.Len(t, res.Ranked, 3)
	assert.Equal(t, "A", res.Ranked[0].Label)

	res, err = svc.Predict(ctx, decodePathRequest(t, `{"input": "My internet is not working", "path_descriptions": `+routingSet+`}`))
	require.NoError(t, err)
	assert.Equal(t, "B", res.Path)

	res, err = svc.Predict(ctx, decodePathRequest(t, `{"input": "What is the weather like", "path_descriptions": `+routingSet+`}`))
	require.NoError(t, err)
	assert.Equal(t, models.PathNone, res.Path)
	assert.Equal(t, 0.0, res.Score)
}

func TestPathServiceScoreIsRounded(t *testing.T) {
	svc, _ := newTestPathService(0.3)
	res, err := svc.Predict(context.Background(), decodePathRequest(t, `{"input": "I want to know about my bill", "path_descriptions": `+routingSet+`}`))
	require.NoError(t, err)
	assert.Equal(t, RoundScore(res.Score), res.Score)
}

func TestPathServiceRequestThreshold(t *testing.T) {
	svc, _ := newTestPathService(0.3)
	res, err := svc.Predict(context.Background(), decodePathRequest(t,
		`{"input": "I want to know about my bill", "path_descriptions": `+routingSet+`, "threshold": 0.999}`))
	require.NoError(t, err)
	assert.Equal(t, models.PathNone, res.Path)
	assert.Greater(t, res.Score, 0.9)
}

func TestPathServiceDescriptionsCachedAcrossMessages(t *testing.T) {
	svc, inner := newTestPathService(0.3)
	ctx := context.Background()
	for _, input := range []string{"I want to know about my bill", "My internet is not working"} {
		_, err := svc.Predict(ctx, decodePathRequest(t, `{"input": "`+input+`", "path_descriptions": `+routingSet+`}`))
		require.NoError(t, err)
	}
	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"My internet is not working"}, inner.calls[1])
}

func TestPathServiceInvalidInput(t *testing.T) {
	svc, _ := newTestPathService(0.3)
	ctx := context.Background()

	cases := map[string]string{
		"missing input":        `{"path_descriptions": {"A": "x"}}`,
		"missing descriptions": `{"input": "hello"}`,
		"empty input":          `{"input": "", "path_descriptions": {"A": "x"}}`,
		"empty descriptions":   `{"input": "hello", "path_descriptions": {}}`,
		"threshold too high":   `{"input": "hello", "path_descriptions": {"A": "x"}, "threshold": 2}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Predict(ctx, decodePathRequest(t, raw))
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestRoundScore(t *testing.T) {
	assert.Equal(t, 0.123, RoundScore(0.12345))
	assert.Equal(t, 0.124, RoundScore(0.1236))
	assert.Equal(t, 1.0, RoundScore(0.99999))
}
