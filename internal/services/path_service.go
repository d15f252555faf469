package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"eou/internal/models"
	"eou/pkg/categorizer"

	log "github.com/sirupsen/logrus"
)

// PathService validates path requests and times the categorizer call.
type PathService struct {
	categorizer      categorizer.PathCategorizer
	defaultThreshold float64
	now              func() time.Time
}

func NewPathService(c categorizer.PathCategorizer, defaultThreshold float64) *PathService {
	return &PathService{categorizer: c, defaultThreshold: defaultThreshold, now: time.Now}
}

// Strategy names the categorizer in use.
func (s *PathService) Strategy() string { return s.categorizer.Name() }

// Predict returns the best path for req. Validation problems wrap
// models.ErrInvalidInput; model problems are returned as is with a none
// result so callers may still reply.
func (s *PathService) Predict(ctx context.Context, req models.PathRequest) (models.PathResult, error) {
	// An empty input is rejected along with a missing one; there is
	// nothing to embed.
	if req.Input == nil || *req.Input == "" || req.PathDescriptions == nil {
		return models.PathResult{}, fmt.Errorf("%w: input and path_descriptions are required", models.ErrInvalidInput)
	}
	if len(*req.PathDescriptions) == 0 {
		return models.PathResult{}, fmt.Errorf("%w: %w", models.ErrInvalidInput, models.ErrEmptyCandidates)
	}
	threshold := s.defaultThreshold
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 1 || math.IsNaN(*req.Threshold) {
			return models.PathResult{}, fmt.Errorf("%w: threshold must be within [0, 1]", models.ErrInvalidInput)
		}
		threshold = *req.Threshold
	}

	start := s.now()
	decision, err := s.categorizer.Categorize(ctx, categorizer.Request{
		Input:      *req.Input,
		Candidates: *req.PathDescriptions,
		Threshold:  threshold,
	})
	elapsed := s.now().Sub(start).Seconds()
	if err != nil {
		return models.PathResult{Path: models.PathNone, Score: 0, CalculationTime: elapsed}, err
	}

	log.WithFields(log.Fields{
		"path":       decision.Path,
		"score":      decision.Score,
		"candidates": len(*req.PathDescriptions),
		"elapsed":    elapsed,
	}).Debug("Path predicted")

	return models.PathResult{
		Path:            decision.Path,
		Score:           RoundScore(decision.Score),
		CalculationTime: elapsed,
		Ranked:          decision.Ranked,
	}, nil
}

// RoundScore rounds to three decimals, as sent on the wire.
func RoundScore(s float64) float64 {
	return math.Round(s*1000) / 1000
}
