package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eou/internal/models"
	"eou/internal/util"

	log "github.com/sirupsen/logrus"
)

// EOUBackend scores a formatted conversation. messages is passed for
// backends that look at individual turns.
type EOUBackend interface {
	Name() string
	Score(ctx context.Context, formatted string, messages []models.Message) (float64, error)
}

// EOUService predicts whether the user has finished their turn.
type EOUService struct {
	backend EOUBackend
	now     func() time.Time
}

func NewEOUService(backend EOUBackend) *EOUService {
	return &EOUService{backend: backend, now: time.Now}
}

// Backend names the scoring backend.
func (s *EOUService) Backend() string { return s.backend.Name() }

// FormatConversation joins the normalised turns as "User: ..." and
// "Assistant: ...". Turns without string content or that normalise to
// nothing are skipped.
func FormatConversation(messages []models.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if !m.HasText {
			continue
		}
		content := util.StripPunctuation(m.Content)
		if content == "" {
			continue
		}
		if m.Role == "user" {
			parts = append(parts, "User: "+content)
		} else {
			parts = append(parts, "Assistant: "+content)
		}
	}
	return strings.Join(parts, " ")
}

// PredictEOU returns the end-of-utterance probability in [0, 1]. Backend
// failures are logged and reported as 0.
func (s *EOUService) PredictEOU(ctx context.Context, messages []models.Message) float64 {
	text := FormatConversation(messages)
	if text == "" {
		log.Warn("No valid text to predict.")
		return 0
	}
	p, err := s.backend.Score(ctx, text, messages)
	if err != nil {
		log.Errorf("Error during EOU inference: %v", err)
		return 0
	}
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Predict validates req and times PredictEOU.
func (s *EOUService) Predict(ctx context.Context, req models.EOURequest) (models.EOUResult, error) {
	if req.Messages == nil {
		return models.EOUResult{}, fmt.Errorf("%w: messages are required", models.ErrInvalidInput)
	}
	start := s.now()
	p := s.PredictEOU(ctx, req.Messages)
	return models.EOUResult{
		Probability:     RoundScore(p),
		CalculationTime: s.now().Sub(start).Seconds(),
	}, nil
}
