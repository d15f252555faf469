package costtracker

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// CostEvent represents a single AI usage event and its cost.
type CostEvent struct {
	Operation    string // e.g., "embedding", "path_classification"
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	AmountUSD    float64
	Timestamp    time.Time
	Details      map[string]interface{}
}

// CostTracker provides methods to record and report costs.
type CostTracker interface {
	RecordCost(ctx context.Context, event CostEvent) error
	TotalCost(ctx context.Context) (float64, error)
	Events(ctx context.Context) ([]CostEvent, error)
}

// New returns an in-memory tracker. Events live for the process lifetime.
func New() CostTracker {
	return &memoryCostTracker{}
}

type memoryCostTracker struct {
	mu     sync.Mutex
	events []CostEvent
	total  float64
}

func (m *memoryCostTracker) RecordCost(ctx context.Context, event CostEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.total += event.AmountUSD
	m.mu.Unlock()

	log.Debugf("Recorded AI usage: Provider=%s, Operation=%s, Model=%s, Tokens=%d/%d, Cost=%.8f",
		event.Provider, event.Operation, event.Model, event.InputTokens, event.OutputTokens, event.AmountUSD)
	return nil
}

func (m *memoryCostTracker) TotalCost(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total, nil
}

func (m *memoryCostTracker) Events(ctx context.Context) ([]CostEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CostEvent, len(m.events))
	copy(out, m.events)
	return out, nil
}

