package services

import (
	"context"
	"fmt"
	"time"

	"eou/internal/models"

	"github.com/pgvector/pgvector-go"
	log "github.com/sirupsen/logrus"
)

// NewFallbackEmbeddingService creates a service that retries the active
// provider and then moves on to the next one.
func NewFallbackEmbeddingService(providers []EmbeddingProvider, strategy RetryStrategy) (*FallbackEmbeddingService, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one embedding provider is required")
	}
	if strategy == nil {
		strategy = &SimpleRetryStrategy{MaxAttempts: 3, BaseDelayMs: 100}
	}
	dim := providers[0].Dimension()
	for i := 1; i < len(providers); i++ {
		if providers[i].Dimension() != dim {
			return nil, fmt.Errorf("all embedding providers must have the same dimension (provider %s has %d, expected %d)",
				providers[i].Name(), providers[i].Dimension(), dim)
		}
	}

	return &FallbackEmbeddingService{
		Providers:      providers,
		ActiveProvider: 0,
		RetryStrategy:  strategy,
	}, nil
}

// Dimension returns the dimension of the currently active provider.
func (s *FallbackEmbeddingService) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Providers) == 0 {
		return 0
	}
	return s.Providers[s.ActiveProvider].Dimension()
}

// GenerateEmbedding tries providers with retries until one succeeds or all fail.
func (s *FallbackEmbeddingService) GenerateEmbedding(ctx context.Context, text string) (pgvector.Vector, error) {
	vecs, err := s.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return pgvector.Vector{}, err
	}
	return vecs[0], nil
}

// GenerateEmbeddings embeds texts in one call to the active provider,
// with the same retry and switch rules as GenerateEmbedding.
func (s *FallbackEmbeddingService) GenerateEmbeddings(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	if len(texts) == 0 {
		return []pgvector.Vector{}, nil
	}

	s.mu.RLock()
	initialProviderIndex := s.ActiveProvider
	numProviders := len(s.Providers)
	s.mu.RUnlock()
	if numProviders == 0 {
		return nil, fmt.Errorf("%w: no embedding providers configured", models.ErrEmbeddingFailed)
	}

	var lastErr error
	attempt := 0

	for {
		s.mu.RLock()
		provider := s.Providers[s.ActiveProvider]
		s.mu.RUnlock()

		logger := log.WithFields(log.Fields{"provider": provider.Name(), "model": provider.ModelName(), "batch": len(texts)})
		logger.Debugf("Embedding attempt %d", attempt+1)

		vecs, err := provider.GenerateEmbeddings(ctx, texts)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during embedding generation: %w", ctx.Err())
		}
		if err == nil && len(vecs) != len(texts) {
			err = fmt.Errorf("returned mismatched vector count (%d != %d)", len(vecs), len(texts))
		}
		if err == nil {
			return vecs, nil
		}

		lastErr = fmt.Errorf("provider %s failed: %w", provider.Name(), err)
		logger.Warnf("Embedding provider failed: %v", err)

		backoffMs := s.RetryStrategy.NextBackoff(attempt)
		if backoffMs < 0 {
			s.mu.Lock()
			nextProviderIndex := (s.ActiveProvider + 1) % numProviders
			if nextProviderIndex == initialProviderIndex {
				s.mu.Unlock()
				return nil, fmt.Errorf("%w: all providers failed: %w", models.ErrEmbeddingFailed, lastErr)
			}
			s.ActiveProvider = nextProviderIndex
			log.Warnf("Switching active embedding provider to %s", s.Providers[nextProviderIndex].Name())
			s.mu.Unlock()

			attempt = 0
			continue
		}

		select {
		case <-time.After(time.Duration(backoffMs) * time.Millisecond):
			attempt++
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled while waiting to retry: %w", ctx.Err())
		}
	}
}

// Close releases every provider that holds resources.
func (s *FallbackEmbeddingService) Close() error {
	var firstErr error
	for _, p := range s.Providers {
		if c, ok := p.(Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
