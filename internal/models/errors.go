package models

import (
	"errors"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyCandidates = errors.New("candidate set is empty")
	ErrUnauthorized    = errors.New("invalid API key")

	ErrEmbeddingFailed  = errors.New("embedding generation failed")
	ErrProviderDisabled = errors.New("provider is disabled")
	ErrModelNotLoaded   = errors.New("model is not loaded")
)
