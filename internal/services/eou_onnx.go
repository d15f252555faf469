package services

import (
	"context"
	"fmt"

	"eou/internal/models"
)

// OnnxEOUBackend runs the fine-tuned sequence classifier. Label 1 means the
// turn is complete. Long conversations are cut from the front so the
// latest turns are scored.
type OnnxEOUBackend struct {
	model *onnxModel
}

func NewOnnxEOUBackend(libPath, modelPath, tokenizerPath string, maxSeqLen int) (*OnnxEOUBackend, error) {
	m, err := loadOnnxModel(libPath, modelPath, tokenizerPath, maxSeqLen, "logits")
	if err != nil {
		return nil, err
	}
	m.keepTail = true
	return &OnnxEOUBackend{model: m}, nil
}

func (b *OnnxEOUBackend) Name() string { return "onnx" }

func (b *OnnxEOUBackend) Score(ctx context.Context, formatted string, _ []models.Message) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	logits, shape, _, err := b.model.run(formatted)
	if err != nil {
		return 0, err
	}
	return completeProbability(logits, shape)
}

// completeProbability softmaxes the first row of [batch, labels] logits and
// returns P(label 1).
func completeProbability(logits []float32, shape []int64) (float64, error) {
	if len(shape) != 2 || shape[1] < 2 || int64(len(logits)) < shape[1] {
		return 0, fmt.Errorf("unexpected logits shape %v", shape)
	}
	probs := softmax(logits[:shape[1]])
	return probs[1], nil
}

func (b *OnnxEOUBackend) Close() error {
	return b.model.Close()
}

var _ EOUBackend = (*OnnxEOUBackend)(nil)
