package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"eou/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeMessages(t *testing.T, raw string) []models.Message {
	t.Helper()
	var req models.EOURequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	return req.Messages
}

func TestFormatConversation(t *testing.T) {
	msgs := decodeMessages(t, `{"messages": [
		{"role": "assistant", "content": "Hello! How can I help you, today?"},
		{"role": "user", "content": "  I'd like to   CHECK my balance..."},
		{"role": "user", "content": "?!"},
		{"role": "user", "content": 42},
		{"content": "default role"},
		{"role": "system", "content": "be brief"}
	]}`)

	got := FormatConversation(msgs)
	assert.Equal(t,
		"Assistant: hello how can i help you today User: i'd like to check my balance User: default role Assistant: be brief",
		got)
}

func TestFormatConversationEmpty(t *testing.T) {
	assert.Equal(t, "", FormatConversation(nil))
	assert.Equal(t, "", FormatConversation(decodeMessages(t, `{"messages": [{"role": "user", "content": "..."}]}`)))
}

type stubBackend struct {
	score float64
	err   error
	got   string
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Score(ctx context.Context, formatted string, _ []models.Message) (float64, error) {
	s.got = formatted
	return s.score, s.err
}

func TestEOUServicePredict(t *testing.T) {
	backend := &stubBackend{score: 0.87654}
	svc := NewEOUService(backend)

	res, err := svc.Predict(context.Background(), models.EOURequest{
		Messages: decodeMessages(t, `{"messages": [{"role": "user", "content": "That's all, thanks."}]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.877, res.Probability)
	assert.Equal(t, "User: that's all thanks", backend.got)
}

func TestEOUServiceDefaultsToZero(t *testing.T) {
	backend := &stubBackend{err: errors.New("inference failed")}
	svc := NewEOUService(backend)

	assert.Equal(t, 0.0, svc.PredictEOU(context.Background(), decodeMessages(t, `{"messages": [{"role": "user", "content": "hi"}]}`)))

	backend.err = nil
	backend.score = 0.9
	backend.got = ""
	assert.Equal(t, 0.0, svc.PredictEOU(context.Background(), nil), "empty conversation")
	assert.Empty(t, backend.got, "backend is not called without text")
}

func TestEOUServiceRequiresMessages(t *testing.T) {
	svc := NewEOUService(&stubBackend{})
	_, err := svc.Predict(context.Background(), models.EOURequest{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestPhraseBackend(t *testing.T) {
	backend, err := NewPhraseBackend(Phrases{
		Complete:   []string{"that's all", "Thank you!"},
		Incomplete: []string{"and", "I was wondering if"},
	})
	require.NoError(t, err)
	svc := NewEOUService(backend)
	ctx := context.Background()

	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"incomplete phrase", `[{"role": "user", "content": "I need help with my card and"}]`, phraseIncompleteScore},
		{"incomplete multi-word", `[{"role": "user", "content": "Hi there. I was wondering if"}]`, phraseIncompleteScore},
		{"complete phrase", `[{"role": "user", "content": "OK. That's all."}]`, phraseCompleteScore},
		{"complete phrase punctuation insensitive", `[{"role": "user", "content": "thank you"}]`, phraseCompleteScore},
		{"terminal punctuation", `[{"role": "user", "content": "My card was declined."}]`, terminalPunctScore},
		{"question", `[{"role": "user", "content": "Can you check my balance?"}]`, terminalPunctScore},
		{"undecided", `[{"role": "user", "content": "my card was declined"}]`, undecidedScore},
		{"word suffix is not a phrase", `[{"role": "user", "content": "I need a hand"}]`, undecidedScore},
		{"last user turn wins", `[{"role": "user", "content": "and"}, {"role": "user", "content": "That's all."}, {"role": "assistant", "content": "and"}]`, phraseCompleteScore},
		{"assistant only", `[{"role": "assistant", "content": "How can I help?"}]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := decodeMessages(t, `{"messages": `+tt.raw+`}`)
			assert.Equal(t, tt.want, svc.PredictEOU(ctx, msgs))
		})
	}
}

func TestLoadPhrases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phrases.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"complete_phrases": ["bye"], "incomplete_phrases": ["um", "so"]}`), 0o600))

	p := LoadPhrases(path)
	assert.Equal(t, []string{"bye"}, p.Complete)
	assert.Equal(t, []string{"um", "so"}, p.Incomplete)

	assert.Empty(t, LoadPhrases(filepath.Join(dir, "missing.json")).Complete)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"complete_phrases": [`), 0o600))
	assert.Empty(t, LoadPhrases(broken).Incomplete)
	assert.Empty(t, LoadPhrases("").Complete)
}
