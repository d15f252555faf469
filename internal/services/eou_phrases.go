package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"eou/internal/models"
	"eou/internal/util"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	log "github.com/sirupsen/logrus"
)

// Probabilities returned by the phrase backend.
const (
	phraseIncompleteScore = 0.15
	phraseCompleteScore   = 0.9
	terminalPunctScore    = 0.7
	undecidedScore        = 0.4
)

// Phrases are the trained turn-ending and turn-continuing phrase lists
// shipped with the EOU model as phrases.json.
type Phrases struct {
	Complete   []string `json:"complete_phrases"`
	Incomplete []string `json:"incomplete_phrases"`
}

// LoadPhrases reads a phrases.json file. A missing or broken file yields
// empty lists and is logged at info level.
func LoadPhrases(path string) Phrases {
	if path == "" {
		log.Info("phrases.json not found. Initializing empty phrase lists.")
		return Phrases{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Infof("phrases.json not found. Initializing empty phrase lists. (%v)", err)
		return Phrases{}
	}
	content, err := util.CleanFileContent(data, path)
	if err != nil {
		log.Infof("Error loading phrases.json: %v", err)
		return Phrases{}
	}
	var p Phrases
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		log.Infof("Error loading phrases.json: %v", err)
		return Phrases{}
	}
	log.Infof("Successfully loaded phrases.json (%d complete, %d incomplete).", len(p.Complete), len(p.Incomplete))
	return p
}

// PhraseBackend scores the last sentence of the last user turn against the
// phrase lists. It needs no model.
type PhraseBackend struct {
	complete   []string
	incomplete []string
	tokenizer  sentenceSplitter
}

type sentenceSplitter interface {
	Tokenize(text string) []*sentences.Sentence
}

func NewPhraseBackend(p Phrases) (*PhraseBackend, error) {
	tk, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("init sentence tokenizer: %w", err)
	}
	return &PhraseBackend{
		complete:   normalizePhrases(p.Complete),
		incomplete: normalizePhrases(p.Incomplete),
		tokenizer:  tk,
	}, nil
}

func normalizePhrases(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if n := util.StripPunctuation(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (b *PhraseBackend) Name() string { return "phrases" }

func (b *PhraseBackend) Score(ctx context.Context, formatted string, messages []models.Message) (float64, error) {
	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.HasText && m.Role == "user" && util.StripPunctuation(m.Content) != "" {
			last = m.Content
			break
		}
	}
	if last == "" {
		// Only assistant turns: the user has not started speaking yet.
		return 0, nil
	}

	sentence := b.lastSentence(last)
	norm := util.StripPunctuation(sentence)
	switch {
	case endsWithPhrase(norm, b.incomplete):
		return phraseIncompleteScore, nil
	case endsWithPhrase(norm, b.complete):
		return phraseCompleteScore, nil
	case strings.ContainsAny(lastRune(sentence), ".!?"):
		return terminalPunctScore, nil
	default:
		return undecidedScore, nil
	}
}

func (b *PhraseBackend) lastSentence(text string) string {
	sents := b.tokenizer.Tokenize(strings.TrimSpace(text))
	for i := len(sents) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(sents[i].Text); s != "" {
			return s
		}
	}
	return strings.TrimSpace(text)
}

func endsWithPhrase(text string, phrases []string) bool {
	for _, p := range phrases {
		if text == p || strings.HasSuffix(text, " "+p) {
			return true
		}
	}
	return false
}

func lastRune(s string) string {
	s = strings.TrimRight(s, " \t\n\"')]}")
	if s == "" {
		return ""
	}
	r := []rune(s)
	return string(r[len(r)-1])
}

var _ EOUBackend = (*PhraseBackend)(nil)
