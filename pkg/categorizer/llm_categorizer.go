package categorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"eou/internal/config"
	"eou/internal/costtracker"
	"eou/internal/models"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

// DefaultPathPrompt is used when no prompt template file is configured.
const DefaultPathPrompt = `You route a live phone conversation to one of several paths.

Paths (label: description):
{{CANDIDATES}}

Caller said: "{{INPUT}}"

Reply with a JSON object {"path": "<label>", "confidence": <number between 0 and 1>}.
Use "none" as the path when no description fits.`

// ChatCompletionCreator defines the minimal interface for OpenAI chat completions.
type ChatCompletionCreator interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLMCategorizer classifies the input zero-shot with a chat model.
type LLMCategorizer struct {
	client         ChatCompletionCreator
	promptTemplate string
	model          string

	costTracker costtracker.CostTracker
	pricing     map[string]config.PricingInfo
}

// NewLLMCategorizer creates a categorizer using an OpenAI-compatible client.
// costTracker may be nil.
func NewLLMCategorizer(client ChatCompletionCreator, model, prompt string, costTracker costtracker.CostTracker, pricing map[string]config.PricingInfo) *LLMCategorizer {
	if prompt == "" {
		prompt = DefaultPathPrompt
	}
	return &LLMCategorizer{
		client:         client,
		model:          model,
		promptTemplate: prompt,
		costTracker:    costTracker,
		pricing:        pricing,
	}
}

func (c *LLMCategorizer) Name() string { return "llm" }

func (c *LLMCategorizer) buildPrompt(req Request) string {
	var lines []string
	for _, cand := range req.Candidates {
		lines = append(lines, fmt.Sprintf("%s: %s", cand.Label, cand.Description))
	}
	prompt := strings.ReplaceAll(c.promptTemplate, "{{CANDIDATES}}", strings.Join(lines, "\n"))
	return strings.ReplaceAll(prompt, "{{INPUT}}", req.Input)
}

func (c *LLMCategorizer) Categorize(ctx context.Context, req Request) (Decision, error) {
	if len(req.Candidates) == 0 {
		return Decision{}, models.ErrEmptyCandidates
	}
	if c.client == nil {
		return Decision{}, fmt.Errorf("LLM categorizer is not initialized with an OpenAI client")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: c.buildPrompt(req)},
		},
	})
	if err != nil {
		return Decision{}, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Decision{}, fmt.Errorf("no choices returned from OpenAI")
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)
	var parsed struct {
		Path       string  `json:"path"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Decision{}, fmt.Errorf("failed to parse LLM response as JSON: %w\nResponse content: %s", err, content)
	}

	c.recordCost(ctx, resp.Usage)

	if !req.Candidates.Has(parsed.Path) {
		if parsed.Path != models.PathNone {
			log.Warnf("LLM returned unknown path label %q", parsed.Path)
		}
		return Decision{Path: models.PathNone, Score: 0}, nil
	}
	return Decide([]models.CandidateScore{{Label: parsed.Path, Score: ClampScore(parsed.Confidence)}}, req.Threshold), nil
}

func (c *LLMCategorizer) recordCost(ctx context.Context, usage openai.Usage) {
	if c.costTracker == nil || usage.TotalTokens == 0 {
		return
	}
	priceInfo, ok := c.pricing[c.model]
	if !ok {
		log.Warnf("Pricing info not found for model '%s'. Cannot record cost for path classification.", c.model)
		return
	}
	event := costtracker.CostEvent{
		Operation:    "path_classification",
		Provider:     "openai",
		Model:        c.model,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		AmountUSD: float64(usage.PromptTokens)*priceInfo.InputPerToken +
			float64(usage.CompletionTokens)*priceInfo.OutputPerToken,
	}
	if err := c.costTracker.RecordCost(ctx, event); err != nil {
		log.Errorf("Failed to record AI usage for path classification: %v", err)
	}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var _ PathCategorizer = (*LLMCategorizer)(nil)
