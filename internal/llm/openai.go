package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend drives chat completions for generation and the legacy
// completions endpoint (echo + logprobs) for likelihood scoring. The model
// used for likelihood must therefore support the completions API.
type OpenAIBackend struct {
	client          *openai.Client
	model           string
	completionModel string
}

func NewOpenAIBackend(apiKey, baseURL, model string) *OpenAIBackend {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if v := strings.TrimSpace(baseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = "gpt-4o"
	}

	return &OpenAIBackend{
		client:          openai.NewClientWithConfig(cfg),
		model:           m,
		completionModel: "gpt-3.5-turbo-instruct",
	}
}

// WithCompletionModel overrides the model used for loglikelihood scoring.
func (b *OpenAIBackend) WithCompletionModel(model string) *OpenAIBackend {
	if b == nil {
		return nil
	}
	if v := strings.TrimSpace(model); v != "" {
		b.completionModel = v
	}
	return b
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) GreedyUntil(ctx context.Context, prompt string, stop []string, maxTokens int) (string, error) {
	if b == nil || b.client == nil {
		return "", errors.New("llm: openai: nil client")
	}
	if ctx == nil {
		return "", errors.New("llm: openai: nil context")
	}

	req := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: 0,
		Stop:        compactStop(stop),
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: openai: generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: openai: empty choices")
	}
	return trimAtStop(resp.Choices[0].Message.Content, stop), nil
}

func (b *OpenAIBackend) Loglikelihood(ctx context.Context, prompt, continuation string) (float64, bool, error) {
	if b == nil || b.client == nil {
		return 0, false, errors.New("llm: openai: nil client")
	}
	if ctx == nil {
		return 0, false, errors.New("llm: openai: nil context")
	}
	if continuation == "" {
		return 0, false, errors.New("llm: openai: empty continuation")
	}

	req := openai.CompletionRequest{
		Model:       b.completionModel,
		Prompt:      prompt + continuation,
		MaxTokens:   0,
		Temperature: 0,
		Echo:        true,
		LogProbs:    1,
	}

	resp, err := b.client.CreateCompletion(ctx, req)
	if err != nil {
		return 0, false, fmt.Errorf("llm: openai: loglikelihood: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, false, errors.New("llm: openai: empty choices")
	}

	return sumContinuationLogprobs(resp.Choices[0].LogProbs, len(prompt))
}

// sumContinuationLogprobs sums the echoed token logprobs whose text offset
// falls inside the continuation, and checks each against the top alternative
// to decide greediness.
func sumContinuationLogprobs(lp openai.LogprobResult, promptLen int) (float64, bool, error) {
	if len(lp.Tokens) == 0 || len(lp.Tokens) != len(lp.TokenLogprobs) || len(lp.Tokens) != len(lp.TextOffset) {
		return 0, false, errors.New("llm: openai: malformed logprobs in response")
	}

	start := -1
	for i, off := range lp.TextOffset {
		if off >= promptLen {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false, errors.New("llm: openai: continuation not found in echoed logprobs")
	}

	var sum float64
	isGreedy := true
	for i := start; i < len(lp.Tokens); i++ {
		sum += float64(lp.TokenLogprobs[i])
		if i < len(lp.TopLogprobs) && len(lp.TopLogprobs[i]) > 0 {
			if float64(lp.TokenLogprobs[i]) < maxLogprob(lp.TopLogprobs[i]) {
				isGreedy = false
			}
		}
	}
	return sum, isGreedy, nil
}

func maxLogprob(alts map[string]float32) float64 {
	first := true
	var best float64
	for _, v := range alts {
		if first || float64(v) > best {
			best = float64(v)
			first = false
		}
	}
	return best
}

func compactStop(stop []string) []string {
	out := make([]string, 0, len(stop))
	for _, s := range stop {
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == 4 {
			break
		}
	}
	return out
}

// trimAtStop cuts the text at the earliest stop sequence. Chat models do not
// reliably honor "\n" as a stop, so the cut is applied client-side too.
func trimAtStop(text string, stop []string) string {
	for _, s := range stop {
		if s == "" {
			continue
		}
		if idx := strings.Index(text, s); idx >= 0 {
			text = text[:idx]
		}
	}
	return text
}
