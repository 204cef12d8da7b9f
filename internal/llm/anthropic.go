package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const defaultClaudeModel = "claude-sonnet-4-5-20250929"

// ClaudeBackend generates answers through the Messages API. The API exposes
// no token log-probabilities, so Loglikelihood reports
// ErrLoglikelihoodUnsupported; full benchmark runs need a backend that can
// score continuations.
type ClaudeBackend struct {
	client *anthropic.Client
	model  string
}

func NewClaudeBackend(apiKey, baseURL, model string) *ClaudeBackend {
	opts := make([]option.RequestOption, 0, 2)
	if v := strings.TrimSpace(apiKey); v != "" {
		opts = append(opts, option.WithAPIKey(v))
	}
	if v := strings.TrimSpace(baseURL); v != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(v, "/")))
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = defaultClaudeModel
	}

	client := anthropic.NewClient(opts...)
	return &ClaudeBackend{client: &client, model: m}
}

func (b *ClaudeBackend) Name() string { return "claude" }

func (b *ClaudeBackend) GreedyUntil(ctx context.Context, prompt string, stop []string, maxTokens int) (string, error) {
	if b == nil || b.client == nil {
		return "", errors.New("llm: claude: nil client")
	}
	if ctx == nil {
		return "", errors.New("llm: claude: nil context")
	}
	if maxTokens <= 0 {
		maxTokens = 64
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(prompt),
				},
			},
		},
		Temperature: param.NewOpt(0.0),
	}
	if seqs := claudeStopSequences(stop); len(seqs) > 0 {
		params.StopSequences = seqs
	}

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: claude: generate: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return trimAtStop(sb.String(), stop), nil
}

func (b *ClaudeBackend) Loglikelihood(ctx context.Context, prompt, continuation string) (float64, bool, error) {
	return 0, false, fmt.Errorf("llm: claude: %w", ErrLoglikelihoodUnsupported)
}

// claudeStopSequences filters stop strings the API rejects: sequences
// consisting only of whitespace are not accepted, so "\n" is enforced
// client-side by trimAtStop instead.
func claudeStopSequences(stop []string) []string {
	var out []string
	for _, s := range stop {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
