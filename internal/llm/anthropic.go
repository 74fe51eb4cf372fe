package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	defaultAnthropicModel = "claude-3-5-haiku-20241022"
	anthropicVersion      = "2023-06-01"
)

// AnthropicProvider narrates reports through the Anthropic Messages API
type AnthropicProvider struct {
	api    *jsonAPI
	config Config
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// text joins the text blocks of a reply
func (r *anthropicResponse) text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "" || c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// describeAnthropicError renders {"error": {"type", "message"}} bodies
func describeAnthropicError(body []byte) string {
	var e struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error.Message == "" {
		return ""
	}
	return e.Error.Type + " - " + e.Error.Message
}

// NewAnthropicProvider creates a provider. An API key is required.
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	api := newJSONAPI(config, "https://api.anthropic.com", 30*time.Second)
	api.header.Set("x-api-key", config.APIKey)
	api.header.Set("anthropic-version", anthropicVersion)
	api.describe = describeAnthropicError

	return &AnthropicProvider{api: api, config: config}, nil
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable spends a minimal message to confirm the key is accepted;
// the API has no free authenticated endpoint.
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	req := anthropicRequest{
		Model:     firstNonEmpty(p.config.Model, defaultAnthropicModel),
		MaxTokens: 10,
		Messages:  []anthropicMessage{{Role: "user", Content: "Hi"}},
	}
	var resp anthropicResponse
	if err := p.api.post(ctx, "/v1/messages", req, &resp); err != nil {
		slog.Warn("Anthropic API check failed", "error", err)
		return false
	}
	return true
}

func (p *AnthropicProvider) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	apiReq := anthropicRequest{
		Model:       firstNonEmpty(req.Model, p.config.Model, defaultAnthropicModel),
		MaxTokens:   firstPositive(req.MaxTokens, p.config.MaxTokens, 800),
		System:      systemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: promptFor(req)}},
		Temperature: 0.2,
	}

	var resp anthropicResponse
	if err := p.api.post(ctx, "/v1/messages", apiReq, &resp); err != nil {
		return nil, fmt.Errorf("Anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("no content in Anthropic response")
	}

	return checkedSummary(p.config.StrictFigures, req.AllowedFigures, resp.text(),
		firstNonEmpty(resp.Model, apiReq.Model), resp.Usage.InputTokens+resp.Usage.OutputTokens)
}
