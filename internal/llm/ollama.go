package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// OllamaProvider narrates reports with a locally served model
type OllamaProvider struct {
	api    *jsonAPI
	config Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`

	// Counts are reported once generation is done
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

func describeOllamaError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error
}

// NewOllamaProvider creates a provider for an Ollama server, by default the
// one on localhost.
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	// Local models can be slow to answer
	api := newJSONAPI(config, "http://localhost:11434", 60*time.Second)
	api.describe = describeOllamaError
	return &OllamaProvider{api: api, config: config}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable reports whether the server answers its model listing
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	if err := p.api.get(ctx, "/api/tags"); err != nil {
		slog.Warn("Ollama availability check failed", "url", p.api.baseURL, "error", err)
		return false
	}
	return true
}

func (p *OllamaProvider) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	model := firstNonEmpty(req.Model, p.config.Model)
	if model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, qwen2.5:7b)")
	}

	prompt := promptFor(req)
	apiReq := ollamaRequest{
		Model:  model,
		Prompt: prompt,
		System: systemPrompt,
		Options: ollamaOptions{
			Temperature: 0.2,
			NumPredict:  firstPositive(req.MaxTokens, p.config.MaxTokens, 800),
		},
	}

	var resp ollamaResponse
	if err := p.api.post(ctx, "/api/generate", apiReq, &resp); err != nil {
		return nil, fmt.Errorf("ollama API error: %w", err)
	}

	// Some models report no counts; assume about 4 bytes per token
	tokens := resp.PromptEvalCount + resp.EvalCount
	if tokens == 0 {
		tokens = (len(prompt) + len(strings.TrimSpace(resp.Response))) / 4
	}

	return checkedSummary(p.config.StrictFigures, req.AllowedFigures, resp.Response,
		firstNonEmpty(resp.Model, model), tokens)
}
