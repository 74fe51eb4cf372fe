package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/ubotrace/internal/model"
)

// constructors maps provider names, including aliases, to their constructors
var constructors = map[string]func(Config) (Provider, error){
	"openai":    asProvider(NewOpenAIProvider),
	"anthropic": asProvider(NewAnthropicProvider),
	"claude":    asProvider(NewAnthropicProvider),
	"ollama":    asProvider(NewOllamaProvider),
}

// asProvider adapts a concrete constructor so a failed construction yields a
// nil interface rather than a typed nil.
func asProvider[P Provider](newFn func(Config) (P, error)) func(Config) (Provider, error) {
	return func(config Config) (Provider, error) {
		p, err := newFn(config)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// NewProvider creates the configured provider. An empty provider name
// disables narration and returns nil.
func NewProvider(config Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(config.Provider))
	if name == "" {
		return nil, nil
	}
	newFn, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
	return newFn(config)
}

// ConfigFromModel converts the application's LLM settings
func ConfigFromModel(c model.LLMConfig) Config {
	return Config{
		Provider:      c.Provider,
		Model:         c.Model,
		APIKey:        c.APIKey,
		BaseURL:       c.BaseURL,
		HTTPProxy:     c.HTTPProxy,
		HTTPSProxy:    c.HTTPSProxy,
		Timeout:       c.Timeout,
		StrictFigures: c.StrictFigures,
		MaxTokens:     c.MaxTokens,
	}
}
