package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/ubotrace/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize narrates the report, restricted to the report's own figures
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	// Report is the ownership analysis to narrate
	Report model.Report

	// AllowedFigures is the STRICT allowlist of percentages the narrative
	// may quote. Any other percentage is treated as invented.
	AllowedFigures []float64

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	// Summary is the generated summary text
	Summary string

	// QuotedFigures are the percentages found in the summary (for verification)
	QuotedFigures []string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// HTTPProxy and HTTPSProxy override the proxy environment variables
	HTTPProxy  string
	HTTPSProxy string

	// Timeout for API requests
	Timeout int // seconds

	// StrictFigures rejects narratives quoting percentages not in the report
	StrictFigures bool

	// MaxTokens for response generation
	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:      "", // Disabled by default
		Model:         "",
		Timeout:       30,
		StrictFigures: true,
		MaxTokens:     800,
	}
}

const systemPrompt = "You are a compliance analyst who explains beneficial ownership analyses using only the figures provided."

// BuildPrompt constructs the default prompt with strict figures mode
func BuildPrompt(report model.Report, figures []float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are summarizing a beneficial ownership analysis. The figures were computed deterministically by multiplying shareholdings along every ownership chain and summing across chains.

CRITICAL RULES:
1. You MUST ONLY quote percentages from this allowed list:
%s

2. DO NOT compute, estimate or round to new figures.
3. Name the beneficial owners exactly as listed.
4. If ownership could not be fully traced, say so explicitly.
5. Do not speculate about control arrangements not present in the data.

Analysis Summary:
- Subject: %s
- Threshold: %.2f%%
- Direct Shareholders: %d
- Entity Structures: %d
- Natural Persons Traced: %d
- Beneficial Owners: %d

`, joinFigures(figures), report.Subject, report.Threshold, len(report.DirectShareholders),
		len(report.EntityStructure), ownershipLen(report), len(report.BeneficialOwners))

	b.WriteString("Beneficial Owners:\n")
	if len(report.BeneficialOwners) == 0 {
		b.WriteString("- (none at or above the threshold)\n")
	}
	for _, o := range report.BeneficialOwners {
		fmt.Fprintf(&b, "- %s: %.2f%%\n", o.Name, o.Percentage)
	}

	// Add top 3 signals
	if len(report.Signals) > 0 {
		b.WriteString("\nKey Signals:\n")
	}
	for i, signal := range report.Signals {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", signal.Type, signal.Description)
	}

	b.WriteString("\nProvide a 3-4 sentence summary of who ultimately owns the subject and how complete the tracing is.")

	return b.String()
}

// promptFor returns the request's custom prompt or the default one
func promptFor(req SummarizeRequest) string {
	if req.Prompt != "" {
		return req.Prompt
	}
	return BuildPrompt(req.Report, req.AllowedFigures)
}

// AllowedFigures collects every percentage a narrative may quote: the
// threshold, every recorded holding and every computed result.
func AllowedFigures(report model.Report) []float64 {
	seen := make(map[string]bool)
	var figures []float64
	add := func(v float64) {
		key := fmt.Sprintf("%.2f", v)
		if !seen[key] {
			seen[key] = true
			figures = append(figures, v)
		}
	}

	add(report.Threshold)
	for _, h := range report.DirectShareholders {
		add(h.Percentage)
	}
	for _, e := range report.EntityStructure {
		for _, h := range e.Holders {
			add(h.Percentage)
		}
	}
	if report.UltimateOwnership != nil {
		for pair := report.UltimateOwnership.Oldest(); pair != nil; pair = pair.Next() {
			add(pair.Value)
		}
	}
	for _, o := range report.BeneficialOwners {
		add(o.Percentage)
	}

	sort.Float64s(figures)
	return figures
}

// Helper functions

func joinFigures(figures []float64) string {
	if len(figures) == 0 {
		return "(No figures available)"
	}
	var b strings.Builder
	for i, f := range figures {
		if i >= 40 { // Limit to avoid token bloat
			fmt.Fprintf(&b, "\n... and %d more figures", len(figures)-40)
			break
		}
		fmt.Fprintf(&b, "\n- %.2f%%", f)
	}
	return b.String()
}

func ownershipLen(report model.Report) int {
	if report.UltimateOwnership == nil {
		return 0
	}
	return report.UltimateOwnership.Len()
}
