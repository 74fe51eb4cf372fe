package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/ubotrace/internal/model"
)

// Summarizer wraps a provider and turns its output into a report section.
// Provider failures degrade to warnings; they never fail an analysis.
type Summarizer struct {
	provider Provider
	config   Config
}

// NewSummarizer creates a summarizer. An empty provider name yields a
// disabled summarizer.
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Summarizer{provider: provider, config: config}, nil
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s != nil && s.provider != nil
}

// ProviderName returns the configured provider name, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if !s.IsEnabled() {
		return ""
	}
	return s.provider.Name()
}

// GenerateSummary narrates the report. It returns nil when disabled.
func (s *Summarizer) GenerateSummary(ctx context.Context, report model.Report) (*model.LLMSummary, error) {
	if !s.IsEnabled() {
		return nil, nil
	}

	summary := &model.LLMSummary{
		Provider:      s.provider.Name(),
		Model:         s.config.Model,
		StrictFigures: s.config.StrictFigures,
	}

	if !s.provider.IsAvailable(ctx) {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("LLM provider %s is not available; summary skipped", s.provider.Name()))
		return summary, nil
	}

	summary.Enabled = true

	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		Report:         report,
		AllowedFigures: AllowedFigures(report),
		Model:          s.config.Model,
		MaxTokens:      s.config.MaxTokens,
	})
	if err != nil {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("LLM summary generation failed: %v", err))
		return summary, nil
	}

	summary.SummaryMD = resp.Summary
	if resp.Model != "" {
		summary.Model = resp.Model
	}
	summary.Warnings = append(summary.Warnings, fmt.Sprintf("Tokens used: %d", resp.TokensUsed))
	if s.config.StrictFigures {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("Verified %d quoted figures against the report", len(resp.QuotedFigures)))
	}

	return summary, nil
}

// RenderSeparateMarkdown renders the narrative as its own Markdown document,
// kept apart from the computed report.
func RenderSeparateMarkdown(summary *model.LLMSummary) string {
	if summary == nil || !summary.Enabled {
		return ""
	}

	var b strings.Builder
	b.WriteString("# LLM Summary\n\n")
	b.WriteString("> **GENERATED CONTENT.** This narrative was written by a language model. ")
	b.WriteString("All ownership figures were determined independently by deterministic calculation; ")
	b.WriteString("the narrative never changes them.\n\n")

	fmt.Fprintf(&b, "- **Provider:** %s\n", summary.Provider)
	if summary.Model != "" {
		fmt.Fprintf(&b, "- **Model:** %s\n", summary.Model)
	}
	fmt.Fprintf(&b, "- **Strict Figures Mode:** %t\n\n", summary.StrictFigures)

	b.WriteString("## Summary\n\n")
	if summary.SummaryMD == "" {
		b.WriteString("_No summary generated._\n\n")
	} else {
		b.WriteString(summary.SummaryMD)
		b.WriteString("\n\n")
	}

	if len(summary.Warnings) > 0 {
		b.WriteString("## Notes\n\n")
		for _, w := range summary.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}
