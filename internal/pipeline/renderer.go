package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/ubotrace/internal/model"
)

// Renderer writes reports as JSON, Markdown and a terminal summary.
// Percentages are rounded to two decimals for presentation only.
type Renderer struct {
	includeFooter bool
	out           io.Writer
}

// NewRenderer creates a renderer printing summaries to stdout
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter, out: os.Stdout}
}

// SetOutput redirects the terminal summary
func (r *Renderer) SetOutput(w io.Writer) {
	r.out = w
}

// Notef prints a progress note next to the summary
func (r *Renderer) Notef(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// RenderJSON writes the full report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return writeFile(path, buf.Bytes())
}

// RenderMarkdown writes the human-readable report
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// RenderLLMMarkdown writes the separately rendered LLM narrative
func (r *Renderer) RenderLLMMarkdown(content string, path string) error {
	return writeFile(path, []byte(content))
}

// Markdown renders the report as Markdown
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Beneficial Ownership: %s\n\n", report.Subject)
	fmt.Fprintf(&b, "- **Analyzed:** %s\n", report.AnalyzedAt.Format("2006-01-02 15:04:05 MST"))
	if report.Source != "" {
		fmt.Fprintf(&b, "- **Source:** %s\n", report.Source)
	}
	fmt.Fprintf(&b, "- **Threshold:** %s\n", pct(report.Threshold))
	fmt.Fprintf(&b, "- **Report ID:** `%s`\n\n", report.ID)

	b.WriteString("## Direct Shareholders\n\n")
	b.WriteString("| Shareholder | Type | Percentage |\n|---|---|---:|\n")
	for _, h := range report.DirectShareholders {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(h.Name), holderType(h), pct(h.Percentage))
	}
	b.WriteString("\n")

	if len(report.EntityStructure) > 0 {
		b.WriteString("## Entity Structures\n\n")
		for _, e := range report.EntityStructure {
			fmt.Fprintf(&b, "### %s\n\n", e.Entity)
			b.WriteString("| Shareholder | Type | Percentage |\n|---|---|---:|\n")
			for _, h := range e.Holders {
				fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(h.Name), holderType(h), pct(h.Percentage))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Ultimate Ownership\n\n")
	ultimate := sortedOwnership(report)
	if len(ultimate) == 0 {
		b.WriteString("_No natural person could be traced._\n\n")
	} else {
		b.WriteString("| Person | Effective Percentage |\n|---|---:|\n")
		for _, o := range ultimate {
			fmt.Fprintf(&b, "| %s | %s |\n", cell(o.Name), pct(o.Percentage))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Beneficial Owners (≥ %s)\n\n", pct(report.Threshold))
	if len(report.BeneficialOwners) == 0 {
		b.WriteString("_None._\n\n")
	} else {
		for i, o := range report.BeneficialOwners {
			fmt.Fprintf(&b, "%d. **%s** %s\n", i+1, o.Name, pct(o.Percentage))
		}
		b.WriteString("\n")
	}

	if len(report.Signals) > 0 {
		b.WriteString("## Signals\n\n")
		for _, s := range report.Signals {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", s.Type, s.Severity, s.Description)
		}
		b.WriteString("\n")
	}

	if len(report.Omissions) > 0 {
		b.WriteString("## Omissions\n\n")
		for _, o := range report.Omissions {
			fmt.Fprintf(&b, "- %s\n", describeOmission(o))
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("_Effective percentages multiply along each ownership path and are summed across paths. ")
		b.WriteString("Natural persons are identified heuristically from their names; omitted contributions are listed above._\n")
	}

	return b.String()
}

// RenderSummary prints a short summary to the terminal
func (r *Renderer) RenderSummary(report *model.Report) {
	fmt.Fprintf(r.out, "\n%s\n", report.Subject)
	fmt.Fprintf(r.out, "%s\n", strings.Repeat("─", 40))

	ultimate := sortedOwnership(report)
	if len(ultimate) == 0 {
		fmt.Fprintln(r.out, "Ultimate ownership: none traced")
	} else {
		fmt.Fprintln(r.out, "Ultimate ownership:")
		for _, o := range ultimate {
			fmt.Fprintf(r.out, "  %s: %s\n", o.Name, pct(o.Percentage))
		}
	}

	fmt.Fprintf(r.out, "Beneficial owners (≥ %s):", pct(report.Threshold))
	if len(report.BeneficialOwners) == 0 {
		fmt.Fprintln(r.out, " none")
	} else {
		fmt.Fprintln(r.out)
		for _, o := range report.BeneficialOwners {
			fmt.Fprintf(r.out, "  %s: %s\n", o.Name, pct(o.Percentage))
		}
	}

	for _, s := range report.Signals {
		fmt.Fprintf(r.out, "  ! %s\n", s.Description)
	}
}

// sortedOwnership returns the ultimate ownership highest first, ties in
// first-seen order
func sortedOwnership(report *model.Report) []model.BeneficialOwner {
	var out []model.BeneficialOwner
	if report.UltimateOwnership == nil {
		return out
	}
	for pair := report.UltimateOwnership.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, model.BeneficialOwner{Name: pair.Key, Percentage: pair.Value})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Percentage > out[j].Percentage
	})
	return out
}

func describeOmission(o model.Omission) string {
	switch o.Kind {
	case model.OmissionCycle:
		return fmt.Sprintf("cycle: %s (%s dropped)", strings.Join(o.Path, " → "), pct(o.Percentage))
	case model.OmissionUnresolvedEntity:
		return fmt.Sprintf("unresolved: %s has no recorded shareholders (%s dropped)", o.Entity, pct(o.Percentage))
	case model.OmissionInvalidPercentage:
		if o.Entity == "" {
			return fmt.Sprintf("invalid percentage for %s: %q", o.Holder, o.Value)
		}
		return fmt.Sprintf("invalid percentage for %s in %s: %q", o.Holder, o.Entity, o.Value)
	case model.OmissionEmptyStructure:
		return fmt.Sprintf("empty structure: %s", o.Entity)
	default:
		return string(o.Kind)
	}
}

func holderType(h model.Holding) string {
	if h.Natural {
		return "natural person"
	}
	return "entity"
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// cell escapes a value for a Markdown table
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
