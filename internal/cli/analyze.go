package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ubotrace/internal/model"
	"github.com/ppiankov/ubotrace/internal/pipeline"
)

var (
	inputPath   string
	recordsDir  string
	threshold   float64
	strictMode  bool
	lenientMode bool
	outJSON     string
	outMD       string
	saveRecord  bool
	timeout     time.Duration
	noCache     bool
	noFooter    bool
	llmEnabled  bool
	llmProvider string
	llmModel    string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <company>",
	Short: "Resolve the ultimate beneficial owners of one company",
	Long: `Analyze loads a company's shareholding payload and:
- Classifies every holder as a natural person or an entity
- Multiplies percentages along each chain of entity ownership
- Sums each natural person's effective percentage across chains
- Lists the beneficial owners at or above the threshold
- Reports unresolved entities, cycles and rejected values

The payload comes from the subject's record file under --records-dir
(<dir>/<company>/<company>.json) unless --input names a payload file.

Example:
  ubotrace analyze A公司 --records-dir ~/Desktop
  ubotrace analyze A公司 --input payload.json --md report.md
  ubotrace analyze A公司 --threshold 25 --strict --save`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Input flags
	analyzeCmd.Flags().StringVar(&inputPath, "input", "", "payload JSON file (bare payload or crawl result)")
	analyzeCmd.Flags().StringVar(&recordsDir, "records-dir", "", "records directory (default from config)")

	// Resolution flags
	analyzeCmd.Flags().Float64Var(&threshold, "threshold", 0, "beneficial owner threshold in percent (default from config, 30)")
	analyzeCmd.Flags().BoolVar(&strictMode, "strict", false, "log every omitted contribution")
	analyzeCmd.Flags().BoolVar(&lenientMode, "lenient", false, "accept registry ratio text such as \"约 35%\"")

	// Output flags
	analyzeCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	analyzeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	analyzeCmd.Flags().BoolVar(&saveRecord, "save", false, "save the analysis into the subject's record file")
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the report cache")
	analyzeCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	// LLM flags
	analyzeCmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable LLM summary generation")
	analyzeCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	analyzeCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name (provider default when empty)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	subject := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Analyzing: %s\n", subject)
		fmt.Fprintf(os.Stderr, "Threshold: %.2f%%\n", cfg.Resolver.Threshold)
		fmt.Fprintf(os.Stderr, "Percent mode: %s\n", cfg.Resolver.PercentMode)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	var opts []pipeline.Option
	if inputPath != "" {
		opts = append(opts, pipeline.WithSource(pipeline.NewPayloadFileSource(inputPath)))
	}
	p := pipeline.NewPipeline(cfg, opts...)

	result, err := p.AnalyzeSubject(ctx, subject)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if verbose {
		report := result.Report
		if result.Cached {
			fmt.Fprintf(os.Stderr, "✓ Served from cache\n")
		}
		fmt.Fprintf(os.Stderr, "✓ %d direct shareholders, %d entity structures\n", len(report.DirectShareholders), len(report.EntityStructure))
		fmt.Fprintf(os.Stderr, "✓ Traced %d natural persons\n", report.UltimateOwnership.Len())
		fmt.Fprintf(os.Stderr, "✓ %d beneficial owners, %d omissions\n", len(report.BeneficialOwners), len(report.Omissions))
		if report.LLM != nil && report.LLM.Enabled {
			fmt.Fprintf(os.Stderr, "✓ Generated LLM summary using %s/%s\n", report.LLM.Provider, report.LLM.Model)
		}
		fmt.Fprintln(os.Stderr)
	}

	if err := p.RenderReport(result.Report, outJSON, outMD, verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	if saveRecord {
		path, err := p.SaveRecord(result.Report)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Saved analysis to %s\n", path)
	}

	return nil
}

// buildConfig loads the layered configuration and applies the flags the
// user actually set.
func buildConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("records-dir") {
		cfg.Source.RecordsDir = recordsDir
	}
	if flags.Changed("threshold") {
		cfg.Resolver.Threshold = threshold
	}
	if flags.Changed("strict") {
		cfg.Resolver.Strict = strictMode
	}
	if lenientMode {
		cfg.Resolver.PercentMode = "lenient"
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose

	if cfg.Resolver.Threshold < 0 || cfg.Resolver.Threshold > 100 {
		return nil, fmt.Errorf("threshold must be between 0 and 100, got %v", cfg.Resolver.Threshold)
	}

	if llmEnabled {
		if err := configureLLM(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// configureLLM enables the narrative provider with keys from the environment
func configureLLM(cfg *model.Config) error {
	cfg.LLM.Provider = llmProvider
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	cfg.LLM.StrictFigures = true // Always enforce

	switch llmProvider {
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	default:
		return fmt.Errorf("unknown LLM provider %q (use openai, anthropic or ollama)", llmProvider)
	}
	return nil
}
