package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/ubotrace/internal/beneficiary"
	"github.com/ppiankov/ubotrace/internal/cache"
	"github.com/ppiankov/ubotrace/internal/classify"
	"github.com/ppiankov/ubotrace/internal/llm"
	"github.com/ppiankov/ubotrace/internal/model"
	"github.com/ppiankov/ubotrace/internal/ownership"
	"github.com/ppiankov/ubotrace/internal/store"
)

// ErrNoShareholders is returned when a payload has no usable direct shareholder
var ErrNoShareholders = errors.New("no usable shareholder data")

// Pipeline orchestrates a complete analysis: acquire, build, resolve,
// select beneficial owners, derive signals and optionally narrate.
type Pipeline struct {
	config     *model.Config
	source     Source
	store      *store.Store
	classifier classify.Classifier
	cache      cache.Cache
	cacheable  bool
	renderer   *Renderer
	summarizer *llm.Summarizer // Optional LLM summarizer (nil if disabled)
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSource replaces the default record source
func WithSource(s Source) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.source = s
		}
	}
}

// WithClassifier replaces the configured classifier. Reports produced with
// a custom classifier are not cached since it cannot be fingerprinted.
func WithClassifier(c classify.Classifier) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.classifier = c
			p.cacheable = false
		}
	}
}

// WithCache replaces the configured report cache
func WithCache(c cache.Cache) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.cache = c
		}
	}
}

// WithSummarizer sets the LLM summarizer
func WithSummarizer(s *llm.Summarizer) Option {
	return func(p *Pipeline) {
		p.summarizer = s
	}
}

// WithRenderer replaces the default renderer
func WithRenderer(r *Renderer) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.renderer = r
		}
	}
}

// WithLogger sets the logger for warnings and strict mode omissions
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts ...Option) *Pipeline {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}

	st := store.NewStore(cfg.Source)
	p := &Pipeline{
		config:     cfg,
		source:     NewRecordSource(st),
		store:      st,
		classifier: classify.New(&cfg.Classifier),
		cache:      cache.NewFromConfig(cfg.Cache),
		cacheable:  true,
		renderer:   NewRenderer(cfg.Output.IncludeFooter),
		logger:     slog.Default(),
		now:        time.Now,
	}

	// Create LLM summarizer if configured
	if cfg.LLM.Provider != "" {
		s, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			p.logger.Warn("failed to initialize LLM provider", "provider", cfg.LLM.Provider, "error", err)
		} else {
			p.summarizer = s
		}
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Source returns the payload source in use
func (p *Pipeline) Source() Source {
	return p.source
}

// Store returns the record store
func (p *Pipeline) Store() *store.Store {
	return p.store
}

// AnalysisResult contains the complete analysis result
type AnalysisResult struct {
	Report *model.Report
	Cached bool
}

// AnalyzeSubject acquires the subject's payload from the configured source
// and analyzes it.
func (p *Pipeline) AnalyzeSubject(ctx context.Context, subject string) (*AnalysisResult, error) {
	payload, err := p.source.Acquire(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", subject, err)
	}
	return p.Analyze(ctx, subject, payload)
}

// Analyze resolves a payload into a report. Invalid values, cycles and
// unresolved entities never fail the analysis; they are reported as
// omissions and signals.
func (p *Pipeline) Analyze(ctx context.Context, subject string, payload *model.Payload) (*AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	threshold := p.config.Resolver.Threshold

	// 1. Serve from cache when the same inputs were analyzed before
	key, err := p.cacheKey(subject, payload)
	if err != nil {
		return nil, err
	}
	if key != "" {
		if data, ok := p.cache.Get(key); ok {
			var report model.Report
			if err := json.Unmarshal(data, &report); err == nil {
				report.ID = uuid.NewString()
				report.AnalyzedAt = p.now().UTC()
				if p.config.Resolver.Strict {
					p.replayOmissions(report.Omissions)
				}
				return &AnalysisResult{Report: &report, Cached: true}, nil
			}
			_ = p.cache.Delete(key)
		}
	}

	// 2. Build the ownership graph
	graph := ownership.NewGraph(ownership.WithCoercer(ownership.CoercerFor(p.config.Resolver.PercentMode)))
	graph.Load(payload)
	if graph.Empty() {
		return nil, fmt.Errorf("%s: %w", subject, ErrNoShareholders)
	}

	// 3. Flatten to natural persons
	resolver := ownership.NewResolver(graph,
		ownership.WithClassifier(p.classifier),
		ownership.WithLogger(p.logger),
		ownership.WithStrict(p.config.Resolver.Strict),
	)
	result := resolver.CalculateUltimateOwnership()

	// 4. Select beneficial owners and derive signals
	owners := beneficiary.MajorShareholders(result, threshold)
	signals := beneficiary.NewAssessor(threshold).Signals(graph, result, owners)

	report := &model.Report{
		ID:                 uuid.NewString(),
		Subject:            subject,
		AnalyzedAt:         p.now().UTC(),
		Source:             p.source.Name(),
		Threshold:          threshold,
		DirectShareholders: beneficiary.Holdings(p.classifier, graph.DirectShareholders()),
		EntityStructure:    make([]model.EntityHoldings, 0),
		UltimateOwnership:  result.Ordered(),
		BeneficialOwners:   owners,
		Omissions:          append(graph.Rejections(), result.Omissions()...),
		Signals:            signals,
	}
	for _, entity := range graph.Entities() {
		stakes, _ := graph.EntityStructure(entity)
		report.EntityStructure = append(report.EntityStructure, model.EntityHoldings{
			Entity:  entity,
			Holders: beneficiary.Holdings(p.classifier, stakes),
		})
	}

	// 5. Generate LLM summary if enabled (after resolution, never affects figures)
	if p.summarizer != nil && p.summarizer.IsEnabled() {
		summary, err := p.summarizer.GenerateSummary(ctx, *report)
		if err != nil {
			p.logger.Warn("LLM summary generation failed", "subject", subject, "error", err)
		} else if summary != nil {
			report.LLM = summary
		}
	}

	if key != "" {
		if data, err := json.Marshal(report); err == nil {
			if err := p.cache.Set(key, data, 0); err != nil {
				p.logger.Debug("cache write failed", "error", err)
			}
		}
	}

	return &AnalysisResult{Report: report}, nil
}

// replayOmissions logs the omissions of a cached report the way the resolver
// logs them in strict mode.
func (p *Pipeline) replayOmissions(omissions []model.Omission) {
	for _, o := range omissions {
		if o.Kind != model.OmissionCycle && o.Kind != model.OmissionUnresolvedEntity {
			continue
		}
		p.logger.Warn("ownership contribution omitted",
			"kind", string(o.Kind),
			"entity", o.Entity,
			"path", o.Path,
			"percentage", o.Percentage,
			"cached", true,
		)
	}
}

// cacheKey digests every input that determines the report. An empty key
// disables caching for this call.
func (p *Pipeline) cacheKey(subject string, payload *model.Payload) (string, error) {
	if !p.cacheable {
		return "", nil
	}
	fingerprint, err := payload.Fingerprint()
	if err != nil {
		return "", fmt.Errorf("fingerprint payload: %w", err)
	}

	cls := p.config.Classifier
	return cache.CacheKey(
		subject,
		string(fingerprint),
		strconv.FormatFloat(p.config.Resolver.Threshold, 'g', -1, 64),
		strings.ToLower(p.config.Resolver.PercentMode),
		strings.Join(cls.Indicators, "\x1f"),
		strings.Join(cls.ExtraIndicators, "\x1f"),
		strings.Join(cls.Natural, "\x1f"),
		strings.Join(cls.Entities, "\x1f"),
		strconv.FormatBool(cls.EmptyIsNatural),
		p.config.LLM.Provider,
	), nil
}

// RenderReport renders the report to the specified outputs
func (p *Pipeline) RenderReport(report *model.Report, jsonPath string, mdPath string, verbose bool) error {
	// Render JSON
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			p.renderer.Notef("✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	// Render Markdown
	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			p.renderer.Notef("✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	// Render LLM summary to separate file if present
	if report.LLM != nil && report.LLM.Enabled && mdPath != "" {
		llmMdPath := strings.TrimSuffix(mdPath, ".md") + ".llm.md"
		if err := p.renderer.RenderLLMMarkdown(llm.RenderSeparateMarkdown(report.LLM), llmMdPath); err != nil {
			p.logger.Warn("failed to write LLM summary", "path", llmMdPath, "error", err)
		} else if verbose {
			p.renderer.Notef("✓ Wrote LLM Summary: %s\n", llmMdPath)
		}
	}

	// Print summary to stdout
	p.renderer.RenderSummary(report)

	return nil
}

// savedAnalysis is the data stored with a saved analysis record
type savedAnalysis struct {
	ReportID          string                  `json:"report_id"`
	Threshold         float64                 `json:"threshold"`
	UltimateOwnership json.RawMessage         `json:"ultimate_ownership"`
	BeneficialOwners  []model.BeneficialOwner `json:"beneficial_owners"`
	Omissions         []model.Omission        `json:"omissions,omitempty"`
}

// SaveRecord upserts the analysis into the subject's record file under the
// configured result item and returns the file path.
func (p *Pipeline) SaveRecord(report *model.Report) (string, error) {
	ultimate := []byte("{}")
	if report.UltimateOwnership != nil {
		data, err := report.UltimateOwnership.MarshalJSON()
		if err != nil {
			return "", fmt.Errorf("encode ownership: %w", err)
		}
		ultimate = data
	}

	data, err := json.Marshal(savedAnalysis{
		ReportID:          report.ID,
		Threshold:         report.Threshold,
		UltimateOwnership: ultimate,
		BeneficialOwners:  report.BeneficialOwners,
		Omissions:         report.Omissions,
	})
	if err != nil {
		return "", fmt.Errorf("encode analysis: %w", err)
	}

	path, err := p.store.Save(store.Record{
		Item:      p.config.Source.ResultItem,
		Name:      report.Subject,
		Data:      data,
		QueriedAt: report.AnalyzedAt.Local().Format(store.TimestampLayout),
	})
	if err != nil {
		return "", fmt.Errorf("save record: %w", err)
	}
	return path, nil
}
