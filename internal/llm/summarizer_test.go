package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ppiankov/ubotrace/internal/model"
)

// MockProvider implements the Provider interface for testing
type MockProvider struct {
	name      string
	available bool
	response  *SummarizeResponse
	err       error
	lastReq   SummarizeRequest
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return m.available
}

// testReport returns the two-level example: 张三 40 direct, B公司 60 held
// equally by 李四 and 王五.
func testReport() model.Report {
	ultimate := orderedmap.New[string, float64]()
	ultimate.Set("张三", 40)
	ultimate.Set("李四", 30)
	ultimate.Set("王五", 30)

	return model.Report{
		Subject:   "A公司",
		Threshold: 30,
		DirectShareholders: []model.Holding{
			{Name: "张三", Percentage: 40, Natural: true},
			{Name: "B公司", Percentage: 60},
		},
		EntityStructure: []model.EntityHoldings{{
			Entity: "B公司",
			Holders: []model.Holding{
				{Name: "李四", Percentage: 50, Natural: true},
				{Name: "王五", Percentage: 50, Natural: true},
			},
		}},
		UltimateOwnership: ultimate,
		BeneficialOwners: []model.BeneficialOwner{
			{Name: "张三", Percentage: 40},
			{Name: "李四", Percentage: 30},
			{Name: "王五", Percentage: 30},
		},
		Signals: []model.Signal{
			{Type: model.SignalUnresolvedEntities, Description: "1 entities have no recorded shareholders"},
		},
	}
}

func TestNewSummarizer_DisabledProvider(t *testing.T) {
	summarizer, err := NewSummarizer(Config{Provider: ""})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if summarizer.provider != nil {
		t.Error("Expected provider to be nil when disabled")
	}
	if summarizer.IsEnabled() {
		t.Error("Expected summarizer to be disabled")
	}
	if summarizer.ProviderName() != "" {
		t.Error("Expected empty provider name when disabled")
	}
}

func TestNewSummarizer_UnknownProvider(t *testing.T) {
	if _, err := NewSummarizer(Config{Provider: "bogus"}); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestSummarizer_GenerateSummary_Disabled(t *testing.T) {
	summarizer := &Summarizer{}

	summary, err := summarizer.GenerateSummary(context.Background(), testReport())
	if err != nil {
		t.Errorf("Expected no error when disabled, got %v", err)
	}
	if summary != nil {
		t.Error("Expected nil summary when provider disabled")
	}
}

func TestSummarizer_GenerateSummary_ProviderUnavailable(t *testing.T) {
	summarizer := &Summarizer{
		provider: &MockProvider{name: "test-provider", available: false},
		config:   Config{StrictFigures: true},
	}

	summary, err := summarizer.GenerateSummary(context.Background(), testReport())
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if summary == nil {
		t.Fatal("Expected summary object with warnings")
	}
	if summary.Enabled {
		t.Error("Expected summary to be marked as disabled")
	}

	found := false
	for _, warning := range summary.Warnings {
		if strings.Contains(warning, "not available") {
			found = true
		}
	}
	if !found {
		t.Error("Expected warning to mention provider unavailability")
	}
}

func TestSummarizer_GenerateSummary_Success(t *testing.T) {
	mock := &MockProvider{
		name:      "test-provider",
		available: true,
		response: &SummarizeResponse{
			Summary:       "张三 holds 40.00% directly.",
			QuotedFigures: []string{"40.00"},
			Model:         "test-model",
			TokensUsed:    150,
		},
	}
	summarizer := &Summarizer{
		provider: mock,
		config:   Config{Model: "test-model", StrictFigures: true},
	}

	summary, err := summarizer.GenerateSummary(context.Background(), testReport())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summary == nil || !summary.Enabled {
		t.Fatal("Expected enabled summary")
	}
	if summary.Provider != "test-provider" {
		t.Errorf("Expected provider 'test-provider', got '%s'", summary.Provider)
	}
	if summary.Model != "test-model" {
		t.Errorf("Expected model 'test-model', got '%s'", summary.Model)
	}
	if !summary.StrictFigures {
		t.Error("Expected strict figures mode to be enabled")
	}
	if summary.SummaryMD != "张三 holds 40.00% directly." {
		t.Errorf("Unexpected summary text '%s'", summary.SummaryMD)
	}

	if len(mock.lastReq.AllowedFigures) == 0 {
		t.Error("Expected allowed figures to be passed to the provider")
	}

	foundTokens, foundFigures := false, false
	for _, warning := range summary.Warnings {
		if strings.Contains(warning, "Tokens used") {
			foundTokens = true
		}
		if strings.Contains(warning, "Verified 1 quoted figures") {
			foundFigures = true
		}
	}
	if !foundTokens {
		t.Error("Expected note about tokens used")
	}
	if !foundFigures {
		t.Error("Expected note about verified figures")
	}
}

func TestSummarizer_GenerateSummary_ProviderError(t *testing.T) {
	summarizer := &Summarizer{
		provider: &MockProvider{name: "test-provider", available: true, err: errors.New("API rate limit exceeded")},
		config:   Config{StrictFigures: true},
	}

	summary, err := summarizer.GenerateSummary(context.Background(), testReport())

	// Should not fail the analysis, just return summary with warnings
	if err != nil {
		t.Errorf("Expected no error (graceful degradation), got %v", err)
	}
	if summary == nil {
		t.Fatal("Expected summary with error warning")
	}
	if !summary.Enabled {
		t.Error("Expected summary to be marked as enabled (but failed)")
	}

	found := false
	for _, warning := range summary.Warnings {
		if strings.Contains(warning, "failed") && strings.Contains(warning, "rate limit") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected warning to mention error: %v", summary.Warnings)
	}
}

func TestRenderSeparateMarkdown_DisabledOrNil(t *testing.T) {
	if md := RenderSeparateMarkdown(&model.LLMSummary{Enabled: false}); md != "" {
		t.Error("Expected empty markdown when disabled")
	}
	if md := RenderSeparateMarkdown(nil); md != "" {
		t.Error("Expected empty markdown when nil")
	}
}

func TestRenderSeparateMarkdown_Success(t *testing.T) {
	summary := &model.LLMSummary{
		Enabled:       true,
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		StrictFigures: true,
		SummaryMD:     "This is the generated summary content.",
		Warnings:      []string{"Tokens used: 150", "Verified 5 quoted figures against the report"},
	}

	md := RenderSeparateMarkdown(summary)

	for _, section := range []string{
		"# LLM Summary",
		"GENERATED CONTENT",
		"Provider",
		"openai",
		"gpt-4o-mini",
		"Strict Figures Mode",
		"true",
		"This is the generated summary content.",
		"## Notes",
		"Tokens used: 150",
		"determined independently",
	} {
		if !strings.Contains(md, section) {
			t.Errorf("Expected markdown to contain '%s'", section)
		}
	}
}

func TestRenderSeparateMarkdown_NoSummary(t *testing.T) {
	md := RenderSeparateMarkdown(&model.LLMSummary{Enabled: true, Provider: "test-provider"})

	if !strings.Contains(md, "No summary generated") {
		t.Error("Expected message about no summary")
	}
}

func TestBuildPrompt_BasicStructure(t *testing.T) {
	report := testReport()
	prompt := BuildPrompt(report, AllowedFigures(report))

	for _, element := range []string{
		"CRITICAL RULES",
		"MUST ONLY quote percentages from this allowed list",
		"- 30.00%",
		"- 40.00%",
		"- 50.00%",
		"Subject: A公司",
		"Threshold: 30.00%",
		"Direct Shareholders: 2",
		"Entity Structures: 1",
		"Natural Persons Traced: 3",
		"Beneficial Owners: 3",
		"张三: 40.00%",
		"unresolved_entities",
	} {
		if !strings.Contains(prompt, element) {
			t.Errorf("Expected prompt to contain '%s'", element)
		}
	}
}

func TestBuildPrompt_NoFigures(t *testing.T) {
	prompt := BuildPrompt(model.Report{Subject: "Empty"}, nil)

	if !strings.Contains(prompt, "No figures available") {
		t.Error("Expected message about no figures")
	}
	if !strings.Contains(prompt, "none at or above the threshold") {
		t.Error("Expected message about no beneficial owners")
	}
}

func TestBuildPrompt_ManyFigures(t *testing.T) {
	figures := make([]float64, 45)
	for i := range figures {
		figures[i] = float64(i)
	}

	prompt := BuildPrompt(model.Report{Subject: "Test"}, figures)
	if !strings.Contains(prompt, "and 5 more figures") {
		t.Error("Expected truncation message for many figures")
	}
}

func TestAllowedFigures(t *testing.T) {
	figures := AllowedFigures(testReport())

	want := []float64{30, 40, 50, 60}
	if len(figures) != len(want) {
		t.Fatalf("Expected %v, got %v", want, figures)
	}
	for i := range want {
		if figures[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, figures)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Provider != "" {
		t.Errorf("Expected provider to be empty (disabled), got '%s'", config.Provider)
	}
	if !config.StrictFigures {
		t.Error("Expected strict figures to be enabled by default")
	}
	if config.Timeout <= 0 {
		t.Error("Expected positive timeout")
	}
	if config.MaxTokens <= 0 {
		t.Error("Expected positive max tokens")
	}
}

func TestSummarizer_ProviderName(t *testing.T) {
	disabled := &Summarizer{}
	if disabled.ProviderName() != "" {
		t.Error("Expected empty provider name when disabled")
	}

	enabled := &Summarizer{provider: &MockProvider{name: "test-provider"}}
	if !enabled.IsEnabled() {
		t.Error("Expected IsEnabled() to return true when provider exists")
	}
	if enabled.ProviderName() != "test-provider" {
		t.Errorf("Expected provider name 'test-provider', got '%s'", enabled.ProviderName())
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := ConfigFromModel(model.LLMConfig{
		Provider:      "ollama",
		Model:         "qwen2.5:7b",
		Timeout:       10,
		StrictFigures: true,
		MaxTokens:     500,
	})

	if cfg.Provider != "ollama" || cfg.Model != "qwen2.5:7b" || cfg.Timeout != 10 || !cfg.StrictFigures || cfg.MaxTokens != 500 {
		t.Errorf("Unexpected config: %+v", cfg)
	}
}
