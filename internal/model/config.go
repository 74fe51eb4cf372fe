package model

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the complete ubotrace configuration
type Config struct {
	Resolver     ResolverConfig    `yaml:"resolver" mapstructure:"resolver"`
	Classifier   ClassifierConfig  `yaml:"classifier" mapstructure:"classifier"`
	Source       SourceConfig      `yaml:"source" mapstructure:"source"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
}

// ResolverConfig controls ownership flattening and beneficial owner selection
type ResolverConfig struct {
	Threshold   float64 `yaml:"threshold" mapstructure:"threshold"`       // Disclosure threshold in percent (inclusive)
	Strict      bool    `yaml:"strict" mapstructure:"strict"`             // Log every omitted contribution as a warning
	PercentMode string  `yaml:"percent_mode" mapstructure:"percent_mode"` // "strict" or "lenient"
}

// ClassifierConfig controls natural person detection
type ClassifierConfig struct {
	Indicators      []string `yaml:"indicators" mapstructure:"indicators"`             // Substrings marking a non-natural entity
	ExtraIndicators []string `yaml:"extra_indicators" mapstructure:"extra_indicators"` // Appended to Indicators
	Natural         []string `yaml:"natural,omitempty" mapstructure:"natural"`         // Names always treated as natural persons
	Entities        []string `yaml:"entities,omitempty" mapstructure:"entities"`       // Names always treated as entities
	EmptyIsNatural  bool     `yaml:"empty_is_natural" mapstructure:"empty_is_natural"`
}

// SourceConfig locates acquisition records on disk
type SourceConfig struct {
	RecordsDir   string `yaml:"records_dir" mapstructure:"records_dir"`     // Root of <name>/<name>.json record files
	Item         string `yaml:"item" mapstructure:"item"`                   // Record item holding calculator input
	FallbackItem string `yaml:"fallback_item" mapstructure:"fallback_item"` // Tried when Item is absent
	ResultItem   string `yaml:"result_item" mapstructure:"result_item"`     // Item used when saving analyses
}

// CacheConfig controls the report cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig controls batch parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitConfig throttles access to the acquisition source
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// LLMConfig configures the optional narrative provider
type LLMConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama or empty
	Model         string `yaml:"model" mapstructure:"model"`
	APIKey        string `yaml:"-" mapstructure:"api_key"`
	BaseURL       string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	HTTPProxy     string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`   // Overrides HTTP_PROXY for provider calls
	HTTPSProxy    string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"` // Overrides HTTPS_PROXY for provider calls
	Timeout       int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	StrictFigures bool   `yaml:"strict_figures" mapstructure:"strict_figures"`
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultIndicators marks names that denote companies, funds, partnerships,
// enterprises, banks, insurers, trusts and asset managers.
var DefaultIndicators = []string{"公司", "基金", "合伙", "企业", "银行", "保险", "信托", "资管"}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Resolver: ResolverConfig{
			Threshold:   30.0,
			Strict:      false,
			PercentMode: "strict",
		},
		Classifier: ClassifierConfig{
			Indicators:     append([]string(nil), DefaultIndicators...),
			EmptyIsNatural: false,
		},
		Source: SourceConfig{
			RecordsDir:   "~/Desktop",
			Item:         "QCC_公司查询",
			FallbackItem: "QCC_企查查公司查询",
			ResultItem:   "UBO_受益所有人分析",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "~/.ubotrace/cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         2,
		},
		Output: OutputConfig{
			Verbose:       false,
			IncludeFooter: true,
		},
		LLM: LLMConfig{
			Timeout:       30,
			StrictFigures: true,
			MaxTokens:     800,
		},
	}
}

// ExpandHome replaces a leading "~" with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
