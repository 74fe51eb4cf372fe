package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/ubotrace/internal/model"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"A公司", "A公司"},
		{"  北京 某某/科技:有限公司 ", "北京-某某_科技_有限公司"},
		{"..", "report"},
		{"", "report"},
		{strings.Repeat("公", 150), strings.Repeat("公", 100)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}
}

func TestUniqueFilename(t *testing.T) {
	used := make(map[string]bool)
	got := []string{}
	for _, subject := range []string{"A/B", "A_B", "A:B", "a_b-2", "C公司", "C公司"} {
		got = append(got, uniqueFilename(sanitizeFilename(subject), used))
	}
	assert.Equal(t, []string{"A_B", "A_B-2", "A_B-3", "a_b-2-2", "C公司", "C公司-2"}, got)
}

func TestDefaultConfigRoundTrip(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# ubotrace Configuration File")
	assert.Contains(t, string(data), "threshold: 30")

	setDefaults(model.DefaultConfig())
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := loadConfig()
	require.NoError(t, err)

	want := model.DefaultConfig()
	assert.Equal(t, want.Resolver, cfg.Resolver)
	assert.Equal(t, want.Classifier.Indicators, cfg.Classifier.Indicators)
	assert.Equal(t, want.Source, cfg.Source)
	assert.Equal(t, want.Cache, cfg.Cache)
	assert.Equal(t, want.Concurrency, cfg.Concurrency)
	assert.Equal(t, want.RateLimiting, cfg.RateLimiting)
	assert.Equal(t, want.Output, cfg.Output)
	assert.Equal(t, want.LLM, cfg.LLM)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
resolver:
  threshold: 25
  percent_mode: lenient
classifier:
  extra_indicators: ["研究院"]
cache:
  memory_ttl: 5m
`), 0644))

	t.Setenv("UBOTRACE_SOURCE_RECORDS_DIR", "/data/records")

	setDefaults(model.DefaultConfig())
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("UBOTRACE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	require.NoError(t, viper.ReadInConfig())

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 25.0, cfg.Resolver.Threshold)
	assert.Equal(t, "lenient", cfg.Resolver.PercentMode)
	assert.Equal(t, []string{"研究院"}, cfg.Classifier.ExtraIndicators)
	assert.Equal(t, model.DefaultIndicators, cfg.Classifier.Indicators)
	assert.Equal(t, 5*time.Minute, cfg.Cache.MemoryTTL)
	assert.Equal(t, "/data/records", cfg.Source.RecordsDir)
}
