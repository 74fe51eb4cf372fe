package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/ubotrace/internal/model"
)

// version is overridden at build time with -ldflags "-X"
var version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ubotrace",
	Short: "ubotrace - Ultimate beneficial ownership resolution",
	Long: `ubotrace flattens a company's layered shareholding structure into the
effective percentages held by natural persons, and lists the beneficial
owners at or above a disclosure threshold (30% by default).

Effective percentages multiply along each ownership chain and are summed
across chains. Cross-holdings are cut where they loop back, and every
contribution that could not be traced is reported rather than guessed.

ubotrace reports what the shareholder records say. It does not verify them.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number for ubotrace.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ubotrace %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.ubotrace/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(model.DefaultConfig())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".ubotrace"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match UBOTRACE_*, e.g.
	// UBOTRACE_RESOLVER_THRESHOLD for resolver.threshold
	viper.SetEnvPrefix("UBOTRACE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every configuration key so environment overrides
// reach viper.Unmarshal.
func setDefaults(cfg *model.Config) {
	viper.SetDefault("resolver.threshold", cfg.Resolver.Threshold)
	viper.SetDefault("resolver.strict", cfg.Resolver.Strict)
	viper.SetDefault("resolver.percent_mode", cfg.Resolver.PercentMode)

	viper.SetDefault("classifier.indicators", cfg.Classifier.Indicators)
	viper.SetDefault("classifier.extra_indicators", cfg.Classifier.ExtraIndicators)
	viper.SetDefault("classifier.natural", cfg.Classifier.Natural)
	viper.SetDefault("classifier.entities", cfg.Classifier.Entities)
	viper.SetDefault("classifier.empty_is_natural", cfg.Classifier.EmptyIsNatural)

	viper.SetDefault("source.records_dir", cfg.Source.RecordsDir)
	viper.SetDefault("source.item", cfg.Source.Item)
	viper.SetDefault("source.fallback_item", cfg.Source.FallbackItem)
	viper.SetDefault("source.result_item", cfg.Source.ResultItem)

	viper.SetDefault("cache.enabled", cfg.Cache.Enabled)
	viper.SetDefault("cache.dir", cfg.Cache.Dir)
	viper.SetDefault("cache.memory_ttl", cfg.Cache.MemoryTTL)
	viper.SetDefault("cache.disk_ttl", cfg.Cache.DiskTTL)

	viper.SetDefault("concurrency.workers", cfg.Concurrency.Workers)
	viper.SetDefault("rate_limiting.requests_per_second", cfg.RateLimiting.RequestsPerSecond)
	viper.SetDefault("rate_limiting.burst_size", cfg.RateLimiting.BurstSize)

	viper.SetDefault("output.verbose", cfg.Output.Verbose)
	viper.SetDefault("output.include_footer", cfg.Output.IncludeFooter)

	viper.SetDefault("llm.provider", cfg.LLM.Provider)
	viper.SetDefault("llm.model", cfg.LLM.Model)
	viper.SetDefault("llm.api_key", cfg.LLM.APIKey)
	viper.SetDefault("llm.base_url", cfg.LLM.BaseURL)
	viper.SetDefault("llm.http_proxy", cfg.LLM.HTTPProxy)
	viper.SetDefault("llm.https_proxy", cfg.LLM.HTTPSProxy)
	viper.SetDefault("llm.timeout", cfg.LLM.Timeout)
	viper.SetDefault("llm.strict_figures", cfg.LLM.StrictFigures)
	viper.SetDefault("llm.max_tokens", cfg.LLM.MaxTokens)
}

// loadConfig merges defaults, config file and environment into a Config.
// Command flags are applied on top by each command.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// setupLogging installs a text slog handler on stderr
func setupLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
