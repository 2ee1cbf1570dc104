package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/arbelos/keel/internal/bus"
	"github.com/arbelos/keel/internal/cache"
	"github.com/arbelos/keel/internal/checkpoint"
	"github.com/arbelos/keel/internal/confidence"
	"github.com/arbelos/keel/internal/consistency"
	"github.com/arbelos/keel/internal/engine"
	"github.com/arbelos/keel/internal/factcheck"
	"github.com/arbelos/keel/internal/model"
	"github.com/arbelos/keel/internal/timeout"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "keel",
	Short: "Keel - a reliability layer for unreliable model calls",
	Long: `Keel wraps calls to language models with timeout protection,
confidence scoring, fact checking, consistency tracking, and session
checkpoints.

Every call runs through a circuit-breaker-protected executor and comes
back as a structured response: the output plus a graded confidence score,
warnings, and optional fact-check and consistency results. Keel never
asserts truth; it reports how well an answer holds up.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("keel v0.1.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.keel/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in the config file and KEEL_* environment variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(home + "/.keel")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("KEEL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file over built-in defaults. API keys fall
// back to conventional environment variables.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	if path := viper.ConfigFileUsed(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewNop(), nil
}

// buildEngine wires all reliability components from one config
func buildEngine(cfg *model.Config, logger *zap.Logger) (*engine.Engine, error) {
	b := bus.New()

	kb := factcheck.NewKnowledgeBase()
	checker := factcheck.NewChecker(cfg.FactCheck, kb, cache.New(cfg.Cache), b, logger)

	var store checkpoint.Store
	if cfg.Checkpoint.Dir != "" {
		store = checkpoint.NewFileStore(cfg.Checkpoint.Dir)
	} else {
		store = checkpoint.NewMemoryStore()
	}

	// Cached last-good responses first, degraded placeholder as last resort
	protector := timeout.NewProtector(cfg.Timeout, b, logger)
	protector.RegisterFallback(timeout.NewCachedResponseProvider(0))
	protector.RegisterFallback(timeout.NewDegradedProvider())

	comps := engine.Components{
		Protector:   protector,
		Scorer:      confidence.NewScorer(cfg.Confidence, b, logger),
		FactCheck:   checker,
		Consistency: consistency.NewManager(cfg.Consistency, consistency.NewMemoryProfileStore(), b, logger),
		Checkpoints: checkpoint.NewManager(cfg.Checkpoint, store, b, logger),
	}

	return engine.New(cfg.Engine, comps, engine.NewMemoryHistory(cfg.Engine.HistoryLimit), b, logger)
}
