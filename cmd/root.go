package cmd

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/engine"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/engine/gemini"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/fairness"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/screening"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/secrets"
)

const (
	app = "fairshort"
)

type Config struct {
	Candidates         string           `mapstructure:"candidates"`
	ProtectedAttribute string           `mapstructure:"protected-attribute"`
	Shortlist          *ShortlistConfig `mapstructure:"shortlist"`
	Engine             *EngineConfig    `mapstructure:"engine"`
}

type ShortlistConfig struct {
	Method                   string  `mapstructure:"method"`
	SelectionPercentage      float64 `mapstructure:"selection-percentage"`
	DisparateImpactThreshold float64 `mapstructure:"disparate-impact-threshold"`
}

type EngineConfig struct {
	// Provider selects the primary evaluator: "http", "gemini", or empty for
	// fallback-only operation.
	Provider    string        `mapstructure:"provider"`
	URL         string        `mapstructure:"url"`
	TokenFile   string        `mapstructure:"token-file"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max-attempts"`
	Gemini      *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "fairshort shortlists scored applicants under a statistical-disparity bound and audits the result",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("engine.token-file", "FAIRSHORT_ENGINE_TOKEN_FILE"); err != nil {
		log.Fatalf("binding FAIRSHORT_ENGINE_TOKEN_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("engine.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is fairshort.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
		viper.SetConfigType("yaml")
	}

	// A missing config file is fine; every setting has a flag or a default.
	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}
	if config == nil {
		config = &Config{}
	}

	return config, nil
}

// buildService wires the engine proxy and the screening service from config.
func buildService(ctx context.Context, config *Config, logger *zap.Logger) (*screening.Service, error) {
	var (
		primary     engine.Engine
		maxAttempts int
		timeout     time.Duration
	)

	if ec := config.Engine; ec != nil {
		maxAttempts = ec.MaxAttempts
		timeout = ec.Timeout

		var err error
		primary, err = buildPrimary(ctx, ec, logger)
		if err != nil {
			return nil, err
		}
	}

	proxy := engine.NewProxy(
		primary,
		engine.NewFallback(),
		engine.ProxyConfig{MaxAttempts: maxAttempts, AttemptTimeout: timeout},
		engine.NewHealthState(),
		logger,
	)

	return screening.New(proxy, fairness.DefaultThresholds(), logger), nil
}

func buildPrimary(ctx context.Context, ec *EngineConfig, logger *zap.Logger) (engine.Engine, error) {
	provider := strings.TrimSpace(strings.ToLower(ec.Provider))
	switch provider {
	case "":
		return nil, nil
	case "http":
		if strings.TrimSpace(ec.URL) == "" {
			return nil, errors.New("engine url is required for the http provider")
		}
		token := ""
		if strings.TrimSpace(ec.TokenFile) != "" {
			var err error
			token, err = secrets.Load(secrets.Source{
				Name: "evaluator token",
				File: ec.TokenFile,
			})
			if err != nil {
				return nil, err
			}
		}
		return engine.NewRemote(ec.URL, token, ec.Timeout, logger), nil
	case "gemini":
		if ec.Gemini == nil {
			return nil, errors.New("gemini configuration is required when the gemini provider is enabled")
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: ec.Gemini.APIKeyFile,
		})
		if err != nil {
			return nil, err
		}
		generator, err := gemini.NewGenerator(ctx, apiKey, ec.Gemini.Model)
		if err != nil {
			return nil, err
		}
		return gemini.NewEngine(generator, logger, ec.Gemini.MaxLogLength), nil
	default:
		return nil, errors.New("unsupported engine provider: " + ec.Provider)
	}
}
