// Package config loads marketlens settings in layers: built-in defaults, an
// optional YAML file, then MARKETLENS_* environment variables. A .env file in
// the working directory is read first so secrets can live outside the YAML.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

const (
	// PathEnvVar overrides the config file location.
	PathEnvVar = "MARKETLENS_CONFIG"
	// DefaultPath is used when it exists and no path is given.
	DefaultPath = "marketlens.yaml"
	// EnvPrefix marks environment overrides. Nested keys use "__", as in
	// MARKETLENS_MODEL__MAX_DEPTH.
	EnvPrefix = "MARKETLENS_"
	// GroqKeyEnvVar is read when no narrative API key is configured.
	GroqKeyEnvVar = "GROQ_API_KEY"
	// DefaultEnvFile holds secrets loaded into the environment at startup.
	DefaultEnvFile = ".env"
)

type Config struct {
	Data       DataConfig       `koanf:"data"`
	Model      ModelConfig      `koanf:"model"`
	Similarity SimilarityConfig `koanf:"similarity"`
	Forecast   ForecastConfig   `koanf:"forecast"`
	Query      QueryConfig      `koanf:"query"`
	Narrative  NarrativeConfig  `koanf:"narrative"`
	Log        LogConfig        `koanf:"log"`
	Report     ReportConfig     `koanf:"report"`
}

// DataConfig locates the two catalog tables.
type DataConfig struct {
	CleanPath string `koanf:"clean_path" validate:"required"`
	FullPath  string `koanf:"full_path" validate:"required"`
}

// ModelConfig controls demand model training and its cached artifact. An
// empty artifact path disables the cache.
type ModelConfig struct {
	ArtifactPath string  `koanf:"artifact_path"`
	TestSize     float64 `koanf:"test_size" validate:"gt=0,lt=1"`
	SplitSeed    uint64  `koanf:"split_seed"`
	NEstimators  int     `koanf:"n_estimators" validate:"min=1"`
	LearningRate float64 `koanf:"learning_rate" validate:"gt=0"`
	MaxDepth     int     `koanf:"max_depth" validate:"min=1"`
	RandomState  uint64  `koanf:"random_state"`
}

type SimilarityConfig struct {
	TopK   int    `koanf:"top_k" validate:"min=1"`
	SortBy string `koanf:"sort_by" validate:"oneof=similarity reviews rating price"`
}

type ForecastConfig struct {
	SampleSize  int    `koanf:"sample_size" validate:"min=1"`
	HorizonDays int    `koanf:"horizon_days" validate:"min=1"`
	Seed        uint64 `koanf:"seed"`
	TopTrending int    `koanf:"top_trending" validate:"min=1"`
}

// QueryConfig bounds the accepted user price.
type QueryConfig struct {
	MinPrice float64 `koanf:"min_price" validate:"min=0"`
	MaxPrice float64 `koanf:"max_price" validate:"gtfield=MinPrice"`
}

type NarrativeConfig struct {
	Enabled         bool          `koanf:"enabled"`
	BaseURL         string        `koanf:"base_url" validate:"required,url"`
	APIKey          string        `koanf:"api_key"`
	Model           string        `koanf:"model" validate:"required"`
	Temperature     float64       `koanf:"temperature" validate:"gte=0,lte=2"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"min=1"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown" validate:"gt=0"`
}

// Active reports whether narrative calls should be made.
func (n NarrativeConfig) Active() bool {
	return n.Enabled && strings.TrimSpace(n.APIKey) != ""
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

// ReportConfig controls the written report. Charts are PNG files next to
// the markdown.
type ReportConfig struct {
	OutputDir string `koanf:"output_dir" validate:"required"`
	Charts    bool   `koanf:"charts"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			CleanPath: "Final_Cleaned_and_Structured_Dataset.csv",
			FullPath:  "product_data_with_details.csv",
		},
		Model: ModelConfig{
			ArtifactPath: "artifacts/demand_model.gob",
			TestSize:     0.2,
			SplitSeed:    42,
			NEstimators:  100,
			LearningRate: 0.1,
			MaxDepth:     5,
			RandomState:  42,
		},
		Similarity: SimilarityConfig{TopK: 5, SortBy: "similarity"},
		Forecast:   ForecastConfig{SampleSize: 10, HorizonDays: 30, Seed: 42, TopTrending: 5},
		Query:      QueryConfig{MinPrice: 0, MaxPrice: 2000},
		Narrative: NarrativeConfig{
			Enabled:         true,
			BaseURL:         "https://api.groq.com/openai",
			Model:           "mixtral-8x7b-32768",
			Temperature:     0.5,
			Timeout:         60 * time.Second,
			BreakerFailures: 3,
			BreakerCooldown: time.Minute,
		},
		Log:    LogConfig{Level: "info", Format: "console"},
		Report: ReportConfig{OutputDir: "report", Charts: true},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the configuration. path may be empty, in which case
// MARKETLENS_CONFIG and then DefaultPath are tried; a missing default file
// is not an error, a missing explicit one is.
func Load(path string) (*Config, error) {
	return LoadWithEnvFile(path, DefaultEnvFile)
}

// LoadWithEnvFile is Load with an explicit .env location. Variables already
// set in the environment win over the file.
func LoadWithEnvFile(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, mlErrors.Wrapf(err, "load %s", envFile)
		}
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, mlErrors.Wrap(err, "load config defaults")
	}

	path, explicit := resolvePath(path)
	if path != "" {
		if _, err := os.Stat(path); err == nil || explicit {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, mlErrors.Wrapf(err, "load config file %s", path)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, mlErrors.Wrap(err, "load environment overrides")
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, mlErrors.Wrap(err, "decode config")
	}
	if cfg.Narrative.APIKey == "" {
		cfg.Narrative.APIKey = os.Getenv(GroqKeyEnvVar)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePath(path string) (string, bool) {
	if path != "" {
		return path, true
	}
	if p := os.Getenv(PathEnvVar); p != "" {
		return p, true
	}
	return DefaultPath, false
}

// envKey maps MARKETLENS_MODEL__MAX_DEPTH to model.max_depth.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return mlErrors.Wrap(mlErrors.NewValueError("config.Validate", err.Error()), "invalid configuration")
	}
	return nil
}
