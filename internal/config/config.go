package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ziadkadry99/bookkeeper/internal/auth"
	"github.com/ziadkadry99/bookkeeper/internal/embeddings"
	"github.com/ziadkadry99/bookkeeper/internal/engine"
	"github.com/ziadkadry99/bookkeeper/internal/errortypes"
	"github.com/ziadkadry99/bookkeeper/internal/predictor"
	"github.com/ziadkadry99/bookkeeper/internal/textnorm"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: BOOKKEEPER_PREDICTOR__TOP_K -> predictor.top_k.
const EnvPrefix = "BOOKKEEPER_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (BOOKKEEPER_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errortypes.ConfigurationError(err, fmt.Sprintf("reading config %s", path))
		}
	} else if !os.IsNotExist(err) {
		return nil, errortypes.ConfigurationError(err, fmt.Sprintf("accessing config %s", path))
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errortypes.ConfigurationError(err, "loading env overrides")
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errortypes.ConfigurationError(err, "unmarshalling config")
	}

	return cfg, nil
}

// envKey maps BOOKKEEPER_PREDICTOR__TOP_K to predictor.top_k.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
	ProviderGoogle: true,
	ProviderHash:   true,
}

// Validate checks that the configuration contains valid values. Every
// failure is a configuration error.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return errortypes.ConfigurationError(err, "invalid configuration")
	}
	return nil
}

func (c *Config) validate() error {
	if c.EmbeddingProvider == "" {
		return fmt.Errorf("embedding_provider is required")
	}
	if !validProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q: must be one of openai, ollama, google, hash", c.EmbeddingProvider)
	}
	if c.EmbeddingProvider != ProviderHash && c.EmbeddingModel == "" {
		return fmt.Errorf("embedding_model is required")
	}
	if c.EmbeddingDimensions < 0 {
		return fmt.Errorf("embedding_dimensions must be non-negative")
	}
	if c.Embedding.RequestsPerMinute < 0 {
		return fmt.Errorf("embedding.requests_per_minute must be non-negative")
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection is required")
	}

	if _, err := predictor.ParsePolicy(c.Predictor.Policy); err != nil {
		return fmt.Errorf("predictor.policy: %w", err)
	}
	if c.Predictor.TopK < 1 {
		return fmt.Errorf("predictor.top_k must be at least 1")
	}
	if c.Predictor.SimilarityThreshold < 0 || c.Predictor.SimilarityThreshold > 1 {
		return fmt.Errorf("predictor.similarity_threshold must be within [0, 1]")
	}
	if _, err := predictor.ParseDocumentFormat(c.Predictor.DocumentFormat); err != nil {
		return fmt.Errorf("predictor.document_format: %w", err)
	}

	if c.Dataset.BatchSize < 1 {
		return fmt.Errorf("dataset.batch_size must be at least 1")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Server.MaxUploadMB < 0 {
		return fmt.Errorf("server.max_upload_mb must be non-negative")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); c.Log.Level != "" && err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "" && c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("invalid log.format %q: must be json or console", c.Log.Format)
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	return auth.EnvVar(string(provider))
}

// Embedder builds the configured embedding backend. API keys are read from
// the environment, then from the credentials saved by `bookkeeper auth`.
func (c *Config) Embedder() (embeddings.Embedder, error) {
	dims := c.EmbeddingDimensions
	if dims == 0 && c.EmbeddingModel == GetPreset(c.EmbeddingProvider).Model {
		dims = GetPreset(c.EmbeddingProvider).Dimensions
	}

	switch c.EmbeddingProvider {
	case ProviderOpenAI:
		key := auth.GetAPIKey(auth.ProviderOpenAI)
		if key == "" && c.OpenAIBaseURL == "" {
			return nil, errortypes.ConfigurationError(nil, "OPENAI_API_KEY is not set; run `bookkeeper auth openai`")
		}
		e := embeddings.NewOpenAIEmbedder(key, embeddings.OpenAIModel(c.EmbeddingModel), c.OpenAIBaseURL)
		return embeddings.RateLimited(e, c.Embedding.RequestsPerMinute), nil
	case ProviderGoogle:
		if key := auth.GetAPIKey(auth.ProviderGoogle); key != "" {
			e := embeddings.NewGoogleEmbedder(key, embeddings.GoogleModel(c.EmbeddingModel))
			return embeddings.RateLimited(e, c.Embedding.RequestsPerMinute), nil
		}
		creds, err := auth.Load()
		if err != nil {
			return nil, errortypes.ConfigurationError(err, "loading stored credentials")
		}
		if !creds.Google.HasOAuth() {
			return nil, errortypes.ConfigurationError(nil, "GOOGLE_API_KEY is not set; run `bookkeeper auth google`")
		}
		client := auth.GoogleClient(context.Background(), creds.Google)
		e := embeddings.NewGoogleEmbedderWithClient(client, embeddings.GoogleModel(c.EmbeddingModel))
		return embeddings.RateLimited(e, c.Embedding.RequestsPerMinute), nil
	case ProviderOllama:
		if dims == 0 {
			return nil, errortypes.ConfigurationError(nil, fmt.Sprintf("embedding_dimensions is required for ollama model %q", c.EmbeddingModel))
		}
		return embeddings.NewOllamaEmbedder(c.EmbeddingModel, dims, c.OllamaURL), nil
	case ProviderHash:
		return embeddings.NewHashEmbedder(dims), nil
	default:
		return nil, errortypes.ConfigurationError(nil, fmt.Sprintf("unknown embedding_provider %q", c.EmbeddingProvider))
	}
}

// Params returns the default prediction parameters.
func (c *Config) Params() (predictor.Params, error) {
	policy, err := predictor.ParsePolicy(c.Predictor.Policy)
	if err != nil {
		return predictor.Params{}, errortypes.ConfigurationError(err, "predictor.policy")
	}
	return predictor.Params{
		Policy:           policy,
		TopK:             c.Predictor.TopK,
		Threshold:        c.Predictor.SimilarityThreshold,
		RequireThreshold: c.Predictor.RequireThreshold,
	}, nil
}

// EngineConfig validates c and builds the engine configuration from it.
func (c *Config) EngineConfig() (engine.Config, error) {
	if err := c.Validate(); err != nil {
		return engine.Config{}, err
	}
	embedder, err := c.Embedder()
	if err != nil {
		return engine.Config{}, err
	}
	params, err := c.Params()
	if err != nil {
		return engine.Config{}, err
	}
	format, err := predictor.ParseDocumentFormat(c.Predictor.DocumentFormat)
	if err != nil {
		return engine.Config{}, errortypes.ConfigurationError(err, "predictor.document_format")
	}

	return engine.Config{
		DataDir:     c.DataDir,
		Collection:  c.Collection,
		Embedder:    embedder,
		Normalizer:  textnorm.Normalizer{StripLongDigits: c.Embedding.StripLongDigits},
		Composer:    predictor.Composer{Format: format},
		Params:      params,
		DatasetPath: c.Dataset.Path,
		Excluded:    c.Dataset.ExcludedCategories,
		BatchSize:   c.Dataset.BatchSize,
	}, nil
}
