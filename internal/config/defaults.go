package config

import (
	"github.com/ziadkadry99/bookkeeper/internal/ingest"
	"github.com/ziadkadry99/bookkeeper/internal/predictor"
	"github.com/ziadkadry99/bookkeeper/internal/server"
	"github.com/ziadkadry99/bookkeeper/internal/vectordb"
)

// DefaultFileName is the configuration file looked up in the working directory.
const DefaultFileName = "bookkeeper.yml"

// DefaultDataDir holds the vector index and the history database.
const DefaultDataDir = ".bookkeeper"

// ModelPreset is the default embedding model of a provider.
type ModelPreset struct {
	Model      string
	Dimensions int
}

// modelPresets maps each provider to its default embedding model.
var modelPresets = map[ProviderType]ModelPreset{
	ProviderOllama: {Model: "bge-m3", Dimensions: 1024},
	ProviderOpenAI: {Model: "text-embedding-3-small", Dimensions: 1536},
	ProviderGoogle: {Model: "text-embedding-004", Dimensions: 768},
	ProviderHash:   {Model: "hash", Dimensions: 256},
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	preset := GetPreset(ProviderOllama)
	return &Config{
		EmbeddingProvider:   ProviderOllama,
		EmbeddingModel:      preset.Model,
		EmbeddingDimensions: preset.Dimensions,
		Embedding: EmbeddingConfig{
			StripLongDigits: true,
		},
		DataDir:    DefaultDataDir,
		Collection: vectordb.DefaultCollection,
		Predictor: PredictorConfig{
			Policy:              string(predictor.DefaultPolicy),
			TopK:                10,
			SimilarityThreshold: 0.7,
			DocumentFormat:      string(predictor.FormatBasic),
		},
		Dataset: DatasetConfig{
			BatchSize: ingest.DefaultBatchSize,
		},
		Server: ServerConfig{
			Port:        server.DefaultPort,
			MaxUploadMB: server.DefaultMaxUploadBytes >> 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// GetPreset returns the default model of provider.
// Returns the Ollama preset if the provider is not known.
func GetPreset(provider ProviderType) ModelPreset {
	if preset, ok := modelPresets[provider]; ok {
		return preset
	}
	return modelPresets[ProviderOllama]
}
