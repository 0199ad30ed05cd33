package config

// ProviderType identifies an embedding backend.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
	ProviderGoogle ProviderType = "google"
	// ProviderHash is the offline hashing embedder. It needs no model and
	// suits development and tests.
	ProviderHash ProviderType = "hash"
)

// Config is the top-level bookkeeper configuration, corresponding to bookkeeper.yml.
type Config struct {
	EmbeddingProvider   ProviderType    `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel      string          `yaml:"embedding_model" koanf:"embedding_model"`
	EmbeddingDimensions int             `yaml:"embedding_dimensions" koanf:"embedding_dimensions"`
	OllamaURL           string          `yaml:"ollama_url,omitempty" koanf:"ollama_url"`
	OpenAIBaseURL       string          `yaml:"openai_base_url,omitempty" koanf:"openai_base_url"`
	Embedding           EmbeddingConfig `yaml:"embedding" koanf:"embedding"`
	DataDir             string          `yaml:"data_dir" koanf:"data_dir"`
	Collection          string          `yaml:"collection" koanf:"collection"`
	Predictor           PredictorConfig `yaml:"predictor" koanf:"predictor"`
	Dataset             DatasetConfig   `yaml:"dataset" koanf:"dataset"`
	Server              ServerConfig    `yaml:"server" koanf:"server"`
	Log                 LogConfig       `yaml:"log" koanf:"log"`
}

// EmbeddingConfig controls how text is prepared before embedding.
type EmbeddingConfig struct {
	StripLongDigits bool `yaml:"strip_long_digits" koanf:"strip_long_digits"`
	// RequestsPerMinute caps calls to remote providers. 0 disables the cap.
	RequestsPerMinute int `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// PredictorConfig holds the default prediction parameters.
type PredictorConfig struct {
	Policy              string  `yaml:"policy" koanf:"policy"`
	TopK                int     `yaml:"top_k" koanf:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" koanf:"similarity_threshold"`
	RequireThreshold    bool    `yaml:"require_threshold" koanf:"require_threshold"`
	DocumentFormat      string  `yaml:"document_format" koanf:"document_format"`
}

// DatasetConfig describes the labelled training data.
type DatasetConfig struct {
	Path               string   `yaml:"path" koanf:"path"`
	ExcludedCategories []string `yaml:"excluded_categories" koanf:"excluded_categories"`
	BatchSize          int      `yaml:"batch_size" koanf:"batch_size"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	MaxUploadMB     int  `yaml:"max_upload_mb" koanf:"max_upload_mb"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}
