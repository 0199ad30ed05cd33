package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/ziadkadry99/bookkeeper/internal/auth"
	"github.com/ziadkadry99/bookkeeper/internal/predictor"
)

// detectDataset looks for a labelled dataset in the current directory.
func detectDataset() string {
	for _, name := range []string{"dataset.csv", "data/dataset.csv", "labelled.csv", "data/labelled.csv"} {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name
		}
	}
	return ""
}

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to bookkeeper! Let's configure transaction classification.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Embedding provider.
	providerPrompt := promptui.Select{
		Label: "Select embedding provider",
		Items: []string{
			"ollama: local model (bge-m3)",
			"openai: text-embedding-3",
			"google: text-embedding-004",
			"hash: offline, no model (testing only)",
		},
	}
	providerIdx, _, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	providers := []ProviderType{ProviderOllama, ProviderOpenAI, ProviderGoogle, ProviderHash}
	cfg.EmbeddingProvider = providers[providerIdx]
	preset := GetPreset(cfg.EmbeddingProvider)
	cfg.EmbeddingModel = preset.Model
	cfg.EmbeddingDimensions = preset.Dimensions

	// 2. Model.
	if cfg.EmbeddingProvider != ProviderHash {
		modelPrompt := promptui.Prompt{
			Label:   "Embedding model",
			Default: preset.Model,
		}
		model, err := modelPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("embedding model: %w", err)
		}
		cfg.EmbeddingModel = strings.TrimSpace(model)
		if cfg.EmbeddingModel != preset.Model {
			cfg.EmbeddingDimensions = 0
		}
	}
	if cfg.EmbeddingProvider == ProviderOllama && cfg.EmbeddingDimensions == 0 {
		dimsPrompt := promptui.Prompt{
			Label:    "Embedding dimensions",
			Validate: validateInt,
		}
		dims, err := dimsPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("embedding dimensions: %w", err)
		}
		cfg.EmbeddingDimensions, _ = strconv.Atoi(dims)
	}

	// 3. Dataset.
	datasetPrompt := promptui.Prompt{
		Label:   "Labelled dataset (CSV)",
		Default: detectDataset(),
	}
	cfg.Dataset.Path, err = datasetPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("dataset path: %w", err)
	}

	// 4. Excluded categories.
	excludePrompt := promptui.Prompt{
		Label:   "Categories to keep out of the index (comma-separated)",
		Default: "",
	}
	excludeStr, err := excludePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("excluded categories: %w", err)
	}
	cfg.Dataset.ExcludedCategories = splitAndTrim(excludeStr)

	// 5. Voting policy.
	policyItems := make([]string, len(predictor.Policies))
	for i, p := range predictor.Policies {
		policyItems[i] = string(p)
	}
	policyPrompt := promptui.Select{
		Label: "Select voting policy",
		Items: policyItems,
	}
	_, cfg.Predictor.Policy, err = policyPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("policy selection: %w", err)
	}

	// 6. Threshold.
	thresholdPrompt := promptui.Prompt{
		Label:    "Similarity threshold (0-1)",
		Default:  strconv.FormatFloat(cfg.Predictor.SimilarityThreshold, 'f', -1, 64),
		Validate: validateThreshold,
	}
	thresholdStr, err := thresholdPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("similarity threshold: %w", err)
	}
	cfg.Predictor.SimilarityThreshold, _ = strconv.ParseFloat(thresholdStr, 64)

	// Check for API key.
	if envVar := APIKeyEnvVar(cfg.EmbeddingProvider); envVar != "" && auth.Source(string(cfg.EmbeddingProvider)) == "" {
		fmt.Printf("\nNote: Set %s in your environment or .env, or run `bookkeeper auth %s`, before training.\n", envVar, cfg.EmbeddingProvider)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validateInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

func validateThreshold(s string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 || f > 1 {
		return fmt.Errorf("enter a number between 0 and 1")
	}
	return nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
