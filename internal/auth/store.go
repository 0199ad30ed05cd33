// Package auth stores API credentials for the remote embedding providers.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)

// GoogleCredentials holds either an API key or OAuth2 tokens for the
// Generative Language API.
type GoogleCredentials struct {
	APIKey       string `json:"api_key,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenExpiry  string `json:"token_expiry,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// HasOAuth reports whether a refreshable OAuth2 token is stored.
func (g *GoogleCredentials) HasOAuth() bool {
	return g != nil && g.RefreshToken != ""
}

// APIKeyCredentials stores an API key for a provider.
type APIKeyCredentials struct {
	APIKey string `json:"api_key,omitempty"`
}

// Credentials holds stored credentials for all providers.
type Credentials struct {
	Google *GoogleCredentials `json:"google,omitempty"`
	OpenAI *APIKeyCredentials `json:"openai,omitempty"`
}

// CredentialPath returns ~/.bookkeeper/credentials.json.
func CredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".bookkeeper", "credentials.json"), nil
}

// Load reads the stored credentials. A missing file yields empty
// credentials.
func Load() (*Credentials, error) {
	path, err := CredentialPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Credentials{}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials %s: %w", path, err)
	}
	return &creds, nil
}

// Save writes credentials readable only by the current user.
func Save(creds *Credentials) error {
	path, err := CredentialPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// EnvVar returns the environment variable holding the API key of provider.
func EnvVar(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}

// GetAPIKey returns the API key for provider. The environment wins over
// stored credentials.
func GetAPIKey(provider string) string {
	if name := EnvVar(provider); name != "" {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}

	creds, err := Load()
	if err != nil {
		return ""
	}
	switch provider {
	case ProviderOpenAI:
		if creds.OpenAI != nil {
			return creds.OpenAI.APIKey
		}
	case ProviderGoogle:
		if creds.Google != nil {
			return creds.Google.APIKey
		}
	}
	return ""
}

// Source describes where the key of provider comes from: "env", "stored",
// "oauth" or "".
func Source(provider string) string {
	if name := EnvVar(provider); name != "" && os.Getenv(name) != "" {
		return "env"
	}
	creds, err := Load()
	if err != nil {
		return ""
	}
	switch provider {
	case ProviderOpenAI:
		if creds.OpenAI != nil && creds.OpenAI.APIKey != "" {
			return "stored"
		}
	case ProviderGoogle:
		if creds.Google != nil && creds.Google.APIKey != "" {
			return "stored"
		}
		if creds.Google.HasOAuth() {
			return "oauth"
		}
	}
	return ""
}
