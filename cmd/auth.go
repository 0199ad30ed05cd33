package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/bookkeeper/internal/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API credentials for embedding providers",
	Long: `Store and manage API credentials for the remote embedding providers.

Credentials are stored in ~/.bookkeeper/credentials.json and used
as a fallback when environment variables are not set.`,
}

var authOpenAICmd = &cobra.Command{
	Use:   "openai",
	Short: "Store an OpenAI API key",
	Long: `Store your OpenAI API key for persistent use.

Get your API key at https://platform.openai.com/api-keys`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := promptSecret("OpenAI API key")
		if err != nil {
			return err
		}
		return updateCredentials(func(c *auth.Credentials) {
			c.OpenAI = &auth.APIKeyCredentials{APIKey: key}
		}, "OpenAI API key saved.")
	},
}

var authGoogleCmd = &cobra.Command{
	Use:   "google",
	Short: "Store a Google API key, or authenticate via OAuth2 with --oauth",
	Long: `Store a Generative Language API key, or with --oauth open your browser
for Google OAuth2 authorization. OAuth2 needs a Google Cloud OAuth2 Client
ID and Secret, taken from GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET or
prompted for.`,
	RunE: runAuthGoogle,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which providers have credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, provider := range []string{auth.ProviderOpenAI, auth.ProviderGoogle} {
			switch auth.Source(provider) {
			case "env":
				fmt.Printf("%-10s configured (env var %s)\n", provider, auth.EnvVar(provider))
			case "stored":
				fmt.Printf("%-10s configured (stored API key)\n", provider)
			case "oauth":
				fmt.Printf("%-10s configured (stored OAuth2)\n", provider)
			default:
				fmt.Printf("%-10s not configured\n", provider)
			}
		}
		fmt.Printf("%-10s available (local)\n", "ollama")
		fmt.Printf("%-10s available (offline)\n", "hash")
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout [provider]",
	Short: "Remove stored credentials",
	Long: `Remove stored credentials for a provider.

If no provider is specified, removes all stored credentials.
Valid providers: openai, google`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return updateCredentials(func(c *auth.Credentials) { *c = auth.Credentials{} }, "All stored credentials removed.")
		}
		switch args[0] {
		case auth.ProviderOpenAI:
			return updateCredentials(func(c *auth.Credentials) { c.OpenAI = nil }, "OpenAI credentials removed.")
		case auth.ProviderGoogle:
			return updateCredentials(func(c *auth.Credentials) { c.Google = nil }, "Google credentials removed.")
		default:
			return fmt.Errorf("unknown provider %q (valid: openai, google)", args[0])
		}
	},
}

func init() {
	authGoogleCmd.Flags().Bool("oauth", false, "authenticate through the browser instead of an API key")
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authOpenAICmd)
	authCmd.AddCommand(authGoogleCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
}

func runAuthGoogle(cmd *cobra.Command, args []string) error {
	useOAuth, _ := cmd.Flags().GetBool("oauth")
	if !useOAuth {
		key, err := promptSecret("Google API key")
		if err != nil {
			return err
		}
		return updateCredentials(func(c *auth.Credentials) {
			c.Google = &auth.GoogleCredentials{APIKey: key}
		}, "Google API key saved.")
	}

	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	var err error
	if clientID == "" {
		if clientID, err = promptText("Google OAuth2 Client ID"); err != nil {
			return err
		}
	}
	if clientSecret == "" {
		if clientSecret, err = promptSecret("Google OAuth2 Client Secret"); err != nil {
			return err
		}
	}

	creds, err := auth.RunGoogleOAuth(context.Background(), clientID, clientSecret, os.Stdout)
	if err != nil {
		return fmt.Errorf("OAuth flow failed: %w", err)
	}
	return updateCredentials(func(c *auth.Credentials) { c.Google = creds }, "Google OAuth2 credentials saved.")
}

func updateCredentials(update func(*auth.Credentials), done string) error {
	creds, err := auth.Load()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	update(creds)
	if err := auth.Save(creds); err != nil {
		return err
	}
	fmt.Println(done)
	return nil
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}

func promptText(label string) (string, error) {
	p := promptui.Prompt{Label: label, Validate: required}
	v, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(v), nil
}

func promptSecret(label string) (string, error) {
	p := promptui.Prompt{Label: label, Mask: '*', Validate: required}
	v, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(v), nil
}
