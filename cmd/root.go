package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/bookkeeper/internal/config"
	"github.com/ziadkadry99/bookkeeper/internal/logging"
)

var (
	cfgFile string
	verbose bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "bookkeeper",
	Short: "Semantic category prediction for personal bills",
	Long: `Bookkeeper learns spending categories from a labelled transaction
dataset and predicts the category of new Alipay and WeChat Pay bill lines
by voting over their nearest neighbours in a local vector index.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; API keys may come from the environment.
		_ = godotenv.Load()
		return nil
	},
}

func Execute() error {
	err := rootCmd.Execute()
	_ = logger.Sync()
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultFileName, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// setupLogger replaces the package logger using the log section of cfg.
func setupLogger(cfg *config.Config) error {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	l, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return err
	}
	logger = l
	return nil
}
