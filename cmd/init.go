package cmd

import (
	"github.com/spf13/cobra"
	"github.com/ziadkadry99/bookkeeper/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize bookkeeper configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to pick an embedding provider, a labelled dataset and a voting policy, and writes bookkeeper.yml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
