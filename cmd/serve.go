package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mcpserver "github.com/ziadkadry99/bookkeeper/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing category prediction, similarity search and index tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		mcpserver.Version = Version

		// Logs go to stderr; stdout carries the protocol.
		logger.Info("bookkeeper MCP server started on stdio",
			zap.String("collection", rt.engine.Collection()),
		)

		return mcpserver.NewServer(rt.engine).Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
