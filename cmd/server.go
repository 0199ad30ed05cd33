package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/bookkeeper/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API for bill upload, classification and training",
	Long: `Starts the bookkeeper HTTP server: bill upload, merge and export, category
prediction, dataset training with live progress over a websocket, training
history and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		port := rt.cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = serverPort
		}

		srv := server.New(server.Config{
			Port:           port,
			AllowAll:       rt.cfg.Server.AllowAllOrigins,
			MaxUploadBytes: int64(rt.cfg.Server.MaxUploadMB) << 20,
			Version:        Version,
		}, rt.engine, rt.audit, rt.metrics, logger)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown failed", zap.Error(err))
			}
		}()

		logger.Info("bookkeeper server starting",
			zap.String("version", Version),
			zap.Int("port", port),
			zap.String("collection", rt.engine.Collection()),
			zap.String("dataset", rt.engine.DatasetPath()),
		)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", server.DefaultPort, "port to listen on (overrides server.port)")
	rootCmd.AddCommand(serverCmd)
}
