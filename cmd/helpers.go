package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ziadkadry99/bookkeeper/internal/audit"
	"github.com/ziadkadry99/bookkeeper/internal/config"
	"github.com/ziadkadry99/bookkeeper/internal/db"
	"github.com/ziadkadry99/bookkeeper/internal/engine"
	"github.com/ziadkadry99/bookkeeper/internal/metrics"
)

// loadConfig loads the config and sets up logging, providing a
// user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `bookkeeper init` to create a config file", err)
	}
	if err := setupLogger(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runtime bundles what the commands share: the engine and its history
// database.
type runtime struct {
	cfg     *config.Config
	engine  *engine.Engine
	audit   *audit.Store
	metrics *metrics.Metrics
	db      *db.DB
}

func (r *runtime) Close() error {
	return r.db.Close()
}

// openRuntime loads the config and opens the engine with audit history and
// metrics attached.
func openRuntime() (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	ec, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}

	dbPath := filepath.Join(cfg.DataDir, db.FileName)
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	auditStore := audit.NewStore(database)
	m := metrics.New()
	eng := engine.New(ec,
		engine.WithLogger(logger),
		engine.WithAudit(auditStore),
		engine.WithMetrics(m),
	)

	return &runtime{cfg: cfg, engine: eng, audit: auditStore, metrics: m, db: database}, nil
}

// cliContext marks actions as performed from the command line.
func cliContext() context.Context {
	return audit.WithActor(context.Background(), audit.ActorCLI)
}
