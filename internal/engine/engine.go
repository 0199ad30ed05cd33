// Package engine owns the shared vector index and exposes prediction and
// training to the HTTP server, the MCP server and the CLI.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/ziadkadry99/bookkeeper/internal/audit"
	"github.com/ziadkadry99/bookkeeper/internal/embeddings"
	"github.com/ziadkadry99/bookkeeper/internal/errortypes"
	"github.com/ziadkadry99/bookkeeper/internal/logging"
	"github.com/ziadkadry99/bookkeeper/internal/metrics"
	"github.com/ziadkadry99/bookkeeper/internal/predictor"
	"github.com/ziadkadry99/bookkeeper/internal/textnorm"
	"github.com/ziadkadry99/bookkeeper/internal/vectordb"
)

// IndexDirName is the directory under the data directory holding the
// vector index.
const IndexDirName = "vectordb"

// Config holds everything the engine needs to open the index.
type Config struct {
	// DataDir holds the index. Empty keeps the index in memory.
	DataDir    string
	Collection string

	// Embedder is the embedding backend; it is wrapped in an
	// embeddings.Provider with Normalizer.
	Embedder   embeddings.Embedder
	Normalizer textnorm.Normalizer

	Composer predictor.Composer
	Params   predictor.Params

	DatasetPath string
	Excluded    []string
	BatchSize   int
}

// Option configures optional collaborators.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = logging.OrNop(l).Named("engine") }
}

// WithMetrics records predictions and training runs.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAudit records training history.
func WithAudit(s *audit.Store) Option {
	return func(e *Engine) { e.audit = s }
}

// Engine is the process-wide classifier. It is safe for concurrent use;
// the index is opened on first use.
type Engine struct {
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics
	audit   *audit.Store

	initMu      sync.Mutex
	initialized bool
	store       *vectordb.ChromemStore
	predictor   *predictor.Predictor

	// trainMu serializes Clear followed by Load, and single-record adds
	// against both.
	trainMu sync.Mutex
}

// New creates an Engine. Nothing is opened until first use.
func New(cfg Config, opts ...Option) *Engine {
	if cfg.Collection == "" {
		cfg.Collection = vectordb.DefaultCollection
	}
	if cfg.Params.Policy == "" {
		cfg.Params.Policy = predictor.DefaultPolicy
	}
	e := &Engine{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Collection returns the name of the collection predictions come from.
func (e *Engine) Collection() string {
	return e.cfg.Collection
}

// Params returns the configured prediction parameters.
func (e *Engine) Params() predictor.Params {
	return e.cfg.Params
}

// DatasetPath returns the configured training dataset.
func (e *Engine) DatasetPath() string {
	return e.cfg.DatasetPath
}

// Initialized reports whether the index has been opened.
func (e *Engine) Initialized() bool {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	return e.initialized
}

// ensure opens the index once. A failed attempt is retried by the next
// caller.
func (e *Engine) ensure() error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.initialized {
		return nil
	}

	if e.cfg.Embedder == nil {
		return errortypes.ConfigurationError(nil, "no embedding backend configured")
	}
	provider := embeddings.NewProvider(e.cfg.Embedder, e.cfg.Normalizer)

	dir := ""
	if e.cfg.DataDir != "" {
		dir = filepath.Join(e.cfg.DataDir, IndexDirName)
	}
	store, err := vectordb.NewChromemStore(dir, e.cfg.Collection, provider)
	if err != nil {
		return err
	}

	pred, err := predictor.New(store, e.cfg.Composer, e.cfg.Params, store.Name())
	if err != nil {
		return err
	}

	e.store = store
	e.predictor = pred
	e.initialized = true
	e.metrics.SetIndexedRecords(store.Count())
	e.log.Info("vector index opened",
		zap.String("dir", dir),
		zap.String("collection", e.cfg.Collection),
		zap.String("embedder", provider.Name()),
		zap.Int("records", store.Count()),
	)
	return nil
}

// Store returns the opened vector index.
func (e *Engine) Store() (*vectordb.ChromemStore, error) {
	if err := e.ensure(); err != nil {
		return nil, err
	}
	return e.store, nil
}

// Predictor returns the predictor bound to the index.
func (e *Engine) Predictor() (*predictor.Predictor, error) {
	if err := e.ensure(); err != nil {
		return nil, err
	}
	return e.predictor, nil
}

// Clear deletes every record from the index.
func (e *Engine) Clear(ctx context.Context) error {
	store, err := e.Store()
	if err != nil {
		return err
	}

	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	if err := store.Clear(ctx); err != nil {
		return err
	}
	e.metrics.SetIndexedRecords(0)
	e.record(ctx, audit.Entry{
		Action:  audit.ActionIndexCleared,
		Summary: fmt.Sprintf("Cleared collection %s", e.cfg.Collection),
	})
	return nil
}

// record writes an audit entry when an audit store is configured. Failures
// are logged and never returned to the caller.
func (e *Engine) record(ctx context.Context, entry audit.Entry) {
	if e.audit == nil {
		return
	}
	entry.ActorType = audit.ActorFromContext(ctx)
	if entry.Collection == "" {
		entry.Collection = e.cfg.Collection
	}
	// The action already happened; do not let a cancelled request drop
	// its history.
	if err := e.audit.Log(context.WithoutCancel(ctx), entry); err != nil {
		e.log.Warn("writing audit entry failed", zap.String("action", string(entry.Action)), zap.Error(err))
	}
}
