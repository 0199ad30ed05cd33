package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/bookkeeper/internal/audit"
	"github.com/ziadkadry99/bookkeeper/internal/errortypes"
	"github.com/ziadkadry99/bookkeeper/internal/ingest"
	"github.com/ziadkadry99/bookkeeper/internal/metrics"
	"github.com/ziadkadry99/bookkeeper/internal/model"
	"github.com/ziadkadry99/bookkeeper/internal/progress"
	"github.com/ziadkadry99/bookkeeper/internal/vectordb"
)

// Stats summarizes the index contents.
type Stats struct {
	TotalRecords   int            `json:"total_records"`
	CategoryCounts map[string]int `json:"category_counts"`
}

// TrainResult reports the outcome of a full retrain. Failures are reported
// here rather than as an error.
type TrainResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Stats   *Stats          `json:"stats,omitempty"`
	Summary *ingest.Summary `json:"summary,omitempty"`
}

// Train clears the index and reloads it from the dataset at path, or from
// the configured dataset when path is empty.
func (e *Engine) Train(ctx context.Context, path string) TrainResult {
	return e.TrainPath(ctx, path, nil)
}

// TrainPath is Train with progress reporting. reporter may be nil.
func (e *Engine) TrainPath(ctx context.Context, path string, reporter progress.Reporter) TrainResult {
	if path == "" {
		path = e.cfg.DatasetPath
	}
	if path == "" {
		return e.trainFailed(ctx, "", time.Now(), errortypes.ConfigurationError(nil, "no dataset path configured"))
	}

	f, err := os.Open(path)
	if err != nil {
		return e.trainFailed(ctx, path, time.Now(), errortypes.DatasetError(err, "opening dataset"))
	}
	defer f.Close()

	return e.TrainFrom(ctx, path, f, reporter)
}

// TrainFrom clears the index and reloads it from r. name identifies the
// dataset in logs and history. reporter may be nil.
//
// The dataset is parsed before the index is touched, so an unreadable
// upload leaves the current records in place. Once the clear starts it runs
// to completion even if ctx is cancelled.
func (e *Engine) TrainFrom(ctx context.Context, name string, r io.Reader, reporter progress.Reporter) TrainResult {
	start := time.Now()

	store, err := e.Store()
	if err != nil {
		return e.trainFailed(ctx, name, start, err)
	}

	pipeline := ingest.New(store, ingest.Options{
		BatchSize: e.cfg.BatchSize,
		Excluded:  e.cfg.Excluded,
		Composer:  e.cfg.Composer,
		Logger:    e.log,
		Progress:  reporter,
	})
	ds, err := pipeline.Read(r)
	if err != nil {
		return e.trainFailed(ctx, name, start, err)
	}

	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	e.log.Info("retraining",
		zap.String("dataset", name),
		zap.Int("rows", ds.RowsRead),
		zap.Strings("excluded", e.cfg.Excluded),
	)

	swapCtx := context.WithoutCancel(ctx)
	if err := store.Clear(swapCtx); err != nil {
		return e.trainFailed(ctx, name, start, err)
	}
	e.metrics.SetIndexedRecords(0)

	summary, err := pipeline.LoadDataset(swapCtx, ds)
	e.metrics.SetIndexedRecords(store.Count())
	if err != nil {
		return e.trainFailed(ctx, name, start, err)
	}

	stats, err := e.Stats(swapCtx)
	if err != nil {
		return e.trainFailed(ctx, name, start, err)
	}

	e.metrics.ObserveTraining(metrics.ResultSuccess)
	e.record(ctx, audit.Entry{
		Action:      audit.ActionRetrainCompleted,
		Summary:     fmt.Sprintf("Indexed %d records", summary.Indexed),
		Detail:      summary.String(),
		Dataset:     name,
		RecordCount: summary.Indexed,
		Categories:  sortedKeys(stats.CategoryCounts),
		Duration:    time.Since(start),
	})
	e.log.Info("retrain complete", zap.String("summary", summary.String()), zap.Duration("elapsed", time.Since(start)))

	return TrainResult{
		Success: true,
		Message: fmt.Sprintf("Model trained on %d records", summary.Indexed),
		Stats:   &stats,
		Summary: &summary,
	}
}

func (e *Engine) trainFailed(ctx context.Context, name string, start time.Time, err error) TrainResult {
	e.metrics.ObserveTraining(metrics.ResultFailure)
	e.log.Error("retrain failed", zap.String("dataset", name), zap.Error(err))
	e.record(ctx, audit.Entry{
		Action:   audit.ActionRetrainFailed,
		Summary:  "Retrain failed",
		Detail:   err.Error(),
		Dataset:  name,
		Duration: time.Since(start),
	})
	return TrainResult{
		Success: false,
		Message: fmt.Sprintf("Training failed: %v", err),
	}
}

// Stats counts the records per category.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	store, err := e.Store()
	if err != nil {
		return Stats{}, err
	}
	all, err := store.GetAll(ctx)
	if err != nil {
		return Stats{}, err
	}

	counts := make(map[string]int)
	for _, md := range all {
		if md.Category != "" {
			counts[md.Category]++
		}
	}
	return Stats{TotalRecords: len(all), CategoryCounts: counts}, nil
}

// ListCategories returns every category present in the index, sorted.
func (e *Engine) ListCategories(ctx context.Context) ([]string, error) {
	stats, err := e.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return sortedKeys(stats.CategoryCounts), nil
}

// AddRecord indexes a single labelled transaction.
func (e *Engine) AddRecord(ctx context.Context, tx model.Transaction) error {
	if tx.Category == "" {
		return errortypes.ValidationError(nil, "record has no category")
	}
	for _, c := range e.cfg.Excluded {
		if c == tx.Category {
			return errortypes.ValidationError(nil, fmt.Sprintf("category %q is excluded from the index", tx.Category))
		}
	}

	store, err := e.Store()
	if err != nil {
		return err
	}

	doc, md := ingest.Record(tx, e.cfg.Composer)

	// Never interleave with a retrain.
	e.trainMu.Lock()
	err = store.Upsert(ctx, []string{doc}, []vectordb.RecordMetadata{md}, nil)
	count := store.Count()
	e.trainMu.Unlock()
	if err != nil {
		return err
	}
	e.metrics.SetIndexedRecords(count)
	e.record(ctx, audit.Entry{
		Action:      audit.ActionRecordAdded,
		Summary:     fmt.Sprintf("Added %s as %s", doc, tx.Category),
		RecordCount: 1,
		Categories:  []string{tx.Category},
	})
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
