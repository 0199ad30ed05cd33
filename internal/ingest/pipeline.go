// Package ingest loads labelled transactions from a CSV dataset into the
// vector index.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ziadkadry99/bookkeeper/internal/errortypes"
	"github.com/ziadkadry99/bookkeeper/internal/features"
	"github.com/ziadkadry99/bookkeeper/internal/logging"
	"github.com/ziadkadry99/bookkeeper/internal/model"
	"github.com/ziadkadry99/bookkeeper/internal/predictor"
	"github.com/ziadkadry99/bookkeeper/internal/progress"
	"github.com/ziadkadry99/bookkeeper/internal/vectordb"
)

// DefaultBatchSize bounds how many records are embedded per upsert.
const DefaultBatchSize = 1000

// Writer is the part of the vector index the pipeline writes to.
type Writer interface {
	Upsert(ctx context.Context, documents []string, metadatas []vectordb.RecordMetadata, ids []string) error
}

// Options configures a Pipeline.
type Options struct {
	BatchSize int
	Excluded  []string
	Composer  predictor.Composer
	Logger    *zap.Logger
	Progress  progress.Reporter
}

// Summary counts what a load did with every row.
type Summary struct {
	RowsRead        int `json:"rows_read"`
	Indexed         int `json:"indexed"`
	SkippedEmpty    int `json:"skipped_empty_category"`
	SkippedExcluded int `json:"skipped_excluded"`
	Malformed       int `json:"malformed"`
	Batches         int `json:"batches"`
}

// Skipped returns the total number of rows that were not indexed.
func (s Summary) Skipped() int {
	return s.SkippedEmpty + s.SkippedExcluded + s.Malformed
}

// Pipeline turns dataset rows into indexed records.
type Pipeline struct {
	store    Writer
	opts     Options
	excluded map[string]bool
	log      *zap.Logger
}

// New creates a Pipeline writing to store.
func New(store Writer, opts Options) *Pipeline {
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	excluded := make(map[string]bool, len(opts.Excluded))
	for _, c := range opts.Excluded {
		excluded[c] = true
	}
	return &Pipeline{
		store:    store,
		opts:     opts,
		excluded: excluded,
		log:      logging.OrNop(opts.Logger).Named("ingest"),
	}
}

// LoadFile loads the dataset at path.
func (p *Pipeline) LoadFile(ctx context.Context, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, errortypes.DatasetError(err, "opening dataset")
	}
	defer f.Close()
	return p.Load(ctx, f)
}

// Load reads a CSV dataset with a header row and indexes every labelled,
// non-excluded row. Malformed rows are skipped; only an unreadable header
// is fatal.
func (p *Pipeline) Load(ctx context.Context, r io.Reader) (Summary, error) {
	ds, err := p.Read(r)
	if err != nil {
		return Summary{}, err
	}
	return p.LoadDataset(ctx, ds)
}

// Dataset holds the parsed rows of a dataset before any of them are
// indexed.
type Dataset struct {
	Transactions []model.Transaction
	RowsRead     int
	Malformed    int
}

// Read parses the whole dataset without touching the index. Parsed rows are
// kept in memory; vectors are only produced per batch by LoadDataset.
func (p *Pipeline) Read(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, errortypes.DatasetError(err, "reading dataset header")
	}
	idx, err := parseHeader(header)
	if err != nil {
		return nil, errortypes.DatasetError(err, "reading dataset header")
	}
	// Rows must match the header width.
	reader.FieldsPerRecord = len(header)

	ds := &Dataset{}
	line := 1
	for {
		row, err := reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				ds.RowsRead++
				ds.Malformed++
				p.log.Warn("skipping malformed dataset row", zap.Int("line", parseErr.Line), zap.Error(parseErr.Err))
				continue
			}
			return nil, errortypes.DatasetError(err, fmt.Sprintf("reading dataset near line %d", line))
		}
		ds.RowsRead++
		ds.Transactions = append(ds.Transactions, rowToTransaction(idx, row))
	}
	return ds, nil
}

// LoadDataset indexes a dataset returned by Read.
func (p *Pipeline) LoadDataset(ctx context.Context, ds *Dataset) (Summary, error) {
	sum, err := p.LoadTransactions(ctx, ds.Transactions)
	sum.RowsRead = ds.RowsRead
	sum.Malformed += ds.Malformed
	return sum, err
}

// LoadTransactions indexes already parsed transactions in batches.
func (p *Pipeline) LoadTransactions(ctx context.Context, txs []model.Transaction) (Summary, error) {
	sum := Summary{RowsRead: len(txs)}
	reporter := progress.OrNop(p.opts.Progress)
	reporter.Start(len(txs))
	defer reporter.Finish()

	if len(p.excluded) > 0 {
		p.log.Info("excluding categories", zap.Strings("categories", p.opts.Excluded))
	}

	for start := 0; start < len(txs); start += p.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		end := min(start+p.opts.BatchSize, len(txs))

		var (
			documents []string
			metadatas []vectordb.RecordMetadata
			ids       []string
		)
		for _, tx := range txs[start:end] {
			switch {
			case tx.Category == "":
				sum.SkippedEmpty++
				continue
			case p.excluded[tx.Category]:
				sum.SkippedExcluded++
				continue
			}
			doc, md := Record(tx, p.opts.Composer)
			documents = append(documents, doc)
			metadatas = append(metadatas, md)
			ids = append(ids, uuid.New().String())
		}

		if len(documents) > 0 {
			if err := p.store.Upsert(ctx, documents, metadatas, ids); err != nil {
				return sum, fmt.Errorf("indexing rows %d-%d: %w", start+1, end, err)
			}
			sum.Indexed += len(documents)
			sum.Batches++
		}

		p.log.Debug("batch indexed", zap.Int("processed", end), zap.Int("total", len(txs)), zap.Int("indexed", len(documents)))
		reporter.Update(end, fmt.Sprintf("Processed %d/%d records", end, len(txs)))
	}

	p.log.Info("dataset loaded",
		zap.Int("indexed", sum.Indexed),
		zap.Int("skipped_empty", sum.SkippedEmpty),
		zap.Int("skipped_excluded", sum.SkippedExcluded),
		zap.Int("batches", sum.Batches),
	)
	return sum, nil
}

// Record builds the document text and metadata stored for tx.
func Record(tx model.Transaction, composer predictor.Composer) (string, vectordb.RecordMetadata) {
	doc := composer.Compose(predictor.Query{
		Merchant:      tx.Merchant,
		Product:       tx.Product,
		PaymentMethod: tx.PaymentMethod,
		Direction:     string(tx.Direction),
	})

	payTime := tx.TimeString()
	amount := tx.RawAmount
	if amount == "" && !tx.Amount.IsZero() {
		amount = tx.Amount.String()
	}
	_, size := features.AmountBucket(amount)

	return doc, vectordb.RecordMetadata{
		Category:      tx.Category,
		Merchant:      tx.Merchant,
		Product:       tx.Product,
		PaymentMethod: tx.PaymentMethod,
		PayTime:       payTime,
		Amount:        amount,
		Direction:     string(tx.Direction),
		Remark:        tx.Remark,
		TimePeriod:    string(features.TimeBucket(payTime)),
		AmountSize:    string(size),
		Channel:       string(features.PaymentChannel(tx.PaymentMethod)),
	}
}

func rowToTransaction(idx headerIndex, row []string) model.Transaction {
	rawTime := idx.get(row, colTime)
	tx := model.Transaction{
		RawTime:       rawTime,
		Category:      idx.get(row, colCategory),
		Direction:     model.ParseDirection(idx.get(row, colDirection)),
		PaymentMethod: idx.get(row, colPaymentMethod),
		Merchant:      idx.get(row, colMerchant),
		Product:       idx.get(row, colProduct),
		Remark:        idx.get(row, colRemark),
	}
	if t, ok := model.ParseTime(rawTime); ok {
		tx.Time = t
	}
	tx.RawAmount = idx.get(row, colAmount)
	if a, ok := model.ParseAmount(tx.RawAmount); ok {
		tx.Amount = a
	}
	return tx
}

// String renders s on one line for logs and CLI output.
func (s Summary) String() string {
	return fmt.Sprintf("read %d, indexed %d, skipped %d (empty %d, excluded %d, malformed %d)",
		s.RowsRead, s.Indexed, s.Skipped(), s.SkippedEmpty, s.SkippedExcluded, s.Malformed)
}
