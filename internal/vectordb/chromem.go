package vectordb

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/bookkeeper/internal/embeddings"
	"github.com/ziadkadry99/bookkeeper/internal/errortypes"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "bookkeeping-vector-db"

// ChromemStore implements VectorStore using chromem-go.
type ChromemStore struct {
	db        *chromem.DB
	name      string
	embedder  embeddings.Embedder
	embedFunc chromem.EmbeddingFunc

	// mu guards collection, which Clear replaces.
	mu         sync.RWMutex
	collection *chromem.Collection
}

// NewChromemStore opens the collection stored under dir, creating it when
// missing. An empty dir keeps everything in memory. The embedder must
// produce unit-length vectors; embeddings.Provider does.
func NewChromemStore(dir, collection string, embedder embeddings.Embedder) (*ChromemStore, error) {
	if collection == "" {
		collection = DefaultCollection
	}

	var db *chromem.DB
	if dir == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, errortypes.IndexError(err, fmt.Sprintf("opening vector index at %s", dir))
		}
	}

	ef := embeddings.ToChromemFunc(embedder)
	col, err := db.GetOrCreateCollection(collection, nil, ef)
	if err != nil {
		return nil, errortypes.IndexError(err, fmt.Sprintf("creating collection %s", collection))
	}

	return &ChromemStore{
		db:         db,
		name:       collection,
		embedder:   embedder,
		embedFunc:  ef,
		collection: col,
	}, nil
}

// Name returns the collection name.
func (s *ChromemStore) Name() string {
	return s.name
}

func (s *ChromemStore) current() *chromem.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}

func (s *ChromemStore) Upsert(ctx context.Context, documents []string, metadatas []RecordMetadata, ids []string) error {
	if len(documents) != len(metadatas) || (ids != nil && len(ids) != len(documents)) {
		return errortypes.ValidationError(
			fmt.Errorf("got %d documents, %d metadatas, %d ids", len(documents), len(metadatas), len(ids)),
			"upsert arguments must have equal length",
		)
	}
	if len(documents) == 0 {
		return nil
	}

	vectors, err := s.embedder.Embed(ctx, documents)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(documents))
	for i, content := range documents {
		id := ""
		if ids != nil {
			id = ids[i]
		}
		if id == "" {
			id = uuid.New().String()
		}
		docs[i] = chromem.Document{
			ID:        id,
			Content:   content,
			Metadata:  metadataToMap(metadatas[i]),
			Embedding: vectors[i],
		}
	}

	if err := s.current().AddDocuments(ctx, docs, 1); err != nil {
		return errortypes.IndexError(err, "storing documents")
	}
	return nil
}

func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) error {
	documents := make([]string, len(docs))
	metadatas := make([]RecordMetadata, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		documents[i] = doc.Content
		metadatas[i] = doc.Metadata
		ids[i] = doc.ID
	}
	return s.Upsert(ctx, documents, metadatas, ids)
}

func (s *ChromemStore) Query(ctx context.Context, document string, k int) ([]Match, error) {
	return s.Search(ctx, document, k, nil)
}

func (s *ChromemStore) Search(ctx context.Context, document string, k int, filter *SearchFilter) ([]Match, error) {
	if k <= 0 {
		return nil, errortypes.ValidationError(fmt.Errorf("k = %d", k), "k must be positive")
	}

	col := s.current()

	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return []Match{}, nil
	}
	// chromem-go itself trims the result when a filter matches fewer.
	k = min(k, count)

	vectors, err := s.embedder.Embed(ctx, []string{document})
	if err != nil {
		return nil, err
	}

	results, err := col.QueryEmbedding(ctx, vectors[0], k, buildWhereClause(filter), nil)
	if err != nil {
		return nil, errortypes.IndexError(err, "querying vector index")
	}

	return toMatches(results), nil
}

func (s *ChromemStore) GetAll(ctx context.Context) ([]RecordMetadata, error) {
	col := s.current()
	count := col.Count()
	if count == 0 {
		return []RecordMetadata{}, nil
	}

	dims := s.embedder.Dimensions()
	if dims < 1 {
		return nil, errortypes.IndexError(nil, fmt.Sprintf("embedder %s reports no dimensions", s.embedder.Name()))
	}
	// Ask for every record with a fixed axis vector so a scan never needs
	// the embedding backend; similarity order is irrelevant here.
	axis := make([]float32, dims)
	axis[0] = 1

	results, err := col.QueryEmbedding(ctx, axis, count, nil, nil)
	if err != nil {
		return nil, errortypes.IndexError(err, "scanning vector index")
	}

	out := make([]RecordMetadata, len(results))
	for i, r := range results {
		out[i] = mapToMetadata(r.Metadata)
	}
	return out, nil
}

func (s *ChromemStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.name); err != nil {
		return errortypes.IndexError(err, fmt.Sprintf("deleting collection %s", s.name))
	}
	col, err := s.db.GetOrCreateCollection(s.name, nil, s.embedFunc)
	if err != nil {
		return errortypes.IndexError(err, fmt.Sprintf("recreating collection %s", s.name))
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Count() int {
	return s.current().Count()
}

func toMatches(results []chromem.Result) []Match {
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: mapToMetadata(r.Metadata),
			},
			Similarity: r.Similarity,
		}
	}
	return matches
}

// Metadata keys as stored on disk.
const (
	keyCategory      = "type"
	keyMerchant      = "merchant"
	keyProduct       = "product"
	keyPaymentMethod = "pay_type"
	keyPayTime       = "pay_time"
	keyAmount        = "amount"
	keyDirection     = "i_o"
	keyRemark        = "remark"
	keyTimePeriod    = "time_period"
	keyAmountSize    = "amount_size"
	keyChannel       = "pay_channel"
)

// metadataToMap converts RecordMetadata to a flat map[string]string for chromem.
func metadataToMap(m RecordMetadata) map[string]string {
	return map[string]string{
		keyCategory:      m.Category,
		keyMerchant:      m.Merchant,
		keyProduct:       m.Product,
		keyPaymentMethod: m.PaymentMethod,
		keyPayTime:       m.PayTime,
		keyAmount:        m.Amount,
		keyDirection:     m.Direction,
		keyRemark:        m.Remark,
		keyTimePeriod:    m.TimePeriod,
		keyAmountSize:    m.AmountSize,
		keyChannel:       m.Channel,
	}
}

// mapToMetadata converts a flat map[string]string back to RecordMetadata.
func mapToMetadata(m map[string]string) RecordMetadata {
	return RecordMetadata{
		Category:      m[keyCategory],
		Merchant:      m[keyMerchant],
		Product:       m[keyProduct],
		PaymentMethod: m[keyPaymentMethod],
		PayTime:       m[keyPayTime],
		Amount:        m[keyAmount],
		Direction:     m[keyDirection],
		Remark:        m[keyRemark],
		TimePeriod:    m[keyTimePeriod],
		AmountSize:    m[keyAmountSize],
		Channel:       m[keyChannel],
	}
}

// buildWhereClause converts a SearchFilter to a chromem where clause.
func buildWhereClause(filter *SearchFilter) map[string]string {
	if filter == nil {
		return nil
	}

	where := make(map[string]string)
	if filter.Category != nil {
		where[keyCategory] = *filter.Category
	}
	if filter.Direction != nil {
		where[keyDirection] = *filter.Direction
	}

	if len(where) == 0 {
		return nil
	}
	return where
}
