package vectordb

import "context"

// VectorStore persists labelled transaction documents and answers
// nearest-neighbour queries over them.
type VectorStore interface {
	// Upsert embeds documents in one batch and stores them with their
	// metadata. All slices must have equal length; ids may be nil.
	Upsert(ctx context.Context, documents []string, metadatas []RecordMetadata, ids []string) error

	// AddDocuments is Upsert for prepared documents.
	AddDocuments(ctx context.Context, docs []Document) error

	// Query returns up to k documents nearest to the given document text,
	// most similar first.
	Query(ctx context.Context, document string, k int) ([]Match, error)

	// Search is Query narrowed by metadata.
	Search(ctx context.Context, document string, k int, filter *SearchFilter) ([]Match, error)

	// GetAll returns the metadata of every stored record.
	GetAll(ctx context.Context) ([]RecordMetadata, error)

	// Clear deletes every record.
	Clear(ctx context.Context) error

	// Count returns the total number of records in the store.
	Count() int
}
