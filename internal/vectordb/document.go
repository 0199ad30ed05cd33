package vectordb

// Document is one labelled transaction as stored in the index.
type Document struct {
	ID       string
	Content  string
	Metadata RecordMetadata
}

// RecordMetadata holds the attributes stored next to each document. Values
// are kept as the strings they were read as.
type RecordMetadata struct {
	Category      string // never empty for stored records
	Merchant      string
	Product       string
	PaymentMethod string
	PayTime       string
	Amount        string
	Direction     string
	Remark        string
	TimePeriod    string
	AmountSize    string
	Channel       string
}

// Match pairs a stored document with its cosine similarity to the query.
type Match struct {
	Document   Document
	Similarity float32
}

// SearchFilter narrows a query by exact metadata values.
type SearchFilter struct {
	Category  *string
	Direction *string
}
