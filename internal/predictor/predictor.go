// Package predictor assigns a spending category to a transaction by voting
// over its nearest labelled neighbours in the vector index.
package predictor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ziadkadry99/bookkeeper/internal/errortypes"
	"github.com/ziadkadry99/bookkeeper/internal/vectordb"
)

// Query is the transaction to classify.
type Query struct {
	Merchant      string `json:"merchant"`
	Product       string `json:"product"`
	PaymentMethod string `json:"payment_method,omitempty"`
	Direction     string `json:"direction,omitempty"`
}

// Neighbor is one labelled record near the query.
type Neighbor struct {
	Category   string  `json:"category"`
	Similarity float64 `json:"similarity"`
	Document   string  `json:"document"`
}

// Prediction is the outcome of one classification. An empty Category
// means no category could be assigned.
type Prediction struct {
	Category   string
	Confidence float64
	Source     string
}

// Found reports whether a category was assigned.
func (p Prediction) Found() bool {
	return p.Category != ""
}

// MarshalJSON encodes an absent category as null.
func (p Prediction) MarshalJSON() ([]byte, error) {
	var category *string
	if p.Category != "" {
		category = &p.Category
	}
	return json.Marshal(struct {
		Category   *string `json:"category"`
		Confidence float64 `json:"confidence"`
		Source     string  `json:"source"`
	}{category, p.Confidence, p.Source})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (p *Prediction) UnmarshalJSON(data []byte) error {
	var raw struct {
		Category   *string `json:"category"`
		Confidence float64 `json:"confidence"`
		Source     string  `json:"source"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Category = ""
	if raw.Category != nil {
		p.Category = *raw.Category
	}
	p.Confidence = raw.Confidence
	p.Source = raw.Source
	return nil
}

// Searcher is the part of the vector index the predictor reads from.
type Searcher interface {
	Query(ctx context.Context, document string, k int) ([]vectordb.Match, error)
}

// Params controls a single prediction.
type Params struct {
	Policy    Policy
	TopK      int
	Threshold float64

	// RequireThreshold withholds the category when the final confidence
	// is below Threshold, reporting the confidence alone.
	RequireThreshold bool
}

// Validate checks that p describes a usable prediction.
func (p Params) Validate() error {
	if _, err := ParsePolicy(string(p.Policy)); err != nil {
		return errortypes.ValidationError(err, "invalid policy")
	}
	if p.TopK < 1 {
		return errortypes.ValidationError(fmt.Errorf("top_k = %d", p.TopK), "top_k must be at least 1")
	}
	if p.Threshold < 0 || p.Threshold > 1 {
		return errortypes.ValidationError(fmt.Errorf("threshold = %v", p.Threshold), "threshold must be within [0, 1]")
	}
	return nil
}

// Predictor classifies transactions against a Searcher.
type Predictor struct {
	index    Searcher
	composer Composer
	defaults Params
	source   string
}

// New creates a Predictor. source names the collection in every
// Prediction.
func New(index Searcher, composer Composer, defaults Params, source string) (*Predictor, error) {
	if defaults.Policy == "" {
		defaults.Policy = DefaultPolicy
	}
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	return &Predictor{
		index:    index,
		composer: composer,
		defaults: defaults,
		source:   source,
	}, nil
}

// Defaults returns the parameters used by Predict.
func (p *Predictor) Defaults() Params {
	return p.defaults
}

// Composer returns the document composer.
func (p *Predictor) Composer() Composer {
	return p.composer
}

// Neighbors returns up to k labelled records nearest to q.
func (p *Predictor) Neighbors(ctx context.Context, q Query, k int) ([]Neighbor, error) {
	matches, err := p.index.Query(ctx, p.composer.Compose(q), k)
	if err != nil {
		return nil, err
	}
	neighbors := make([]Neighbor, len(matches))
	for i, m := range matches {
		neighbors[i] = Neighbor{
			Category:   m.Document.Metadata.Category,
			Similarity: float64(m.Similarity),
			Document:   m.Document.Content,
		}
	}
	return neighbors, nil
}

// Predict classifies q with the default parameters.
func (p *Predictor) Predict(ctx context.Context, q Query) (Prediction, error) {
	return p.PredictWith(ctx, q, p.defaults)
}

// PredictWith classifies q with explicit parameters.
func (p *Predictor) PredictWith(ctx context.Context, q Query, params Params) (Prediction, error) {
	if params.Policy == "" {
		params.Policy = p.defaults.Policy
	}
	if err := params.Validate(); err != nil {
		return Prediction{}, err
	}

	k := params.TopK
	if params.Policy == PolicySingleNearest {
		k = 1
	}

	neighbors, err := p.Neighbors(ctx, q, k)
	if err != nil {
		return Prediction{}, fmt.Errorf("searching neighbours: %w", err)
	}

	category, confidence := Vote(params.Policy, neighbors, params.Threshold, k)
	if params.RequireThreshold && confidence < params.Threshold {
		category = ""
	}

	return Prediction{
		Category:   category,
		Confidence: confidence,
		Source:     p.source,
	}, nil
}
