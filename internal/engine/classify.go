package engine

import (
	"context"
	"fmt"

	"github.com/ziadkadry99/bookkeeper/internal/audit"
	"github.com/ziadkadry99/bookkeeper/internal/bills"
	"github.com/ziadkadry99/bookkeeper/internal/model"
	"github.com/ziadkadry99/bookkeeper/internal/predictor"
)

// ClassifiedTransaction is a bill line with the category it ended up with.
type ClassifiedTransaction struct {
	model.Transaction

	// Confidence is 1 for categories that were already present.
	Confidence float64
	// Predicted is set when Category came from the index.
	Predicted bool
}

// Classify fills in the category of every transaction that has none.
// Transactions that cannot be classified get model.Uncategorized.
func (e *Engine) Classify(ctx context.Context, txs []model.Transaction) ([]ClassifiedTransaction, error) {
	out := make([]ClassifiedTransaction, len(txs))
	predicted, unresolved := 0, 0

	for i, tx := range txs {
		if tx.Category != "" {
			out[i] = ClassifiedTransaction{Transaction: tx, Confidence: 1}
			continue
		}

		pred, err := e.Predict(ctx, predictor.Query{
			Merchant:      tx.Merchant,
			Product:       tx.Product,
			PaymentMethod: tx.PaymentMethod,
			Direction:     string(tx.Direction),
		})
		if err != nil {
			return nil, fmt.Errorf("classifying %s:%s: %w", tx.Merchant, tx.Product, err)
		}

		tx.Category = model.Uncategorized
		if pred.Found() {
			tx.Category = pred.Category
			predicted++
		} else {
			unresolved++
		}
		out[i] = ClassifiedTransaction{Transaction: tx, Confidence: pred.Confidence, Predicted: pred.Found()}
	}

	e.record(ctx, audit.Entry{
		Action:      audit.ActionBillsClassified,
		Summary:     fmt.Sprintf("Classified %d transactions", len(txs)),
		Detail:      fmt.Sprintf("predicted %d, unresolved %d, already labelled %d", predicted, unresolved, len(txs)-predicted-unresolved),
		RecordCount: len(txs),
	})
	return out, nil
}

// Classified reports whether the category went through the index, either
// predicted or left unresolved.
func (c ClassifiedTransaction) Classified() bool {
	return c.Predicted || c.Category == model.Uncategorized
}

// BillRows converts classified transactions to export rows. Rows whose
// category came from the source bill carry no confidence.
func BillRows(cts []ClassifiedTransaction) []bills.Row {
	rows := make([]bills.Row, len(cts))
	for i, c := range cts {
		rows[i] = bills.Row{Transaction: c.Transaction, Confidence: -1}
		if c.Classified() {
			rows[i].Confidence = c.Confidence
		}
	}
	return rows
}
