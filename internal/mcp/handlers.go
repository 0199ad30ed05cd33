package mcp

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/bookkeeper/internal/model"
	"github.com/ziadkadry99/bookkeeper/internal/predictor"
	"github.com/ziadkadry99/bookkeeper/internal/vectordb"
)

// handlePredictCategory classifies one transaction.
func (s *Server) handlePredictCategory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	merchant, err := request.RequireString("merchant")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: merchant"), nil
	}
	product, err := request.RequireString("product")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: product"), nil
	}

	params := s.engine.Params()
	if p := request.GetString("policy", ""); p != "" {
		policy, err := predictor.ParsePolicy(p)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		params.Policy = policy
	}
	params.TopK = request.GetInt("top_k", params.TopK)
	params.Threshold = request.GetFloat("threshold", params.Threshold)

	pred, err := s.engine.PredictWith(ctx, predictor.Query{
		Merchant:      merchant,
		Product:       product,
		PaymentMethod: request.GetString("payment_method", ""),
		Direction:     request.GetString("direction", ""),
	}, params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("prediction failed: %v", err)), nil
	}

	text := fmt.Sprintf("No category found for %s:%s (confidence %.4f).", merchant, product, pred.Confidence)
	if pred.Found() {
		text = fmt.Sprintf("Category: %s\nConfidence: %.4f\nPolicy: %s", pred.Category, pred.Confidence, params.Policy)
	}
	return mcp.NewToolResultStructured(pred, text), nil
}

// handleSearchSimilar lists the nearest labelled records.
func (s *Server) handleSearchSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	merchant, err := request.RequireString("merchant")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: merchant"), nil
	}

	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	var filter *vectordb.SearchFilter
	category := request.GetString("category", "")
	direction := request.GetString("direction", "")
	if category != "" || direction != "" {
		filter = &vectordb.SearchFilter{}
		if category != "" {
			filter.Category = &category
		}
		if direction != "" {
			filter.Direction = &direction
		}
	}

	pred, err := s.engine.Predictor()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("opening index: %v", err)), nil
	}
	store, err := s.engine.Store()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("opening index: %v", err)), nil
	}

	doc := pred.Composer().Compose(predictor.Query{
		Merchant: merchant,
		Product:  request.GetString("product", ""),
	})
	matches, err := store.Search(ctx, doc, limit, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(matches) == 0 {
		return mcp.NewToolResultText("No similar transactions found. The index may be empty; run `bookkeeper train` to build it."), nil
	}
	return mcp.NewToolResultText(vectordb.FormatMatches(matches)), nil
}

// handleListCategories lists the categories in the index.
func (s *Server) handleListCategories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	categories, err := s.engine.ListCategories(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing categories: %v", err)), nil
	}
	if len(categories) == 0 {
		return mcp.NewToolResultText("The index has no categories yet."), nil
	}
	return mcp.NewToolResultText(strings.Join(categories, "\n")), nil
}

// handleIndexStats reports the record count per category.
func (s *Server) handleIndexStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.engine.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reading stats: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Collection: %s\nTotal records: %d\n", s.engine.Collection(), stats.TotalRecords)
	categories := make([]string, 0, len(stats.CategoryCounts))
	for c := range stats.CategoryCounts {
		categories = append(categories, c)
	}
	// Largest first, ties by name.
	slices.SortFunc(categories, func(a, b string) int {
		if c := cmp.Compare(stats.CategoryCounts[b], stats.CategoryCounts[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	for _, c := range categories {
		fmt.Fprintf(&sb, "- %s: %d\n", c, stats.CategoryCounts[c])
	}
	return mcp.NewToolResultStructured(stats, sb.String()), nil
}

// handleAddRecord indexes one labelled transaction.
func (s *Server) handleAddRecord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var missing []string
	fields := map[string]string{}
	for _, name := range []string{"merchant", "product", "category"} {
		v, err := request.RequireString(name)
		if err != nil || strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
		fields[name] = v
	}
	if len(missing) > 0 {
		return mcp.NewToolResultError("missing required parameter: " + strings.Join(missing, ", ")), nil
	}

	tx := model.Transaction{
		Merchant:      fields["merchant"],
		Product:       fields["product"],
		Category:      fields["category"],
		RawTime:       request.GetString("time", ""),
		RawAmount:     request.GetString("amount", ""),
		PaymentMethod: request.GetString("payment_method", ""),
		Direction:     model.ParseDirection(request.GetString("direction", "")),
	}
	if t, ok := model.ParseTime(tx.RawTime); ok {
		tx.Time = t
	}
	if a, ok := model.ParseAmount(tx.RawAmount); ok {
		tx.Amount = a
	}

	if err := s.engine.AddRecord(ctx, tx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("adding record: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Added %s:%s as %s.", tx.Merchant, tx.Product, tx.Category)), nil
}
