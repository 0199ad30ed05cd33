package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/bookkeeper/internal/embeddings"
	"github.com/ziadkadry99/bookkeeper/internal/engine"
	"github.com/ziadkadry99/bookkeeper/internal/predictor"
	"github.com/ziadkadry99/bookkeeper/internal/textnorm"
)

const dataset = `交易时间,类型,金额(元),收/支,支付方式,交易对方,商品名称,备注
2024-03-01 08:15:00,餐饮,32.00,支出,零钱,星巴克,拿铁咖啡,
2024-03-02 08:20:00,餐饮,30.00,支出,零钱,星巴克,拿铁咖啡,
2024-03-02 22:10:00,交通,48.00,支出,花呗,滴滴出行,快车,
2024-03-15 10:00:00,工资,12000.00,收入,工资卡,公司,工资,
`

func newTestEngine(t *testing.T, trained bool) *engine.Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := os.WriteFile(path, []byte(dataset), 0o644); err != nil {
		t.Fatal(err)
	}
	eng := engine.New(engine.Config{
		Embedder:    embeddings.NewHashEmbedder(128),
		Normalizer:  textnorm.Normalizer{StripLongDigits: true},
		Params:      predictor.Params{Policy: predictor.PolicyBestOfFilteredVote, TopK: 10, Threshold: 0.7},
		DatasetPath: path,
	})
	if trained {
		if res := eng.Train(context.Background(), ""); !res.Success {
			t.Fatalf("training failed: %s", res.Message)
		}
	}
	return eng
}

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	text, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("first content is %T, want text", result.Content[0])
	}
	return text.Text
}

func TestToolDefinitions(t *testing.T) {
	// Verify tool names and required properties.
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"predict_category", predictCategoryTool, "predict_category"},
		{"search_similar", searchSimilarTool, "search_similar"},
		{"list_categories", listCategoriesTool, "list_categories"},
		{"index_stats", indexStatsTool, "index_stats"},
		{"add_record", addRecordTool, "add_record"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	eng := newTestEngine(t, false)
	srv := NewServer(eng)

	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
	if srv.engine != eng {
		t.Error("engine not set correctly")
	}
	if eng.Initialized() {
		t.Error("creating the server must not open the index")
	}
}

func TestHandlePredictCategory(t *testing.T) {
	srv := NewServer(newTestEngine(t, true))
	ctx := context.Background()

	t.Run("known merchant", func(t *testing.T) {
		result, err := srv.handlePredictCategory(ctx, call(map[string]any{
			"merchant": "星巴克",
			"product":  "拿铁咖啡",
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		if text := resultText(t, result); !strings.Contains(text, "Category: 餐饮") {
			t.Errorf("unexpected text: %s", text)
		}
	})

	t.Run("policy override", func(t *testing.T) {
		result, err := srv.handlePredictCategory(ctx, call(map[string]any{
			"merchant":  "完全陌生",
			"product":   "东西",
			"policy":    "single_nearest_threshold",
			"threshold": 1.0,
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text := resultText(t, result); !strings.HasPrefix(text, "No category found") {
			t.Errorf("unexpected text: %s", text)
		}
	})

	t.Run("invalid policy", func(t *testing.T) {
		result, _ := srv.handlePredictCategory(ctx, call(map[string]any{
			"merchant": "a", "product": "b", "policy": "majority",
		}))
		if !result.IsError {
			t.Error("expected error for unknown policy")
		}
	})

	t.Run("missing product", func(t *testing.T) {
		result, err := srv.handlePredictCategory(ctx, call(map[string]any{"merchant": "星巴克"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for missing product")
		}
	})
}

func TestHandleSearchSimilar(t *testing.T) {
	srv := NewServer(newTestEngine(t, true))
	ctx := context.Background()

	result, err := srv.handleSearchSimilar(ctx, call(map[string]any{
		"merchant": "星巴克",
		"product":  "拿铁咖啡",
		"limit":    2,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "1. [餐饮] 星巴克:拿铁咖啡") {
		t.Errorf("unexpected results:\n%s", text)
	}
	if strings.Contains(text, "3. [") {
		t.Errorf("limit not applied:\n%s", text)
	}

	result, _ = srv.handleSearchSimilar(ctx, call(map[string]any{
		"merchant":  "星巴克",
		"direction": "收入",
	}))
	if text := resultText(t, result); !strings.Contains(text, "[工资]") || strings.Contains(text, "[餐饮]") {
		t.Errorf("direction filter not applied:\n%s", text)
	}

	empty := NewServer(newTestEngine(t, false))
	result, _ = empty.handleSearchSimilar(ctx, call(map[string]any{"merchant": "星巴克"}))
	if result.IsError {
		t.Error("empty results should not be an error")
	}
}

func TestHandleListCategoriesAndStats(t *testing.T) {
	srv := NewServer(newTestEngine(t, true))
	ctx := context.Background()

	result, err := srv.handleListCategories(ctx, call(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resultText(t, result); got != "交通\n工资\n餐饮" {
		t.Errorf("categories = %q", got)
	}

	result, err = srv.handleIndexStats(ctx, call(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Total records: 4") {
		t.Errorf("missing total:\n%s", text)
	}
	if !strings.Contains(text, "- 餐饮: 2\n- 交通: 1") {
		t.Errorf("categories not ordered by count:\n%s", text)
	}
}

func TestHandleAddRecord(t *testing.T) {
	eng := newTestEngine(t, false)
	srv := NewServer(eng)
	ctx := context.Background()

	result, err := srv.handleAddRecord(ctx, call(map[string]any{
		"merchant": "瑞幸咖啡",
		"product":  "生椰拿铁",
		"category": "餐饮",
		"amount":   "9.9",
		"time":     "2024-03-01 08:15:00",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}

	stats, err := eng.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.CategoryCounts["餐饮"] != 1 {
		t.Errorf("record not indexed: %+v", stats)
	}

	result, _ = srv.handleAddRecord(ctx, call(map[string]any{"merchant": "a", "product": "b"}))
	if !result.IsError || !strings.Contains(resultText(t, result), "category") {
		t.Error("expected error for missing category")
	}
}
