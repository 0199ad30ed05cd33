package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/bookkeeper/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestLogAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entry := Entry{
		ID:          "test-1",
		ActorType:   ActorCLI,
		ActorID:     "train",
		Action:      ActionRetrainCompleted,
		Collection:  "bookkeeping-vector-db",
		Summary:     "Indexed 1200 records",
		Detail:      "read 1300, indexed 1200, skipped 100",
		Dataset:     "data/dataset.csv",
		RecordCount: 1200,
		Categories:  []string{"餐饮", "交通"},
		Duration:    1500 * time.Millisecond,
	}

	if err := store.Log(ctx, entry); err != nil {
		t.Fatalf("Log: %v", err)
	}

	got, err := store.GetByID(ctx, "test-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if got.ActorType != ActorCLI {
		t.Errorf("ActorType = %q, want %q", got.ActorType, ActorCLI)
	}
	if got.Action != ActionRetrainCompleted {
		t.Errorf("Action = %q, want %q", got.Action, ActionRetrainCompleted)
	}
	if got.Collection != "bookkeeping-vector-db" {
		t.Errorf("Collection = %q", got.Collection)
	}
	if got.Dataset != "data/dataset.csv" {
		t.Errorf("Dataset = %q, want %q", got.Dataset, "data/dataset.csv")
	}
	if got.RecordCount != 1200 {
		t.Errorf("RecordCount = %d, want 1200", got.RecordCount)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", got.Duration)
	}
	if len(got.Categories) != 2 || got.Categories[0] != "餐饮" {
		t.Errorf("Categories = %v, want [餐饮 交通]", got.Categories)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be set by the database")
	}
}

func TestLogGeneratesUUIDAndDefaults(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Log(ctx, Entry{Action: ActionIndexCleared, Summary: "Cleared"}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := store.Query(ctx, QueryFilter{Action: ActionIndexCleared})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID == "" {
		t.Error("expected generated ID, got empty string")
	}
	if entries[0].ActorType != ActorSystem {
		t.Errorf("ActorType = %q, want %q", entries[0].ActorType, ActorSystem)
	}
	if entries[0].Categories == nil || len(entries[0].Categories) != 0 {
		t.Errorf("Categories = %#v, want empty slice", entries[0].Categories)
	}
}

func TestQueryFilters(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	logs := []Entry{
		{ActorType: ActorCLI, Action: ActionRetrainCompleted, Collection: "a", Categories: []string{"餐饮"}},
		{ActorType: ActorAPI, Action: ActionRecordAdded, Collection: "a", Categories: []string{"交通"}},
		{ActorType: ActorAPI, Action: ActionRecordAdded, Collection: "b", Categories: []string{"餐饮"}},
		{ActorType: ActorMCP, Action: ActionRetrainFailed, Collection: "a"},
	}
	for _, e := range logs {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter QueryFilter
		want   int
	}{
		{"all", QueryFilter{}, 4},
		{"actor", QueryFilter{ActorType: ActorAPI}, 2},
		{"action", QueryFilter{Action: ActionRecordAdded}, 2},
		{"collection", QueryFilter{Collection: "a"}, 3},
		{"category", QueryFilter{Category: "餐饮"}, 2},
		{"combined", QueryFilter{Action: ActionRecordAdded, Collection: "b"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("got %d entries, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestQueryLimitOffset(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Log(ctx, Entry{Action: ActionRecordAdded}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("limit: got %d, want 2", len(entries))
	}

	entries, err = store.Query(ctx, QueryFilter{Offset: 3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("offset: got %d, want 2", len(entries))
	}
}

func TestLast(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	got, err := store.Last(ctx, ActionRetrainCompleted)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for empty history, got %+v", got)
	}

	for _, n := range []int{10, 20} {
		if err := store.Log(ctx, Entry{Action: ActionRetrainCompleted, RecordCount: n}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	got, err = store.Last(ctx, ActionRetrainCompleted)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if got == nil || got.RecordCount != 20 {
		t.Errorf("Last = %+v, want record count 20", got)
	}
}

func TestDeleteBefore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Log(ctx, Entry{Action: ActionRecordAdded}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	n, err := store.DeleteBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if n != 0 {
		t.Errorf("deleted %d recent entries, want 0", n)
	}

	n, err = store.DeleteBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d entries, want 1", n)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := setupStore(t)
	if _, err := store.GetByID(context.Background(), "nonexistent"); err == nil {
		t.Error("expected error for missing entry")
	}
}

func setupRouter(t *testing.T) (*chi.Mux, *Store) {
	t.Helper()
	store := setupStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)
	return r, store
}

func TestHTTPGetByID(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()

	entry := Entry{
		ID:          "http-1",
		ActorType:   ActorAPI,
		Action:      ActionRetrainCompleted,
		Collection:  "bookkeeping-vector-db",
		Summary:     "Indexed 3 records",
		RecordCount: 3,
	}
	if err := store.Log(ctx, entry); err != nil {
		t.Fatalf("Log: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/audit/http-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "http-1" {
		t.Errorf("ID = %q, want %q", got.ID, "http-1")
	}
	if got.RecordCount != 3 {
		t.Errorf("RecordCount = %d, want 3", got.RecordCount)
	}
}

func TestHTTPGetByIDNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audit/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHTTPQueryWithFilter(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()

	for _, action := range []Action{ActionRecordAdded, ActionRetrainCompleted, ActionRecordAdded} {
		if err := store.Log(ctx, Entry{ActorType: ActorAPI, Action: action}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/audit?action=record_added&limit=10", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var entries []Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 record_added entries, got %d", len(entries))
	}
}

func TestActorContext(t *testing.T) {
	if got := ActorFromContext(context.Background()); got != ActorSystem {
		t.Errorf("default actor = %q, want %q", got, ActorSystem)
	}
	ctx := WithActor(context.Background(), ActorMCP)
	if got := ActorFromContext(ctx); got != ActorMCP {
		t.Errorf("actor = %q, want %q", got, ActorMCP)
	}
}

func TestHTTPQueryBadParams(t *testing.T) {
	r, _ := setupRouter(t)

	for _, q := range []string{"since=yesterday", "limit=ten", "offset=-1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/audit?"+q, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", q, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestHTTPLatest(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/api/audit/latest/retrain_completed", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty history: status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	if err := store.Log(ctx, Entry{ID: "latest-1", Action: ActionRetrainCompleted, RecordCount: 42}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit/latest/retrain_completed", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "latest-1" || got.RecordCount != 42 {
		t.Errorf("unexpected entry %+v", got)
	}
}
