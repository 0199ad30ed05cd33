package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/bookkeeper/internal/audit"
	"github.com/ziadkadry99/bookkeeper/internal/db"
	"github.com/ziadkadry99/bookkeeper/internal/embeddings"
	"github.com/ziadkadry99/bookkeeper/internal/engine"
	"github.com/ziadkadry99/bookkeeper/internal/metrics"
	"github.com/ziadkadry99/bookkeeper/internal/predictor"
	"github.com/ziadkadry99/bookkeeper/internal/textnorm"
)

const dataset = `交易时间,类型,金额(元),收/支,支付方式,交易对方,商品名称,备注
2024-03-01 08:15:00,餐饮,32.00,支出,零钱,星巴克,拿铁咖啡,
2024-03-02 08:20:00,餐饮,30.00,支出,零钱,星巴克,拿铁咖啡,
2024-03-02 22:10:00,交通,48.00,支出,花呗,滴滴出行,快车,
2024-03-15 10:00:00,工资,12000.00,收入,工资卡,公司,工资,
`

const wechatBill = "\ufeff微信支付账单明细\n" +
	"----------------------微信支付账单明细列表--------------------\n" +
	"交易时间,交易类型,交易对方,商品,收/支,金额(元),支付方式,当前状态,交易单号,商户单号,备注\n" +
	"2024-04-01 08:15:00,商户消费,星巴克,拿铁咖啡,支出,¥32.00,零钱,支付成功,1001,2001,/\n" +
	"2024-04-02 09:00:00,商户消费,完全陌生的店,奇怪的东西,支出,¥5.00,零钱,支付成功,1002,2002,/\n"

const mergedBill = "\ufeff交易时间,类型,金额(元),收/支,支付方式,交易对方,商品名称,备注,分类置信度\n" +
	"2024-03-20 12:00:00,购物,99.00,支出,支付宝,淘宝,衬衫,,\n"

type testEnv struct {
	srv    *Server
	engine *engine.Engine
	audit  *audit.Store
}

func newTestEnv(t *testing.T, cfg Config) testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := os.WriteFile(path, []byte(dataset), 0o644); err != nil {
		t.Fatalf("writing dataset: %v", err)
	}

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	auditStore := audit.NewStore(database)
	m := metrics.New()

	eng := engine.New(engine.Config{
		Embedder:    embeddings.NewHashEmbedder(128),
		Normalizer:  textnorm.Normalizer{StripLongDigits: true},
		Params:      predictor.Params{Policy: predictor.PolicySingleNearest, TopK: 10, Threshold: 0.9},
		DatasetPath: path,
	}, engine.WithAudit(auditStore), engine.WithMetrics(m))

	return testEnv{
		srv:    New(cfg, eng, auditStore, m, nil),
		engine: eng,
		audit:  auditStore,
	}
}

func (e testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, req)
	return w
}

func (e testEnv) train(t *testing.T) {
	t.Helper()
	if res := e.engine.Train(t.Context(), ""); !res.Success {
		t.Fatalf("training failed: %s", res.Message)
	}
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.do(t, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	env := newTestEnv(t, Config{AllowAll: true})

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := env.do(t, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, Config{Version: "1.2.3"})

	w := env.do(t, httptest.NewRequest("GET", "/status", nil))
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "running" || body["version"] != "1.2.3" {
		t.Errorf("unexpected status body: %v", body)
	}
}

func TestTrainUploadAndStats(t *testing.T) {
	env := newTestEnv(t, Config{})

	body, contentType := multipartBody(t, "dataset", map[string]string{"labelled.csv": dataset})
	req := httptest.NewRequest("POST", "/train", body)
	req.Header.Set("Content-Type", contentType)
	w := env.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("train: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result engine.TrainResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !result.Success || result.Stats == nil || result.Stats.TotalRecords != 4 {
		t.Fatalf("unexpected train result: %+v", result)
	}

	w = env.do(t, httptest.NewRequest("GET", "/categories", nil))
	var cats map[string][]string
	if err := json.Unmarshal(w.Body.Bytes(), &cats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := strings.Join(cats["categories"], ","); got != "交通,工资,餐饮" {
		t.Errorf("categories: got %s", got)
	}

	w = env.do(t, httptest.NewRequest("GET", "/stats", nil))
	var stats engine.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.CategoryCounts["餐饮"] != 2 {
		t.Errorf("stats: got %+v", stats)
	}

	// Training is recorded with the API as actor.
	entries, err := env.audit.Query(t.Context(), audit.QueryFilter{Action: audit.ActionRetrainCompleted})
	if err != nil {
		t.Fatalf("audit query: %v", err)
	}
	if len(entries) != 1 || entries[0].ActorType != audit.ActorAPI || entries[0].Dataset != "labelled.csv" {
		t.Errorf("unexpected audit entries: %+v", entries)
	}

	w = env.do(t, httptest.NewRequest("GET", "/api/audit/?action=retrain_completed", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "labelled.csv") {
		t.Errorf("audit route: %d %s", w.Code, w.Body.String())
	}
}

func TestTrainConfiguredDataset(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.do(t, httptest.NewRequest("POST", "/train", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPredict(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.train(t)

	w := env.do(t, httptest.NewRequest("POST", "/predict", strings.NewReader(`{"merchant":"星巴克","product":"拿铁咖啡"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var pred predictor.Prediction
	if err := json.Unmarshal(w.Body.Bytes(), &pred); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if pred.Category != "餐饮" || pred.Confidence < 0.99 {
		t.Errorf("unexpected prediction: %+v", pred)
	}

	// A threshold above any similarity withholds the category.
	w = env.do(t, httptest.NewRequest("POST", "/predict", strings.NewReader(`{"merchant":"完全陌生","product":"东西","policy":"single_nearest_threshold","threshold":1}`)))
	if !strings.Contains(w.Body.String(), `"category":null`) {
		t.Errorf("expected null category, got %s", w.Body.String())
	}
}

func TestPredictValidation(t *testing.T) {
	env := newTestEnv(t, Config{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing product", `{"merchant":"星巴克"}`},
		{"unknown policy", `{"merchant":"a","product":"b","policy":"majority"}`},
		{"threshold out of range", `{"merchant":"a","product":"b","threshold":1.5}`},
		{"negative top_k", `{"merchant":"a","product":"b","top_k":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, httptest.NewRequest("POST", "/predict", strings.NewReader(tt.body)))
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.train(t)

	body, contentType := multipartBody(t, "file", map[string]string{"wechat.csv": wechatBill})
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := env.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var processed processedBill
	if err := json.Unmarshal(w.Body.Bytes(), &processed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(processed.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(processed.Rows))
	}
	if processed.Rows[0].Category != "餐饮" || processed.Rows[0].Confidence == nil {
		t.Errorf("first row: %+v", processed.Rows[0])
	}
	if processed.Rows[1].Category != "未分类" {
		t.Errorf("second row should be unclassified, got %q", processed.Rows[1].Category)
	}
	if processed.Stats == nil || processed.Stats.Records != 2 || processed.Stats.TotalExpense.StringFixed(2) != "37.00" {
		t.Errorf("stats: %+v", processed.Stats)
	}
}

func TestUploadRejectsUnknownFormat(t *testing.T) {
	env := newTestEnv(t, Config{})

	body, contentType := multipartBody(t, "file", map[string]string{"notes.csv": "hello,world\n"})
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := env.do(t, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unrecognized format") {
		t.Errorf("unexpected error body: %s", w.Body.String())
	}

	w = env.do(t, httptest.NewRequest("POST", "/upload", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing form: expected 400, got %d", w.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, Config{MaxUploadBytes: 64})

	body, contentType := multipartBody(t, "file", map[string]string{"wechat.csv": wechatBill})
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := env.do(t, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMerge(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.train(t)

	body, contentType := multipartBody(t, "files", map[string]string{
		"wechat.csv": wechatBill,
		"merged.csv": mergedBill,
		"junk.txt":   "nothing to see",
	})
	req := httptest.NewRequest("POST", "/merge", body)
	req.Header.Set("Content-Type", contentType)
	w := env.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var processed processedBill
	if err := json.Unmarshal(w.Body.Bytes(), &processed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(processed.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(processed.Rows))
	}
	// Sorted by time; the merged bill's row comes first and keeps its category.
	if processed.Rows[0].Merchant != "淘宝" || processed.Rows[0].Category != "购物" || processed.Rows[0].Confidence != nil {
		t.Errorf("first row: %+v", processed.Rows[0])
	}

	body, contentType = multipartBody(t, "files", map[string]string{"junk.txt": "nothing"})
	req = httptest.NewRequest("POST", "/merge", body)
	req.Header.Set("Content-Type", contentType)
	if w := env.do(t, req); w.Code != http.StatusBadRequest {
		t.Errorf("all unparseable: expected 400, got %d", w.Code)
	}
}

func TestExportAndReport(t *testing.T) {
	env := newTestEnv(t, Config{})
	payload := `{"processed_data":[{"交易时间":"2024-04-01 08:15:00","类型":"餐饮","金额(元)":"32","收/支":"支出","支付方式":"零钱","交易对方":"星巴克","商品名称":"拿铁咖啡","备注":"","分类置信度":0.5}]}`

	w := env.do(t, httptest.NewRequest("POST", "/export", strings.NewReader(payload)))
	if w.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "processed_bill.csv") {
		t.Errorf("missing attachment header: %v", w.Header())
	}
	want := "\ufeff交易时间,类型,金额(元),收/支,支付方式,交易对方,商品名称,备注,分类置信度\n" +
		"2024-04-01 08:15:00,餐饮,32.00,支出,零钱,星巴克,拿铁咖啡,,0.5000\n"
	if w.Body.String() != want {
		t.Errorf("export body:\n%q\nwant\n%q", w.Body.String(), want)
	}

	w = env.do(t, httptest.NewRequest("POST", "/report", strings.NewReader(payload)))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<td>餐饮</td>") {
		t.Errorf("report: %d %s", w.Code, w.Body.String())
	}

	w = env.do(t, httptest.NewRequest("POST", "/export", strings.NewReader(`{}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing processed_data: expected 400, got %d", w.Code)
	}
}

func TestTrainSocket(t *testing.T) {
	env := newTestEnv(t, Config{})
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/train", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var types []string
	var final *engine.TrainResult
	for final == nil {
		var ev trainEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v (events so far %v)", err, types)
		}
		types = append(types, ev.Type)
		if ev.Type == "result" {
			final = ev.Result
		}
	}

	if types[0] != "start" {
		t.Errorf("first event: got %s", types[0])
	}
	if !final.Success {
		t.Errorf("training over websocket failed: %s", final.Message)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.train(t)
	env.do(t, httptest.NewRequest("POST", "/predict", strings.NewReader(`{"merchant":"星巴克","product":"拿铁咖啡"}`)))

	w := env.do(t, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "bookkeeper_predictions_total") {
		t.Error("metrics output is missing bookkeeper_predictions_total")
	}
}
