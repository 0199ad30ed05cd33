package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/ziadkadry99/bookkeeper/internal/bills"
	"github.com/ziadkadry99/bookkeeper/internal/engine"
	"github.com/ziadkadry99/bookkeeper/internal/errortypes"
	"github.com/ziadkadry99/bookkeeper/internal/model"
	"github.com/ziadkadry99/bookkeeper/internal/report"
)

// billRow is one bill line as exchanged with clients, keyed by the column
// names of the exported CSV.
type billRow struct {
	Time          string   `json:"交易时间"`
	Category      string   `json:"类型"`
	Amount        string   `json:"金额(元)"`
	Direction     string   `json:"收/支"`
	PaymentMethod string   `json:"支付方式"`
	Merchant      string   `json:"交易对方"`
	Product       string   `json:"商品名称"`
	Remark        string   `json:"备注"`
	Confidence    *float64 `json:"分类置信度,omitempty"`
}

func toBillRows(rows []bills.Row) []billRow {
	out := make([]billRow, len(rows))
	for i, r := range rows {
		out[i] = billRow{
			Time:          r.TimeString(),
			Category:      r.Category,
			Amount:        r.Amount.StringFixed(2),
			Direction:     string(r.Direction),
			PaymentMethod: r.PaymentMethod,
			Merchant:      r.Merchant,
			Product:       r.Product,
			Remark:        r.Remark,
		}
		if r.Confidence >= 0 {
			c := r.Confidence
			out[i].Confidence = &c
		}
	}
	return out
}

func (b billRow) row() bills.Row {
	tx := model.Transaction{
		RawTime:       b.Time,
		Category:      b.Category,
		RawAmount:     b.Amount,
		Direction:     model.ParseDirection(b.Direction),
		PaymentMethod: b.PaymentMethod,
		Merchant:      b.Merchant,
		Product:       b.Product,
		Remark:        b.Remark,
	}
	if t, ok := model.ParseTime(b.Time); ok {
		tx.Time = t
	}
	if a, ok := model.ParseAmount(b.Amount); ok {
		tx.Amount = a
	}
	row := bills.Row{Transaction: tx, Confidence: -1}
	if b.Confidence != nil {
		row.Confidence = *b.Confidence
	}
	return row
}

// processedBill is the response of /upload and /merge and the body of
// /export and /report.
type processedBill struct {
	Rows  []billRow       `json:"processed_data"`
	Stats *report.Summary `json:"stats,omitempty"`
}

func (p processedBill) rows() []bills.Row {
	rows := make([]bills.Row, len(p.Rows))
	for i, b := range p.Rows {
		rows[i] = b.row()
	}
	return rows
}

func (p processedBill) transactions() []model.Transaction {
	txs := make([]model.Transaction, len(p.Rows))
	for i, b := range p.Rows {
		txs[i] = b.row().Transaction
	}
	return txs
}

func (s *Server) readForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		return errortypes.ValidationError(err, "reading multipart form")
	}
	return nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// classify predicts missing categories and responds with the rows and
// their statistics.
func (s *Server) classify(w http.ResponseWriter, r *http.Request, txs []model.Transaction) {
	classified, err := s.engine.Classify(r.Context(), txs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	labelled := make([]model.Transaction, len(classified))
	for i, c := range classified {
		labelled[i] = c.Transaction
	}
	stats := report.Calculate(labelled)
	writeJSON(w, http.StatusOK, processedBill{
		Rows:  toBillRows(engine.BillRows(classified)),
		Stats: &stats,
	})
}

// handleUpload classifies a single Alipay, WeChat or merged bill sent as
// the multipart field "file".
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.readForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 || files[0].Filename == "" {
		writeMessage(w, http.StatusBadRequest, "no file uploaded")
		return
	}

	data, err := readUpload(files[0])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res := bills.Parse(data)
	if !res.OK() {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("%s: %s: %v", files[0].Filename, res.Outcome, res.Err))
		return
	}
	s.classify(w, r, res.Transactions)
}

// handleMerge merges every bill in the multipart field "files" and
// classifies the result. Files that cannot be parsed are skipped.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if err := s.readForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 || files[0].Filename == "" {
		writeMessage(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	var statements [][]model.Transaction
	for _, fh := range files {
		data, err := readUpload(fh)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		res := bills.Parse(data)
		if !res.OK() {
			s.log.Warn("skipping bill", zap.String("file", fh.Filename), zap.Stringer("outcome", res.Outcome), zap.Error(res.Err))
			continue
		}
		statements = append(statements, res.Transactions)
	}

	merged := bills.Merge(statements...)
	if len(merged) == 0 {
		writeMessage(w, http.StatusBadRequest, "none of the uploaded files could be parsed as a bill")
		return
	}
	s.classify(w, r, merged)
}

func (s *Server) decodeProcessed(w http.ResponseWriter, r *http.Request) (processedBill, bool) {
	var body processedBill
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return body, false
	}
	if body.Rows == nil {
		writeMessage(w, http.StatusBadRequest, "processed_data is required")
		return body, false
	}
	return body, true
}

// handleExport returns processed rows as a downloadable CSV file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeProcessed(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := bills.WriteCSV(&buf, body.rows()); err != nil {
		s.writeError(w, r, fmt.Errorf("exporting bill: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="processed_bill.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// handleReport renders the statistics of processed rows as an HTML page.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeProcessed(w, r)
	if !ok {
		return
	}

	page, err := report.RenderHTML(report.Calculate(body.transactions()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, page)
}
