package bills

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ziadkadry99/bookkeeper/internal/model"
)

// Columns is the header written by WriteCSV.
var Columns = []string{"交易时间", "类型", "金额(元)", "收/支", "支付方式", "交易对方", "商品名称", "备注", "分类置信度"}

// Merge concatenates statements, sorts the result by time and drops rows
// that count as neither income nor expense. The sort is stable.
func Merge(statements ...[]model.Transaction) []model.Transaction {
	var merged []model.Transaction
	for _, s := range statements {
		for _, tx := range s {
			if tx.Direction == model.DirectionNotCounted {
				continue
			}
			merged = append(merged, tx)
		}
	}
	slices.SortStableFunc(merged, func(a, b model.Transaction) int {
		return a.Time.Compare(b.Time)
	})
	return merged
}

// Row is one exported bill line. A negative Confidence is written as an
// empty cell.
type Row struct {
	model.Transaction
	Confidence float64
}

// Rows wraps transactions that carry no confidence.
func Rows(txs []model.Transaction) []Row {
	rows := make([]Row, len(txs))
	for i, tx := range txs {
		rows[i] = Row{Transaction: tx, Confidence: -1}
	}
	return rows
}

// WriteCSV writes rows as UTF-8 with a byte order mark, so spreadsheet
// programs detect the encoding.
func WriteCSV(w io.Writer, rows []Row) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return fmt.Errorf("writing bill: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing bill header: %w", err)
	}
	for _, r := range rows {
		confidence := ""
		if r.Confidence >= 0 {
			confidence = strconv.FormatFloat(r.Confidence, 'f', 4, 64)
		}
		amount := r.Amount.StringFixed(2)
		if _, ok := model.ParseAmount(r.RawAmount); r.RawAmount != "" && !ok {
			amount = r.RawAmount
		}
		record := []string{
			r.TimeString(),
			r.Category,
			amount,
			string(r.Direction),
			r.PaymentMethod,
			r.Merchant,
			r.Product,
			r.Remark,
			confidence,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing bill row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func isMergedHeader(line string) bool {
	return strings.HasPrefix(line, "交易时间,类型,")
}

// parseMerged reads a bill written by WriteCSV, so merged bills can be
// classified again.
func parseMerged(text string) Result {
	res := Result{Format: FormatMerged}

	cols, rows, err := readTable(text)
	if err != nil {
		res.Outcome = MalformedFormat
		res.Err = fmt.Errorf("merged bill: %w", err)
		return res
	}
	if err := cols.require("交易时间", "类型", "交易对方", "商品名称"); err != nil {
		res.Outcome = MalformedFormat
		res.Err = fmt.Errorf("merged bill: %w", err)
		return res
	}

	for _, row := range rows {
		category := field(row, cols["类型"])
		if category == model.Uncategorized {
			category = ""
		}
		tx, ok := buildTransaction(
			field(row, cols["交易时间"]),
			field(row, cols["交易对方"]),
			field(row, cols["商品名称"]),
			field(row, cols.first("收/支")),
			field(row, cols.first("金额(元)")),
			field(row, cols.first("支付方式")),
			field(row, cols.first("备注")),
			category,
		)
		if !ok {
			res.Skipped++
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}
	res.Outcome = ParsedOK
	return res
}

// Discover expands glob patterns, including "**", into a sorted list of
// distinct files. A pattern without glob characters is returned as is.
func Discover(patterns ...string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pattern, err)
		}
		if len(matches) == 0 && !strings.ContainsAny(pattern, "*?[{") {
			matches = []string{pattern}
		}
		for _, m := range matches {
			m = filepath.Clean(m)
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	slices.Sort(files)
	return files, nil
}
