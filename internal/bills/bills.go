// Package bills reads the CSV statements exported by Alipay and WeChat Pay,
// merges them and writes the merged, classified result.
package bills

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/ziadkadry99/bookkeeper/internal/model"
)

// Format identifies where a statement came from.
type Format string

const (
	FormatUnknown Format = ""
	FormatAlipay  Format = "alipay"
	FormatWeChat  Format = "wechat"
	// FormatMerged is the layout written by WriteCSV.
	FormatMerged Format = "merged"
)

// Outcome tells whether a statement could be parsed.
type Outcome int

const (
	// ParsedOK means the format was recognized and its rows were read.
	ParsedOK Outcome = iota
	// UnrecognizedFormat means the data is not a known statement.
	UnrecognizedFormat
	// MalformedFormat means the format was recognized but its structure
	// is broken, such as a missing divider or column.
	MalformedFormat
)

func (o Outcome) String() string {
	switch o {
	case ParsedOK:
		return "parsed"
	case UnrecognizedFormat:
		return "unrecognized format"
	case MalformedFormat:
		return "malformed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is the outcome of parsing one statement.
type Result struct {
	Outcome      Outcome
	Format       Format
	Transactions []model.Transaction
	// Skipped counts rows dropped because their time could not be parsed.
	Skipped int
	// Err explains UnrecognizedFormat and MalformedFormat.
	Err error
}

// OK reports whether the statement was parsed.
func (r Result) OK() bool {
	return r.Outcome == ParsedOK
}

// ParseFile reads and parses the statement at path.
func ParseFile(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Outcome: MalformedFormat, Err: fmt.Errorf("reading %s: %w", path, err)}
	}
	return Parse(data)
}

// Parse detects the statement format from its content and parses it.
func Parse(data []byte) Result {
	text, format := Sniff(data)
	switch format {
	case FormatAlipay:
		return parseAlipay(text)
	case FormatWeChat:
		return parseWeChat(text)
	case FormatMerged:
		return parseMerged(text)
	default:
		return Result{Outcome: UnrecognizedFormat, Err: fmt.Errorf("not an Alipay, WeChat or merged bill")}
	}
}

// Sniff decodes data and detects its format. Alipay statements are GBK
// encoded; everything else is UTF-8, optionally with a byte order mark.
func Sniff(data []byte) (string, Format) {
	var text string
	if utf8.Valid(data) {
		text = strings.TrimPrefix(string(data), "\ufeff")
	} else {
		decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
		if err != nil {
			return "", FormatUnknown
		}
		text = string(decoded)
	}

	switch {
	case strings.Contains(text, "微信支付账单明细") || (hasDivider(text) && strings.Contains(text, "交易时间") && strings.Contains(text, "商品") && !strings.Contains(text, "商品名称")):
		return text, FormatWeChat
	case strings.Contains(text, "交易创建时间") || strings.Contains(text, "支付宝交易记录明细"):
		return text, FormatAlipay
	case isMergedHeader(firstLine(text)):
		return text, FormatMerged
	default:
		return text, FormatUnknown
	}
}

const dividerPrefix = "----------------------"

func hasDivider(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, dividerPrefix) {
			return true
		}
	}
	return false
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(line)
}

// columns maps header names to positions.
type columns map[string]int

func readTable(text string) (columns, [][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(columns, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading rows: %w", err)
		}
		if isBlank(row) {
			continue
		}
		rows = append(rows, row)
	}
	return cols, rows, nil
}

func (c columns) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := c[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns %s", strings.Join(missing, ", "))
	}
	return nil
}

// first returns the position of the first present name, or -1.
func (c columns) first(names ...string) int {
	for _, n := range names {
		if i, ok := c[n]; ok {
			return i
		}
	}
	return -1
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func buildTransaction(rawTime, merchant, product, direction, amount, method, remark, category string) (model.Transaction, bool) {
	t, ok := model.ParseTime(rawTime)
	if !ok {
		return model.Transaction{}, false
	}
	tx := model.Transaction{
		Time:          t,
		RawTime:       rawTime,
		Category:      category,
		RawAmount:     amount,
		Direction:     model.ParseDirection(direction),
		PaymentMethod: method,
		Merchant:      merchant,
		Product:       product,
		Remark:        remark,
	}
	if a, ok := model.ParseAmount(amount); ok {
		tx.Amount = a
	}
	return tx, true
}
