package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells whether a transaction moved money in, out, or neither.
type Direction string

const (
	DirectionIncome     Direction = "收入"
	DirectionExpense    Direction = "支出"
	DirectionNotCounted Direction = "/"
)

// ParseDirection maps the spellings used by the bill providers onto a
// Direction. Unknown values are returned unchanged.
func ParseDirection(s string) Direction {
	switch strings.TrimSpace(s) {
	case "收入", "income":
		return DirectionIncome
	case "支出", "expense":
		return DirectionExpense
	case "/", "不计收支", "not_counted", "":
		return DirectionNotCounted
	default:
		return Direction(strings.TrimSpace(s))
	}
}

// Uncategorized is written to classified bills when no category could be
// predicted.
const Uncategorized = "未分类"

// Transaction is a single bill line normalized across payment providers.
type Transaction struct {
	Time          time.Time
	RawTime       string // as it appeared in the source, kept for metadata
	Category      string
	Amount        decimal.Decimal // yuan
	RawAmount     string
	Direction     Direction
	PaymentMethod string
	Merchant      string
	Product       string
	Remark        string
}

// TimeString returns the transaction time in the bills' canonical layout,
// falling back to the raw source text when the time was not parsed.
func (t Transaction) TimeString() string {
	if t.Time.IsZero() {
		return t.RawTime
	}
	return t.Time.Format(time.DateTime)
}

// timeLayouts lists the timestamp layouts seen in bills and datasets.
var timeLayouts = []string{
	time.DateTime,
	"2006/1/2 15:04:05",
	"2006/01/02 15:04:05",
	"2006-1-2 15:04:05",
	"2006/1/2 15:04",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.DateOnly,
	"2006/1/2",
}

// ParseTime parses a bill timestamp in any of the known layouts. Times are
// interpreted in the local time zone of the bill.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseAmount parses a money amount, tolerating currency symbols,
// thousands separators and surrounding whitespace.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("¥", "", "￥", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
