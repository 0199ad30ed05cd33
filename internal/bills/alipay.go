package bills

import (
	"fmt"
	"regexp"
	"strings"
)

// alipayMethod is the payment method recorded for every Alipay row.
const alipayMethod = "支付宝"

// Alipay pads fields with spaces before the separating comma.
var paddedComma = regexp.MustCompile(`\s+,`)

// parseAlipay reads the rows between the first two divider lines.
func parseAlipay(text string) Result {
	res := Result{Format: FormatAlipay}

	var (
		body    []string
		started bool
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if !started {
			if strings.HasPrefix(line, dividerPrefix) {
				started = true
			}
			continue
		}
		if strings.HasPrefix(line, dividerPrefix) {
			break
		}
		body = append(body, paddedComma.ReplaceAllString(line, ","))
	}
	if !started {
		res.Outcome = MalformedFormat
		res.Err = fmt.Errorf("alipay bill has no divider line")
		return res
	}

	cols, rows, err := readTable(strings.Join(body, "\n"))
	if err != nil {
		res.Outcome = MalformedFormat
		res.Err = fmt.Errorf("alipay bill: %w", err)
		return res
	}
	if err := cols.require("交易创建时间", "商品名称", "交易对方", "收/支"); err != nil {
		res.Outcome = MalformedFormat
		res.Err = fmt.Errorf("alipay bill: %w", err)
		return res
	}
	amountCol := cols.first("金额（元）", "金额(元)")
	if amountCol < 0 {
		res.Outcome = MalformedFormat
		res.Err = fmt.Errorf("alipay bill: missing columns 金额（元）")
		return res
	}

	for _, row := range rows {
		tx, ok := buildTransaction(
			field(row, cols["交易创建时间"]),
			field(row, cols["交易对方"]),
			field(row, cols["商品名称"]),
			field(row, cols["收/支"]),
			field(row, amountCol),
			alipayMethod,
			"",
			"",
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
