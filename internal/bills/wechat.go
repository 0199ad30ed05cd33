package bills

import (
	"fmt"
	"strings"
)

// wechatMethod is used when a WeChat row names no payment method.
const wechatMethod = "微信支付"

// parseWeChat reads every row after the divider line.
func parseWeChat(text string) Result {
	res := Result{Format: FormatWeChat}

	var (
		body    []string
		started bool
	)
	for _, line := range strings.Split(text, "\n") {
		if !started {
			if strings.HasPrefix(line, dividerPrefix) {
				started = true
			}
			continue
		}
		body = append(body, strings.TrimSpace(line))
	}
	if !started {
		res.Outcome = MalformedFormat
		res.Err = fmt.Errorf("wechat bill has no divider line")
		return res
	}

	cols, rows, err := readTable(strings.Join(body, "\n"))
	if err != nil {
		res.Outcome = MalformedFormat
		res.Err = fmt.Errorf("wechat bill: %w", err)
		return res
	}
	if err := cols.require("交易时间", "商品", "交易对方", "收/支", "金额(元)"); err != nil {
		res.Outcome = MalformedFormat
		res.Err = fmt.Errorf("wechat bill: %w", err)
		return res
	}
	methodCol := cols.first("支付方式")

	for _, row := range rows {
		method := field(row, methodCol)
		if method == "" || method == "/" {
			method = wechatMethod
		}
		tx, ok := buildTransaction(
			field(row, cols["交易时间"]),
			field(row, cols["交易对方"]),
			field(row, cols["商品"]),
			field(row, cols["收/支"]),
			field(row, cols["金额(元)"]),
			method,
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
