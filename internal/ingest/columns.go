package ingest

import (
	"fmt"
	"strings"
)

type column int

const (
	colMerchant column = iota
	colProduct
	colCategory
	colPaymentMethod
	colTime
	colAmount
	colDirection
	colRemark
	numColumns
)

// columnNames maps every accepted header spelling to its column. Headers
// are matched after trimming and lower-casing.
var columnNames = map[string]column{
	"交易对方":             colMerchant,
	"merchant":         colMerchant,
	"商品名称":             colProduct,
	"商品":               colProduct,
	"product":          colProduct,
	"类型":               colCategory,
	"分类":               colCategory,
	"category":         colCategory,
	"支付方式":             colPaymentMethod,
	"payment_method":   colPaymentMethod,
	"交易时间":             colTime,
	"transaction_time": colTime,
	"time":             colTime,
	"金额(元)":            colAmount,
	"金额（元）":            colAmount,
	"金额":               colAmount,
	"amount":           colAmount,
	"收/支":              colDirection,
	"direction":        colDirection,
	"备注":               colRemark,
	"remark":           colRemark,
}

// headerIndex maps columns to their position in a header row; -1 when
// absent.
type headerIndex [numColumns]int

func parseHeader(header []string) (headerIndex, error) {
	var idx headerIndex
	for i := range idx {
		idx[i] = -1
	}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if c, ok := columnNames[name]; ok && idx[c] == -1 {
			idx[c] = i
		}
	}
	if idx[colCategory] == -1 {
		return idx, fmt.Errorf("header has no category column (类型 or category): %v", header)
	}
	if idx[colMerchant] == -1 && idx[colProduct] == -1 {
		return idx, fmt.Errorf("header has neither a merchant nor a product column: %v", header)
	}
	return idx, nil
}

func (h headerIndex) get(row []string, c column) string {
	i := h[c]
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
