// Package report summarizes a set of bill transactions and renders the
// summary as Markdown or HTML.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ziadkadry99/bookkeeper/internal/model"
)

// CategoryTotal aggregates the transactions of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Expense  decimal.Decimal `json:"expense"`
	Income   decimal.Decimal `json:"income"`
	Count    int             `json:"count"`
}

// MonthTotal aggregates the transactions of one calendar month ("2006-01").
type MonthTotal struct {
	Month   string          `json:"month"`
	Expense decimal.Decimal `json:"expense"`
	Income  decimal.Decimal `json:"income"`
}

// Summary is the statistics block shown after bills are merged.
type Summary struct {
	TotalExpense decimal.Decimal `json:"total_expense"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	Records      int             `json:"total_records"`
	// Categories is sorted by expense, largest first.
	Categories []CategoryTotal `json:"category_stats"`
	// Months is sorted chronologically.
	Months []MonthTotal `json:"monthly_stats"`
}

// Net is income minus expense.
func (s Summary) Net() decimal.Decimal {
	return s.TotalIncome.Sub(s.TotalExpense)
}

// Calculate summarizes txs. Rows that are neither income nor expense are
// counted but add to no total; transactions without a category are
// grouped under model.Uncategorized.
func Calculate(txs []model.Transaction) Summary {
	s := Summary{Records: len(txs)}
	byCategory := map[string]*CategoryTotal{}
	byMonth := map[string]*MonthTotal{}

	for _, tx := range txs {
		category := tx.Category
		if category == "" {
			category = model.Uncategorized
		}
		ct, ok := byCategory[category]
		if !ok {
			ct = &CategoryTotal{Category: category}
			byCategory[category] = ct
		}
		ct.Count++

		month := ""
		if !tx.Time.IsZero() {
			month = tx.Time.Format("2006-01")
		}
		var mt *MonthTotal
		if month != "" {
			if mt, ok = byMonth[month]; !ok {
				mt = &MonthTotal{Month: month}
				byMonth[month] = mt
			}
		}

		amount := tx.Amount.Abs()
		switch tx.Direction {
		case model.DirectionExpense:
			s.TotalExpense = s.TotalExpense.Add(amount)
			ct.Expense = ct.Expense.Add(amount)
			if mt != nil {
				mt.Expense = mt.Expense.Add(amount)
			}
		case model.DirectionIncome:
			s.TotalIncome = s.TotalIncome.Add(amount)
			ct.Income = ct.Income.Add(amount)
			if mt != nil {
				mt.Income = mt.Income.Add(amount)
			}
		}
	}

	for _, ct := range byCategory {
		s.Categories = append(s.Categories, *ct)
	}
	slices.SortFunc(s.Categories, func(a, b CategoryTotal) int {
		if c := b.Expense.Cmp(a.Expense); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})
	for _, mt := range byMonth {
		s.Months = append(s.Months, *mt)
	}
	slices.SortFunc(s.Months, func(a, b MonthTotal) int {
		return strings.Compare(a.Month, b.Month)
	})
	return s
}

// RenderMarkdown writes the summary as GitHub flavoured Markdown tables.
func RenderMarkdown(s Summary) string {
	var b strings.Builder
	b.WriteString("# Bill summary\n\n")
	fmt.Fprintf(&b, "- Records: %d\n", s.Records)
	fmt.Fprintf(&b, "- Total expense: %s\n", s.TotalExpense.StringFixed(2))
	fmt.Fprintf(&b, "- Total income: %s\n", s.TotalIncome.StringFixed(2))
	fmt.Fprintf(&b, "- Net: %s\n", s.Net().StringFixed(2))

	if len(s.Categories) > 0 {
		b.WriteString("\n## By category\n\n")
		b.WriteString("| Category | Expense | Income | Count |\n")
		b.WriteString("|---|---:|---:|---:|\n")
		for _, c := range s.Categories {
			fmt.Fprintf(&b, "| %s | %s | %s | %d |\n",
				escapeCell(c.Category), c.Expense.StringFixed(2), c.Income.StringFixed(2), c.Count)
		}
	}

	if len(s.Months) > 0 {
		b.WriteString("\n## By month\n\n")
		b.WriteString("| Month | Expense | Income |\n")
		b.WriteString("|---|---:|---:|\n")
		for _, m := range s.Months {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", m.Month, m.Expense.StringFixed(2), m.Income.StringFixed(2))
		}
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="zh">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// RenderHTML renders the Markdown summary to a standalone HTML page.
func RenderHTML(s Summary) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithXHTML()),
	)

	var body bytes.Buffer
	if err := md.Convert([]byte(RenderMarkdown(s)), &body); err != nil {
		return "", fmt.Errorf("rendering summary: %w", err)
	}

	var page bytes.Buffer
	err := pageTemplate.Execute(&page, struct {
		Title string
		Body  template.HTML
	}{
		Title: "Bill summary",
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("rendering page: %w", err)
	}
	return page.String(), nil
}
