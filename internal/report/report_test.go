package report

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/bookkeeper/internal/model"
)

func tx(day string, category string, dir model.Direction, amount string) model.Transaction {
	t, _ := time.ParseInLocation(time.DateOnly, day, time.Local)
	return model.Transaction{
		Time:      t,
		Category:  category,
		Direction: dir,
		Amount:    decimal.RequireFromString(amount),
	}
}

func sample() []model.Transaction {
	return []model.Transaction{
		tx("2024-03-01", "餐饮", model.DirectionExpense, "32.00"),
		tx("2024-03-05", "餐饮", model.DirectionExpense, "18.50"),
		tx("2024-03-15", "工资", model.DirectionIncome, "12000"),
		tx("2024-04-02", "交通", model.DirectionExpense, "48"),
		tx("2024-04-03", "", model.DirectionExpense, "0.10"),
		tx("2024-04-04", "转账", model.DirectionNotCounted, "1000"),
	}
}

func TestCalculate(t *testing.T) {
	s := Calculate(sample())

	assert.Equal(t, 6, s.Records)
	assert.Equal(t, "98.60", s.TotalExpense.StringFixed(2))
	assert.Equal(t, "12000.00", s.TotalIncome.StringFixed(2))
	assert.Equal(t, "11901.40", s.Net().StringFixed(2))

	require.Len(t, s.Categories, 5)
	assert.Equal(t, "餐饮", s.Categories[0].Category)
	assert.Equal(t, 2, s.Categories[0].Count)
	assert.Equal(t, "50.50", s.Categories[0].Expense.StringFixed(2))
	assert.Equal(t, "交通", s.Categories[1].Category)

	var uncategorized *CategoryTotal
	for i := range s.Categories {
		if s.Categories[i].Category == model.Uncategorized {
			uncategorized = &s.Categories[i]
		}
	}
	require.NotNil(t, uncategorized)
	assert.Equal(t, 1, uncategorized.Count)

	require.Len(t, s.Months, 2)
	assert.Equal(t, "2024-03", s.Months[0].Month)
	assert.Equal(t, "50.50", s.Months[0].Expense.StringFixed(2))
	assert.Equal(t, "12000.00", s.Months[0].Income.StringFixed(2))
	assert.Equal(t, "2024-04", s.Months[1].Month)
	assert.Equal(t, "48.10", s.Months[1].Expense.StringFixed(2))
}

func TestCalculateEmpty(t *testing.T) {
	s := Calculate(nil)
	assert.Zero(t, s.Records)
	assert.True(t, s.TotalExpense.IsZero())
	assert.Empty(t, s.Categories)

	md := RenderMarkdown(s)
	assert.Contains(t, md, "- Records: 0")
	assert.NotContains(t, md, "By category")
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(Calculate(sample()))
	assert.Contains(t, md, "- Total expense: 98.60")
	assert.Contains(t, md, "| 餐饮 | 50.50 | 0.00 | 2 |")
	assert.Contains(t, md, "| 2024-04 | 48.10 | 0.00 |")
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML(Calculate(sample()))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>餐饮</td>")
	assert.Contains(t, out, `<h2 id="by-category">By category</h2>`)
}
