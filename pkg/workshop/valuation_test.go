package workshop

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func price(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func TestSummarize(t *testing.T) {
	items := []Item{
		{ID: "A", CurrentStock: 20, MinStockLevel: 5, PurchasePrice: price("0.10"), SellingPrice: price("0.50")},
		{ID: "B", CurrentStock: 3, MinStockLevel: 5, PurchasePrice: price("12.00")},
		{ID: "C", CurrentStock: 0, MinStockLevel: 5, PurchasePrice: price("99.99"), SellingPrice: price("149.99")},
		{ID: "D", CurrentStock: -2, MinStockLevel: 1, PurchasePrice: price("1.00")},
	}
	pouches := []Pouch{
		{ID: "P1", Number: 1, ItemCount: 10},
		{ID: "P2", Number: 2, ItemCount: 4},
		{ID: "P3", Number: 3, ItemCount: 12}, // 明示指定で容量超過
	}

	s := summarize(items, pouches, DefaultPouchCapacity)

	assert.Equal(t, int64(4), s.TotalItems)
	assert.Equal(t, int64(3), s.LowStockItems)
	assert.Equal(t, int64(1), s.OutOfStockItems)
	assert.Equal(t, int64(23), s.TotalUnits)
	assert.Equal(t, "38.00", s.PurchaseValue.StringFixed(2))
	assert.Equal(t, "10.00", s.RetailValue.StringFixed(2))
	assert.Equal(t, int64(3), s.Pouches)
	assert.Equal(t, int64(6), s.FreeSlots)
}

func TestSummarize_Empty(t *testing.T) {
	s := summarize(nil, nil, DefaultPouchCapacity)

	assert.Equal(t, int64(0), s.TotalItems)
	assert.True(t, s.PurchaseValue.IsZero())
	assert.True(t, s.RetailValue.IsZero())
}
