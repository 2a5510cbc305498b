package workshop

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetSummary aggregates dashboard figures over active items and pouches
// アクティブ商品とポーチのダッシュボード集計を取得
func (m *Manager) GetSummary(ctx context.Context) (*InventorySummary, error) {
	items, err := m.storage.ListActiveItems(ctx)
	if err != nil {
		return nil, NewStorageError("list_active_items", "アクティブ商品取得に失敗しました", err)
	}
	pouches, err := m.storage.ListPouchOccupancy(ctx)
	if err != nil {
		return nil, NewStorageError("list_pouches", "ポーチ一覧取得に失敗しました", err)
	}

	summary := summarize(items, pouches, m.allocator.Capacity())
	summary.GeneratedAt = m.now()

	m.logger.Debug("在庫集計完了",
		zap.Int64("total_items", summary.TotalItems),
		zap.Int64("low_stock_items", summary.LowStockItems),
		zap.String("purchase_value", summary.PurchaseValue.StringFixed(2)),
	)
	return summary, nil
}

// summarize computes values as Σ(stock × price) over positive stock only
// 在庫価値は正の在庫についてのみ Σ(在庫数 × 価格) で計算
func summarize(items []Item, pouches []Pouch, capacity int) *InventorySummary {
	summary := &InventorySummary{
		PurchaseValue: decimal.Zero,
		RetailValue:   decimal.Zero,
	}

	for i := range items {
		item := &items[i]
		summary.TotalItems++
		if item.IsOutOfStock() {
			summary.OutOfStockItems++
		}
		if item.IsLowStock() {
			summary.LowStockItems++
		}
		if item.CurrentStock <= 0 {
			continue
		}

		summary.TotalUnits += item.CurrentStock
		qty := decimal.NewFromInt(item.CurrentStock)
		if item.PurchasePrice.Valid {
			summary.PurchaseValue = summary.PurchaseValue.Add(item.PurchasePrice.Decimal.Mul(qty))
		}
		if item.SellingPrice.Valid {
			summary.RetailValue = summary.RetailValue.Add(item.SellingPrice.Decimal.Mul(qty))
		}
	}

	for _, p := range pouches {
		summary.Pouches++
		if free := int64(capacity) - p.ItemCount; free > 0 {
			summary.FreeSlots += free
		}
	}

	return summary
}
