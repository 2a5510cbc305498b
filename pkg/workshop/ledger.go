package workshop

import (
	"context"
	"fmt"
	"time"
)

// Ledger applies stock changes together with the movement that explains them.
// Both writes go through the same Queries so they commit or roll back together.
// 在庫変更とその移動記録を同じトランザクションで書き込む
type Ledger struct {
	rejectNegative bool
	now            func() time.Time
}

// NewLedger creates a ledger; rejectNegative makes usages that overdraw stock fail
// 台帳を作成（rejectNegativeがtrueなら在庫超過の使用を拒否）
func NewLedger(rejectNegative bool, now func() time.Time) *Ledger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{rejectNegative: rejectNegative, now: now}
}

// RecordInitialStock appends the IN movement for a newly created item
// 新規商品の初期在庫をINとして記録
func (l *Ledger) RecordInitialStock(ctx context.Context, q Queries, item *Item) (*StockMovement, error) {
	if item.CurrentStock <= 0 {
		return nil, NewValidationError("current_stock", "初期在庫は正の値である必要があります", fmt.Sprintf("%d", item.CurrentStock))
	}

	movement := &StockMovement{
		ID:        NewID(),
		ItemID:    item.ID,
		Type:      MovementTypeIn,
		Quantity:  item.CurrentStock,
		Reason:    ReasonInitialStock,
		CreatedAt: item.CreatedAt,
	}
	if err := q.CreateMovement(ctx, movement); err != nil {
		return nil, err
	}
	return movement, nil
}

// RecordUsage decrements stock by quantity and appends an OUT movement referencing the job.
// The decrement is a single relative update, so concurrent usages never lose an update.
// 在庫を相対更新で減算し、ジョブを参照するOUT移動を記録
func (l *Ledger) RecordUsage(ctx context.Context, q Queries, itemID string, quantity int64, jobID string) (*StockMovement, int64, error) {
	if quantity <= 0 {
		return nil, 0, NewValidationError("quantity_used", "使用数量は正の値である必要があります", fmt.Sprintf("%d", quantity))
	}

	now := l.now()
	stock, err := q.AdjustItemStock(ctx, itemID, -quantity, now)
	if err != nil {
		return nil, 0, err
	}

	if l.rejectNegative && stock < 0 {
		return nil, 0, NewBusinessRuleError(
			"negative_stock",
			"在庫が不足しています",
			fmt.Sprintf("item_id=%s, available=%d, requested=%d", itemID, stock+quantity, quantity),
			ErrNegativeStock,
		)
	}

	ref := jobID
	movement := &StockMovement{
		ID:          NewID(),
		ItemID:      itemID,
		Type:        MovementTypeOut,
		Quantity:    quantity,
		Reason:      ReasonJobUsage,
		ReferenceID: &ref,
		CreatedAt:   now,
	}
	if err := q.CreateMovement(ctx, movement); err != nil {
		return nil, 0, err
	}

	return movement, stock, nil
}
