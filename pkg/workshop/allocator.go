package workshop

import (
	"context"
	"fmt"
	"time"
)

// Allocation is the pouch chosen for a new item
// 新規商品に割り当てられたポーチ
type Allocation struct {
	Pouch   *Pouch // 割り当て先ポーチ（ItemCountは割り当て前の数）
	Created bool   // 空きがなく新規作成したか
}

// Allocator assigns new items to the lowest-numbered pouch with spare capacity
// 空きのある最小番号のポーチに新規商品を割り当てる
type Allocator struct {
	capacity    int
	labelFormat string
	now         func() time.Time
}

// NewAllocator creates an allocator for pouches holding capacity active items
// 指定容量のポーチ用アロケーターを作成
func NewAllocator(capacity int, labelFormat string, now func() time.Time) *Allocator {
	if capacity <= 0 {
		capacity = DefaultPouchCapacity
	}
	if labelFormat == "" {
		labelFormat = "Pouch #%d"
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Allocator{capacity: capacity, labelFormat: labelFormat, now: now}
}

// Capacity returns the pouch capacity
func (a *Allocator) Capacity() int {
	return a.capacity
}

// AssignPouch picks a pouch for one new item inside the caller's transaction.
// The allocation lock is held until that transaction ends, so the occupancy read
// and the item insert that follows cannot interleave with another allocation.
// 呼び出し元のトランザクション内でポーチを選択する。ロックはトランザクション終了まで保持される
func (a *Allocator) AssignPouch(ctx context.Context, q Queries) (*Allocation, error) {
	if err := q.LockPouchAllocation(ctx); err != nil {
		return nil, err
	}

	pouches, err := q.ListPouchOccupancy(ctx)
	if err != nil {
		return nil, err
	}

	// 番号の昇順で最初に空きのあるポーチ
	for i := range pouches {
		if pouches[i].HasCapacity(a.capacity) {
			p := pouches[i]
			return &Allocation{Pouch: &p}, nil
		}
	}

	number, err := q.NextPouchNumber(ctx)
	if err != nil {
		return nil, err
	}

	now := a.now()
	pouch := &Pouch{
		ID:          NewID(),
		Number:      number,
		Label:       fmt.Sprintf(a.labelFormat, number),
		Description: "Auto-created",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := q.CreatePouch(ctx, pouch); err != nil {
		return nil, err
	}

	return &Allocation{Pouch: pouch, Created: true}, nil
}

// Reclaim re-checks the pouch of an item that becomes active again. Its slot may have been
// handed to another item while it was inactive; in that case the item is moved to the pouch
// AssignPouch picks. A nil result means the item keeps its pouch.
// 再アクティブ化する商品のポーチに空きがあるかを再確認し、満杯なら別のポーチへ割り当てる
func (a *Allocator) Reclaim(ctx context.Context, q Queries, pouchID *string) (*Allocation, error) {
	if pouchID == nil {
		return nil, nil
	}
	if err := q.LockPouchAllocation(ctx); err != nil {
		return nil, err
	}

	pouch, err := q.GetPouch(ctx, *pouchID)
	if err != nil {
		return nil, err
	}
	if pouch.HasCapacity(a.capacity) {
		return nil, nil
	}
	return a.AssignPouch(ctx, q)
}
