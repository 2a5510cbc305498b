package workshop

import (
	"context"
	"time"
)

// InventoryManager defines the item and ledger operations called by the admin panel
// 管理画面から呼び出される商品と台帳の操作を定義
type InventoryManager interface {
	CreateItem(ctx context.Context, input *CreateItemInput) (*ItemView, error)
	GetItem(ctx context.Context, itemID string) (*ItemView, error)
	UpdateItem(ctx context.Context, itemID string, input *UpdateItemInput) (*ItemView, error)
	DeleteItem(ctx context.Context, itemID string) error
	ListItems(ctx context.Context, filter ItemFilter) ([]ItemView, error)
	GetHistory(ctx context.Context, itemID string, limit int) ([]StockMovement, error)
	GetSummary(ctx context.Context) (*InventorySummary, error)
	ExportItems(ctx context.Context, filter ItemFilter) ([]byte, error)
}

// CategoryManager defines category CRUD
// カテゴリ管理のインターフェースを定義
type CategoryManager interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, categoryID string) (*Category, error)
	CreateCategory(ctx context.Context, input *CategoryInput) (*Category, error)
	UpdateCategory(ctx context.Context, categoryID string, input *CategoryInput) (*Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
}

// PouchManager defines pouch administration
// ポーチ管理のインターフェースを定義
type PouchManager interface {
	ListPouches(ctx context.Context) ([]Pouch, error)
	GetPouch(ctx context.Context, pouchID string) (*Pouch, error)
	CreatePouch(ctx context.Context, input *PouchInput) (*Pouch, error)
	UpdatePouch(ctx context.Context, pouchID string, input *PouchInput) (*Pouch, error)
	DeletePouch(ctx context.Context, pouchID string) error
}

// JobManager defines repair job and part usage operations
// 修理ジョブと部品使用の操作を定義
type JobManager interface {
	ListJobs(ctx context.Context, status JobStatus) ([]RepairJob, error)
	GetJob(ctx context.Context, jobID string) (*RepairJob, error)
	CreateJob(ctx context.Context, input *JobInput) (*RepairJob, error)
	UpdateJob(ctx context.Context, jobID string, input *JobInput) (*RepairJob, error)
	DeleteJob(ctx context.Context, jobID string) error
	CreateJobItem(ctx context.Context, input *JobItemInput) (*JobItemResult, error)
	ListJobItems(ctx context.Context, jobID string) ([]JobItemView, error)
}

// Queries is the set of statements available both inside and outside a transaction
// トランザクション内外で利用できるクエリの集合
type Queries interface {
	// Locks serializing check-then-act sequences for the rest of the transaction
	LockPouchAllocation(ctx context.Context) error
	LockJobNumbering(ctx context.Context) error

	// Category
	CreateCategory(ctx context.Context, category *Category) error
	GetCategory(ctx context.Context, categoryID string) (*Category, error)
	UpdateCategory(ctx context.Context, category *Category) error
	DeleteCategory(ctx context.Context, categoryID string) error
	ListCategories(ctx context.Context) ([]Category, error)

	// Pouch
	CreatePouch(ctx context.Context, pouch *Pouch) error
	GetPouch(ctx context.Context, pouchID string) (*Pouch, error)
	UpdatePouch(ctx context.Context, pouch *Pouch) error
	DeletePouch(ctx context.Context, pouchID string) error
	ListPouchOccupancy(ctx context.Context) ([]Pouch, error)
	NextPouchNumber(ctx context.Context) (int64, error)

	// Item
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, itemID string) (*Item, error)
	GetItemView(ctx context.Context, itemID string) (*ItemView, error)
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, itemID string) error
	ListItems(ctx context.Context, filter ItemFilter) ([]ItemView, error)
	ListActiveItems(ctx context.Context) ([]Item, error)
	AdjustItemStock(ctx context.Context, itemID string, delta int64, at time.Time) (int64, error)

	// Stock movement (append only)
	CreateMovement(ctx context.Context, movement *StockMovement) error
	ListMovements(ctx context.Context, itemID string, limit int) ([]StockMovement, error)

	// Repair job
	CreateJob(ctx context.Context, job *RepairJob) error
	GetJob(ctx context.Context, jobID string) (*RepairJob, error)
	UpdateJob(ctx context.Context, job *RepairJob) error
	DeleteJob(ctx context.Context, jobID string) error
	ListJobs(ctx context.Context, status JobStatus) ([]RepairJob, error)
	NextJobNumber(ctx context.Context) (int64, error)
	CreateJobItem(ctx context.Context, jobItem *JobItem) error
	ListJobItems(ctx context.Context, jobID string) ([]JobItemView, error)
}

// Storage defines the interface for data persistence layer
// データ永続化層のインターフェースを定義
type Storage interface {
	Queries

	// WithTx runs fn in one transaction; fn's error rolls everything back
	// fnを1つのトランザクションで実行し、エラー時はすべてロールバック
	WithTx(ctx context.Context, fn func(q Queries) error) error

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// EventPublisher defines interface for publishing workshop events
// イベント発行のインターフェースを定義
type EventPublisher interface {
	PublishStockMoved(ctx context.Context, event StockMovedEvent) error
	PublishPouchAllocated(ctx context.Context, event PouchAllocatedEvent) error
	PublishLowStockAlert(ctx context.Context, event LowStockAlertEvent) error
	PublishRetry(ctx context.Context, event RetryEvent) error
}

// StockMovedEvent represents an appended ledger entry
// 台帳エントリ追加イベントを表現
type StockMovedEvent struct {
	MovementID   string       `json:"movement_id"`
	ItemID       string       `json:"item_id"`
	Type         MovementType `json:"movement_type"`
	Quantity     int64        `json:"quantity"`
	CurrentStock int64        `json:"current_stock"`
	ReferenceID  string       `json:"reference_id"`
	Timestamp    time.Time    `json:"timestamp"`
}

// PouchAllocatedEvent represents an item bound to a pouch by the allocator
// アロケーターによるポーチ割り当てイベントを表現
type PouchAllocatedEvent struct {
	ItemID      string    `json:"item_id"`
	PouchID     string    `json:"pouch_id"`
	PouchNumber int64     `json:"pouch_number"`
	Created     bool      `json:"created"`   // 新規ポーチを作成したか
	Occupancy   int64     `json:"occupancy"` // 割り当て後の収納数
	Timestamp   time.Time `json:"timestamp"`
}

// LowStockAlertEvent represents a low stock alert
// 低在庫アラートイベントを表現
type LowStockAlertEvent struct {
	ItemID     string    `json:"item_id"`
	ItemName   string    `json:"item_name"`
	CurrentQty int64     `json:"current_qty"`
	Threshold  int64     `json:"threshold"`
	Timestamp  time.Time `json:"timestamp"`
}

// RetryEvent represents a transaction retried after a concurrency abort
// 同時実行による中断後の再試行イベントを表現
type RetryEvent struct {
	Operation string    `json:"operation"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
}
