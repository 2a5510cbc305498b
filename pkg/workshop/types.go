// Package workshop provides the pouch allocation and stock ledger core of the repair shop inventory
package workshop

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultPouchCapacity is the number of active items a pouch holds before a new one is opened
// 新しいポーチを開く前に1つのポーチが保持できるアクティブ商品数
const DefaultPouchCapacity = 10

// DefaultMinStockLevel is applied when an item is created without a minimum stock level
// 最小在庫レベル未指定時のデフォルト値
const DefaultMinStockLevel = 5

// Category groups inventory items (resistors, capacitors, screens...)
// 在庫商品をグループ化するカテゴリ
type Category struct {
	ID          string    `json:"id" db:"id"`                   // カテゴリID
	Name        string    `json:"name" db:"name"`               // カテゴリ名
	Description string    `json:"description" db:"description"` // 説明
	Icon        string    `json:"icon" db:"icon"`               // アイコンタグ
	Color       string    `json:"color" db:"color"`             // 表示色
	CreatedAt   time.Time `json:"created_at" db:"created_at"`   // 作成日時
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`   // 更新日時
}

// Pouch is a physical storage container identified by a sequential number
// 連番で識別される物理的な保管ポーチ
type Pouch struct {
	ID          string    `json:"id" db:"id"`                     // ポーチID
	Number      int64     `json:"pouch_number" db:"pouch_number"` // ポーチ番号（連番）
	Label       string    `json:"label" db:"label"`               // ラベル
	Description string    `json:"description" db:"description"`   // 説明
	Location    string    `json:"location" db:"location"`         // 保管場所
	ItemCount   int64     `json:"item_count" db:"item_count"`     // 収納中のアクティブ商品数
	CreatedAt   time.Time `json:"created_at" db:"created_at"`     // 作成日時
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`     // 更新日時
}

// HasCapacity reports whether the pouch can take another item
// ポーチに空きがあるかを判定
func (p *Pouch) HasCapacity(capacity int) bool {
	return p.ItemCount < int64(capacity)
}

// Item represents a part or consumable kept in stock
// 在庫として保管される部品または消耗品
type Item struct {
	ID            string              `json:"id" db:"id"`                           // 商品ID
	Name          string              `json:"name" db:"name"`                       // 商品名
	Description   string              `json:"description" db:"description"`         // 商品説明
	CategoryID    *string             `json:"category_id" db:"category_id"`         // カテゴリID（削除時はNULL）
	PouchID       *string             `json:"pouch_id" db:"pouch_id"`               // ポーチID（削除時はNULL）
	SKU           *string             `json:"sku" db:"sku"`                         // SKU（任意・一意）
	CurrentStock  int64               `json:"current_stock" db:"current_stock"`     // 現在在庫数
	MinStockLevel int64               `json:"min_stock_level" db:"min_stock_level"` // 最小在庫レベル
	PurchasePrice decimal.NullDecimal `json:"purchase_price" db:"purchase_price"`   // 仕入価格
	SellingPrice  decimal.NullDecimal `json:"selling_price" db:"selling_price"`     // 販売価格
	Supplier      string              `json:"supplier" db:"supplier"`               // 仕入先
	Notes         string              `json:"notes" db:"notes"`                     // メモ
	IsActive      bool                `json:"is_active" db:"is_active"`             // アクティブ状態
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`           // 作成日時
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`           // 更新日時
}

// IsLowStock reports stock at or below the minimum level
// 在庫が最小レベル以下かを判定
func (i *Item) IsLowStock() bool {
	return i.CurrentStock <= i.MinStockLevel
}

// IsOutOfStock reports an item with no stock left
// 在庫切れかを判定
func (i *Item) IsOutOfStock() bool {
	return i.CurrentStock == 0
}

// ItemView is an item joined with its category and pouch display fields
// カテゴリとポーチの表示項目を結合した商品
type ItemView struct {
	Item
	CategoryName  *string `json:"category_name" db:"category_name"`   // カテゴリ名
	CategoryColor *string `json:"category_color" db:"category_color"` // カテゴリ色
	CategoryIcon  *string `json:"category_icon" db:"category_icon"`   // カテゴリアイコン
	PouchNumber   *int64  `json:"pouch_number" db:"pouch_number"`     // ポーチ番号
	PouchLabel    *string `json:"pouch_label" db:"pouch_label"`       // ポーチラベル
}

// StockMovement is an immutable ledger entry describing a stock change
// 在庫変動を記録する不変の台帳エントリ
type StockMovement struct {
	ID          string       `json:"id" db:"id"`                       // 移動ID
	ItemID      string       `json:"item_id" db:"item_id"`             // 商品ID
	Type        MovementType `json:"movement_type" db:"movement_type"` // 移動タイプ
	Quantity    int64        `json:"quantity" db:"quantity"`           // 数量
	Reason      string       `json:"reason" db:"reason"`               // 理由
	ReferenceID *string      `json:"reference_id" db:"reference_id"`   // 参照ID（修理ジョブIDなど）
	Notes       string       `json:"notes" db:"notes"`                 // メモ
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`       // 作成日時
}

// MovementType defines the direction of a stock movement
// 在庫移動の方向を定義
type MovementType string

const (
	MovementTypeIn         MovementType = "IN"         // 入庫
	MovementTypeOut        MovementType = "OUT"        // 出庫
	MovementTypeAdjustment MovementType = "ADJUSTMENT" // 調整
)

// Movement reasons written by the ledger
// 台帳が記録する移動理由
const (
	ReasonInitialStock = "Initial stock"
	ReasonJobUsage     = "Used in repair job"
)

// RepairJob tracks one customer device repair
// 顧客デバイスの修理ジョブ
type RepairJob struct {
	ID               string              `json:"id" db:"id"`                               // ジョブID
	JobNumber        int64               `json:"job_number" db:"job_number"`               // ジョブ番号（連番）
	CustomerName     string              `json:"customer_name" db:"customer_name"`         // 顧客名
	CustomerPhone    string              `json:"customer_phone" db:"customer_phone"`       // 電話番号
	CustomerEmail    string              `json:"customer_email" db:"customer_email"`       // メールアドレス
	DeviceType       string              `json:"device_type" db:"device_type"`             // デバイス種別
	DeviceModel      string              `json:"device_model" db:"device_model"`           // モデル
	DeviceSerial     string              `json:"device_serial" db:"device_serial"`         // シリアル番号
	IssueDescription string              `json:"issue_description" db:"issue_description"` // 症状
	Status           JobStatus           `json:"status" db:"status"`                       // ステータス
	EstimatedCost    decimal.NullDecimal `json:"estimated_cost" db:"estimated_cost"`       // 見積額
	FinalCost        decimal.NullDecimal `json:"final_cost" db:"final_cost"`               // 確定額
	CompletedAt      *time.Time          `json:"completed_at" db:"completed_at"`           // 完了日時
	Notes            string              `json:"notes" db:"notes"`                         // メモ
	CreatedAt        time.Time           `json:"created_at" db:"created_at"`               // 作成日時
	UpdatedAt        time.Time           `json:"updated_at" db:"updated_at"`               // 更新日時
}

// JobStatus defines repair job states
// 修理ジョブの状態を定義
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"     // 受付
	JobStatusInProgress JobStatus = "IN_PROGRESS" // 作業中
	JobStatusCompleted  JobStatus = "COMPLETED"   // 完了
	JobStatusCancelled  JobStatus = "CANCELLED"   // キャンセル
)

// Valid reports whether s is a known job status
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusCancelled:
		return true
	}
	return false
}

// JobItem links a repair job to the inventory item it consumed
// 修理ジョブと消費した在庫商品の紐付け
type JobItem struct {
	ID           string    `json:"id" db:"id"`                       // ID
	JobID        string    `json:"job_id" db:"job_id"`               // ジョブID
	ItemID       string    `json:"item_id" db:"item_id"`             // 商品ID
	QuantityUsed int64     `json:"quantity_used" db:"quantity_used"` // 使用数量
	CreatedAt    time.Time `json:"created_at" db:"created_at"`       // 作成日時
}

// JobItemView is a job item joined with the item name and sku
// 商品名とSKUを結合したジョブ使用部品
type JobItemView struct {
	JobItem
	ItemName string  `json:"item_name" db:"item_name"`
	ItemSKU  *string `json:"item_sku" db:"item_sku"`
}

// JobItemResult is returned when a usage is recorded
// 使用記録の結果
type JobItemResult struct {
	JobItem      *JobItem       `json:"job_item"`
	Movement     *StockMovement `json:"movement"`
	CurrentStock int64          `json:"current_stock"`
}

// StockState filters items by stock level
// 在庫状態フィルター
type StockState string

const (
	StockStateAll StockState = "all" // すべて
	StockStateLow StockState = "low" // 低在庫（最小レベル以下）
	StockStateOut StockState = "out" // 在庫切れ
)

// ItemFilter holds list_items filters; empty fields match everything
// 商品一覧のフィルター（空欄はすべてに一致）
type ItemFilter struct {
	Search     string     `json:"search"`      // 名前・説明・SKU・仕入先の部分一致
	Category   string     `json:"category"`    // カテゴリ名の完全一致
	StockState StockState `json:"stock_state"` // 在庫状態
}

// InventorySummary aggregates dashboard figures over active items
// アクティブ商品のダッシュボード集計
type InventorySummary struct {
	TotalItems      int64           `json:"total_items"`        // 商品数
	LowStockItems   int64           `json:"low_stock_items"`    // 低在庫商品数
	OutOfStockItems int64           `json:"out_of_stock_items"` // 在庫切れ商品数
	TotalUnits      int64           `json:"total_units"`        // 総在庫数量
	PurchaseValue   decimal.Decimal `json:"purchase_value"`     // 仕入価格ベースの在庫価値
	RetailValue     decimal.Decimal `json:"retail_value"`       // 販売価格ベースの在庫価値
	Pouches         int64           `json:"pouches"`            // ポーチ数
	FreeSlots       int64           `json:"free_slots"`         // 空きスロット数
	GeneratedAt     time.Time       `json:"generated_at"`       // 集計日時
}

// NewID generates a new entity ID
// 新しいエンティティIDを生成
func NewID() string {
	return uuid.New().String()
}
