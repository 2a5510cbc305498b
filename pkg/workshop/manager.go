package workshop

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Manager implements the workshop manager interfaces over a Storage
// Storage上でワークショップ管理インターフェースを実装
type Manager struct {
	storage   Storage        // ストレージ層
	publisher EventPublisher // イベント発行者
	logger    *zap.Logger    // ログ
	config    *Config        // 設定
	allocator *Allocator     // ポーチアロケーター
	ledger    *Ledger        // 在庫台帳
	now       func() time.Time
}

// すべてのインターフェースを実装することを明示
var (
	_ InventoryManager = (*Manager)(nil)
	_ CategoryManager  = (*Manager)(nil)
	_ PouchManager     = (*Manager)(nil)
	_ JobManager       = (*Manager)(nil)
)

// Config holds configuration for the workshop manager
// ワークショップマネージャーの設定を保持
type Config struct {
	PouchCapacity       int           `yaml:"pouch_capacity"`        // ポーチ容量
	PouchLabelFormat    string        `yaml:"pouch_label_format"`    // 自動作成ポーチのラベル書式
	RejectNegativeStock bool          `yaml:"reject_negative_stock"` // 負の在庫を拒否（デフォルトは許可）
	DefaultMinStock     int64         `yaml:"default_min_stock"`     // デフォルト最小在庫レベル
	MaxAttempts         int           `yaml:"max_attempts"`          // 同時実行エラー時の最大試行回数
	RetryBackoff        time.Duration `yaml:"retry_backoff"`         // 再試行間隔
	HistoryLimit        int           `yaml:"history_limit"`         // 履歴取得のデフォルト件数
}

// DefaultConfig returns the configuration used when none is supplied
// 設定未指定時のデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		PouchCapacity:       DefaultPouchCapacity,
		PouchLabelFormat:    "Pouch #%d",
		RejectNegativeStock: false,
		DefaultMinStock:     DefaultMinStockLevel,
		MaxAttempts:         3,
		RetryBackoff:        25 * time.Millisecond,
		HistoryLimit:        100,
	}
}

// withDefaults fills zero values from DefaultConfig
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	out := *c
	if out.PouchCapacity <= 0 {
		out.PouchCapacity = d.PouchCapacity
	}
	if out.PouchLabelFormat == "" {
		out.PouchLabelFormat = d.PouchLabelFormat
	}
	if out.DefaultMinStock < 0 {
		out.DefaultMinStock = d.DefaultMinStock
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = d.MaxAttempts
	}
	if out.RetryBackoff < 0 {
		out.RetryBackoff = d.RetryBackoff
	}
	if out.HistoryLimit <= 0 {
		out.HistoryLimit = d.HistoryLimit
	}
	return &out
}

// NewManager creates a new workshop manager
// 新しいワークショップマネージャーを作成
func NewManager(storage Storage, publisher EventPublisher, logger *zap.Logger, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	} else {
		config = config.withDefaults()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	now := func() time.Time { return time.Now().UTC() }

	return &Manager{
		storage:   storage,
		publisher: publisher,
		logger:    logger,
		config:    config,
		allocator: NewAllocator(config.PouchCapacity, config.PouchLabelFormat, now),
		ledger:    NewLedger(config.RejectNegativeStock, now),
		now:       now,
	}
}

// CreateItem validates the add-item form, assigns a pouch when none is given and records initial stock.
// The whole operation is one transaction.
// 商品を作成し、ポーチ未指定なら自動割り当て、初期在庫を台帳に記録（全体で1トランザクション）
func (m *Manager) CreateItem(ctx context.Context, input *CreateItemInput) (*ItemView, error) {
	if input == nil {
		return nil, NewValidationError("input", "入力が指定されていません", "")
	}
	input.normalize()
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := ValidateMoney("purchase_price", input.PurchasePrice); err != nil {
		return nil, err
	}
	if err := ValidateMoney("selling_price", input.SellingPrice); err != nil {
		return nil, err
	}

	minStock := m.config.DefaultMinStock
	if input.MinStockLevel != nil {
		minStock = *input.MinStockLevel
	}

	now := m.now()
	categoryID := input.CategoryID
	item := &Item{
		ID:            NewID(),
		Name:          input.Name,
		Description:   input.Description,
		CategoryID:    &categoryID,
		SKU:           nullString(input.SKU),
		CurrentStock:  input.CurrentStock,
		MinStockLevel: minStock,
		PurchasePrice: nullDecimal(input.PurchasePrice),
		SellingPrice:  nullDecimal(input.SellingPrice),
		Supplier:      input.Supplier,
		Notes:         input.Notes,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var (
		allocation *Allocation
		movement   *StockMovement
	)
	err := m.runInTx(ctx, "create_item", func(q Queries) error {
		allocation, movement = nil, nil
		item.PouchID = input.PouchID

		if _, err := q.GetCategory(ctx, categoryID); err != nil {
			return err
		}

		if input.PouchID != nil {
			// 明示的に指定されたポーチはアロケーターを通さない
			if _, err := q.GetPouch(ctx, *input.PouchID); err != nil {
				return err
			}
		} else {
			a, err := m.allocator.AssignPouch(ctx, q)
			if err != nil {
				return err
			}
			allocation = a
			item.PouchID = &a.Pouch.ID
		}

		if err := q.CreateItem(ctx, item); err != nil {
			return err
		}

		// 初期在庫はIDが確定した後、同じトランザクション内で記録
		if item.CurrentStock > 0 {
			mv, err := m.ledger.RecordInitialStock(ctx, q, item)
			if err != nil {
				return err
			}
			movement = mv
		}
		return nil
	})
	if err != nil {
		m.logger.Error("商品作成に失敗しました", zap.String("name", input.Name), zap.Error(err))
		return nil, asDomainError("create_item", "商品作成に失敗しました", err)
	}

	if allocation != nil {
		m.publishPouchAllocated(ctx, item.ID, allocation)
	}
	if movement != nil {
		m.publishStockMoved(ctx, movement, item.CurrentStock)
	}

	view, err := m.storage.GetItemView(ctx, item.ID)
	if err != nil {
		return nil, asDomainError("get_item", "商品取得に失敗しました", err)
	}

	m.logger.Info("商品作成完了",
		zap.String("item_id", item.ID),
		zap.String("name", item.Name),
		zap.Stringp("pouch_id", item.PouchID),
		zap.Bool("pouch_created", allocation != nil && allocation.Created),
		zap.Int64("current_stock", item.CurrentStock),
	)

	return view, nil
}

// GetItem gets an item joined with its category and pouch
// カテゴリとポーチを結合した商品を取得
func (m *Manager) GetItem(ctx context.Context, itemID string) (*ItemView, error) {
	if err := ValidateID("item_id", itemID); err != nil {
		return nil, err
	}
	view, err := m.storage.GetItemView(ctx, itemID)
	if err != nil {
		return nil, asDomainError("get_item", "商品取得に失敗しました", err)
	}
	return view, nil
}

// UpdateItem updates descriptive fields, references and the active flag.
// Stock is only changed through the ledger.
// 商品の項目を更新（在庫数は台帳経由でのみ変更）
func (m *Manager) UpdateItem(ctx context.Context, itemID string, input *UpdateItemInput) (*ItemView, error) {
	if err := ValidateID("item_id", itemID); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, NewValidationError("input", "入力が指定されていません", "")
	}
	input.normalize()
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.SKU != nil {
		if err := ValidateSKU(*input.SKU); err != nil {
			return nil, err
		}
	}
	if err := ValidateMoney("purchase_price", input.PurchasePrice); err != nil {
		return nil, err
	}
	if err := ValidateMoney("selling_price", input.SellingPrice); err != nil {
		return nil, err
	}

	var allocation *Allocation
	err := m.runInTx(ctx, "update_item", func(q Queries) error {
		allocation = nil
		item, err := q.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		wasActive := item.IsActive

		if input.Name != nil {
			item.Name = *input.Name
		}
		if input.Description != nil {
			item.Description = *input.Description
		}
		if input.CategoryID != nil {
			if *input.CategoryID == "" {
				item.CategoryID = nil
			} else {
				if _, err := q.GetCategory(ctx, *input.CategoryID); err != nil {
					return err
				}
				item.CategoryID = input.CategoryID
			}
		}
		if input.PouchID != nil {
			if *input.PouchID == "" {
				item.PouchID = nil
			} else {
				if _, err := q.GetPouch(ctx, *input.PouchID); err != nil {
					return err
				}
				item.PouchID = input.PouchID
			}
		}
		if input.SKU != nil {
			item.SKU = nullString(*input.SKU)
		}
		if input.MinStockLevel != nil {
			item.MinStockLevel = *input.MinStockLevel
		}
		if input.PurchasePrice != nil {
			item.PurchasePrice = nullDecimal(input.PurchasePrice)
		}
		if input.SellingPrice != nil {
			item.SellingPrice = nullDecimal(input.SellingPrice)
		}
		if input.Supplier != nil {
			item.Supplier = *input.Supplier
		}
		if input.Notes != nil {
			item.Notes = *input.Notes
		}
		if input.IsActive != nil {
			item.IsActive = *input.IsActive
		}

		// 非アクティブの間に枠が他の商品へ渡っている可能性がある
		if !wasActive && item.IsActive && input.PouchID == nil {
			a, err := m.allocator.Reclaim(ctx, q, item.PouchID)
			if err != nil {
				return err
			}
			if a != nil {
				allocation = a
				item.PouchID = &a.Pouch.ID
			}
		}
		item.UpdatedAt = m.now()

		return q.UpdateItem(ctx, item)
	})
	if err != nil {
		return nil, asDomainError("update_item", "商品更新に失敗しました", err)
	}

	if allocation != nil {
		m.logger.Info("再アクティブ化した商品を別のポーチへ移動しました",
			zap.String("item_id", itemID),
			zap.Int64("pouch_number", allocation.Pouch.Number),
		)
		m.publishPouchAllocated(ctx, itemID, allocation)
	}

	view, err := m.storage.GetItemView(ctx, itemID)
	if err != nil {
		return nil, asDomainError("get_item", "商品取得に失敗しました", err)
	}

	m.logger.Info("商品更新完了", zap.String("item_id", itemID))
	return view, nil
}

// DeleteItem deletes an item; its job items cascade, its movements stay in the ledger
// 商品を削除（ジョブ使用記録は連鎖削除、移動履歴は台帳に残る）
func (m *Manager) DeleteItem(ctx context.Context, itemID string) error {
	if err := ValidateID("item_id", itemID); err != nil {
		return err
	}
	if err := m.storage.DeleteItem(ctx, itemID); err != nil {
		return asDomainError("delete_item", "商品削除に失敗しました", err)
	}
	m.logger.Info("商品削除完了", zap.String("item_id", itemID))
	return nil
}

// ListItems lists items newest first, filtered by search text, category name and stock state
// 検索文字列・カテゴリ名・在庫状態で絞り込んだ商品を新しい順に取得
func (m *Manager) ListItems(ctx context.Context, filter ItemFilter) ([]ItemView, error) {
	if err := ValidateStockState(filter.StockState); err != nil {
		return nil, err
	}
	if filter.StockState == "" {
		filter.StockState = StockStateAll
	}

	items, err := m.storage.ListItems(ctx, filter)
	if err != nil {
		return nil, asDomainError("list_items", "商品一覧取得に失敗しました", err)
	}
	if items == nil {
		items = []ItemView{}
	}

	m.logger.Debug("商品一覧取得完了",
		zap.String("search", filter.Search),
		zap.String("category", filter.Category),
		zap.String("stock_state", string(filter.StockState)),
		zap.Int("count", len(items)),
	)
	return items, nil
}

// GetHistory gets the stock movements of an item, newest first
// 商品の在庫移動履歴を新しい順に取得
func (m *Manager) GetHistory(ctx context.Context, itemID string, limit int) ([]StockMovement, error) {
	if err := ValidateID("item_id", itemID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = m.config.HistoryLimit
	}
	if limit > 1000 {
		return nil, NewValidationError("limit", "取得件数は1000以下である必要があります", fmt.Sprintf("%d", limit))
	}

	if _, err := m.storage.GetItem(ctx, itemID); err != nil {
		return nil, asDomainError("get_item", "商品取得に失敗しました", err)
	}

	movements, err := m.storage.ListMovements(ctx, itemID, limit)
	if err != nil {
		m.logger.Error("在庫履歴取得に失敗しました", zap.String("item_id", itemID), zap.Error(err))
		return nil, asDomainError("list_movements", "在庫履歴取得に失敗しました", err)
	}
	if movements == nil {
		movements = []StockMovement{}
	}
	return movements, nil
}

// ヘルパーメソッド

func (m *Manager) publishPouchAllocated(ctx context.Context, itemID string, a *Allocation) {
	if m.publisher == nil {
		return
	}
	event := PouchAllocatedEvent{
		ItemID:      itemID,
		PouchID:     a.Pouch.ID,
		PouchNumber: a.Pouch.Number,
		Created:     a.Created,
		Occupancy:   a.Pouch.ItemCount + 1,
		Timestamp:   m.now(),
	}
	if err := m.publisher.PublishPouchAllocated(ctx, event); err != nil {
		m.logger.Error("ポーチ割り当てイベント発行に失敗しました", zap.Error(err))
	}
}

func (m *Manager) publishStockMoved(ctx context.Context, mv *StockMovement, currentStock int64) {
	if m.publisher == nil {
		return
	}
	event := StockMovedEvent{
		MovementID:   mv.ID,
		ItemID:       mv.ItemID,
		Type:         mv.Type,
		Quantity:     mv.Quantity,
		CurrentStock: currentStock,
		Timestamp:    mv.CreatedAt,
	}
	if mv.ReferenceID != nil {
		event.ReferenceID = *mv.ReferenceID
	}
	if err := m.publisher.PublishStockMoved(ctx, event); err != nil {
		m.logger.Error("在庫移動イベント発行に失敗しました", zap.Error(err))
	}
}

// triggerLowStockAlert publishes a low stock alert
// 低在庫アラートを発行
func (m *Manager) triggerLowStockAlert(ctx context.Context, item *Item, currentQty int64) {
	m.logger.Warn("在庫が最小レベルを下回りました",
		zap.String("item_id", item.ID),
		zap.Int64("current_stock", currentQty),
		zap.Int64("min_stock_level", item.MinStockLevel),
	)
	if m.publisher == nil {
		return
	}
	event := LowStockAlertEvent{
		ItemID:     item.ID,
		ItemName:   item.Name,
		CurrentQty: currentQty,
		Threshold:  item.MinStockLevel,
		Timestamp:  m.now(),
	}
	if err := m.publisher.PublishLowStockAlert(ctx, event); err != nil {
		m.logger.Error("低在庫アラートイベント発行に失敗しました", zap.Error(err))
	}
}
