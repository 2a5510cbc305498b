// Package storage implements workshop.Storage on PostgreSQL and SQLite
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiRepairKit/pkg/workshop"
)

// ロックキー（PostgreSQLのアドバイザリロック用）
const (
	lockKeyPouchAllocation int64 = 7301001
	lockKeyJobNumbering    int64 = 7301002
)

// dialect holds the statements that differ between databases
// データベースごとに異なる文を保持
type dialect struct {
	name string
	// lockStatement returns the statement taking a transaction-scoped lock; empty means the
	// transaction itself is already exclusive
	lockStatement func(key int64) string
	// lower names the SQL function used for case-insensitive search
	lower    string
	classify func(op string, err error) error
}

// SQLStorage implements workshop.Storage with sqlx
// sqlxを使用したworkshop.Storageの実装
type SQLStorage struct {
	*queries
	db      *sqlx.DB
	logger  *zap.Logger
	dialect *dialect
}

var _ workshop.Storage = (*SQLStorage)(nil)

func newSQLStorage(db *sqlx.DB, d *dialect, logger *zap.Logger) *SQLStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStorage{
		queries: &queries{ext: db, dialect: d, logger: logger},
		db:      db,
		logger:  logger,
		dialect: d,
	}
}

// DB returns the underlying handle
func (s *SQLStorage) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the database name ("postgres" or "sqlite")
func (s *SQLStorage) Dialect() string {
	return s.dialect.name
}

// WithTx runs fn in a transaction, committing on nil and rolling back otherwise
// fnをトランザクションで実行（nilでコミット、それ以外はロールバック）
func (s *SQLStorage) WithTx(ctx context.Context, fn func(q workshop.Queries) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.dialect.classify("begin", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&queries{ext: tx, dialect: s.dialect, logger: s.logger}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("ロールバックに失敗しました", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return s.dialect.classify("commit", err)
	}
	return nil
}

// Ping checks the connection
// 接続を確認
func (s *SQLStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return workshop.NewStorageError("ping", "データベースpingに失敗しました", err)
	}
	return nil
}

// Close closes the database connection
// データベース接続を閉じる
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// queries runs statements against either the pool or a transaction
type queries struct {
	ext     sqlx.ExtContext
	dialect *dialect
	logger  *zap.Logger
}

func (q *queries) exec(ctx context.Context, op, query string, args ...interface{}) (sql.Result, error) {
	res, err := q.ext.ExecContext(ctx, q.ext.Rebind(query), args...)
	if err != nil {
		return nil, q.dialect.classify(op, err)
	}
	return res, nil
}

func (q *queries) get(ctx context.Context, op string, dest interface{}, query string, args ...interface{}) error {
	err := sqlx.GetContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return q.dialect.classify(op, err)
	}
	return nil
}

func (q *queries) sel(ctx context.Context, op string, dest interface{}, query string, args ...interface{}) error {
	if err := sqlx.SelectContext(ctx, q.ext, dest, q.ext.Rebind(query), args...); err != nil {
		return q.dialect.classify(op, err)
	}
	return nil
}

// execOne runs an UPDATE or DELETE that must touch exactly one row
func (q *queries) execOne(ctx context.Context, op, resource, id, query string, args ...interface{}) error {
	res, err := q.exec(ctx, op, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return workshop.NewStorageError(op, "更新行数の取得に失敗しました", err)
	}
	if n == 0 {
		return workshop.NewNotFoundError(resource, id)
	}
	return nil
}

func (q *queries) lock(ctx context.Context, key int64) error {
	stmt := q.dialect.lockStatement(key)
	if stmt == "" {
		return nil
	}
	_, err := q.exec(ctx, "lock", stmt, key)
	return err
}

// LockPouchAllocation serializes pouch allocation and numbering until the transaction ends
// トランザクション終了までポーチ割り当てと採番を直列化
func (q *queries) LockPouchAllocation(ctx context.Context) error {
	return q.lock(ctx, lockKeyPouchAllocation)
}

// LockJobNumbering serializes job numbering until the transaction ends
// トランザクション終了までジョブ採番を直列化
func (q *queries) LockJobNumbering(ctx context.Context) error {
	return q.lock(ctx, lockKeyJobNumbering)
}

// カテゴリ

const categoryColumns = `id, name, description, icon, color, created_at, updated_at`

func (q *queries) CreateCategory(ctx context.Context, c *workshop.Category) error {
	_, err := q.exec(ctx, "create_category",
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.Icon, c.Color, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (q *queries) GetCategory(ctx context.Context, categoryID string) (*workshop.Category, error) {
	var c workshop.Category
	err := q.get(ctx, "get_category", &c,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, categoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workshop.NewNotFoundError("category", categoryID)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *queries) UpdateCategory(ctx context.Context, c *workshop.Category) error {
	return q.execOne(ctx, "update_category", "category", c.ID,
		`UPDATE categories SET name = ?, description = ?, icon = ?, color = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Description, c.Icon, c.Color, c.UpdatedAt, c.ID,
	)
}

func (q *queries) DeleteCategory(ctx context.Context, categoryID string) error {
	return q.execOne(ctx, "delete_category", "category", categoryID,
		`DELETE FROM categories WHERE id = ?`, categoryID)
}

func (q *queries) ListCategories(ctx context.Context) ([]workshop.Category, error) {
	var categories []workshop.Category
	err := q.sel(ctx, "list_categories", &categories,
		`SELECT `+categoryColumns+` FROM categories ORDER BY name ASC, id ASC`)
	return categories, err
}

// ポーチ

const pouchSelect = `
	SELECT p.id, p.pouch_number, p.label, p.description, p.location, p.created_at, p.updated_at,
		(SELECT COUNT(*) FROM inventory_items i WHERE i.pouch_id = p.id AND i.is_active = TRUE) AS item_count
	FROM pouches p`

func (q *queries) CreatePouch(ctx context.Context, p *workshop.Pouch) error {
	_, err := q.exec(ctx, "create_pouch",
		`INSERT INTO pouches (id, pouch_number, label, description, location, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Number, p.Label, p.Description, p.Location, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (q *queries) GetPouch(ctx context.Context, pouchID string) (*workshop.Pouch, error) {
	var p workshop.Pouch
	err := q.get(ctx, "get_pouch", &p, pouchSelect+` WHERE p.id = ?`, pouchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workshop.NewNotFoundError("pouch", pouchID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *queries) UpdatePouch(ctx context.Context, p *workshop.Pouch) error {
	return q.execOne(ctx, "update_pouch", "pouch", p.ID,
		`UPDATE pouches SET label = ?, description = ?, location = ?, updated_at = ? WHERE id = ?`,
		p.Label, p.Description, p.Location, p.UpdatedAt, p.ID,
	)
}

func (q *queries) DeletePouch(ctx context.Context, pouchID string) error {
	return q.execOne(ctx, "delete_pouch", "pouch", pouchID,
		`DELETE FROM pouches WHERE id = ?`, pouchID)
}

// ListPouchOccupancy lists pouches by ascending number with active item counts
// 番号の昇順でアクティブ収納数付きのポーチを取得
func (q *queries) ListPouchOccupancy(ctx context.Context) ([]workshop.Pouch, error) {
	var pouches []workshop.Pouch
	err := q.sel(ctx, "list_pouches", &pouches, pouchSelect+` ORDER BY p.pouch_number ASC`)
	return pouches, err
}

func (q *queries) NextPouchNumber(ctx context.Context) (int64, error) {
	var n int64
	err := q.get(ctx, "next_pouch_number", &n, `SELECT COALESCE(MAX(pouch_number), 0) + 1 FROM pouches`)
	return n, err
}

// 商品

const itemColumns = `i.id, i.name, i.description, i.category_id, i.pouch_id, i.sku, i.current_stock,
	i.min_stock_level, i.purchase_price, i.selling_price, i.supplier, i.notes, i.is_active,
	i.created_at, i.updated_at`

const itemViewSelect = `
	SELECT ` + itemColumns + `,
		c.name AS category_name, c.color AS category_color, c.icon AS category_icon,
		p.pouch_number AS pouch_number, p.label AS pouch_label
	FROM inventory_items i
	LEFT JOIN categories c ON c.id = i.category_id
	LEFT JOIN pouches p ON p.id = i.pouch_id`

func (q *queries) CreateItem(ctx context.Context, item *workshop.Item) error {
	_, err := q.exec(ctx, "create_item",
		`INSERT INTO inventory_items (id, name, description, category_id, pouch_id, sku, current_stock,
			min_stock_level, purchase_price, selling_price, supplier, notes, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Description, item.CategoryID, item.PouchID, item.SKU, item.CurrentStock,
		item.MinStockLevel, item.PurchasePrice, item.SellingPrice, item.Supplier, item.Notes, item.IsActive,
		item.CreatedAt, item.UpdatedAt,
	)
	return err
}

func (q *queries) GetItem(ctx context.Context, itemID string) (*workshop.Item, error) {
	var item workshop.Item
	err := q.get(ctx, "get_item", &item, `SELECT `+itemColumns+` FROM inventory_items i WHERE i.id = ?`, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workshop.NewNotFoundError("item", itemID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (q *queries) GetItemView(ctx context.Context, itemID string) (*workshop.ItemView, error) {
	var view workshop.ItemView
	err := q.get(ctx, "get_item", &view, itemViewSelect+` WHERE i.id = ?`, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workshop.NewNotFoundError("item", itemID)
	}
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// UpdateItem writes every column except current_stock, which only the ledger changes
// current_stock以外の列を更新（在庫数は台帳のみが変更）
func (q *queries) UpdateItem(ctx context.Context, item *workshop.Item) error {
	return q.execOne(ctx, "update_item", "item", item.ID,
		`UPDATE inventory_items SET name = ?, description = ?, category_id = ?, pouch_id = ?, sku = ?,
			min_stock_level = ?, purchase_price = ?, selling_price = ?, supplier = ?, notes = ?,
			is_active = ?, updated_at = ?
		WHERE id = ?`,
		item.Name, item.Description, item.CategoryID, item.PouchID, item.SKU,
		item.MinStockLevel, item.PurchasePrice, item.SellingPrice, item.Supplier, item.Notes,
		item.IsActive, item.UpdatedAt, item.ID,
	)
}

func (q *queries) DeleteItem(ctx context.Context, itemID string) error {
	return q.execOne(ctx, "delete_item", "item", itemID,
		`DELETE FROM inventory_items WHERE id = ?`, itemID)
}

// ListItems filters by case-insensitive substring, exact category name and stock state,
// newest first with id as tie breaker
// 大文字小文字を区別しない部分一致・カテゴリ名・在庫状態で絞り込み、新しい順に取得
func (q *queries) ListItems(ctx context.Context, filter workshop.ItemFilter) ([]workshop.ItemView, error) {
	var (
		where []string
		args  []interface{}
	)

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		lower := q.dialect.lower
		where = append(where, fmt.Sprintf(`(%[1]s(i.name) LIKE ? ESCAPE '\'
			OR %[1]s(i.description) LIKE ? ESCAPE '\'
			OR %[1]s(COALESCE(i.sku, '')) LIKE ? ESCAPE '\'
			OR %[1]s(i.supplier) LIKE ? ESCAPE '\')`, lower))
		args = append(args, pattern, pattern, pattern, pattern)
	}

	if filter.Category != "" {
		where = append(where, `c.name = ?`)
		args = append(args, filter.Category)
	}

	switch filter.StockState {
	case workshop.StockStateLow:
		where = append(where, `i.current_stock <= i.min_stock_level`)
	case workshop.StockStateOut:
		where = append(where, `i.current_stock = 0`)
	}

	query := itemViewSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY i.created_at DESC, i.id DESC`

	var items []workshop.ItemView
	err := q.sel(ctx, "list_items", &items, query, args...)
	return items, err
}

func (q *queries) ListActiveItems(ctx context.Context) ([]workshop.Item, error) {
	var items []workshop.Item
	err := q.sel(ctx, "list_active_items", &items,
		`SELECT `+itemColumns+` FROM inventory_items i WHERE i.is_active = TRUE ORDER BY i.created_at ASC, i.id ASC`)
	return items, err
}

// AdjustItemStock applies delta in a single relative update and returns the new stock
// 単一の相対更新で在庫を変更し、更新後の在庫を返す
func (q *queries) AdjustItemStock(ctx context.Context, itemID string, delta int64, at time.Time) (int64, error) {
	var stock int64
	err := q.get(ctx, "adjust_stock", &stock,
		`UPDATE inventory_items SET current_stock = current_stock + ?, updated_at = ? WHERE id = ? RETURNING current_stock`,
		delta, at, itemID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, workshop.NewNotFoundError("item", itemID)
	}
	return stock, err
}

// 在庫移動

const movementColumns = `id, item_id, movement_type, quantity, reason, reference_id, notes, created_at`

func (q *queries) CreateMovement(ctx context.Context, m *workshop.StockMovement) error {
	_, err := q.exec(ctx, "create_movement",
		`INSERT INTO stock_movements (`+movementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ItemID, string(m.Type), m.Quantity, m.Reason, m.ReferenceID, m.Notes, m.CreatedAt,
	)
	return err
}

func (q *queries) ListMovements(ctx context.Context, itemID string, limit int) ([]workshop.StockMovement, error) {
	var movements []workshop.StockMovement
	err := q.sel(ctx, "list_movements", &movements,
		`SELECT `+movementColumns+` FROM stock_movements WHERE item_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		itemID, limit,
	)
	return movements, err
}

// 修理ジョブ

const jobColumns = `id, job_number, customer_name, customer_phone, customer_email, device_type, device_model,
	device_serial, issue_description, status, estimated_cost, final_cost, completed_at, notes, created_at, updated_at`

func (q *queries) CreateJob(ctx context.Context, j *workshop.RepairJob) error {
	_, err := q.exec(ctx, "create_job",
		`INSERT INTO repair_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.JobNumber, j.CustomerName, j.CustomerPhone, j.CustomerEmail, j.DeviceType, j.DeviceModel,
		j.DeviceSerial, j.IssueDescription, string(j.Status), j.EstimatedCost, j.FinalCost, j.CompletedAt,
		j.Notes, j.CreatedAt, j.UpdatedAt,
	)
	return err
}

func (q *queries) GetJob(ctx context.Context, jobID string) (*workshop.RepairJob, error) {
	var j workshop.RepairJob
	err := q.get(ctx, "get_job", &j, `SELECT `+jobColumns+` FROM repair_jobs WHERE id = ?`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workshop.NewNotFoundError("repair_job", jobID)
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (q *queries) UpdateJob(ctx context.Context, j *workshop.RepairJob) error {
	return q.execOne(ctx, "update_job", "repair_job", j.ID,
		`UPDATE repair_jobs SET customer_name = ?, customer_phone = ?, customer_email = ?, device_type = ?,
			device_model = ?, device_serial = ?, issue_description = ?, status = ?, estimated_cost = ?,
			final_cost = ?, completed_at = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		j.CustomerName, j.CustomerPhone, j.CustomerEmail, j.DeviceType,
		j.DeviceModel, j.DeviceSerial, j.IssueDescription, string(j.Status), j.EstimatedCost,
		j.FinalCost, j.CompletedAt, j.Notes, j.UpdatedAt, j.ID,
	)
}

func (q *queries) DeleteJob(ctx context.Context, jobID string) error {
	return q.execOne(ctx, "delete_job", "repair_job", jobID,
		`DELETE FROM repair_jobs WHERE id = ?`, jobID)
}

func (q *queries) ListJobs(ctx context.Context, status workshop.JobStatus) ([]workshop.RepairJob, error) {
	query := `SELECT ` + jobColumns + ` FROM repair_jobs`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, job_number DESC`

	var jobs []workshop.RepairJob
	err := q.sel(ctx, "list_jobs", &jobs, query, args...)
	return jobs, err
}

func (q *queries) NextJobNumber(ctx context.Context) (int64, error) {
	var n int64
	err := q.get(ctx, "next_job_number", &n, `SELECT COALESCE(MAX(job_number), 0) + 1 FROM repair_jobs`)
	return n, err
}

func (q *queries) CreateJobItem(ctx context.Context, ji *workshop.JobItem) error {
	_, err := q.exec(ctx, "create_job_item",
		`INSERT INTO job_items (id, job_id, item_id, quantity_used, created_at) VALUES (?, ?, ?, ?, ?)`,
		ji.ID, ji.JobID, ji.ItemID, ji.QuantityUsed, ji.CreatedAt,
	)
	return err
}

func (q *queries) ListJobItems(ctx context.Context, jobID string) ([]workshop.JobItemView, error) {
	var items []workshop.JobItemView
	err := q.sel(ctx, "list_job_items", &items,
		`SELECT ji.id, ji.job_id, ji.item_id, ji.quantity_used, ji.created_at,
			i.name AS item_name, i.sku AS item_sku
		FROM job_items ji
		JOIN inventory_items i ON i.id = ji.item_id
		WHERE ji.job_id = ?
		ORDER BY ji.created_at ASC, ji.id ASC`,
		jobID,
	)
	return items, err
}

// escapeLike escapes LIKE wildcards so the search text matches literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// conflictFromColumn maps a unique violation to a domain error. Sequential numbers
// colliding means a concurrent writer won the race, which is retryable.
func conflictFromColumn(op, detail string, err error) error {
	switch {
	case strings.Contains(detail, "sku"):
		return workshop.NewConflictError("sku", "", "SKUは既に使用されています")
	case strings.Contains(detail, "pouch_number"):
		return workshop.NewConcurrencyError(op, "pouch", "ポーチ番号が競合しました", err)
	case strings.Contains(detail, "job_number"):
		return workshop.NewConcurrencyError(op, "repair_job", "ジョブ番号が競合しました", err)
	}
	return workshop.NewConflictError("id", "", fmt.Sprintf("一意制約に違反しました (%s)", op))
}
