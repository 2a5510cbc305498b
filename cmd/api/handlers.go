package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiRepairKit/pkg/workshop"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Service is the full set of workshop operations exposed over HTTP
// HTTPで公開するワークショップ操作の集合
type Service interface {
	workshop.InventoryManager
	workshop.CategoryManager
	workshop.PouchManager
	workshop.JobManager
}

// Pinger reports store health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handlers for the workshop API
// ワークショップAPI用のHTTPハンドラーを保持
type Handlers struct {
	service Service
	pinger  Pinger
	logger  *zap.Logger
}

// NewHandlers creates new HTTP handlers
// 新しいHTTPハンドラーを作成
func NewHandlers(service Service, pinger Pinger, logger *zap.Logger) *Handlers {
	return &Handlers{
		service: service,
		pinger:  pinger,
		logger:  logger,
	}
}

// APIResponse represents standard API response format
// 標準的なAPIレスポンス形式を表現
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// JobItemRequest represents request to record parts used by a job
// ジョブの部品使用記録リクエストを表現
type JobItemRequest struct {
	ItemID       string `json:"item_id"`
	QuantityUsed int64  `json:"quantity_used"`
}

// HealthCheck handles health check requests
// ヘルスチェックリクエストを処理
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.logger.Error("ヘルスチェックに失敗しました", zap.Error(err))
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	h.sendJSON(w, code, APIResponse{
		Success: code == http.StatusOK,
		Data: map[string]interface{}{
			"status":    status,
			"timestamp": time.Now(),
			"service":   "zaiRepairKit",
		},
	})
}

// カテゴリ

// ListCategories handles list categories requests
// カテゴリ一覧リクエストを処理
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, categories)
}

// CreateCategory handles create category requests
// カテゴリ作成リクエストを処理
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var input workshop.CategoryInput
	if !h.decode(w, r, &input) {
		return
	}
	category, err := h.service.CreateCategory(r.Context(), &input)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendCreated(w, category)
}

// GetCategory handles get category requests
func (h *Handlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.service.GetCategory(r.Context(), mux.Vars(r)["categoryId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, category)
}

// UpdateCategory handles update category requests
func (h *Handlers) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var input workshop.CategoryInput
	if !h.decode(w, r, &input) {
		return
	}
	category, err := h.service.UpdateCategory(r.Context(), mux.Vars(r)["categoryId"], &input)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, category)
}

// DeleteCategory handles delete category requests
func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCategory(r.Context(), mux.Vars(r)["categoryId"]); err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, map[string]string{
		"message": "カテゴリが削除されました",
	})
}

// ポーチ

// ListPouches handles list pouches requests
// ポーチ一覧リクエストを処理
func (h *Handlers) ListPouches(w http.ResponseWriter, r *http.Request) {
	pouches, err := h.service.ListPouches(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, pouches)
}

// CreatePouch handles create pouch requests
// ポーチ作成リクエストを処理
func (h *Handlers) CreatePouch(w http.ResponseWriter, r *http.Request) {
	var input workshop.PouchInput
	if !h.decode(w, r, &input) {
		return
	}
	pouch, err := h.service.CreatePouch(r.Context(), &input)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendCreated(w, pouch)
}

// GetPouch handles get pouch requests
func (h *Handlers) GetPouch(w http.ResponseWriter, r *http.Request) {
	pouch, err := h.service.GetPouch(r.Context(), mux.Vars(r)["pouchId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, pouch)
}

// UpdatePouch handles update pouch requests
func (h *Handlers) UpdatePouch(w http.ResponseWriter, r *http.Request) {
	var input workshop.PouchInput
	if !h.decode(w, r, &input) {
		return
	}
	pouch, err := h.service.UpdatePouch(r.Context(), mux.Vars(r)["pouchId"], &input)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, pouch)
}

// DeletePouch handles delete pouch requests
func (h *Handlers) DeletePouch(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePouch(r.Context(), mux.Vars(r)["pouchId"]); err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, map[string]string{
		"message": "ポーチが削除されました",
	})
}

// 商品

// ListItems handles list items requests
// 商品一覧リクエストを処理
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context(), itemFilterFromQuery(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, items)
}

// CreateItem handles create item requests
// 商品作成リクエストを処理
func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	var input workshop.CreateItemInput
	if !h.decode(w, r, &input) {
		return
	}
	item, err := h.service.CreateItem(r.Context(), &input)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendCreated(w, item)
}

// GetItem handles get item requests
// 商品取得リクエストを処理
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), mux.Vars(r)["itemId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, item)
}

// UpdateItem handles update item requests
// 商品更新リクエストを処理
func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var input workshop.UpdateItemInput
	if !h.decode(w, r, &input) {
		return
	}
	item, err := h.service.UpdateItem(r.Context(), mux.Vars(r)["itemId"], &input)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, item)
}

// DeleteItem handles delete item requests
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteItem(r.Context(), mux.Vars(r)["itemId"]); err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, map[string]string{
		"message": "商品が削除されました",
	})
}

// GetHistory handles stock movement history requests
// 在庫履歴リクエストを処理
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "無効なlimitパラメータです")
			return
		}
		limit = l
	}

	movements, err := h.service.GetHistory(r.Context(), mux.Vars(r)["itemId"], limit)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, movements)
}

// ExportItems handles spreadsheet export requests
// 商品一覧のExcel出力リクエストを処理
func (h *Handlers) ExportItems(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.ExportItems(r.Context(), itemFilterFromQuery(r))
	if err != nil {
		h.handleError(w, err)
		return
	}

	filename := "inventory_" + time.Now().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("ファイル送信に失敗しました", zap.Error(err))
	}
}

// GetSummary handles dashboard summary requests
// ダッシュボード集計リクエストを処理
func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSummary(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, summary)
}

// 修理ジョブ

// ListJobs handles list jobs requests
// 修理ジョブ一覧リクエストを処理
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := workshop.JobStatus(r.URL.Query().Get("status"))
	jobs, err := h.service.ListJobs(r.Context(), status)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, jobs)
}

// CreateJob handles create job requests
// 修理ジョブ作成リクエストを処理
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var input workshop.JobInput
	if !h.decode(w, r, &input) {
		return
	}
	job, err := h.service.CreateJob(r.Context(), &input)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendCreated(w, job)
}

// GetJob handles get job requests
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(r.Context(), mux.Vars(r)["jobId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, job)
}

// UpdateJob handles update job requests
func (h *Handlers) UpdateJob(w http.ResponseWriter, r *http.Request) {
	var input workshop.JobInput
	if !h.decode(w, r, &input) {
		return
	}
	job, err := h.service.UpdateJob(r.Context(), mux.Vars(r)["jobId"], &input)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, job)
}

// DeleteJob handles delete job requests
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteJob(r.Context(), mux.Vars(r)["jobId"]); err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, map[string]string{
		"message": "修理ジョブが削除されました",
	})
}

// ListJobItems handles requests for parts used by a job
// ジョブの使用部品一覧リクエストを処理
func (h *Handlers) ListJobItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListJobItems(r.Context(), mux.Vars(r)["jobId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, items)
}

// CreateJobItem handles part usage requests
// 部品使用記録リクエストを処理
func (h *Handlers) CreateJobItem(w http.ResponseWriter, r *http.Request) {
	var req JobItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.CreateJobItem(r.Context(), &workshop.JobItemInput{
		JobID:        mux.Vars(r)["jobId"],
		ItemID:       req.ItemID,
		QuantityUsed: req.QuantityUsed,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendCreated(w, result)
}

// ヘルパーメソッド

func itemFilterFromQuery(r *http.Request) workshop.ItemFilter {
	query := r.URL.Query()
	return workshop.ItemFilter{
		Search:     query.Get("search"),
		Category:   query.Get("category"),
		StockState: workshop.StockState(query.Get("stock")),
	}
}

// decode reads a JSON body and answers 400 on failure
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return false
	}
	return true
}

// handleError maps workshop errors to HTTP status codes
// ワークショップのエラーをHTTPステータスに変換して送信
func (h *Handlers) handleError(w http.ResponseWriter, err error) {
	var (
		validationErr  *workshop.ValidationError
		notFoundErr    *workshop.NotFoundError
		conflictErr    *workshop.ConflictError
		businessErr    *workshop.BusinessRuleError
		concurrencyErr *workshop.ConcurrencyError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	case errors.As(err, &conflictErr):
		status = http.StatusConflict
	case errors.As(err, &businessErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &concurrencyErr):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("リクエスト処理に失敗しました", zap.Error(err))
	}
	h.sendError(w, status, err.Error())
}

// sendSuccess sends a successful API response
// 成功APIレスポンスを送信
func (h *Handlers) sendSuccess(w http.ResponseWriter, data interface{}) {
	h.sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// sendCreated sends a 201 API response
func (h *Handlers) sendCreated(w http.ResponseWriter, data interface{}) {
	h.sendJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error API response
// エラーAPIレスポンスを送信
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

func (h *Handlers) sendJSON(w http.ResponseWriter, statusCode int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("レスポンス送信に失敗しました", zap.Error(err))
	}
}
