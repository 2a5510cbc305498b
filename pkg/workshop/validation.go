package workshop

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// 英数字、ハイフン、アンダースコア、ドット、スラッシュのみ許可
var skuPattern = regexp.MustCompile(`^[a-zA-Z0-9_./-]+$`)

var validate = newValidator()

// CreateItemInput holds the add-item form fields
// 商品追加フォームの入力
type CreateItemInput struct {
	Name          string           `json:"name" validate:"required,max=500"`
	Description   string           `json:"description" validate:"max=2000"`
	CategoryID    string           `json:"category_id" validate:"required"`
	PouchID       *string          `json:"pouch_id" validate:"omitempty,min=1"` // 未指定時はアロケーターが割り当て
	SKU           string           `json:"sku" validate:"omitempty,max=255,sku"`
	CurrentStock  int64            `json:"current_stock" validate:"gte=0"`
	MinStockLevel *int64           `json:"min_stock_level" validate:"omitempty,gte=0"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	SellingPrice  *decimal.Decimal `json:"selling_price"`
	Supplier      string           `json:"supplier" validate:"max=255"`
	Notes         string           `json:"notes" validate:"max=2000"`
}

func (in *CreateItemInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	in.SKU = strings.TrimSpace(in.SKU)
	in.Supplier = strings.TrimSpace(in.Supplier)
	if in.PouchID != nil {
		trimmed := strings.TrimSpace(*in.PouchID)
		if trimmed == "" {
			in.PouchID = nil
		} else {
			in.PouchID = &trimmed
		}
	}
}

// UpdateItemInput holds editable item fields; nil leaves a field unchanged.
// An empty CategoryID, PouchID or SKU clears the reference.
// 編集可能な商品項目（nilは変更なし、空文字は参照をクリア）
type UpdateItemInput struct {
	Name          *string          `json:"name" validate:"omitempty,min=1,max=500"`
	Description   *string          `json:"description" validate:"omitempty,max=2000"`
	CategoryID    *string          `json:"category_id"`
	PouchID       *string          `json:"pouch_id"`
	SKU           *string          `json:"sku" validate:"omitempty,max=255"`
	MinStockLevel *int64           `json:"min_stock_level" validate:"omitempty,gte=0"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	SellingPrice  *decimal.Decimal `json:"selling_price"`
	Supplier      *string          `json:"supplier" validate:"omitempty,max=255"`
	Notes         *string          `json:"notes" validate:"omitempty,max=2000"`
	IsActive      *bool            `json:"is_active"`
}

func (in *UpdateItemInput) normalize() {
	for _, p := range []*string{in.Name, in.CategoryID, in.PouchID, in.SKU, in.Supplier} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
}

// CategoryInput holds category fields
// カテゴリの入力
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Icon        string `json:"icon" validate:"max=100"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

func (in *CategoryInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Icon = strings.TrimSpace(in.Icon)
	in.Color = strings.TrimSpace(in.Color)
}

// PouchInput holds pouch fields; an empty label on create is generated from the pouch number
// ポーチの入力（作成時にラベルが空ならポーチ番号から生成）
type PouchInput struct {
	Label       string `json:"label" validate:"max=255"`
	Description string `json:"description" validate:"max=2000"`
	Location    string `json:"location" validate:"max=255"`
}

func (in *PouchInput) normalize() {
	in.Label = strings.TrimSpace(in.Label)
	in.Location = strings.TrimSpace(in.Location)
}

// JobInput holds repair job fields
// 修理ジョブの入力
type JobInput struct {
	CustomerName     string           `json:"customer_name" validate:"required,max=255"`
	CustomerPhone    string           `json:"customer_phone" validate:"max=50"`
	CustomerEmail    string           `json:"customer_email" validate:"omitempty,email"`
	DeviceType       string           `json:"device_type" validate:"max=255"`
	DeviceModel      string           `json:"device_model" validate:"max=255"`
	DeviceSerial     string           `json:"device_serial" validate:"max=255"`
	IssueDescription string           `json:"issue_description" validate:"max=4000"`
	Status           JobStatus        `json:"status" validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED"`
	EstimatedCost    *decimal.Decimal `json:"estimated_cost"`
	FinalCost        *decimal.Decimal `json:"final_cost"`
	Notes            string           `json:"notes" validate:"max=4000"`
}

func (in *JobInput) normalize() {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
}

// JobItemInput records parts consumed by a repair job
// 修理ジョブで消費した部品の記録
type JobItemInput struct {
	JobID        string `json:"job_id" validate:"required"`
	ItemID       string `json:"item_id" validate:"required"`
	QuantityUsed int64  `json:"quantity_used" validate:"gt=0"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// エラーのフィールド名にはJSON名を使用
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("sku", func(fl validator.FieldLevel) bool {
		return skuPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// validateInput runs struct tag validation and reports the first failure as a ValidationError
// 構造体タグによる検証を行い、最初の違反をValidationErrorとして返す
func validateInput(input interface{}) error {
	if input == nil || reflect.ValueOf(input).IsNil() {
		return NewValidationError("input", "入力が指定されていません", "")
	}
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		fe := fieldErrors[0]
		return NewValidationError(fe.Field(), validationMessage(fe), fmt.Sprintf("%v", fe.Value()))
	}
	return NewValidationError("input", err.Error(), "")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必須項目です"
	case "min":
		return "空にはできません"
	case "max":
		return "長すぎます"
	case "gte":
		return "0以上である必要があります"
	case "gt":
		return "正の値である必要があります"
	case "oneof":
		return "無効な値です"
	case "hexcolor":
		return "色は #rrggbb 形式である必要があります"
	case "email":
		return "メールアドレスの形式が無効です"
	case "sku":
		return "SKUに無効な文字が含まれています"
	}
	return fmt.Sprintf("検証に失敗しました (%s)", fe.Tag())
}

// ValidateMoney 金額が負でないことをバリデーション
func ValidateMoney(field string, value *decimal.Decimal) error {
	if value == nil {
		return nil
	}
	if value.IsNegative() {
		return NewValidationError(field, "金額は0以上である必要があります", value.String())
	}
	return nil
}

// ValidateSKU SKUの形式をバリデーション
func ValidateSKU(sku string) error {
	if sku == "" {
		return nil // SKUは任意
	}
	if len(sku) > 255 {
		return NewValidationError("sku", "SKUが長すぎます", sku)
	}
	if !skuPattern.MatchString(sku) {
		return NewValidationError("sku", "SKUに無効な文字が含まれています", sku)
	}
	return nil
}

// ValidateStockState 在庫状態フィルターをバリデーション
func ValidateStockState(state StockState) error {
	switch state {
	case "", StockStateAll, StockStateLow, StockStateOut:
		return nil
	}
	return NewValidationError("stock", "在庫状態は all, low, out のいずれかです", string(state))
}

// ValidateID IDが空でないことをバリデーション
func ValidateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError(field, "IDが指定されていません", id)
	}
	return nil
}

func nullDecimal(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *value, Valid: true}
}

func nullString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
