package workshop

import (
	"errors"
	"fmt"
)

// Common workshop errors
// 共通のエラー定義

var (
	// ErrItemNotFound is returned when an item doesn't exist
	// 商品が存在しない場合のエラー
	ErrItemNotFound = &NotFoundError{Resource: "item"}

	// ErrCategoryNotFound is returned when a category doesn't exist
	// カテゴリが存在しない場合のエラー
	ErrCategoryNotFound = &NotFoundError{Resource: "category"}

	// ErrPouchNotFound is returned when a pouch doesn't exist
	// ポーチが存在しない場合のエラー
	ErrPouchNotFound = &NotFoundError{Resource: "pouch"}

	// ErrJobNotFound is returned when a repair job doesn't exist
	// 修理ジョブが存在しない場合のエラー
	ErrJobNotFound = &NotFoundError{Resource: "repair_job"}

	// ErrNegativeStock is returned when a usage would drive stock below zero and the policy forbids it
	// 負の在庫が禁止されている場合のエラー
	ErrNegativeStock = errors.New("在庫が不足しています")
)

// ValidationError represents a validation error with details
// 詳細付きバリデーションエラーを表現
type ValidationError struct {
	Field   string `json:"field"`   // エラーフィールド
	Message string `json:"message"` // エラーメッセージ
	Value   string `json:"value"`   // 無効な値
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("バリデーションエラー [%s]: %s (値: %s)", e.Field, e.Message, e.Value)
}

// NotFoundError represents a missing referenced entity
// 参照先エンティティが存在しないことを表現
type NotFoundError struct {
	Resource string `json:"resource"` // リソース種別
	ID       string `json:"id"`       // 参照ID
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s が見つかりません", e.Resource)
	}
	return fmt.Sprintf("%s が見つかりません (ID: %s)", e.Resource, e.ID)
}

// Is matches any NotFoundError of the same resource so that errors.Is(err, ErrItemNotFound)
// holds for errors carrying an ID
func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	if !ok {
		return false
	}
	return t.Resource == e.Resource && (t.ID == "" || t.ID == e.ID)
}

// ConflictError represents a uniqueness violation
// 一意制約違反を表現
type ConflictError struct {
	Field   string `json:"field"`   // 重複フィールド
	Value   string `json:"value"`   // 重複値
	Message string `json:"message"` // エラーメッセージ
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("競合エラー [%s]: %s (値: %s)", e.Field, e.Message, e.Value)
}

// BusinessRuleError represents a business rule violation
// ビジネスルール違反を表現
type BusinessRuleError struct {
	Rule    string `json:"rule"`    // ルール名
	Message string `json:"message"` // エラーメッセージ
	Context string `json:"context"` // コンテキスト情報
	Cause   error  `json:"-"`       // 原因エラー
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("ビジネスルール違反 [%s]: %s (コンテキスト: %s)", e.Rule, e.Message, e.Context)
}

func (e *BusinessRuleError) Unwrap() error {
	return e.Cause
}

// ConcurrencyError represents a transaction aborted by the store's isolation mechanism
// ストアの分離機構により中断されたトランザクションを表現
type ConcurrencyError struct {
	Operation string `json:"operation"` // 操作名
	Resource  string `json:"resource"`  // リソース
	Message   string `json:"message"`   // エラーメッセージ
	Cause     error  `json:"-"`         // 原因エラー
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("同時実行エラー [%s:%s]: %s", e.Operation, e.Resource, e.Message)
}

func (e *ConcurrencyError) Unwrap() error {
	return e.Cause
}

// StorageError represents a storage layer error
// ストレージ層のエラーを表現
type StorageError struct {
	Operation string `json:"operation"` // 操作名
	Message   string `json:"message"`   // エラーメッセージ
	Cause     error  `json:"-"`         // 原因エラー
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ストレージエラー [%s]: %s (原因: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("ストレージエラー [%s]: %s", e.Operation, e.Message)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
// 新しいバリデーションエラーを作成
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewNotFoundError creates a not-found error for a resource and id
// リソースとIDの未検出エラーを作成
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewConflictError creates a new conflict error
// 新しい競合エラーを作成
func NewConflictError(field, value, message string) *ConflictError {
	return &ConflictError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewBusinessRuleError creates a new business rule error
// 新しいビジネスルールエラーを作成
func NewBusinessRuleError(rule, message, context string, cause error) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
		Cause:   cause,
	}
}

// NewConcurrencyError creates a new concurrency error
// 新しい同時実行エラーを作成
func NewConcurrencyError(operation, resource, message string, cause error) *ConcurrencyError {
	return &ConcurrencyError{
		Operation: operation,
		Resource:  resource,
		Message:   message,
		Cause:     cause,
	}
}

// NewStorageError creates a new storage error
// 新しいストレージエラーを作成
func NewStorageError(operation, message string, cause error) *StorageError {
	return &StorageError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// IsConcurrencyError reports whether err should be retried
// 再試行すべきエラーかを判定
func IsConcurrencyError(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}

// asDomainError keeps typed errors as they are and wraps anything else as a StorageError
// 型付きエラーはそのまま返し、それ以外はStorageErrorでラップ
func asDomainError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		br *BusinessRuleError
		cc *ConcurrencyError
		se *StorageError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &nf), errors.As(err, &ce),
		errors.As(err, &br), errors.As(err, &cc), errors.As(err, &se):
		return err
	}
	return NewStorageError(operation, message, err)
}
