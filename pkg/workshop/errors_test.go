package workshop

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewNotFoundError("item", "ITEM-1"))

	assert.True(t, errors.Is(err, ErrItemNotFound))
	assert.True(t, errors.Is(err, NewNotFoundError("item", "ITEM-1")))
	assert.False(t, errors.Is(err, NewNotFoundError("item", "ITEM-2")))
	assert.False(t, errors.Is(err, ErrCategoryNotFound))
}

func TestIsConcurrencyError(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := fmt.Errorf("tx: %w", NewConcurrencyError("create_item", "pouch", "中断", cause))

	assert.True(t, IsConcurrencyError(err))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, IsConcurrencyError(NewStorageError("ping", "失敗", cause)))
	assert.False(t, IsConcurrencyError(nil))
}

func TestAsDomainError(t *testing.T) {
	typed := []error{
		NewValidationError("name", "必須項目です", ""),
		NewNotFoundError("pouch", "P1"),
		NewConflictError("sku", "R-1", "重複"),
		NewBusinessRuleError("negative_stock", "不足", "", ErrNegativeStock),
		NewConcurrencyError("op", "pouch", "中断", nil),
		NewStorageError("op", "失敗", nil),
	}
	for _, err := range typed {
		assert.Same(t, err, asDomainError("op", "msg", err))
	}

	raw := errors.New("connection refused")
	wrapped := asDomainError("list_items", "商品一覧取得に失敗しました", raw)
	var se *StorageError
	assert.True(t, errors.As(wrapped, &se))
	assert.Equal(t, "list_items", se.Operation)
	assert.True(t, errors.Is(wrapped, raw))

	assert.NoError(t, asDomainError("op", "msg", nil))
}
