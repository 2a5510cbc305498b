package workshop

import (
	"context"

	"go.uber.org/zap"
)

// ListCategories lists categories ordered by name
// カテゴリを名前順で取得
func (m *Manager) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := m.storage.ListCategories(ctx)
	if err != nil {
		return nil, asDomainError("list_categories", "カテゴリ一覧取得に失敗しました", err)
	}
	if categories == nil {
		categories = []Category{}
	}
	return categories, nil
}

// GetCategory gets a category
// カテゴリを取得
func (m *Manager) GetCategory(ctx context.Context, categoryID string) (*Category, error) {
	if err := ValidateID("category_id", categoryID); err != nil {
		return nil, err
	}
	category, err := m.storage.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, asDomainError("get_category", "カテゴリ取得に失敗しました", err)
	}
	return category, nil
}

// CreateCategory creates a category
// カテゴリを作成
func (m *Manager) CreateCategory(ctx context.Context, input *CategoryInput) (*Category, error) {
	if input == nil {
		return nil, NewValidationError("input", "入力が指定されていません", "")
	}
	input.normalize()
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := m.now()
	category := &Category{
		ID:          NewID(),
		Name:        input.Name,
		Description: input.Description,
		Icon:        input.Icon,
		Color:       input.Color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.storage.CreateCategory(ctx, category); err != nil {
		m.logger.Error("カテゴリ作成に失敗しました", zap.String("name", input.Name), zap.Error(err))
		return nil, asDomainError("create_category", "カテゴリ作成に失敗しました", err)
	}

	m.logger.Info("カテゴリ作成完了",
		zap.String("category_id", category.ID),
		zap.String("name", category.Name),
	)
	return category, nil
}

// UpdateCategory replaces a category's fields
// カテゴリの項目を更新
func (m *Manager) UpdateCategory(ctx context.Context, categoryID string, input *CategoryInput) (*Category, error) {
	if err := ValidateID("category_id", categoryID); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, NewValidationError("input", "入力が指定されていません", "")
	}
	input.normalize()
	if err := validateInput(input); err != nil {
		return nil, err
	}

	category, err := m.storage.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, asDomainError("get_category", "カテゴリ取得に失敗しました", err)
	}

	category.Name = input.Name
	category.Description = input.Description
	category.Icon = input.Icon
	category.Color = input.Color
	category.UpdatedAt = m.now()

	if err := m.storage.UpdateCategory(ctx, category); err != nil {
		return nil, asDomainError("update_category", "カテゴリ更新に失敗しました", err)
	}

	m.logger.Info("カテゴリ更新完了", zap.String("category_id", categoryID))
	return category, nil
}

// DeleteCategory deletes a category; its items keep existing without a category
// カテゴリを削除（所属商品はカテゴリなしで残る）
func (m *Manager) DeleteCategory(ctx context.Context, categoryID string) error {
	if err := ValidateID("category_id", categoryID); err != nil {
		return err
	}
	if err := m.storage.DeleteCategory(ctx, categoryID); err != nil {
		return asDomainError("delete_category", "カテゴリ削除に失敗しました", err)
	}
	m.logger.Info("カテゴリ削除完了", zap.String("category_id", categoryID))
	return nil
}
