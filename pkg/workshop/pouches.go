package workshop

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ListPouches lists pouches by number with their active item counts
// ポーチを番号順に収納数付きで取得
func (m *Manager) ListPouches(ctx context.Context) ([]Pouch, error) {
	pouches, err := m.storage.ListPouchOccupancy(ctx)
	if err != nil {
		return nil, asDomainError("list_pouches", "ポーチ一覧取得に失敗しました", err)
	}
	if pouches == nil {
		pouches = []Pouch{}
	}
	return pouches, nil
}

// GetPouch gets a pouch with its active item count
// 収納数付きでポーチを取得
func (m *Manager) GetPouch(ctx context.Context, pouchID string) (*Pouch, error) {
	if err := ValidateID("pouch_id", pouchID); err != nil {
		return nil, err
	}
	pouch, err := m.storage.GetPouch(ctx, pouchID)
	if err != nil {
		return nil, asDomainError("get_pouch", "ポーチ取得に失敗しました", err)
	}
	return pouch, nil
}

// CreatePouch opens a pouch manually with the next free number.
// Numbering shares the allocation lock so a manual pouch never collides with an automatic one.
// 次の番号でポーチを手動作成（採番は自動割り当てと同じロックで直列化）
func (m *Manager) CreatePouch(ctx context.Context, input *PouchInput) (*Pouch, error) {
	if input == nil {
		input = &PouchInput{}
	}
	input.normalize()
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var pouch *Pouch
	err := m.runInTx(ctx, "create_pouch", func(q Queries) error {
		if err := q.LockPouchAllocation(ctx); err != nil {
			return err
		}
		number, err := q.NextPouchNumber(ctx)
		if err != nil {
			return err
		}

		label := input.Label
		if label == "" {
			label = fmt.Sprintf(m.config.PouchLabelFormat, number)
		}
		now := m.now()
		pouch = &Pouch{
			ID:          NewID(),
			Number:      number,
			Label:       label,
			Description: input.Description,
			Location:    input.Location,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return q.CreatePouch(ctx, pouch)
	})
	if err != nil {
		m.logger.Error("ポーチ作成に失敗しました", zap.Error(err))
		return nil, asDomainError("create_pouch", "ポーチ作成に失敗しました", err)
	}

	m.logger.Info("ポーチ作成完了",
		zap.String("pouch_id", pouch.ID),
		zap.Int64("pouch_number", pouch.Number),
	)
	return pouch, nil
}

// UpdatePouch updates label, description and location. The number never changes.
// ラベル・説明・保管場所を更新（番号は不変）
func (m *Manager) UpdatePouch(ctx context.Context, pouchID string, input *PouchInput) (*Pouch, error) {
	if err := ValidateID("pouch_id", pouchID); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, NewValidationError("input", "入力が指定されていません", "")
	}
	input.normalize()
	if err := validateInput(input); err != nil {
		return nil, err
	}

	pouch, err := m.storage.GetPouch(ctx, pouchID)
	if err != nil {
		return nil, asDomainError("get_pouch", "ポーチ取得に失敗しました", err)
	}

	if input.Label != "" {
		pouch.Label = input.Label
	}
	pouch.Description = input.Description
	pouch.Location = input.Location
	pouch.UpdatedAt = m.now()

	if err := m.storage.UpdatePouch(ctx, pouch); err != nil {
		return nil, asDomainError("update_pouch", "ポーチ更新に失敗しました", err)
	}

	m.logger.Info("ポーチ更新完了", zap.String("pouch_id", pouchID))
	return pouch, nil
}

// DeletePouch deletes a pouch; its items become unassigned
// ポーチを削除（収納商品は未割り当てになる）
func (m *Manager) DeletePouch(ctx context.Context, pouchID string) error {
	if err := ValidateID("pouch_id", pouchID); err != nil {
		return err
	}
	if err := m.storage.DeletePouch(ctx, pouchID); err != nil {
		return asDomainError("delete_pouch", "ポーチ削除に失敗しました", err)
	}
	m.logger.Info("ポーチ削除完了", zap.String("pouch_id", pouchID))
	return nil
}
