package workshop

import (
	"bytes"
	"context"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ExportSheetName is the worksheet holding exported items
const ExportSheetName = "Inventory"

var exportHeaders = []string{
	"Name", "SKU", "Category", "Pouch", "Current Stock", "Min Stock",
	"Purchase Price", "Selling Price", "Supplier", "Active", "Updated At",
}

// ExportItems renders ListItems(filter) as an XLSX workbook
// ListItems(filter)の結果をXLSXワークブックとして出力
func (m *Manager) ExportItems(ctx context.Context, filter ItemFilter) ([]byte, error) {
	items, err := m.ListItems(ctx, filter)
	if err != nil {
		return nil, err
	}

	data, err := renderItemsWorkbook(items)
	if err != nil {
		m.logger.Error("Excel出力に失敗しました", zap.Error(err))
		return nil, NewStorageError("export_items", "Excel出力に失敗しました", err)
	}

	m.logger.Info("商品エクスポート完了", zap.Int("count", len(items)), zap.Int("bytes", len(data)))
	return data, nil
}

func renderItemsWorkbook(items []ItemView) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ExportSheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	for col, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(ExportSheetName, cell, header); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(ExportSheetName, cell, cell, headerStyle); err != nil {
			return nil, err
		}
	}

	for r, item := range items {
		row := []interface{}{
			item.Name,
			derefString(item.SKU),
			derefString(item.CategoryName),
			derefString(item.PouchLabel),
			item.CurrentStock,
			item.MinStockLevel,
			moneyCell(item.PurchasePrice.Valid, item.PurchasePrice.Decimal.InexactFloat64()),
			moneyCell(item.SellingPrice.Valid, item.SellingPrice.Decimal.InexactFloat64()),
			item.Supplier,
			item.IsActive,
			item.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(ExportSheetName, cell, &row); err != nil {
			return nil, err
		}
	}

	if err := f.SetColWidth(ExportSheetName, "A", "K", 15); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// 未設定の価格は空セル
func moneyCell(valid bool, value float64) interface{} {
	if !valid {
		return nil
	}
	return value
}
