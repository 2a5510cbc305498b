package storage_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiRepairKit/pkg/workshop"
	"github.com/nemonet1337/zaiRepairKit/pkg/workshop/storage"
)

func newTestStorage(t *testing.T) *storage.SQLStorage {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(ctx, ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.Migrate(ctx)
	require.NoError(t, err)
	return store
}

func newTestManager(t *testing.T) (*workshop.Manager, *storage.SQLStorage) {
	t.Helper()
	store := newTestStorage(t)
	return workshop.NewManager(store, nil, zap.NewNop(), nil), store
}

func createCategory(t *testing.T, m *workshop.Manager, name string) *workshop.Category {
	t.Helper()
	c, err := m.CreateCategory(context.Background(), &workshop.CategoryInput{Name: name, Color: "#8b5cf6"})
	require.NoError(t, err)
	return c
}

func createItem(t *testing.T, m *workshop.Manager, categoryID, name string, stock int64) *workshop.ItemView {
	t.Helper()
	item, err := m.CreateItem(context.Background(), &workshop.CreateItemInput{
		Name:         name,
		CategoryID:   categoryID,
		CurrentStock: stock,
	})
	require.NoError(t, err)
	return item
}

func TestMigrate_SkipsAppliedFiles(t *testing.T) {
	store := newTestStorage(t)

	results, err := store.Migrate(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.False(t, r.Applied, r.Filename)
		assert.Len(t, r.Checksum, 64)
	}
}

func TestCreateItem_ResistorScenario(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	resistors := createCategory(t, m, "Resistors")
	item := createItem(t, m, resistors.ID, "10kΩ Resistor", 20)

	require.NotNil(t, item.PouchID)
	require.NotNil(t, item.PouchNumber)
	assert.Equal(t, int64(1), *item.PouchNumber)
	assert.Equal(t, "Pouch #1", *item.PouchLabel)
	assert.Equal(t, "Resistors", *item.CategoryName)
	assert.Equal(t, int64(20), item.CurrentStock)
	assert.Equal(t, int64(workshop.DefaultMinStockLevel), item.MinStockLevel)
	assert.True(t, item.IsActive)

	history, err := m.GetHistory(ctx, item.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, workshop.MovementTypeIn, history[0].Type)
	assert.Equal(t, int64(20), history[0].Quantity)
	assert.Equal(t, item.ID, history[0].ItemID)
	assert.Equal(t, workshop.ReasonInitialStock, history[0].Reason)
}

func TestCreateItem_ZeroStockRecordsNoMovement(t *testing.T) {
	m, _ := newTestManager(t)
	category := createCategory(t, m, "Screens")
	item := createItem(t, m, category.ID, "iPhone 12 screen", 0)

	history, err := m.GetHistory(context.Background(), item.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCreateItem_SequentialAllocation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	category := createCategory(t, m, "Capacitors")

	for i := 1; i <= 11; i++ {
		item := createItem(t, m, category.ID, fmt.Sprintf("Capacitor %d", i), 1)
		require.NotNil(t, item.PouchNumber)
		if i <= 10 {
			assert.Equal(t, int64(1), *item.PouchNumber, "item %d", i)
		} else {
			assert.Equal(t, int64(2), *item.PouchNumber, "item %d", i)
		}
	}

	pouches, err := m.ListPouches(ctx)
	require.NoError(t, err)
	require.Len(t, pouches, 2)
	assert.Equal(t, int64(10), pouches[0].ItemCount)
	assert.Equal(t, int64(1), pouches[1].ItemCount)
	assert.Equal(t, "Pouch #2", pouches[1].Label)
}

func TestCreateItem_FillsFreedSlotBeforeNewPouch(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	category := createCategory(t, m, "Connectors")

	var first *workshop.ItemView
	for i := 1; i <= 10; i++ {
		item := createItem(t, m, category.ID, fmt.Sprintf("Connector %d", i), 1)
		if i == 1 {
			first = item
		}
	}

	// 非アクティブ化で空いた枠は再利用される
	inactive := false
	_, err := m.UpdateItem(ctx, first.ID, &workshop.UpdateItemInput{IsActive: &inactive})
	require.NoError(t, err)

	item := createItem(t, m, category.ID, "Connector 11", 1)
	assert.Equal(t, int64(1), *item.PouchNumber)

	pouches, err := m.ListPouches(ctx)
	require.NoError(t, err)
	assert.Len(t, pouches, 1)
}

func TestUpdateItem_ReactivationRespectsCapacity(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	category := createCategory(t, m, "Fuses")

	first := createItem(t, m, category.ID, "Fuse 0", 1)
	inactive, active := false, true
	_, err := m.UpdateItem(ctx, first.ID, &workshop.UpdateItemInput{IsActive: &inactive})
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		item := createItem(t, m, category.ID, fmt.Sprintf("Fuse %d", i), 1)
		require.Equal(t, int64(1), *item.PouchNumber, "item %d", i)
	}

	// 満杯のポーチには戻さず次のポーチへ移動
	reactivated, err := m.UpdateItem(ctx, first.ID, &workshop.UpdateItemInput{IsActive: &active})
	require.NoError(t, err)
	assert.True(t, reactivated.IsActive)
	require.NotNil(t, reactivated.PouchNumber)
	assert.Equal(t, int64(2), *reactivated.PouchNumber)

	pouches, err := m.ListPouches(ctx)
	require.NoError(t, err)
	require.Len(t, pouches, 2)
	for _, p := range pouches {
		assert.LessOrEqual(t, p.ItemCount, int64(workshop.DefaultPouchCapacity), "pouch %d", p.Number)
	}
	assert.Equal(t, int64(10), pouches[0].ItemCount)
	assert.Equal(t, int64(1), pouches[1].ItemCount)
}

func TestUpdateItem_ReactivationKeepsPouchWithSpace(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	category := createCategory(t, m, "Switches")

	item := createItem(t, m, category.ID, "Tact switch", 5)
	inactive, active := false, true
	_, err := m.UpdateItem(ctx, item.ID, &workshop.UpdateItemInput{IsActive: &inactive})
	require.NoError(t, err)

	reactivated, err := m.UpdateItem(ctx, item.ID, &workshop.UpdateItemInput{IsActive: &active})
	require.NoError(t, err)
	assert.Equal(t, *item.PouchID, *reactivated.PouchID)
}

func TestCreateItem_ConcurrentAllocation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	category := createCategory(t, m, "Batteries")

	const k = 25
	var wg sync.WaitGroup
	errs := make(chan error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := m.CreateItem(ctx, &workshop.CreateItemInput{
				Name:         fmt.Sprintf("Battery %d", n),
				CategoryID:   category.ID,
				CurrentStock: 3,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	pouches, err := m.ListPouches(ctx)
	require.NoError(t, err)
	require.Len(t, pouches, (k+workshop.DefaultPouchCapacity-1)/workshop.DefaultPouchCapacity)

	var total int64
	for i, p := range pouches {
		assert.Equal(t, int64(i+1), p.Number)
		assert.LessOrEqual(t, p.ItemCount, int64(workshop.DefaultPouchCapacity))
		total += p.ItemCount
	}
	assert.Equal(t, int64(k), total)
}

func TestCreateItem_ExplicitPouch(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	category := createCategory(t, m, "Tools")

	pouch, err := m.CreatePouch(ctx, &workshop.PouchInput{Label: "Drawer A", Location: "Bench"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), pouch.Number)

	item, err := m.CreateItem(ctx, &workshop.CreateItemInput{
		Name:       "Pentalobe driver",
		CategoryID: category.ID,
		PouchID:    &pouch.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, pouch.ID, *item.PouchID)
	assert.Equal(t, "Drawer A", *item.PouchLabel)

	missing := workshop.NewID()
	_, err = m.CreateItem(ctx, &workshop.CreateItemInput{
		Name:       "Spudger",
		CategoryID: category.ID,
		PouchID:    &missing,
	})
	assert.True(t, errors.Is(err, workshop.ErrPouchNotFound))
}

func TestCreateItem_Errors(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	category := createCategory(t, m, "ICs")

	t.Run("unknown category", func(t *testing.T) {
		_, err := m.CreateItem(ctx, &workshop.CreateItemInput{Name: "NE555", CategoryID: workshop.NewID()})
		assert.True(t, errors.Is(err, workshop.ErrCategoryNotFound))
	})

	t.Run("duplicate sku", func(t *testing.T) {
		_, err := m.CreateItem(ctx, &workshop.CreateItemInput{Name: "NE555", CategoryID: category.ID, SKU: "IC-555"})
		require.NoError(t, err)

		_, err = m.CreateItem(ctx, &workshop.CreateItemInput{Name: "NE555 spare", CategoryID: category.ID, SKU: "IC-555"})
		var conflict *workshop.ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, "sku", conflict.Field)
	})

	t.Run("failed create leaves occupancy unchanged", func(t *testing.T) {
		pouches, err := m.ListPouches(ctx)
		require.NoError(t, err)
		assert.Len(t, pouches, 1)
		assert.Equal(t, int64(1), pouches[0].ItemCount)
	})
}

func TestCreateJobItem_DecrementsStock(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	category := createCategory(t, m, "Resistors")
	item := createItem(t, m, category.ID, "10kΩ Resistor", 20)

	job, err := m.CreateJob(ctx, &workshop.JobInput{CustomerName: "Sato", DeviceType: "Amplifier"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), job.JobNumber)
	assert.Equal(t, workshop.JobStatusPending, job.Status)

	result, err := m.CreateJobItem(ctx, &workshop.JobItemInput{JobID: job.ID, ItemID: item.ID, QuantityUsed: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(15), result.CurrentStock)
	assert.Equal(t, workshop.MovementTypeOut, result.Movement.Type)
	assert.Equal(t, int64(5), result.Movement.Quantity)
	require.NotNil(t, result.Movement.ReferenceID)
	assert.Equal(t, job.ID, *result.Movement.ReferenceID)

	got, err := m.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), got.CurrentStock)

	history, err := m.GetHistory(ctx, item.ID, 0)
	require.NoError(t, err)
	var outs int
	for _, mv := range history {
		if mv.Type == workshop.MovementTypeOut {
			outs++
			assert.Equal(t, int64(5), mv.Quantity)
		}
	}
	assert.Equal(t, 1, outs)
	assert.Len(t, history, 2)

	used, err := m.ListJobItems(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, used, 1)
	assert.Equal(t, "10kΩ Resistor", used[0].ItemName)
	assert.Equal(t, int64(5), used[0].QuantityUsed)
}

func TestCreateJobItem_ConcurrentUsageLosesNoUpdate(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	category := createCategory(t, m, "Fuses")
	item := createItem(t, m, category.ID, "2A fuse", 100)
	job, err := m.CreateJob(ctx, &workshop.JobInput{CustomerName: "Tanaka"})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CreateJobItem(ctx, &workshop.JobItemInput{JobID: job.ID, ItemID: item.ID, QuantityUsed: 2})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := m.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100-2*n), got.CurrentStock)
}

func TestCreateJobItem_AllowsNegativeStockByDefault(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	category := createCategory(t, m, "Chips")
	item := createItem(t, m, category.ID, "Charger IC", 1)
	job, err := m.CreateJob(ctx, &workshop.JobInput{CustomerName: "Suzuki"})
	require.NoError(t, err)

	result, err := m.CreateJobItem(ctx, &workshop.JobItemInput{JobID: job.ID, ItemID: item.ID, QuantityUsed: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(-2), result.CurrentStock)
}

func TestCreateJobItem_RejectNegativeStockRollsBack(t *testing.T) {
	store := newTestStorage(t)
	config := workshop.DefaultConfig()
	config.RejectNegativeStock = true
	m := workshop.NewManager(store, nil, zap.NewNop(), config)
	ctx := context.Background()

	category := createCategory(t, m, "Chips")
	item := createItem(t, m, category.ID, "Charger IC", 1)
	job, err := m.CreateJob(ctx, &workshop.JobInput{CustomerName: "Suzuki"})
	require.NoError(t, err)

	_, err = m.CreateJobItem(ctx, &workshop.JobItemInput{JobID: job.ID, ItemID: item.ID, QuantityUsed: 3})
	assert.True(t, errors.Is(err, workshop.ErrNegativeStock))

	got, err := m.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.CurrentStock)

	used, err := m.ListJobItems(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, used)

	history, err := m.GetHistory(ctx, item.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCreateJobItem_NotFound(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	category := createCategory(t, m, "Chips")
	item := createItem(t, m, category.ID, "PMIC", 4)
	job, err := m.CreateJob(ctx, &workshop.JobInput{CustomerName: "Ito"})
	require.NoError(t, err)

	_, err = m.CreateJobItem(ctx, &workshop.JobItemInput{JobID: workshop.NewID(), ItemID: item.ID, QuantityUsed: 1})
	assert.True(t, errors.Is(err, workshop.ErrJobNotFound))

	_, err = m.CreateJobItem(ctx, &workshop.JobItemInput{JobID: job.ID, ItemID: workshop.NewID(), QuantityUsed: 1})
	assert.True(t, errors.Is(err, workshop.ErrItemNotFound))
}

func TestListItems_FiltersAndOrdering(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	resistors := createCategory(t, m, "Resistors")
	screens := createCategory(t, m, "Screens")

	r1 := createItem(t, m, resistors.ID, "10kΩ Resistor", 20)
	r2 := createItem(t, m, resistors.ID, "100Ω Resistor", 3)
	s1 := createItem(t, m, screens.ID, "Pixel 7 screen", 0)

	_, err := m.UpdateItem(ctx, s1.ID, &workshop.UpdateItemInput{Supplier: strPtr("Acme 100% Parts")})
	require.NoError(t, err)

	all, err := m.ListItems(ctx, workshop.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{s1.ID, r2.ID, r1.ID}, ids(all))

	byCategory, err := m.ListItems(ctx, workshop.ItemFilter{Category: "Resistors"})
	require.NoError(t, err)
	assert.Equal(t, []string{r2.ID, r1.ID}, ids(byCategory))

	search, err := m.ListItems(ctx, workshop.ItemFilter{Search: "RESISTOR"})
	require.NoError(t, err)
	assert.Len(t, search, 2)

	// 非ASCII文字も大文字小文字を区別しない
	unicodeTests := []struct {
		search string
		want   []string
	}{
		{"10kΩ", []string{r1.ID}},
		{"10kω", []string{r1.ID}},
		{"10KΩ resistor", []string{r1.ID}},
		{"Ω RESISTOR", []string{r2.ID, r1.ID}},
		{"ω", []string{r2.ID, r1.ID}},
	}
	for _, tt := range unicodeTests {
		found, err := m.ListItems(ctx, workshop.ItemFilter{Search: tt.search})
		require.NoError(t, err)
		assert.Equal(t, tt.want, ids(found), tt.search)
	}

	literal, err := m.ListItems(ctx, workshop.ItemFilter{Search: "100%"})
	require.NoError(t, err)
	assert.Equal(t, []string{s1.ID}, ids(literal))

	low, err := m.ListItems(ctx, workshop.ItemFilter{StockState: workshop.StockStateLow})
	require.NoError(t, err)
	assert.Equal(t, []string{s1.ID, r2.ID}, ids(low))

	out, err := m.ListItems(ctx, workshop.ItemFilter{StockState: workshop.StockStateOut})
	require.NoError(t, err)
	assert.Equal(t, []string{s1.ID}, ids(out))

	combined, err := m.ListItems(ctx, workshop.ItemFilter{Category: "Resistors", StockState: workshop.StockStateLow})
	require.NoError(t, err)
	assert.Equal(t, []string{r2.ID}, ids(combined))
}

func TestListItems_Idempotent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	category := createCategory(t, m, "Cables")
	for i := 0; i < 5; i++ {
		createItem(t, m, category.ID, fmt.Sprintf("Flex cable %d", i), int64(i))
	}

	filter := workshop.ItemFilter{Search: "flex", StockState: workshop.StockStateLow}
	before, err := m.ListItems(ctx, filter)
	require.NoError(t, err)

	// 変更を伴わない操作
	_, err = m.ListCategories(ctx)
	require.NoError(t, err)
	_, err = m.GetSummary(ctx)
	require.NoError(t, err)

	after, err := m.ListItems(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDelete_CascadesAndUnbinds(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	category := createCategory(t, m, "Speakers")
	item := createItem(t, m, category.ID, "Earpiece", 6)
	job, err := m.CreateJob(ctx, &workshop.JobInput{CustomerName: "Kato"})
	require.NoError(t, err)
	_, err = m.CreateJobItem(ctx, &workshop.JobItemInput{JobID: job.ID, ItemID: item.ID, QuantityUsed: 1})
	require.NoError(t, err)

	// カテゴリとポーチの削除は商品を残して参照をNULLにする
	require.NoError(t, m.DeleteCategory(ctx, category.ID))
	require.NoError(t, m.DeletePouch(ctx, *item.PouchID))

	got, err := m.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
	assert.Nil(t, got.PouchID)
	assert.Nil(t, got.PouchNumber)

	// ジョブ削除は使用記録を連鎖削除し、在庫は戻さない
	require.NoError(t, m.DeleteJob(ctx, job.ID))
	got, err = m.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.CurrentStock)

	// 商品削除後も移動履歴は残る
	require.NoError(t, m.DeleteItem(ctx, item.ID))
	movements, err := store.ListMovements(ctx, item.ID, 10)
	require.NoError(t, err)
	assert.Len(t, movements, 2)

	err = m.DeleteItem(ctx, item.ID)
	assert.True(t, errors.Is(err, workshop.ErrItemNotFound))
}

func TestUpdateJob_CompletedAt(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	job, err := m.CreateJob(ctx, &workshop.JobInput{CustomerName: "Yamada", DeviceModel: "Switch"})
	require.NoError(t, err)
	assert.Nil(t, job.CompletedAt)

	second, err := m.CreateJob(ctx, &workshop.JobInput{CustomerName: "Kimura"})
	require.NoError(t, err)
	assert.Equal(t, job.JobNumber+1, second.JobNumber)

	final := decimal.NewFromFloat(49.5)
	done, err := m.UpdateJob(ctx, job.ID, &workshop.JobInput{
		CustomerName: "Yamada",
		DeviceModel:  "Switch",
		Status:       workshop.JobStatusCompleted,
		FinalCost:    &final,
	})
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)

	stored, err := m.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, stored.FinalCost.Valid)
	assert.True(t, final.Equal(stored.FinalCost.Decimal))

	completed, err := m.ListJobs(ctx, workshop.JobStatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, job.ID, completed[0].ID)

	reopened, err := m.UpdateJob(ctx, job.ID, &workshop.JobInput{CustomerName: "Yamada", Status: workshop.JobStatusInProgress})
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)
}

func TestGetSummary(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	category := createCategory(t, m, "Resistors")

	price := decimal.RequireFromString("0.25")
	retail := decimal.RequireFromString("1.00")
	_, err := m.CreateItem(ctx, &workshop.CreateItemInput{
		Name:          "10kΩ Resistor",
		CategoryID:    category.ID,
		CurrentStock:  20,
		PurchasePrice: &price,
		SellingPrice:  &retail,
	})
	require.NoError(t, err)
	createItem(t, m, category.ID, "1MΩ Resistor", 0)

	summary, err := m.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TotalItems)
	assert.Equal(t, int64(1), summary.OutOfStockItems)
	assert.Equal(t, int64(1), summary.LowStockItems)
	assert.Equal(t, int64(20), summary.TotalUnits)
	assert.Equal(t, "5.00", summary.PurchaseValue.StringFixed(2))
	assert.Equal(t, "20.00", summary.RetailValue.StringFixed(2))
	assert.Equal(t, int64(1), summary.Pouches)
	assert.Equal(t, int64(8), summary.FreeSlots)
}

func TestExportItems(t *testing.T) {
	m, _ := newTestManager(t)
	category := createCategory(t, m, "Resistors")
	createItem(t, m, category.ID, "10kΩ Resistor", 20)

	data, err := m.ExportItems(context.Background(), workshop.ItemFilter{})
	require.NoError(t, err)
	require.Greater(t, len(data), 4)
	assert.Equal(t, "PK", string(data[:2]))
}

func ids(items []workshop.ItemView) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func strPtr(s string) *string {
	return &s
}
