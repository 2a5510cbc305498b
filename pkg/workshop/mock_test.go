package workshop

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStorage はテスト用のStorageモック
type MockStorage struct {
	mock.Mock
}

// WithTx は期待値を記録したうえで、自身をQueriesとしてfnを実行する
func (m *MockStorage) WithTx(ctx context.Context, fn func(q Queries) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m)
}

func (m *MockStorage) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockStorage) LockPouchAllocation(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) LockJobNumbering(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) CreateCategory(ctx context.Context, category *Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockStorage) GetCategory(ctx context.Context, categoryID string) (*Category, error) {
	args := m.Called(ctx, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Category), args.Error(1)
}

func (m *MockStorage) UpdateCategory(ctx context.Context, category *Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockStorage) DeleteCategory(ctx context.Context, categoryID string) error {
	args := m.Called(ctx, categoryID)
	return args.Error(0)
}

func (m *MockStorage) ListCategories(ctx context.Context) ([]Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Category), args.Error(1)
}

func (m *MockStorage) CreatePouch(ctx context.Context, pouch *Pouch) error {
	args := m.Called(ctx, pouch)
	return args.Error(0)
}

func (m *MockStorage) GetPouch(ctx context.Context, pouchID string) (*Pouch, error) {
	args := m.Called(ctx, pouchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Pouch), args.Error(1)
}

func (m *MockStorage) UpdatePouch(ctx context.Context, pouch *Pouch) error {
	args := m.Called(ctx, pouch)
	return args.Error(0)
}

func (m *MockStorage) DeletePouch(ctx context.Context, pouchID string) error {
	args := m.Called(ctx, pouchID)
	return args.Error(0)
}

func (m *MockStorage) ListPouchOccupancy(ctx context.Context) ([]Pouch, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Pouch), args.Error(1)
}

func (m *MockStorage) NextPouchNumber(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) CreateItem(ctx context.Context, item *Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockStorage) GetItem(ctx context.Context, itemID string) (*Item, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Item), args.Error(1)
}

func (m *MockStorage) GetItemView(ctx context.Context, itemID string) (*ItemView, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ItemView), args.Error(1)
}

func (m *MockStorage) UpdateItem(ctx context.Context, item *Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockStorage) DeleteItem(ctx context.Context, itemID string) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

func (m *MockStorage) ListItems(ctx context.Context, filter ItemFilter) ([]ItemView, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]ItemView), args.Error(1)
}

func (m *MockStorage) ListActiveItems(ctx context.Context) ([]Item, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Item), args.Error(1)
}

func (m *MockStorage) AdjustItemStock(ctx context.Context, itemID string, delta int64, at time.Time) (int64, error) {
	args := m.Called(ctx, itemID, delta, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) CreateMovement(ctx context.Context, movement *StockMovement) error {
	args := m.Called(ctx, movement)
	return args.Error(0)
}

func (m *MockStorage) ListMovements(ctx context.Context, itemID string, limit int) ([]StockMovement, error) {
	args := m.Called(ctx, itemID, limit)
	return args.Get(0).([]StockMovement), args.Error(1)
}

func (m *MockStorage) CreateJob(ctx context.Context, job *RepairJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockStorage) GetJob(ctx context.Context, jobID string) (*RepairJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RepairJob), args.Error(1)
}

func (m *MockStorage) UpdateJob(ctx context.Context, job *RepairJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockStorage) DeleteJob(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockStorage) ListJobs(ctx context.Context, status JobStatus) ([]RepairJob, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]RepairJob), args.Error(1)
}

func (m *MockStorage) NextJobNumber(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) CreateJobItem(ctx context.Context, jobItem *JobItem) error {
	args := m.Called(ctx, jobItem)
	return args.Error(0)
}

func (m *MockStorage) ListJobItems(ctx context.Context, jobID string) ([]JobItemView, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).([]JobItemView), args.Error(1)
}

// MockPublisher はテスト用のEventPublisherモック
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishStockMoved(ctx context.Context, event StockMovedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishPouchAllocated(ctx context.Context, event PouchAllocatedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishLowStockAlert(ctx context.Context, event LowStockAlertEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishRetry(ctx context.Context, event RetryEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
