package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nemonet1337/zaiRepairKit/pkg/workshop"
)

func TestCollector_WorkshopEvents(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	require.NoError(t, c.PublishStockMoved(ctx, workshop.StockMovedEvent{Type: workshop.MovementTypeIn, Quantity: 20}))
	require.NoError(t, c.PublishStockMoved(ctx, workshop.StockMovedEvent{Type: workshop.MovementTypeOut, Quantity: 5}))
	require.NoError(t, c.PublishStockMoved(ctx, workshop.StockMovedEvent{Type: workshop.MovementTypeOut, Quantity: 2}))
	require.NoError(t, c.PublishPouchAllocated(ctx, workshop.PouchAllocatedEvent{Created: true}))
	require.NoError(t, c.PublishPouchAllocated(ctx, workshop.PouchAllocatedEvent{}))
	require.NoError(t, c.PublishLowStockAlert(ctx, workshop.LowStockAlertEvent{}))
	require.NoError(t, c.PublishRetry(ctx, workshop.RetryEvent{Operation: "create_item", Attempt: 1}))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.stockMovements.WithLabelValues("IN")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.stockMovements.WithLabelValues("OUT")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.stockUnits.WithLabelValues("OUT")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.pouchAllocations))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pouchesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lowStockAlerts))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.txRetries.WithLabelValues("create_item")))
}

func TestCollector_Middleware(t *testing.T) {
	c := NewCollector()

	router := mux.NewRouter()
	router.Use(c.Middleware)
	router.HandleFunc("/api/v1/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods("GET")

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items/abc", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("/api/v1/items/{id}", "GET", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.httpDuration))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	require.NoError(t, c.PublishLowStockAlert(context.Background(), workshop.LowStockAlertEvent{}))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "repairkit_low_stock_alerts_total 1"), body)
	assert.Contains(t, body, "go_goroutines")
}
