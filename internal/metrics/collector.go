package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nemonet1337/zaiRepairKit/pkg/workshop"
)

const namespace = "repairkit"

// Collector records workshop events and HTTP traffic as Prometheus metrics.
// It implements workshop.EventPublisher.
// ワークショップイベントとHTTPトラフィックをPrometheusメトリクスとして記録
type Collector struct {
	registry *prometheus.Registry

	stockMovements   *prometheus.CounterVec
	stockUnits       *prometheus.CounterVec
	pouchAllocations prometheus.Counter
	pouchesCreated   prometheus.Counter
	lowStockAlerts   prometheus.Counter
	txRetries        *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

var _ workshop.EventPublisher = (*Collector)(nil)

// NewCollector creates a collector with its own registry
// 専用レジストリを持つコレクターを作成
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		stockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_movements_total",
			Help:      "Number of ledger entries appended, by movement type.",
		}, []string{"type"}),
		stockUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_units_total",
			Help:      "Units moved through the ledger, by movement type.",
		}, []string{"type"}),
		pouchAllocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pouch_allocations_total",
			Help:      "Items bound to a pouch by the allocator.",
		}),
		pouchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pouches_created_total",
			Help:      "Pouches opened by the allocator because every pouch was full.",
		}),
		lowStockAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_alerts_total",
			Help:      "Low stock alerts raised after part usage.",
		}),
		txRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_retries_total",
			Help:      "Transactions retried after a concurrency abort, by operation.",
		}, []string{"operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.stockMovements,
		c.stockUnits,
		c.pouchAllocations,
		c.pouchesCreated,
		c.lowStockAlerts,
		c.txRetries,
		c.httpRequests,
		c.httpDuration,
	)
	return c
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
// Prometheus形式でメトリクスを公開するハンドラー
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// PublishStockMoved 在庫移動を記録
func (c *Collector) PublishStockMoved(ctx context.Context, event workshop.StockMovedEvent) error {
	c.stockMovements.WithLabelValues(string(event.Type)).Inc()
	c.stockUnits.WithLabelValues(string(event.Type)).Add(float64(event.Quantity))
	return nil
}

// PublishPouchAllocated ポーチ割り当てを記録
func (c *Collector) PublishPouchAllocated(ctx context.Context, event workshop.PouchAllocatedEvent) error {
	c.pouchAllocations.Inc()
	if event.Created {
		c.pouchesCreated.Inc()
	}
	return nil
}

// PublishLowStockAlert 低在庫アラートを記録
func (c *Collector) PublishLowStockAlert(ctx context.Context, event workshop.LowStockAlertEvent) error {
	c.lowStockAlerts.Inc()
	return nil
}

// PublishRetry 再試行を記録
func (c *Collector) PublishRetry(ctx context.Context, event workshop.RetryEvent) error {
	c.txRetries.WithLabelValues(event.Operation).Inc()
	return nil
}

// Middleware records request count and latency per mux route template
// muxのルートテンプレート単位でリクエスト数とレイテンシを記録
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		c.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		c.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
