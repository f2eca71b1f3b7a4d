package dbpool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// metricsCollector is a private Prometheus registry for pool gauges, kept
// off the process-default registry so multiple pools (as in tests) do not
// collide registering the same metric names.
type metricsCollector struct {
	mu       sync.Mutex
	registry *prometheus.Registry

	utilization prometheus.Gauge
	successRate prometheus.Gauge
	activeConns prometheus.Gauge
	idleConns   prometheus.Gauge
}

func newMetricsCollector() metricsCollector {
	c := metricsCollector{}
	c.resetLocked()
	return c
}

func (c *metricsCollector) resetLocked() {
	c.registry = prometheus.NewRegistry()
	c.utilization = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dbpool_utilization_percent",
		Help: "Connection pool utilization percent (active/max*100).",
	})
	c.successRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dbpool_success_rate_percent",
		Help: "Query success rate percent.",
	})
	c.activeConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dbpool_active_connections",
		Help: "Currently acquired connections.",
	})
	c.idleConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dbpool_idle_connections",
		Help: "Currently idle connections.",
	})
	c.registry.MustRegister(c.utilization, c.successRate, c.activeConns, c.idleConns)
}

func (c *metricsCollector) observe(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.utilization.Set(snap.UtilizationPercent)
	c.successRate.Set(snap.SuccessRatePercent)
	c.activeConns.Set(float64(snap.ActiveConnections))
	c.idleConns.Set(float64(snap.IdleConnections))
}

// Handler exposes the pool's private registry as a /metrics-style endpoint.
func (p *Pool) Handler() http.Handler {
	p.mx.mu.Lock()
	defer p.mx.mu.Unlock()
	return promhttp.HandlerFor(p.mx.registry, promhttp.HandlerOpts{})
}
