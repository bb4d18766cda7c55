// Package metrics 定义引擎的 Prometheus 指标。
// 所有 Observe 方法对 nil 接收者安全，未启用指标时可直接传 nil。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics 引擎指标集合
type EngineMetrics struct {
	Requests       *prometheus.CounterVec
	LatencySeconds *prometheus.HistogramVec
	Movements      *prometheus.CounterVec
	Checkouts      *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	CartMutations  *prometheus.CounterVec
	Coupons        *prometheus.CounterVec
	RateLimited    *prometheus.CounterVec
}

// New 创建并注册指标
func New(namespace string, reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		LatencySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		Movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "movements_total",
			Help:      "Stock movements by type and outcome.",
		}, []string{"type", "outcome"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "status_transitions_total",
			Help:      "Order status transitions by target status and outcome.",
		}, []string{"to", "outcome"}),
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "mutations_total",
			Help:      "Cart mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		Coupons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "coupons_total",
			Help:      "Coupon applications by code and outcome.",
		}, []string{"code", "outcome"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.Requests,
		m.LatencySeconds,
		m.Movements,
		m.Checkouts,
		m.Transitions,
		m.CartMutations,
		m.Coupons,
		m.RateLimited,
	)
	return m
}

// Outcome 把错误折算成指标标签
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveRequest 记录一次 HTTP 请求
func (m *EngineMetrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.LatencySeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveMovement 记录一次库存流水
func (m *EngineMetrics) ObserveMovement(movementType string, err error) {
	if m == nil {
		return
	}
	m.Movements.WithLabelValues(movementType, Outcome(err)).Inc()
}

// ObserveCheckout 记录一次结算
func (m *EngineMetrics) ObserveCheckout(err error) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(Outcome(err)).Inc()
}

// ObserveTransition 记录一次订单状态流转
func (m *EngineMetrics) ObserveTransition(to string, err error) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to, Outcome(err)).Inc()
}

// ObserveCartMutation 记录一次购物车变更
func (m *EngineMetrics) ObserveCartMutation(op string, err error) {
	if m == nil {
		return
	}
	m.CartMutations.WithLabelValues(op, Outcome(err)).Inc()
}

// ObserveCoupon 记录一次优惠券使用。未知券码统一记为 unknown，避免标签爆炸。
func (m *EngineMetrics) ObserveCoupon(code string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		code = "unknown"
	}
	m.Coupons.WithLabelValues(code, Outcome(err)).Inc()
}

// ObserveRateLimited 记录一次限流拒绝
func (m *EngineMetrics) ObserveRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}

// Handler 返回 /metrics 处理器
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
