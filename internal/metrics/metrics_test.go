package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("petshop", reg)

	m.ObserveMovement("exit", nil)
	m.ObserveMovement("exit", errors.New("insufficient"))
	m.ObserveCheckout(nil)
	m.ObserveCoupon("BOGUS", errors.New("invalid coupon"))
	m.ObserveRequest(http.MethodGet, "/api/v1/products", http.StatusOK, 20*time.Millisecond)

	if got := testutil.ToFloat64(m.Movements.WithLabelValues("exit", "error")); got != 1 {
		t.Errorf("expected 1 failed exit, got %v", got)
	}
	if got := testutil.ToFloat64(m.Checkouts.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected 1 checkout, got %v", got)
	}
	if got := testutil.ToFloat64(m.Coupons.WithLabelValues("unknown", "error")); got != 1 {
		t.Errorf("expected unknown coupon label, got %v", got)
	}

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	res, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(body), "petshop_http_requests_total") {
		t.Errorf("scrape output missing request counter")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *EngineMetrics
	m.ObserveMovement("entry", nil)
	m.ObserveCheckout(nil)
	m.ObserveTransition("shipped", nil)
	m.ObserveCartMutation("add", nil)
	m.ObserveCoupon("PET10", nil)
	m.ObserveRateLimited("/checkout")
	m.ObserveRequest("GET", "/", 200, time.Millisecond)
}
