package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
	"github.com/jake-scott/blink-homekit/internal/pkg/metrics"
)

func newRouter(seen *string) *mux.Router {
	r := mux.NewRouter()
	r.Use(NewLoggingMw(false))
	r.Use(NewRecoveryMw())
	r.Use(NewCorrelationMw("X-Correlation-ID"))
	r.HandleFunc("/devices/{id}", func(w http.ResponseWriter, r *http.Request) {
		*seen = logging.TxnID(r.Context())
	}).Methods(http.MethodGet)
	r.HandleFunc("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	return r
}

func TestCorrelationID(t *testing.T) {
	var seen string
	r := newRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/devices/Blink:Network:1", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "abc-123", seen)
	assert.NotEmpty(t, rec.Header().Get("X-Txn-ID"))
}

func TestBadCorrelationID(t *testing.T) {
	var seen string
	r := newRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/devices/Blink:Network:1", nil)
	req.Header.Set("X-Correlation-ID", "no spaces allowed")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, badCorrelationID, rec.Header().Get("X-Correlation-ID"))
	assert.Equal(t, rec.Header().Get("X-Txn-ID"), seen)
}

func TestNoCorrelationID(t *testing.T) {
	var seen string
	r := newRouter(&seen)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices/Blink:Network:1", nil))

	assert.Empty(t, rec.Header().Get("X-Correlation-ID"))
	assert.Equal(t, rec.Header().Get("X-Txn-ID"), seen)
}

func TestRequestsCountedByRoute(t *testing.T) {
	var seen string
	r := newRouter(&seen)

	counter := metrics.HTTPRequests.WithLabelValues("/devices/{id}", http.MethodGet, "200")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/devices/Blink:Network:1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/devices/Blink:Network:2", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestRecovery(t *testing.T) {
	var seen string
	r := newRouter(&seen)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCorsPreflight(t *testing.T) {
	var seen string
	h := NewCorsMw(CorsOptions([]string{"http://dashboard.local"}, false))(newRouter(&seen))

	req := httptest.NewRequest(http.MethodOptions, "/devices/Blink:Network:1", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://dashboard.local", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, seen)
}
