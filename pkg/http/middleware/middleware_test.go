package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	applogger "ExecGuard/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCORSPreflight(t *testing.T) {
	e := echo.New()
	e.Use(CORS(CORSConfig{AllowOrigins: []string{"*"}, AllowMethods: []string{http.MethodGet, http.MethodPost}}))
	e.POST("/api/execute", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/execute", nil)
	req.Header.Set(echo.HeaderOrigin, "https://ops.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://ops.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "GET, POST", rec.Header().Get(echo.HeaderAccessControlAllowMethods))
	assert.Equal(t, "600", rec.Header().Get(echo.HeaderAccessControlMaxAge))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	e := echo.New()
	e.Use(CORS(CORSConfig{AllowOrigins: []string{"https://ops.example"}}))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestRecoverReturns500(t *testing.T) {
	e := echo.New()
	e.Use(Recover(applogger.NewNop()))
	e.GET("/boom", func(c echo.Context) error { panic("boom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal Server Error")
}

func TestMetricsCountsByRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := echo.New()
	e.Use(Metrics(reg, applogger.NewNop(), 0))
	e.GET("/api/prices/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, id := range []string{"zn", "zb", "fgbl"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prices/"+id, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	m := newHTTPMetrics(reg)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/prices/:id", http.MethodGet, "2xx")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(503))
}
