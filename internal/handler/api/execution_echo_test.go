package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	models "ExecGuard/internal/domain/models"
	"ExecGuard/internal/domain/service"
	"ExecGuard/internal/repository"
	"ExecGuard/internal/service/instruments"
	"ExecGuard/internal/services/orders"
	"ExecGuard/internal/services/pricing"
	"ExecGuard/internal/services/risk"
	"ExecGuard/internal/usecase"
	"ExecGuard/pkg/clock"
	"ExecGuard/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiFixture struct {
	e     *echo.Echo
	cache *pricing.PriceCache
	clock *clock.Manual
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	clk := clock.NewManual(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))
	cfg := config.Default()
	cfg.Risk.KillSwitch.Engines = []string{"core"}

	catalog := instruments.New(
		map[string]map[string]config.InstrumentConfig{
			"rates": {
				"zn": {Symbol: "ZN", SecType: "FUT", Multiplier: 1000},
				"zb": {Symbol: "ZB", SecType: "FUT", Multiplier: 1000},
			},
		},
		map[string]float64{"zn": 110, "ZB": 118.5},
	)
	pc := pricing.NewPriceCache(repository.NopStore{}, pricing.CacheOptions{}, clk, nil, nil)
	resolver := pricing.NewResolver([]service.PriceSource{pricing.NewGuardrailSource(catalog, clk)}, pc, catalog, pricing.WithClock(clk))
	generator := orders.NewGenerator(cfg.Orders, catalog, orders.WithClock(clk))
	discipline := risk.NewDiscipline(cfg.Risk, clk, nil, nil)
	gate := usecase.NewExecutionGate(resolver, generator, discipline, repository.NopPublisher{}, repository.NopAuditStorage{}, nil, clk, nil)

	e := echo.New()
	NewExecutionEchoHandler(nil, resolver, pc, generator, discipline, gate).RegisterRoutes(e)
	return &apiFixture{e: e, cache: pc, clock: clk}
}

func do(t *testing.T, e *echo.Echo, method, path, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestPriceEndpoint(t *testing.T) {
	e := newAPIFixture(t).e

	code, env := do(t, e, http.MethodGet, "/api/prices/zn", "")
	require.Equal(t, http.StatusOK, code)
	var res models.PriceResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 110.0, res.Price)
	assert.Equal(t, models.TierGuardrail, res.Tier)

	code, env = do(t, e, http.MethodGet, "/api/prices/nope", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, models.TierFailed, res.Tier)
	assert.NotEmpty(t, res.Error)
}

func TestPriceBatchAndMetrics(t *testing.T) {
	e := newAPIFixture(t).e

	code, env := do(t, e, http.MethodPost, "/api/prices/batch", `{"ids":["zn","zb","zn"]}`)
	require.Equal(t, http.StatusOK, code)
	var batch map[string]models.PriceResult
	require.NoError(t, json.Unmarshal(env.Data, &batch))
	assert.Len(t, batch, 2)
	assert.Equal(t, 118.5, batch["zb"].Price)

	code, env = do(t, e, http.MethodGet, "/api/prices/metrics", "")
	require.Equal(t, http.StatusOK, code)
	var m models.PriceMetrics
	require.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Equal(t, int64(2), m.Requests)

	code, _ = do(t, e, http.MethodPost, "/api/prices/batch", `{"ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLimitOrderEndpoint(t *testing.T) {
	e := newAPIFixture(t).e

	code, env := do(t, e, http.MethodPost, "/api/orders/limit", `{"instrument_id":"zn","side":"SELL","quantity":2}`)
	require.Equal(t, http.StatusCreated, code)
	var spec models.LimitOrderSpec
	require.NoError(t, json.Unmarshal(env.Data, &spec))
	assert.Less(t, spec.LimitPrice, 110.0)
	assert.Equal(t, models.AdjustMidpoint, spec.Adjustment)

	code, _ = do(t, e, http.MethodPost, "/api/orders/limit", `{"instrument_id":"zn","side":"HOLD","quantity":2}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, e, http.MethodPost, "/api/orders/limit", `{"instrument_id":"nope","side":"BUY","quantity":2}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestExecuteEndpoint(t *testing.T) {
	e := newAPIFixture(t).e

	body := `{"engine":"core","instrument_id":"zn","side":"BUY","quantity":1,
		"proposed_positions":[{"sleeve":"core_index_rv","value":100000}],
		"nav":1000000,"current_nav":1000000}`
	code, env := do(t, e, http.MethodPost, "/api/execute", body)
	require.Equal(t, http.StatusOK, code)
	var d models.ExecutionDecision
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.True(t, d.CanTrade)
	require.NotNil(t, d.Order)
	assert.Greater(t, d.Order.LimitPrice, 110.0)
}

func TestRiskEndpoints(t *testing.T) {
	e := newAPIFixture(t).e

	code, env := do(t, e, http.MethodPost, "/api/risk/check",
		`{"engine":"core","proposed_positions":[{"sleeve":"core_index_rv","value":600000}],"nav":1000000,"current_nav":1000000}`)
	require.Equal(t, http.StatusOK, code)
	var res models.PreTradeResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.CanTrade)
	assert.NotEmpty(t, res.Issues)

	code, env = do(t, e, http.MethodPost, "/api/risk/engines/core/disable", `{"reason":"desk review"}`)
	require.Equal(t, http.StatusOK, code)
	var st models.EngineState
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, models.KillSwitchDisabled, st.State)
	assert.Equal(t, "desk review", st.HaltReason)

	code, env = do(t, e, http.MethodGet, "/api/risk/status", "")
	require.Equal(t, http.StatusOK, code)
	var status models.RiskStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	require.Len(t, status.Engines, 1)
	assert.Equal(t, models.KillSwitchDisabled, status.Engines[0].State)

	code, env = do(t, e, http.MethodPost, "/api/risk/engines/core/enable", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, models.KillSwitchActive, st.State)

	code, _ = do(t, e, http.MethodPost, "/api/risk/engines/ghost/disable", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestValidateSpreadEndpoint(t *testing.T) {
	e := newAPIFixture(t).e

	code, env := do(t, e, http.MethodPost, "/api/risk/dv01/validate",
		`{"long":{"instrument":"ZN","quantity":27},"short":{"instrument":"ZB","quantity":13}}`)
	require.Equal(t, http.StatusOK, code)
	var v models.SpreadValidation
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.True(t, v.Valid)
	assert.InDelta(t, 27*65.0, v.LongExposure, 1e-9)

	code, _ = do(t, e, http.MethodPost, "/api/risk/dv01/validate", `{"long":{"instrument":"ZN","quantity":0},"short":{"instrument":"ZB","quantity":13}}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCacheEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.cache.Set("zn", models.PriceResult{Price: 110.1, Tier: models.TierRealtime, Source: "broker_realtime", Timestamp: f.clock.Now()})

	code, env := do(t, f.e, http.MethodGet, "/api/prices/cache", "")
	require.Equal(t, http.StatusOK, code)
	var view cacheView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Entries, 1)
	assert.Equal(t, 110.1, view.Entries[0].Price)
	assert.Equal(t, 1, view.Metrics.Size)

	code, env = do(t, f.e, http.MethodPost, "/api/prices/cache/cleanup?max_age=1h", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"removed":0}`, string(env.Data))

	f.clock.Advance(2 * time.Hour)
	code, env = do(t, f.e, http.MethodPost, "/api/prices/cache/cleanup?max_age=1h", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"removed":1}`, string(env.Data))
}
