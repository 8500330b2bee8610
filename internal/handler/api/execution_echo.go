package api

import (
	"strings"

	models "ExecGuard/internal/domain/models"
	"ExecGuard/internal/services/orders"
	"ExecGuard/internal/services/pricing"
	"ExecGuard/internal/services/risk"
	"ExecGuard/internal/usecase"
	xhttp "ExecGuard/pkg/http"
	xlogger "ExecGuard/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ExecutionEchoHandler exposes pricing, order generation and risk controls to operators.
type ExecutionEchoHandler struct {
	logger     *xlogger.Logger
	resolver   *pricing.Resolver
	cache      *pricing.PriceCache
	generator  *orders.Generator
	discipline *risk.Discipline
	gate       *usecase.ExecutionGate
}

func NewExecutionEchoHandler(
	logger *xlogger.Logger,
	resolver *pricing.Resolver,
	cache *pricing.PriceCache,
	generator *orders.Generator,
	discipline *risk.Discipline,
	gate *usecase.ExecutionGate,
) *ExecutionEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &ExecutionEchoHandler{
		logger:     logger,
		resolver:   resolver,
		cache:      cache,
		generator:  generator,
		discipline: discipline,
		gate:       gate,
	}
}

func (h *ExecutionEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/prices/metrics", h.PriceMetrics)
	g.GET("/prices/cache", h.CacheSnapshot)
	g.POST("/prices/cache/cleanup", h.CacheCleanup)
	g.GET("/prices/:id", h.Price)
	g.POST("/prices/batch", h.PriceBatch)
	g.POST("/orders/limit", h.LimitOrder)
	g.POST("/execute", h.Execute)
	g.POST("/risk/check", h.RiskCheck)
	g.GET("/risk/status", h.RiskStatus)
	g.POST("/risk/engines/:engine/enable", h.EnableEngine)
	g.POST("/risk/engines/:engine/disable", h.DisableEngine)
	g.POST("/risk/dv01/validate", h.ValidateSpread)
}

// Price resolves one reference price. A failed resolution is still a 200 with tier "failed".
func (h *ExecutionEchoHandler) Price(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("instrument id is required"))
	}
	res := h.resolver.GetReferencePrice(c.Request().Context(), id, c.QueryParam("symbol"), 0)
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, res)
}

func (h *ExecutionEchoHandler) PriceBatch(c echo.Context) error {
	req := &models.BatchPriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.resolver.GetReferencePricesBatch(c.Request().Context(), req.IDs))
}

func (h *ExecutionEchoHandler) PriceMetrics(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.resolver.Metrics())
}

type cacheView struct {
	Metrics models.CacheMetrics  `json:"metrics"`
	Entries []models.CachedPrice `json:"entries"`
}

func (h *ExecutionEchoHandler) CacheSnapshot(c echo.Context) error {
	if h.cache == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("price cache is not configured"))
	}
	return xhttp.SuccessResponse(c, cacheView{Metrics: h.cache.Metrics(), Entries: h.cache.Snapshot()})
}

// CacheCleanup drops entries older than ?max_age (default: the cache TTL).
func (h *ExecutionEchoHandler) CacheCleanup(c echo.Context) error {
	if h.cache == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("price cache is not configured"))
	}
	removed := h.cache.CleanupExpired(xhttp.QueryDuration(c, "max_age", 0))
	h.logger.Info("price cache cleanup", xlogger.Int("removed", removed))
	return xhttp.SuccessResponse(c, map[string]int{"removed": removed})
}

func (h *ExecutionEchoHandler) LimitOrder(c echo.Context) error {
	req := &models.LimitOrderRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	price := h.resolver.GetReferencePrice(c.Request().Context(), req.InstrumentID, req.Symbol, 0)
	spec := h.generator.Generate(req.InstrumentID, req.Side, req.Quantity, &price, req.Adjustment)
	if spec == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnprocessableError("ERR_ORDER_REJECTED", "no limit order could be generated").
			WithParam("tier", string(price.Tier)).
			WithParam("price_error", price.Error))
	}
	return xhttp.CreatedResponse(c, spec)
}

func (h *ExecutionEchoHandler) Execute(c echo.Context) error {
	req := &models.ExecutionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.gate.Execute(c.Request().Context(), *req))
}

func (h *ExecutionEchoHandler) RiskCheck(c echo.Context) error {
	req := &models.RiskCheckRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.discipline.PreTradeCheck(req.Engine, req.ProposedPositions, req.NAV, req.CurrentNAV))
}

func (h *ExecutionEchoHandler) RiskStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.discipline.Status())
}

func (h *ExecutionEchoHandler) EnableEngine(c echo.Context) error {
	engine := c.Param("engine")
	h.discipline.KillSwitch.EnableEngine(engine)
	h.logger.Info("engine enabled by operator", xlogger.String("engine", engine), xlogger.String("remote", c.RealIP()))
	st, _ := h.discipline.KillSwitch.State(engine)
	return xhttp.SuccessResponse(c, st)
}

func (h *ExecutionEchoHandler) DisableEngine(c echo.Context) error {
	req := &models.EngineToggleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	engine := c.Param("engine")
	if _, ok := h.discipline.KillSwitch.State(engine); !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("engine %q is not registered", engine))
	}
	h.discipline.KillSwitch.DisableEngine(engine, req.Reason)
	st, _ := h.discipline.KillSwitch.State(engine)
	return xhttp.SuccessResponse(c, st)
}

func (h *ExecutionEchoHandler) ValidateSpread(c echo.Context) error {
	req := &models.SpreadValidationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.discipline.DV01.ValidateSpread(req.Long, req.Short))
}
