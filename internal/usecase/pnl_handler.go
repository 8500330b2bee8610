package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ExecGuard/internal/domain/models"
	domrepo "ExecGuard/internal/domain/repository"
	"ExecGuard/internal/services/risk"
	"ExecGuard/pkg/clock"
	pkgkafka "ExecGuard/pkg/kafka"
	"ExecGuard/pkg/logger"
	"ExecGuard/pkg/util"
)

// PnLHandler feeds engine P&L and reconciliation events into the risk discipline.
type PnLHandler struct {
	topic      string
	discipline *risk.Discipline
	metrics    domrepo.Metrics
	clock      clock.Clock
	log        *logger.Logger
}

func NewPnLHandler(topic string, discipline *risk.Discipline, metrics domrepo.Metrics, clk clock.Clock, log *logger.Logger) *PnLHandler {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &PnLHandler{topic: topic, discipline: discipline, metrics: metrics, clock: clk, log: log}
}

func (h *PnLHandler) Topic() string { return h.topic }

// Handle applies one event. Malformed payloads are returned as errors so the consumer can retry or dead-letter them.
func (h *PnLHandler) Handle(_ context.Context, b []byte) error {
	var ev models.PnLEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.recordError("pnl_unmarshal")
		return fmt.Errorf("decode pnl event: %w", err)
	}
	ev.Engine = strings.TrimSpace(ev.Engine)
	if ev.Engine == "" {
		h.recordError("pnl_invalid")
		return fmt.Errorf("pnl event without engine")
	}

	date := h.clock.Now()
	if ev.Date != "" {
		d, ok := util.ParseDate(ev.Date)
		if !ok {
			h.recordError("pnl_invalid")
			return fmt.Errorf("pnl event for %s: bad date %q", ev.Engine, ev.Date)
		}
		date = d
	}

	ks := h.discipline.KillSwitch
	st := ks.RecordDailyResult(ev.Engine, ev.Profitable, ev.PnL)
	if ev.ReconciliationPassed != nil {
		st = ks.RecordReconciliationResult(ev.Engine, *ev.ReconciliationPassed)
	}
	if ev.Drawdown != nil {
		ks.CheckDrawdown(ev.Engine, *ev.Drawdown)
		st, _ = ks.State(ev.Engine)
	}
	h.discipline.Loss.RecordDailyPnL(date, ev.PnL)

	h.log.Debug("pnl event applied",
		logger.String("engine", ev.Engine),
		logger.String("date", date.Format("2006-01-02")),
		logger.Float64("pnl", ev.PnL),
		logger.String("state", string(st.State)),
	)
	return nil
}

func (h *PnLHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*PnLHandler)(nil)
