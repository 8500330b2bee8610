package repository

import (
	"context"
	"database/sql"
	"fmt"

	"ExecGuard/internal/domain/models"
	"ExecGuard/internal/domain/repository"
)

// DecisionSchema returns the DDL for the audit table.
func DecisionSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.decisions (
	decided_at DateTime64(3),
	decision_id String,
	engine LowCardinality(String),
	instrument_id String,
	symbol String,
	tier LowCardinality(String),
	price Float64,
	confidence Float64,
	side LowCardinality(String),
	quantity Int64,
	limit_price Float64,
	spread_bps Float64,
	can_trade UInt8,
	issues Array(String)
) ENGINE = MergeTree ORDER BY (engine, decided_at)`, database),
	}
}

// ClickHouseAuditStorage implements AuditStorage for ClickHouse.
type ClickHouseAuditStorage struct {
	db    *sql.DB
	table string
}

// NewClickHouseAuditStorage creates ClickHouse audit storage.
func NewClickHouseAuditStorage(db *sql.DB, table string) repository.AuditStorage {
	return &ClickHouseAuditStorage{db: db, table: table}
}

func (s *ClickHouseAuditStorage) StoreDecision(ctx context.Context, d *models.ExecutionDecision) error {
	if d == nil {
		return fmt.Errorf("decision is nil")
	}
	var (
		side       string
		quantity   int64
		limitPrice float64
		spreadBps  float64
	)
	if d.Order != nil {
		side = string(d.Order.Side)
		quantity = d.Order.Quantity
		limitPrice = d.Order.LimitPrice
		spreadBps = d.Order.SpreadBps
	}
	canTrade := uint8(0)
	if d.CanTrade {
		canTrade = 1
	}
	issues := d.Issues
	if issues == nil {
		issues = []string{}
	}

	q := fmt.Sprintf("INSERT INTO %s (decided_at, decision_id, engine, instrument_id, symbol, tier, price, confidence, side, quantity, limit_price, spread_bps, can_trade, issues) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		d.DecidedAt,
		d.DecisionID,
		d.Engine,
		d.Price.InstrumentID,
		d.Price.Symbol,
		string(d.Price.Tier),
		d.Price.Price,
		d.Price.Confidence,
		side,
		quantity,
		limitPrice,
		spreadBps,
		canTrade,
		issues,
	)
	return err
}

func (s *ClickHouseAuditStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseAuditStorage) Close() error {
	return nil // pool owned by pkg/clickhouse
}

// NopAuditStorage drops decisions; used when ClickHouse is disabled.
type NopAuditStorage struct{}

func (NopAuditStorage) StoreDecision(context.Context, *models.ExecutionDecision) error { return nil }
func (NopAuditStorage) Health(context.Context) error                                   { return nil }
func (NopAuditStorage) Close() error                                                   { return nil }
