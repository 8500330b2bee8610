package repository

import (
	"context"
	"time"
)

// PriceDocumentVersion is the schema version written to durable stores.
const PriceDocumentVersion = "1.0"

// PriceRecord is one instrument entry of the durable cache document.
type PriceRecord struct {
	Price     float64 `json:"price"`
	Symbol    string  `json:"symbol"`
	Timestamp string  `json:"timestamp"`
	Source    string  `json:"source"`
	Tier      string  `json:"tier"`
	Bid       float64 `json:"bid,omitempty"`
	Ask       float64 `json:"ask,omitempty"`
}

// PriceDocument is the versioned durable form of the price cache.
type PriceDocument struct {
	Prices      map[string]PriceRecord `json:"prices"`
	LastUpdated time.Time              `json:"last_updated"`
	Version     string                 `json:"version"`
}

// PriceStore loads and saves the whole price cache document.
type PriceStore interface {
	Load(ctx context.Context) (*PriceDocument, error)
	Save(ctx context.Context, doc *PriceDocument) error
}
