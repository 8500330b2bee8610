package repository

import (
	"context"
	"errors"
	"fmt"

	"ExecGuard/internal/domain/repository"
	"ExecGuard/pkg/cache"
)

// KVStore keeps the price cache document under a single key of a cache.Service (Redis in production).
type KVStore struct {
	kv  cache.Service
	key string
}

// NewKVStore creates a key/value backed price store.
func NewKVStore(kv cache.Service, key string) *KVStore {
	return &KVStore{kv: kv, key: key}
}

func (s *KVStore) Load(ctx context.Context) (*repository.PriceDocument, error) {
	var doc repository.PriceDocument
	if err := s.kv.Get(ctx, s.key, &doc); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return emptyDocument(), nil
		}
		return nil, fmt.Errorf("load price cache: %w", err)
	}
	if doc.Prices == nil {
		doc.Prices = make(map[string]repository.PriceRecord)
	}
	return &doc, nil
}

// Save stores the document without expiry; entry TTLs are enforced by the price cache.
func (s *KVStore) Save(ctx context.Context, doc *repository.PriceDocument) error {
	if err := s.kv.Set(ctx, s.key, doc, 0); err != nil {
		return fmt.Errorf("save price cache: %w", err)
	}
	return nil
}

// NopStore never persists anything.
type NopStore struct{}

func (NopStore) Load(context.Context) (*repository.PriceDocument, error) { return emptyDocument(), nil }

func (NopStore) Save(context.Context, *repository.PriceDocument) error { return nil }
