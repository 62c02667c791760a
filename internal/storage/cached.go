package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"latexcv/internal/models"
	"latexcv/internal/redis"
)

// Cache is the subset of the redis client the cached store uses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedStore reads through a cache in front of another Store. Records are
// immutable, so a cached copy never goes stale.
type CachedStore struct {
	Store
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore(inner Store, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{Store: inner, cache: cache, ttl: ttl, logger: logger}
}

func recordKey(id string) string {
	return "latexcv:record:" + id
}

func (s *CachedStore) Create(ctx context.Context, rec models.ConversionRecord) (string, error) {
	id, err := s.Store.Create(ctx, rec)
	if err != nil {
		return "", err
	}
	rec = normalize(rec)
	rec.ID = id
	s.put(ctx, &rec)
	return id, nil
}

func (s *CachedStore) Get(ctx context.Context, id string) (*models.ConversionRecord, error) {
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	raw, err := s.cache.Get(ctx, recordKey(id))
	switch {
	case err == nil:
		var rec models.ConversionRecord
		jerr := json.Unmarshal(raw, &rec)
		if jerr == nil {
			return &rec, nil
		}
		s.logger.Warn("discarding corrupt cache entry", "doc_id", id, "error", jerr)
	case !errors.Is(err, redis.ErrCacheMiss):
		s.logger.Warn("cache read failed", "doc_id", id, "error", err)
	}

	rec, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.put(ctx, rec)
	return rec, nil
}

func (s *CachedStore) put(ctx context.Context, rec *models.ConversionRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("encode cache entry", "doc_id", rec.ID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, recordKey(rec.ID), raw, s.ttl); err != nil {
		s.logger.Warn("cache write failed", "doc_id", rec.ID, "error", err)
	}
}
