package analysis

import (
	"context"
	"encoding/json"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"

	"archaeologist/internal/types"
)

// ReportCache remembers validated reports by prompt hash so an unchanged
// codebase is not sent to the model twice.
type ReportCache interface {
	Get(ctx context.Context, key string) (*types.AnalysisReport, bool)
	Add(ctx context.Context, key string, rep *types.AnalysisReport)
}

type memoryCache struct {
	lru *lru.Cache[string, *types.AnalysisReport]
}

// NewMemoryCache keeps up to size reports in process memory.
func NewMemoryCache(size int) (ReportCache, error) {
	c, err := lru.New[string, *types.AnalysisReport](size)
	if err != nil {
		return nil, err
	}
	return memoryCache{lru: c}, nil
}

func (c memoryCache) Get(_ context.Context, key string) (*types.AnalysisReport, bool) {
	return c.lru.Get(key)
}

func (c memoryCache) Add(_ context.Context, key string, rep *types.AnalysisReport) {
	c.lru.Add(key, rep)
}

// ByteStore is a persistent key/value store such as the disk cache.
type ByteStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type byteCache struct {
	store ByteStore
	log   *log.Logger
}

// NewByteCache stores reports as JSON in store. Store errors degrade to cache
// misses and are logged.
func NewByteCache(store ByteStore, logger *log.Logger) ReportCache {
	if logger == nil {
		logger = log.Default()
	}
	return byteCache{store: store, log: logger}
}

func (c byteCache) Get(ctx context.Context, key string) (*types.AnalysisReport, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Printf("analysis: report cache read failed: %v", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var rep types.AnalysisReport
	if err := json.Unmarshal(raw, &rep); err != nil {
		c.log.Printf("analysis: dropping undecodable cached report: %v", err)
		_ = c.store.Delete(ctx, key)
		return nil, false
	}
	return &rep, true
}

func (c byteCache) Add(ctx context.Context, key string, rep *types.AnalysisReport) {
	raw, err := json.Marshal(rep)
	if err != nil {
		c.log.Printf("analysis: report cache encode failed: %v", err)
		return
	}
	if err := c.store.Set(ctx, key, raw); err != nil {
		c.log.Printf("analysis: report cache write failed: %v", err)
	}
}
