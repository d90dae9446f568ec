package plan

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"archaeologist/internal/types"
)

type CacheConfig struct {
	RecordTTL        time.Duration
	RecordMaxEntries int

	ListTTL        time.Duration
	ListMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		RecordTTL:        5 * time.Minute,
		RecordMaxEntries: 1024,
		ListTTL:          30 * time.Second,
		ListMaxEntries:   256,
	}
}

type MetricsSnapshot struct {
	RecordHits     uint64
	RecordMisses   uint64
	ListHits       uint64
	ListMisses     uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginReadErr  uint64
	OriginWriteErr uint64
}

type Metrics struct {
	recordHits     atomic.Uint64
	recordMisses   atomic.Uint64
	listHits       atomic.Uint64
	listMisses     atomic.Uint64
	originReads    atomic.Uint64
	originWrites   atomic.Uint64
	originReadErr  atomic.Uint64
	originWriteErr atomic.Uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		RecordHits:     m.recordHits.Load(),
		RecordMisses:   m.recordMisses.Load(),
		ListHits:       m.listHits.Load(),
		ListMisses:     m.listMisses.Load(),
		OriginReads:    m.originReads.Load(),
		OriginWrites:   m.originWrites.Load(),
		OriginReadErr:  m.originReadErr.Load(),
		OriginWriteErr: m.originWriteErr.Load(),
	}
}

// CachedStore is a read-through cache in front of another Store. Writes go to
// the origin first and only then populate the cache.
type CachedStore struct {
	origin Store

	records *expirable.LRU[string, types.PlanRecord]
	lists   *expirable.LRU[string, []types.PlanRecord]
	metrics Metrics
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.RecordTTL <= 0 {
		cfg.RecordTTL = def.RecordTTL
	}
	if cfg.RecordMaxEntries <= 0 {
		cfg.RecordMaxEntries = def.RecordMaxEntries
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.ListMaxEntries <= 0 {
		cfg.ListMaxEntries = def.ListMaxEntries
	}
	return &CachedStore{
		origin:  origin,
		records: expirable.NewLRU[string, types.PlanRecord](cfg.RecordMaxEntries, nil, cfg.RecordTTL),
		lists:   expirable.NewLRU[string, []types.PlanRecord](cfg.ListMaxEntries, nil, cfg.ListTTL),
	}
}

func (s *CachedStore) Put(ctx context.Context, rec types.PlanRecord) error {
	s.metrics.originWrites.Add(1)
	if err := s.origin.Put(ctx, rec); err != nil {
		s.metrics.originWriteErr.Add(1)
		return err
	}
	s.records.Add(strings.TrimSpace(rec.ID), rec)
	s.lists.Remove(rec.Repo)
	s.lists.Remove("")
	return nil
}

func (s *CachedStore) Get(ctx context.Context, id string) (types.PlanRecord, error) {
	id = strings.TrimSpace(id)
	if rec, ok := s.records.Get(id); ok {
		s.metrics.recordHits.Add(1)
		return rec, nil
	}
	s.metrics.recordMisses.Add(1)
	s.metrics.originReads.Add(1)

	rec, err := s.origin.Get(ctx, id)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return types.PlanRecord{}, err
	}
	s.records.Add(id, rec)
	return rec, nil
}

func (s *CachedStore) List(ctx context.Context, repo string) ([]types.PlanRecord, error) {
	if list, ok := s.lists.Get(repo); ok {
		s.metrics.listHits.Add(1)
		return append([]types.PlanRecord(nil), list...), nil
	}
	s.metrics.listMisses.Add(1)
	s.metrics.originReads.Add(1)

	list, err := s.origin.List(ctx, repo)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return nil, err
	}
	copied := append([]types.PlanRecord(nil), list...)
	s.lists.Add(repo, copied)
	return append([]types.PlanRecord(nil), copied...), nil
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.snapshot()
}
