package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"archaeologist/internal/types"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]types.PlanRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]types.PlanRecord),
	}
}

func (s *MemoryStore) Put(_ context.Context, rec types.PlanRecord) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if err := validateRecord(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.ID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (types.PlanRecord, error) {
	if s == nil {
		return types.PlanRecord{}, fmt.Errorf("store is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return types.PlanRecord{}, fmt.Errorf("id is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[id]
	if !ok {
		return types.PlanRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) List(_ context.Context, repo string) ([]types.PlanRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.PlanRecord, 0, len(s.data))
	for _, rec := range s.data {
		if repo != "" && rec.Repo != repo {
			continue
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func sortRecords(recs []types.PlanRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Timestamp != recs[j].Timestamp {
			return recs[i].Timestamp < recs[j].Timestamp
		}
		return recs[i].ID < recs[j].ID
	})
}
