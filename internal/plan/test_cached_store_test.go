package plan

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"archaeologist/internal/types"
)

type fakeOriginStore struct {
	mu sync.Mutex

	data map[string]types.PlanRecord

	getCalls  int
	putCalls  int
	listCalls int

	failPut bool
}

func newFakeOriginStore() *fakeOriginStore {
	return &fakeOriginStore{data: map[string]types.PlanRecord{}}
}

func (s *fakeOriginStore) Put(_ context.Context, rec types.PlanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	if s.failPut {
		return fmt.Errorf("put failed")
	}
	s.data[rec.ID] = rec
	return nil
}

func (s *fakeOriginStore) Get(_ context.Context, id string) (types.PlanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	rec, ok := s.data[id]
	if !ok {
		return types.PlanRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *fakeOriginStore) List(_ context.Context, repo string) ([]types.PlanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	out := make([]types.PlanRecord, 0, 8)
	for _, rec := range s.data {
		if repo == "" || rec.Repo == repo {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func rec(id, repo string) types.PlanRecord {
	return types.PlanRecord{ID: id, Repo: repo, Title: "t-" + id, Timestamp: "2025-01-01T00:00:00Z"}
}

func TestCachedStoreReadThroughAndMetrics(t *testing.T) {
	origin := newFakeOriginStore()
	origin.data["p1"] = rec("p1", "repo")
	store := NewCachedStore(origin, CacheConfig{
		RecordTTL: time.Minute, RecordMaxEntries: 8,
		ListTTL: time.Minute, ListMaxEntries: 8,
	})

	got1, err := store.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("first get failed: %v", err)
	}
	got2, err := store.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if got1 != got2 || got1.Title != "t-p1" {
		t.Fatalf("unexpected records: %+v %+v", got1, got2)
	}
	if origin.getCalls != 1 {
		t.Fatalf("expected one origin get call, got %d", origin.getCalls)
	}
	m := store.Metrics()
	if m.RecordHits != 1 || m.RecordMisses != 1 || m.OriginReads != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestCachedStoreWriteThrough(t *testing.T) {
	origin := newFakeOriginStore()
	store := NewCachedStore(origin, DefaultCacheConfig())

	if err := store.Put(context.Background(), rec("p1", "repo")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if _, err := store.Get(context.Background(), "p1"); err != nil {
		t.Fatalf("get after put failed: %v", err)
	}
	if origin.getCalls != 0 {
		t.Fatalf("expected cached read after put, got %d origin gets", origin.getCalls)
	}

	origin.failPut = true
	if err := store.Put(context.Background(), rec("p2", "repo")); err == nil {
		t.Fatalf("expected put error")
	}
	if _, err := store.Get(context.Background(), "p2"); err == nil {
		t.Fatalf("expected cache/origin miss for failed write")
	}
	if m := store.Metrics(); m.OriginWriteErr != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestCachedStoreTTLAndLRU(t *testing.T) {
	origin := newFakeOriginStore()
	origin.data["a"] = rec("a", "repo")
	origin.data["b"] = rec("b", "repo")

	store := NewCachedStore(origin, CacheConfig{
		RecordTTL: time.Minute, RecordMaxEntries: 1,
		ListTTL: time.Minute, ListMaxEntries: 8,
	})
	for _, id := range []string{"a", "b", "a"} {
		if _, err := store.Get(context.Background(), id); err != nil {
			t.Fatalf("get %s failed: %v", id, err)
		}
	}
	// LRU size 1, so a is evicted by b and hits origin again.
	if origin.getCalls != 3 {
		t.Fatalf("expected 3 origin get calls with LRU eviction, got %d", origin.getCalls)
	}

	origin.getCalls = 0
	store2 := NewCachedStore(origin, CacheConfig{
		RecordTTL: 10 * time.Millisecond, RecordMaxEntries: 8,
		ListTTL: time.Minute, ListMaxEntries: 8,
	})
	if _, err := store2.Get(context.Background(), "a"); err != nil {
		t.Fatalf("ttl get first failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := store2.Get(context.Background(), "a"); err != nil {
		t.Fatalf("ttl get second failed: %v", err)
	}
	if origin.getCalls != 2 {
		t.Fatalf("expected 2 origin reads after ttl expiry, got %d", origin.getCalls)
	}
}

func TestCachedStoreListInvalidatedByPut(t *testing.T) {
	origin := newFakeOriginStore()
	origin.data["p1"] = rec("p1", "repo")
	store := NewCachedStore(origin, DefaultCacheConfig())

	l1, err := store.List(context.Background(), "repo")
	if err != nil {
		t.Fatalf("list1 failed: %v", err)
	}
	l2, err := store.List(context.Background(), "repo")
	if err != nil {
		t.Fatalf("list2 failed: %v", err)
	}
	if !reflect.DeepEqual(l1, l2) {
		t.Fatalf("list mismatch: %#v %#v", l1, l2)
	}
	if origin.listCalls != 1 {
		t.Fatalf("expected one origin list call, got %d", origin.listCalls)
	}

	if err := store.Put(context.Background(), rec("p2", "repo")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	l3, err := store.List(context.Background(), "repo")
	if err != nil {
		t.Fatalf("list3 failed: %v", err)
	}
	if len(l3) != 2 || origin.listCalls != 2 {
		t.Fatalf("expected refreshed list of 2, got %d (origin calls %d)", len(l3), origin.listCalls)
	}
}
