// Package disk is a byte cache on the local filesystem with TTL expiry and
// least-recently-used eviction by entry count and total size.
package disk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Dir        string
	MaxEntries int           // default 64
	MaxBytes   int64         // 0: unbounded
	TTL        time.Duration // default 24h
}

type entry struct {
	File       string    `json:"file"`
	Size       int64     `json:"size"`
	ExpiresAt  time.Time `json:"expiresAt"`
	AccessedAt time.Time `json:"accessedAt"`
}

type index struct {
	Entries map[string]entry `json:"entries"`
}

// Store keeps one file per value under <dir>/data and an index.json that
// survives restarts.
type Store struct {
	mu sync.Mutex

	dataDir   string
	indexPath string

	maxEntries int
	maxBytes   int64
	ttl        time.Duration
	now        func() time.Time

	totalBytes int64
	entries    map[string]entry
}

func New(cfg Config) (*Store, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 64
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	s := &Store{
		dataDir:    filepath.Join(dir, "data"),
		indexPath:  filepath.Join(dir, "index.json"),
		maxEntries: cfg.MaxEntries,
		maxBytes:   cfg.MaxBytes,
		ttl:        cfg.TTL,
		now:        time.Now,
		entries:    map[string]entry{},
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return nil, err
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cleanupLocked(s.now()); err != nil {
		return nil, err
	}
	return s, s.persistIndexLocked()
}

// Get returns the value for key and marks it recently used. Expired or
// missing entries report ok=false.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, fmt.Errorf("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ent, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if now.After(ent.ExpiresAt) {
		s.removeLocked(key, ent)
		return nil, false, s.persistIndexLocked()
	}
	raw, err := os.ReadFile(filepath.Join(s.dataDir, ent.File))
	if errors.Is(err, fs.ErrNotExist) {
		s.removeLocked(key, ent)
		return nil, false, s.persistIndexLocked()
	}
	if err != nil {
		return nil, false, err
	}
	ent.AccessedAt = now
	s.entries[key] = ent
	return raw, true, s.persistIndexLocked()
}

// Set stores value under key, then evicts expired and least recently used
// entries until the limits hold.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key is required")
	}
	file := hashedName(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(filepath.Join(s.dataDir, file), value); err != nil {
		return err
	}
	if old, ok := s.entries[key]; ok {
		s.totalBytes -= old.Size
	}
	now := s.now()
	s.entries[key] = entry{
		File:       file,
		Size:       int64(len(value)),
		ExpiresAt:  now.Add(s.ttl),
		AccessedAt: now,
	}
	s.totalBytes += int64(len(value))

	if err := s.cleanupLocked(now); err != nil {
		return err
	}
	return s.persistIndexLocked()
}

func (s *Store) Delete(_ context.Context, key string) error {
	key = strings.TrimSpace(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if ent, ok := s.entries[key]; ok {
		s.removeLocked(key, ent)
		return s.persistIndexLocked()
	}
	return nil
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) loadIndex() error {
	raw, err := os.ReadFile(s.indexPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var idx index
	if err := json.Unmarshal(raw, &idx); err != nil {
		// A corrupt index only loses cached values.
		return nil
	}
	for k, ent := range idx.Entries {
		s.entries[k] = ent
		s.totalBytes += ent.Size
	}
	return nil
}

func (s *Store) cleanupLocked(now time.Time) error {
	for key, ent := range s.entries {
		if now.After(ent.ExpiresAt) {
			s.removeLocked(key, ent)
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dataDir, ent.File)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.removeLocked(key, ent)
				continue
			}
			return err
		}
	}
	for s.overLimitLocked() {
		key, ent, ok := s.oldestLocked()
		if !ok {
			break
		}
		s.removeLocked(key, ent)
	}
	return nil
}

func (s *Store) overLimitLocked() bool {
	if len(s.entries) == 0 {
		return false
	}
	if len(s.entries) > s.maxEntries {
		return true
	}
	return s.maxBytes > 0 && s.totalBytes > s.maxBytes
}

func (s *Store) oldestLocked() (string, entry, bool) {
	if len(s.entries) == 0 {
		return "", entry{}, false
	}
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		li := s.entries[keys[i]].AccessedAt
		lj := s.entries[keys[j]].AccessedAt
		if li.Equal(lj) {
			return keys[i] < keys[j]
		}
		return li.Before(lj)
	})
	return keys[0], s.entries[keys[0]], true
}

func (s *Store) removeLocked(key string, ent entry) {
	delete(s.entries, key)
	s.totalBytes = max(0, s.totalBytes-ent.Size)
	_ = os.Remove(filepath.Join(s.dataDir, ent.File))
}

func (s *Store) persistIndexLocked() error {
	raw, err := json.MarshalIndent(index{Entries: s.entries}, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(s.indexPath, raw)
}

func writeAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func hashedName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + ".bin"
}
