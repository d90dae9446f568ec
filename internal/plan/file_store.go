package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"archaeologist/internal/types"
	"archaeologist/internal/util/jsonutil"
)

// FileStore keeps every record in one JSON array on disk. The file is read
// once on first use and rewritten in full on every Put through a rename, so
// a crash never leaves a truncated file behind.
type FileStore struct {
	path string

	loadOnce sync.Once
	loadErr  error

	mu   sync.RWMutex
	byID map[string]types.PlanRecord
}

func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return &FileStore{path: path, byID: map[string]types.PlanRecord{}}, nil
}

func (s *FileStore) ensureLoaded() error {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		if err != nil {
			s.loadErr = err
			return
		}
		if len(strings.TrimSpace(string(b))) == 0 {
			return
		}
		var rows []types.PlanRecord
		if err := json.Unmarshal(b, &rows); err != nil {
			s.loadErr = fmt.Errorf("decode %s: %w", s.path, err)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, row := range rows {
			if id := strings.TrimSpace(row.ID); id != "" {
				s.byID[id] = row
			}
		}
	})
	return s.loadErr
}

func (s *FileStore) Put(_ context.Context, rec types.PlanRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.byID[rec.ID]
	s.byID[rec.ID] = rec
	if err := s.flushLocked(); err != nil {
		if had {
			s.byID[rec.ID] = prev
		} else {
			delete(s.byID, rec.ID)
		}
		return err
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, id string) (types.PlanRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.PlanRecord{}, fmt.Errorf("id is required")
	}
	if err := s.ensureLoaded(); err != nil {
		return types.PlanRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return types.PlanRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *FileStore) List(_ context.Context, repo string) ([]types.PlanRecord, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.PlanRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		if repo != "" && rec.Repo != repo {
			continue
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (s *FileStore) flushLocked() error {
	rows := make([]types.PlanRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		rows = append(rows, rec)
	}
	sortRecords(rows)
	b, err := jsonutil.MarshalNoEscapeIndent(rows)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
