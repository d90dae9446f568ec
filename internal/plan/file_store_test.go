package plan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archaeologist/internal/types"
)

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "plans.json")

	s1, err := NewFileStore(path)
	require.NoError(t, err)
	recs := []types.PlanRecord{
		{ID: "refactor_b", Repo: "r1", Title: "B", Timestamp: "2025-01-02T00:00:00Z"},
		{ID: "refactor_a", Repo: "r1", Title: "A", Timestamp: "2025-01-01T00:00:00Z"},
		{ID: "refactor_c", Repo: "r2", Title: "C", Timestamp: "2025-01-03T00:00:00Z"},
	}
	for _, r := range recs {
		require.NoError(t, s1.Put(ctx, r))
	}

	s2, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := s2.Get(ctx, "refactor_c")
	require.NoError(t, err)
	assert.Equal(t, recs[2], got)

	list, err := s2.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "refactor_a", list[0].ID)
	assert.Equal(t, "refactor_b", list[1].ID)

	all, err := s2.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = s2.Get(ctx, "refactor_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_Errors(t *testing.T) {
	ctx := context.Background()
	_, err := NewFileStore(" ")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "plans.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = s.List(ctx, "")
	require.Error(t, err)
	err = s.Put(ctx, types.PlanRecord{ID: "refactor_x", Repo: "r"})
	require.Error(t, err)

	ok, err := NewFileStore(filepath.Join(t.TempDir(), "p.json"))
	require.NoError(t, err)
	assert.Error(t, ok.Put(ctx, types.PlanRecord{ID: "refactor_x"}), "repo is required")
}

func TestFileStore_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	s, err := NewFileStore(path)
	require.NoError(t, err)
	list, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list)
}
