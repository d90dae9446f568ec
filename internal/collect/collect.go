// Package collect acquires the source files of a repository before analysis.
package collect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"archaeologist/internal/safeio"
	"archaeologist/internal/types"
)

// Collector returns the files of sourceID in a stable order.
type Collector interface {
	Collect(ctx context.Context, sourceID string) ([]types.SourceFile, error)
}

// Func adapts a function to Collector.
type Func func(ctx context.Context, sourceID string) ([]types.SourceFile, error)

func (f Func) Collect(ctx context.Context, sourceID string) ([]types.SourceFile, error) {
	return f(ctx, sourceID)
}

var ErrNoFiles = errors.New("no source files collected")

// Auto reads local directories from disk and answers every other source id
// (remote URLs) with Fallback, because cloning is not performed.
//
// When Base is set, local ids are taken relative to Base: absolute paths and
// paths escaping Base fail with safeio.ErrOutsideRoot.
type Auto struct {
	Base     string
	Local    LocalDir
	Fallback Collector
}

func (a Auto) Collect(ctx context.Context, sourceID string) ([]types.SourceFile, error) {
	id := strings.TrimSpace(sourceID)
	if id == "" {
		return nil, errors.New("source id is required")
	}
	dir, err := a.localDir(id)
	if err != nil {
		return nil, err
	}
	if dir != "" {
		local := a.Local
		local.Root = dir
		return local.Collect(ctx, id)
	}
	if a.Fallback == nil {
		return nil, errors.New("no collector for remote source " + id)
	}
	return a.Fallback.Collect(ctx, id)
}

// localDir returns the directory id names, or "" when id is not a local
// directory.
func (a Auto) localDir(id string) (string, error) {
	if strings.TrimSpace(a.Base) == "" {
		if fi, err := os.Stat(id); err == nil && fi.IsDir() {
			return id, nil
		}
		return "", nil
	}
	if filepath.IsAbs(id) || filepath.VolumeName(id) != "" {
		return "", fmt.Errorf("%w: %s", safeio.ErrOutsideRoot, id)
	}
	fsys, err := safeio.New(a.Base)
	if err != nil {
		return "", fmt.Errorf("local source root: %w", err)
	}
	fi, err := fsys.Stat(id)
	switch {
	case errors.Is(err, safeio.ErrOutsideRoot):
		return "", err
	case err != nil || !fi.IsDir():
		return "", nil
	}
	return filepath.Join(fsys.Root(), filepath.Clean(id)), nil
}
