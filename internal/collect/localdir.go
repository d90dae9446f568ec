package collect

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"archaeologist/internal/safeio"
	"archaeologist/internal/types"
)

// DefaultExts are the file extensions LocalDir reads when Exts is empty.
var DefaultExts = []string{".py", ".md", ".txt", ".cfg", ".ini", ".toml", ".yaml", ".yml", ".json"}

const defaultMaxFileBytes = 512 * 1024

// LocalDir reads text files under Root. Files are returned sorted by their
// slash-separated relative path. Binary and oversized files are skipped.
type LocalDir struct {
	Root         string
	Exts         []string
	MaxFileBytes int64
	Parallel     int
}

func (l LocalDir) Collect(ctx context.Context, _ string) ([]types.SourceFile, error) {
	root := strings.TrimSpace(l.Root)
	if root == "" {
		return nil, fmt.Errorf("root is required")
	}
	fsys, err := safeio.New(root)
	if err != nil {
		return nil, err
	}
	paths, err := l.walk(fsys.Root())
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrNoFiles)
	}

	out := make([]types.SourceFile, len(paths))
	keep := make([]bool, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, l.Parallel))
	for i, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := fsys.ReadFile(filepath.FromSlash(rel))
			if err != nil {
				return fmt.Errorf("read %s: %w", rel, err)
			}
			if !utf8.Valid(b) {
				return nil
			}
			out[i] = types.SourceFile{Name: rel, Content: string(b)}
			keep[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := out[:0]
	for i, f := range out {
		if keep[i] {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrNoFiles)
	}
	return files, nil
}

// walk returns matching relative paths in lexical order.
func (l LocalDir) walk(root string) ([]string, error) {
	exts := l.Exts
	if len(exts) == 0 {
		exts = DefaultExts
	}
	limit := l.MaxFileBytes
	if limit <= 0 {
		limit = defaultMaxFileBytes
	}
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		// Skip VCS & dependency dirs
		if d.IsDir() {
			switch d.Name() {
			case ".git", ".hg", ".svn", "node_modules", "vendor", "__pycache__", ".venv", "venv", ".tox", "build", "dist":
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !hasExt(path, exts) {
			return nil
		}
		if fi, e := d.Info(); e != nil || fi.Size() > limit {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	return out, err
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	base := strings.ToLower(filepath.Base(path))
	for _, e := range exts {
		e = strings.ToLower(e)
		if ext == e || base == e {
			return true
		}
	}
	return false
}
