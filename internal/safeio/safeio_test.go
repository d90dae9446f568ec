package safeio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_ReadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkg", "a.py"), []byte("x = 1\n"), 0o644))

	fsys, err := New(dir)
	require.NoError(t, err)

	b, err := fsys.ReadFile("pkg/a.py")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(b))

	abs := filepath.Join(fsys.Root(), "pkg", "a.py")
	_, err = fsys.ReadFile(abs)
	require.NoError(t, err, "absolute paths under the root are allowed")

	_, err = fsys.ReadFile("pkg")
	assert.ErrorIs(t, err, ErrIsDir)
}

func TestFS_RejectsEscapes(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("s"), 0o644))

	dir := t.TempDir()
	fsys, err := New(dir)
	require.NoError(t, err)

	_, err = fsys.ReadFile("../secret.txt")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = fsys.ReadFile(secret)
	assert.ErrorIs(t, err, ErrOutsideRoot)

	if err := os.Symlink(secret, filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	_, err = fsys.ReadFile("link.txt")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestNew_Errors(t *testing.T) {
	_, err := New("")
	require.Error(t, err)

	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err = New(f)
	require.Error(t, err)
}
