package marker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing marker.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "version.txt"))

	v, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, v)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns the version.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo := NewFileRepository(filepath.Join(dir, "version.txt"))

	require.NoError(t, repo.Save(context.Background(), "125.0.6422.78"))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "125.0.6422.78", got)

	// Overwrite with a newer version.
	require.NoError(t, repo.Save(context.Background(), "126.0.0.1"))

	got, err = repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "126.0.0.1", got)
}

// TestFileRepository_Load_Trims ensures surrounding whitespace is stripped.
func TestFileRepository_Load_Trims(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "version.txt")
	require.NoError(t, os.WriteFile(path, []byte("  125.0.6422.78\n"), 0o644))

	got, err := NewFileRepository(path).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "125.0.6422.78", got)
}

// TestFileRepository_Save_LeavesNoTempFiles ensures the temporary file
// used for the atomic replace is gone after a successful save.
func TestFileRepository_Save_LeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo := NewFileRepository(filepath.Join(dir, "version.txt"))

	require.NoError(t, repo.Save(context.Background(), "125.0.6422.78"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "version.txt", entries[0].Name())
}
