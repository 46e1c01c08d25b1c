package checksum

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFile verifies the streamed digest matches a directly computed one.
func TestFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "artifact.bin")
	body := []byte("driver package contents")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	want := sha256.Sum256(body)

	got, err := File(path)
	require.NoError(t, err)
	require.Equal(t, want[:], got)
	require.Equal(t, 64, len(Hex(got)))
}

// TestFile_Missing ensures a missing file surfaces the underlying error.
func TestFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := File(filepath.Join(t.TempDir(), "absent.bin"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
