package marker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Repository defines persistence operations for the version marker.
type Repository interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, version string) error
}

// FileRepository persists the version marker to a text file on disk.
type FileRepository struct {
	// path is the filesystem location of the marker file.
	path string
	// mu protects concurrent access to the marker file.
	mu sync.Mutex
}

// ErrNotFound is returned when the marker file does not exist yet.
var ErrNotFound = errors.New("version marker not found")

// markerPermissions is the file mode of the persisted marker.
const markerPermissions = 0o644

// NewFileRepository creates a repository that reads/writes the marker at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the marker from disk. Any non-empty trimmed content is
// accepted as a version; no format validation is applied.
func (r *FileRepository) Load(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("read version marker: %w", err)
	}

	return strings.TrimSpace(string(contents)), nil
}

// Save replaces the marker atomically: the new value is written to a
// temporary file in the same directory, synced and renamed into place.
// A crash at any point leaves either the old marker or the new one,
// never a partial write.
func (r *FileRepository) Save(_ context.Context, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Dir(r.path)

	temp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary marker: %w", err)
	}

	tempName := temp.Name()

	if err = writeAndSync(temp, version); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempName)

		return err
	}

	if err = temp.Close(); err != nil {
		_ = os.Remove(tempName)

		return fmt.Errorf("close temporary marker: %w", err)
	}

	if err = os.Chmod(tempName, markerPermissions); err != nil {
		_ = os.Remove(tempName)

		return fmt.Errorf("chmod temporary marker: %w", err)
	}

	if err = os.Rename(tempName, r.path); err != nil {
		_ = os.Remove(tempName)

		return fmt.Errorf("replace version marker: %w", err)
	}

	return nil
}

// writeAndSync writes the version and flushes it to stable storage
// before the rename makes it visible.
func writeAndSync(f *os.File, version string) error {
	if _, err := f.WriteString(version); err != nil {
		return fmt.Errorf("write version marker: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync version marker: %w", err)
	}

	return nil
}
