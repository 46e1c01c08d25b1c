package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/chromedriver-publisher/internal/checksum"
)

const (
	// DefaultChunkSize is how much is read from the stream per iteration.
	DefaultChunkSize = 1 << 20 // 1 MiB

	// artifactPermissions is the file mode of the installed artifact.
	artifactPermissions os.FileMode = 0o644
)

var (
	// ErrIncomplete is returned when the stream ends before the declared length.
	ErrIncomplete = errors.New("download ended before the declared length")
	// ErrBadStatus is returned on a non-2xx response for the download URL.
	ErrBadStatus = errors.New("unexpected http status")
)

// ProgressFunc is invoked synchronously after each chunk.
// total is negative when the server did not declare a length.
type ProgressFunc func(received, total int64)

// Fetcher performs streamed artifact downloads.
type Fetcher struct {
	// client bounds connection establishment only; the streaming body
	// carries no deadline beyond transport-level stalls.
	client *http.Client
	// chunkSize is the read buffer size.
	chunkSize int
}

// New creates a fetcher whose connections must be established within connectTimeout.
func New(connectTimeout time.Duration) *Fetcher {
	dialer := &net.Dialer{
		Timeout: connectTimeout,
	}

	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:       http.ProxyFromEnvironment,
				DialContext: dialer.DialContext,
			},
		},
		chunkSize: DefaultChunkSize,
	}
}

// Fetch downloads url into destination and returns the content digest.
// The payload is streamed chunk by chunk into a temporary file in the
// destination directory and only renamed into place once fully received
// and length-checked, so the canonical name never holds a partial file.
func (f *Fetcher) Fetch(ctx context.Context, url, destination string, onProgress ProgressFunc) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	response, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open download stream: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", url, response.Status, ErrBadStatus)
	}

	tempName, digest, err := f.downloadToTemp(response, destination, onProgress)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = os.Remove(tempName)
	}()

	if err = install(tempName, destination, digest); err != nil {
		return nil, err
	}

	return digest, nil
}

// downloadToTemp streams the response body into a temporary file next to
// the destination, reporting progress and hashing as it goes. On any
// failure the temporary file is removed.
func (f *Fetcher) downloadToTemp(
	response *http.Response,
	destination string,
	onProgress ProgressFunc,
) (string, []byte, error) {
	temp, err := os.CreateTemp(filepath.Dir(destination), filepath.Base(destination)+".download-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temporary download file: %w", err)
	}

	tempName := temp.Name()

	discard := func() {
		_ = temp.Close()
		_ = os.Remove(tempName)
	}

	total := response.ContentLength
	hasher := checksum.Function.New()
	buffer := make([]byte, f.chunkSize)

	var received int64

	for {
		n, readErr := response.Body.Read(buffer)
		if n > 0 {
			if _, writeErr := temp.Write(buffer[:n]); writeErr != nil {
				discard()

				return "", nil, fmt.Errorf("write artifact chunk: %w", writeErr)
			}

			_, _ = hasher.Write(buffer[:n])
			received += int64(n)

			if onProgress != nil {
				onProgress(received, total)
			}
		}

		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			discard()

			return "", nil, fmt.Errorf("read download stream: %w", readErr)
		}
	}

	if total >= 0 && received != total {
		discard()

		return "", nil, fmt.Errorf("%w: received %d of %d bytes", ErrIncomplete, received, total)
	}

	if err = temp.Close(); err != nil {
		_ = os.Remove(tempName)

		return "", nil, fmt.Errorf("close temporary download file: %w", err)
	}

	return tempName, hasher.Sum(nil), nil
}

// install replaces the destination with the fully received payload.
// The digest computed during the download guards the copy, and the swap
// itself is atomic.
func install(tempName, destination string, digest []byte) error {
	payload, err := os.Open(filepath.Clean(tempName))
	if err != nil {
		return fmt.Errorf("open downloaded payload: %w", err)
	}

	defer func() {
		_ = payload.Close()
	}()

	// Apply swaps an existing target aside, so a first-ever download
	// needs an empty file to swap.
	if _, err = os.Stat(destination); errors.Is(err, os.ErrNotExist) {
		var placeholder *os.File

		if placeholder, err = os.Create(destination); err != nil {
			return fmt.Errorf("create artifact placeholder: %w", err)
		}

		if err = placeholder.Close(); err != nil {
			return fmt.Errorf("close artifact placeholder: %w", err)
		}
	}

	options := goupdate.Options{
		TargetPath: destination,
		TargetMode: artifactPermissions,
		Checksum:   digest,
		Hash:       checksum.Function,
	}

	if err = goupdate.Apply(payload, options); err != nil {
		return fmt.Errorf("install artifact: %w", err)
	}

	oldName := destination + ".old"
	if _, err = os.Stat(oldName); err == nil {
		_ = os.Remove(oldName)
	}

	return nil
}
