package guard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/chromedriver-publisher/internal/logger"
)

// ErrAlreadyRunning is returned when another publisher run holds the marker.
var ErrAlreadyRunning = errors.New("another publisher run is in progress")

const (
	// MarkerFilename marks a run in progress inside the artifact directory.
	MarkerFilename = "chromedriver-publisher-run-marker.bin"

	// markerLifetime is the age after which a marker is considered stale.
	// Downloads can take a while on slow links, so this is generous.
	markerLifetime = 30 * time.Minute

	// basePublisherExecutable is the process name checked before a stale
	// marker is reclaimed.
	basePublisherExecutable = "chromedriver-publisher"
)

// Acquire claims the artifact directory for this run, creating the
// directory when it does not exist yet. It returns a release function
// that removes the marker.
func Acquire(ctx context.Context, dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	markerPath := filepath.Join(dir, MarkerFilename)

	if isRunInProgress(ctx, markerPath) {
		return nil, ErrAlreadyRunning
	}

	marker, err := os.Create(markerPath)
	if err != nil {
		return nil, fmt.Errorf("create run marker: %w", err)
	}

	if err = marker.Close(); err != nil {
		return nil, fmt.Errorf("close run marker: %w", err)
	}

	release := func() {
		if err := os.Remove(markerPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to remove run marker", "error", err)
		}
	}

	return release, nil
}

// isRunInProgress checks the marker and attempts recovery when it looks stale.
func isRunInProgress(ctx context.Context, markerPath string) bool {
	fileInfo, err := os.Stat(markerPath)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	if err != nil {
		logger.Infof(ctx, "Unable to read run marker: %v", err)
		return false
	}

	if time.Since(fileInfo.ModTime()) <= markerLifetime {
		return true
	}

	logger.Info(ctx, "Run marker is stale, checking for a live publisher process")

	if otherPublisherRunning() {
		return true
	}

	if err = os.Remove(markerPath); err != nil {
		return true
	}

	return false
}

// otherPublisherRunning reports whether a publisher process other than
// this one is alive.
func otherPublisherRunning() bool {
	processList, err := ps.Processes()
	if err != nil {
		// Cannot tell, assume the worst.
		return true
	}

	name := publisherExecutable()
	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == name {
			return true
		}
	}

	return false
}

// publisherExecutable returns the platform-specific process name.
func publisherExecutable() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return basePublisherExecutable + ".exe"
	}

	return basePublisherExecutable
}
