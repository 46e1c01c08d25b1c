package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/chromedriver-publisher/internal/checksum"
	"github.com/oshokin/chromedriver-publisher/internal/config"
	"github.com/oshokin/chromedriver-publisher/internal/logger"
	"github.com/oshokin/chromedriver-publisher/internal/repository/marker"
	"github.com/oshokin/chromedriver-publisher/internal/resolver"
	"github.com/oshokin/chromedriver-publisher/internal/service/fetcher"
	"github.com/oshokin/chromedriver-publisher/internal/service/notifier"
	"github.com/oshokin/chromedriver-publisher/internal/service/publisher"
)

// Outcome is the terminal state of a pipeline run.
type Outcome string

const (
	// OutcomeUpdated means a new release was downloaded and published.
	OutcomeUpdated Outcome = "updated"
	// OutcomeAlreadyUpToDate means the local marker matches the latest release.
	OutcomeAlreadyUpToDate Outcome = "already up to date"
)

// Options are inputs accepted by the pipeline entry point.
type Options struct {
	// Config is the validated run configuration.
	Config *config.Config
}

// releaseResolver yields the latest release for a channel.
type releaseResolver interface {
	Resolve(ctx context.Context, channel string) (*resolver.DownloadTarget, error)
}

// artifactFetcher downloads a release package and returns its digest.
type artifactFetcher interface {
	Fetch(ctx context.Context, url, destination string, onProgress fetcher.ProgressFunc) ([]byte, error)
}

// releasePublisher mirrors the artifact directory into version control.
type releasePublisher interface {
	Publish(ctx context.Context, opts *publisher.Options) error
}

// runner holds the collaborators for a single pipeline execution.
// It is intentionally unexported—call Run(ctx, Options) from callers.
type runner struct {
	cfg           *config.Config
	releases      releaseResolver
	markers       marker.Repository
	artifacts     artifactFetcher
	publications  releasePublisher
	notifications notifier.Notifier
}

// Run executes the pipeline and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) (Outcome, error) {
	ctx = logger.WithName(ctx, "pipeline")

	if err := config.Validate(opts.Config); err != nil {
		return "", err
	}

	r := newRunner(opts.Config)

	outcome, err := r.run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Pipeline run failed", "error", err)
		return "", err
	}

	return outcome, nil
}

// newRunner assembles the default collaborators from the configuration.
func newRunner(cfg *config.Config) *runner {
	var notifications notifier.Notifier = notifier.NewDesktop()
	if cfg.DisableNotifications {
		notifications = notifier.Noop{}
	}

	return &runner{
		cfg:           cfg,
		releases:      resolver.New(cfg.MetadataURL, cfg.Artifact, cfg.Platform, cfg.MetadataTimeout),
		markers:       marker.NewFileRepository(cfg.VersionPath()),
		artifacts:     fetcher.New(cfg.DownloadConnectTimeout),
		publications:  publisher.New(),
		notifications: notifications,
	}
}

// run walks the stages in order: resolve, compare, fetch, persist,
// publish, notify. The first stage error terminates the run.
func (r *runner) run(ctx context.Context) (Outcome, error) {
	logger.InfoKV(ctx, "Checking for a new release", "channel", r.cfg.Channel)

	target, err := r.releases.Resolve(ctx, r.cfg.Channel)
	if err != nil {
		return "", fmt.Errorf("resolve latest release: %w", err)
	}

	logger.InfoKV(ctx, "Latest release found", "version", target.Version)

	current, err := r.loadCurrentVersion(ctx)
	if err != nil {
		return "", err
	}

	if current == target.Version {
		logger.InfoKV(ctx, "Already up to date, nothing to do", "version", current)
		return OutcomeAlreadyUpToDate, nil
	}

	logger.InfoKV(ctx, "New version detected, starting download",
		"current", current, "latest", target.Version)

	if err = r.downloadAndRecord(ctx, target); err != nil {
		return "", err
	}

	if err = r.publish(ctx, target.Version); err != nil {
		return "", err
	}

	r.notify(ctx, target.Version)

	logger.InfoKV(ctx, "Update completed successfully",
		"previous", current, "version", target.Version)

	return OutcomeUpdated, nil
}

// loadCurrentVersion reads the marker; an absent marker means no prior version.
func (r *runner) loadCurrentVersion(ctx context.Context) (string, error) {
	current, err := r.markers.Load(ctx)
	if err != nil {
		if errors.Is(err, marker.ErrNotFound) {
			logger.Info(ctx, "No local version marker, treating as first run")
			return "", nil
		}

		return "", fmt.Errorf("read version marker: %w", err)
	}

	logger.InfoKV(ctx, "Local version marker", "version", current)

	return current, nil
}

// downloadAndRecord fetches the artifact and persists the version marker.
// The marker is written only after the download fully succeeded,
// and before publication (see the package doc for the policy).
func (r *runner) downloadAndRecord(ctx context.Context, target *resolver.DownloadTarget) error {
	digest, err := r.artifacts.Fetch(ctx, target.URL, r.cfg.ArtifactPath(), progressLogger(ctx))
	if err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}

	logger.InfoKV(ctx, "Download completed", "sha256", checksum.Hex(digest))

	if err = r.markers.Save(ctx, target.Version); err != nil {
		return fmt.Errorf("persist version marker: %w", err)
	}

	logger.InfoKV(ctx, "Version marker updated", "version", target.Version)

	return nil
}

// publish mirrors the artifact and marker into the git repository.
func (r *runner) publish(ctx context.Context, version string) error {
	options := &publisher.Options{
		RepoPath:      r.cfg.ArtifactDir,
		Files:         []string{r.cfg.ArtifactFilename, r.cfg.VersionFilename},
		Tag:           "v" + version,
		CommitMessage: fmt.Sprintf("Update ChromeDriver to version %s", version),
	}

	if err := r.publications.Publish(ctx, options); err != nil {
		return fmt.Errorf("publish release: %w", err)
	}

	return nil
}

// notify reports the outcome on the desktop. Failures are logged and
// never change the run result.
func (r *runner) notify(ctx context.Context, version string) {
	message := fmt.Sprintf("Version %s downloaded and published.", version)

	if err := r.notifications.Notify(ctx, "ChromeDriver updated", message); err != nil {
		logger.WarnKV(ctx, "Unable to send notification", "error", err)
	}
}

// bytesPerMiB converts byte counts for progress logging.
const bytesPerMiB = 1 << 20

// progressLogger reports chunk progress at debug level. Unknown totals
// are reported as received bytes, never as a bogus percentage.
func progressLogger(ctx context.Context) fetcher.ProgressFunc {
	return func(received, total int64) {
		if total > 0 {
			percent := float64(received) / float64(total) * 100

			logger.Debugf(ctx, "Downloading: %.2f%% (%.2f MiB / %.2f MiB)",
				percent,
				float64(received)/bytesPerMiB,
				float64(total)/bytesPerMiB)

			return
		}

		logger.Debugf(ctx, "Downloading: %.2f MiB received", float64(received)/bytesPerMiB)
	}
}
