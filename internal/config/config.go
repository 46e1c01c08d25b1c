package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the parameters of a single publisher run.
type Config struct {
	// ArtifactDir is the local directory holding the artifact, the version
	// marker and the git working tree. Required.
	ArtifactDir string `yaml:"artifact_dir"`
	// MetadataURL is the JSON endpoint listing the latest known good releases.
	MetadataURL string `yaml:"metadata_url"`
	// Channel is the release track to follow.
	Channel string `yaml:"channel"`
	// Platform is the platform identifier to select a download for.
	Platform string `yaml:"platform"`
	// Artifact is the artifact name inside the metadata downloads section.
	Artifact string `yaml:"artifact"`
	// ArtifactFilename is the filename the downloaded package is stored under.
	ArtifactFilename string `yaml:"artifact_file"`
	// VersionFilename is the filename of the version marker.
	VersionFilename string `yaml:"version_file"`
	// MetadataTimeout bounds the whole metadata request.
	MetadataTimeout time.Duration `yaml:"metadata_timeout"`
	// DownloadConnectTimeout bounds establishing the download connection.
	// The streaming body itself carries no deadline.
	DownloadConnectTimeout time.Duration `yaml:"download_connect_timeout"`
	// DisableNotifications turns off desktop notifications.
	DisableNotifications bool `yaml:"disable_notifications"`
}

const (
	// DefaultConfigFilename is the default filename for publisher settings.
	DefaultConfigFilename = "chromedriver-publisher-settings.yaml"

	// DefaultMetadataURL is the Chrome for Testing endpoint listing
	// the last known good versions with download URLs.
	DefaultMetadataURL = "https://googlechromelabs.github.io/chrome-for-testing/last-known-good-versions-with-downloads.json"

	// DefaultChannel is the release track followed by default.
	DefaultChannel = "Stable"

	// DefaultPlatform is the platform the artifact is downloaded for.
	DefaultPlatform = "win64"

	// DefaultArtifact is the artifact name inside the metadata payload.
	DefaultArtifact = "chromedriver"

	// DefaultArtifactFilename is the filename of the downloaded package.
	DefaultArtifactFilename = "chromedriver-win64.zip"

	// DefaultVersionFilename is the filename of the version marker.
	DefaultVersionFilename = "version.txt"

	// DefaultMetadataTimeout is the default deadline for the metadata request.
	DefaultMetadataTimeout = 15 * time.Second

	// DefaultDownloadConnectTimeout is the default deadline for
	// establishing the download connection.
	DefaultDownloadConnectTimeout = 60 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// ArtifactDirEnv is the environment variable overriding ArtifactDir.
	ArtifactDirEnv = "CHROMEDRIVER_PATH"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// ErrArtifactDirRequired is returned when no artifact directory is configured.
	ErrArtifactDirRequired = errors.New("artifact directory must be provided")
)

// Load reads configuration from the provided path, applies the environment
// override and validates essential fields. A missing file at the default
// path is tolerated so the publisher can run from environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultConfigFilename:
		// Environment-only operation.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if dir := os.Getenv(ArtifactDirEnv); dir != "" {
		cfg.ArtifactDir = dir
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults for the rest.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ArtifactDir == "" {
		return ErrArtifactDirRequired
	}

	if cfg.MetadataURL == "" {
		cfg.MetadataURL = DefaultMetadataURL
	}

	if _, err := url.ParseRequestURI(cfg.MetadataURL); err != nil {
		return fmt.Errorf("invalid metadata URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}

	if cfg.Platform == "" {
		cfg.Platform = DefaultPlatform
	}

	if cfg.Artifact == "" {
		cfg.Artifact = DefaultArtifact
	}

	if cfg.ArtifactFilename == "" {
		cfg.ArtifactFilename = DefaultArtifactFilename
	}

	if cfg.VersionFilename == "" {
		cfg.VersionFilename = DefaultVersionFilename
	}

	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = DefaultMetadataTimeout
	}

	if cfg.DownloadConnectTimeout <= 0 {
		cfg.DownloadConnectTimeout = DefaultDownloadConnectTimeout
	}

	return nil
}

// ArtifactPath returns the full path of the downloaded package.
func (c *Config) ArtifactPath() string {
	return filepath.Join(c.ArtifactDir, c.ArtifactFilename)
}

// VersionPath returns the full path of the version marker.
func (c *Config) VersionPath() string {
	return filepath.Join(c.ArtifactDir, c.VersionFilename)
}
