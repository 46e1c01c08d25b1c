package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrNotFound is returned when the metadata has no entry for the
	// requested channel, artifact or platform.
	ErrNotFound = errors.New("no matching download found")
	// ErrMalformed is returned when the metadata payload has an unexpected shape.
	ErrMalformed = errors.New("malformed metadata payload")
	// ErrBadStatus is returned on a non-2xx response from the metadata endpoint.
	ErrBadStatus = errors.New("unexpected http status")
)

// DownloadTarget is the resolved release: an opaque version string and the
// URL of the platform-specific package. Produced once per run, immutable.
type DownloadTarget struct {
	Version string
	URL     string
}

// Resolver fetches release metadata over HTTP.
type Resolver struct {
	// url is the metadata endpoint.
	url string
	// artifact selects the downloads section within a channel.
	artifact string
	// platform selects the download entry within the artifact section.
	platform string
	// client carries the bounded request timeout.
	client *http.Client
}

// payload mirrors the metadata document shape:
// channels -> <name> -> {version, downloads -> <artifact> -> [{platform, url}]}.
type payload struct {
	Channels map[string]struct {
		Version   string `json:"version"`
		Downloads map[string][]struct {
			Platform string `json:"platform"`
			URL      string `json:"url"`
		} `json:"downloads"`
	} `json:"channels"`
}

// New creates a resolver for the provided endpoint, artifact and platform.
func New(url, artifact, platform string, timeout time.Duration) *Resolver {
	return &Resolver{
		url:      url,
		artifact: artifact,
		platform: platform,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Resolve returns the latest release of the channel for the resolver's
// artifact and platform. It performs exactly one request and never retries;
// retrying is the scheduler's job.
func (r *Resolver) Resolve(ctx context.Context, channel string) (*DownloadTarget, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}

	response, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query metadata endpoint: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", r.url, response.Status, ErrBadStatus)
	}

	var doc payload
	if err = json.NewDecoder(response.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode metadata: %w (%w)", ErrMalformed, err)
	}

	release, ok := doc.Channels[channel]
	if !ok {
		return nil, fmt.Errorf("channel %s: %w", channel, ErrNotFound)
	}

	if release.Version == "" {
		return nil, fmt.Errorf("channel %s has no version: %w", channel, ErrMalformed)
	}

	for _, download := range release.Downloads[r.artifact] {
		if download.Platform != r.platform {
			continue
		}

		if download.URL == "" {
			return nil, fmt.Errorf("empty download URL for platform %s: %w", r.platform, ErrMalformed)
		}

		return &DownloadTarget{
			Version: release.Version,
			URL:     download.URL,
		}, nil
	}

	return nil, fmt.Errorf("%s download for platform %s: %w", r.artifact, r.platform, ErrNotFound)
}
