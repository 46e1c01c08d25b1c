package integration

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/chromedriver-publisher/internal/config"
	"github.com/oshokin/chromedriver-publisher/internal/service/pipeline"
	"github.com/oshokin/chromedriver-publisher/internal/service/publisher"
)

func requireGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not available")
	}
}

// runGit executes git in dir and fails the test on a non-zero exit.
func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir

	var out, errOut bytes.Buffer

	cmd.Stdout = &out
	cmd.Stderr = &errOut

	require.NoError(t, cmd.Run(), "git %v: %s", args, errOut.String())

	return out.String()
}

// setupRepo creates a bare remote and a working clone with an upstream
// branch, so plain `git push` works from the clone.
func setupRepo(t *testing.T) (remoteDir, workDir string) {
	t.Helper()

	base := t.TempDir()
	remoteDir = filepath.Join(base, "remote.git")
	workDir = filepath.Join(base, "drivers")

	require.NoError(t, os.MkdirAll(remoteDir, 0o755))
	runGit(t, remoteDir, "init", "--bare", "--initial-branch=main")

	runGit(t, base, "clone", remoteDir, workDir)
	runGit(t, workDir, "config", "user.name", "publisher-test")
	runGit(t, workDir, "config", "user.email", "publisher-test@example.com")
	runGit(t, workDir, "commit", "--allow-empty", "-m", "initial commit")
	runGit(t, workDir, "push", "-u", "origin", "HEAD")

	return remoteDir, workDir
}

// metadataServer serves a Chrome for Testing style payload plus the
// artifact body itself.
func metadataServer(t *testing.T, version string, artifact []byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	var ts *httptest.Server

	mux.HandleFunc("/metadata.json", func(w http.ResponseWriter, _ *http.Request) {
		payload := fmt.Sprintf(`{
			"channels": {
				"Stable": {
					"version": %q,
					"downloads": {
						"chromedriver": [
							{"platform": "win64", "url": %q}
						]
					}
				}
			}
		}`, version, ts.URL+"/chromedriver-win64.zip")

		_, _ = w.Write([]byte(payload))
	})

	mux.HandleFunc("/chromedriver-win64.zip", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(artifact)
	})

	ts = httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return ts
}

func testConfig(t *testing.T, workDir, metadataURL string) *config.Config {
	t.Helper()

	cfg := &config.Config{
		ArtifactDir:          workDir,
		MetadataURL:          metadataURL,
		DisableNotifications: true,
	}
	require.NoError(t, config.Validate(cfg))

	return cfg
}

// TestPipeline_EndToEnd runs the whole flow against a real git remote:
// first run downloads, commits, pushes and tags; the second run is a no-op.
func TestPipeline_EndToEnd(t *testing.T) {
	requireGit(t)

	remoteDir, workDir := setupRepo(t)
	artifact := bytes.Repeat([]byte("driver"), 5_000)
	ts := metadataServer(t, "125.0.6422.78", artifact)

	cfg := testConfig(t, workDir, ts.URL+"/metadata.json")

	outcome, err := pipeline.Run(context.Background(), &pipeline.Options{Config: cfg})
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeUpdated, outcome)

	// Artifact and marker landed in the working tree.
	got, err := os.ReadFile(cfg.ArtifactPath())
	require.NoError(t, err)
	require.Equal(t, artifact, got)

	markerContents, err := os.ReadFile(cfg.VersionPath())
	require.NoError(t, err)
	require.Equal(t, "125.0.6422.78", string(markerContents))

	// The remote received the commit and exactly one tag.
	log := runGit(t, remoteDir, "log", "--oneline", "-1")
	require.Contains(t, log, "Update ChromeDriver to version 125.0.6422.78")

	tags := strings.Fields(runGit(t, remoteDir, "tag", "--list"))
	require.Equal(t, []string{"v125.0.6422.78"}, tags)

	// Second run with an unchanged remote is a pure no-op.
	outcome, err = pipeline.Run(context.Background(), &pipeline.Options{Config: cfg})
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeAlreadyUpToDate, outcome)

	tags = strings.Fields(runGit(t, remoteDir, "tag", "--list"))
	require.Equal(t, []string{"v125.0.6422.78"}, tags)
}

// TestPipeline_NewVersionReplacesOld publishes a second release on top of
// the first and verifies both tags exist exactly once.
func TestPipeline_NewVersionReplacesOld(t *testing.T) {
	requireGit(t)

	remoteDir, workDir := setupRepo(t)

	first := metadataServer(t, "125.0.6422.78", []byte("old driver build"))
	cfg := testConfig(t, workDir, first.URL+"/metadata.json")

	_, err := pipeline.Run(context.Background(), &pipeline.Options{Config: cfg})
	require.NoError(t, err)

	second := metadataServer(t, "126.0.0.1", []byte("new driver build"))
	cfg = testConfig(t, workDir, second.URL+"/metadata.json")

	outcome, err := pipeline.Run(context.Background(), &pipeline.Options{Config: cfg})
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeUpdated, outcome)

	got, err := os.ReadFile(cfg.ArtifactPath())
	require.NoError(t, err)
	require.Equal(t, "new driver build", string(got))

	tags := strings.Fields(runGit(t, remoteDir, "tag", "--list"))
	require.ElementsMatch(t, []string{"v125.0.6422.78", "v126.0.0.1"}, tags)
}

// TestPublisher_CleanTreeStillTags: files already committed and unchanged
// produce no new commit, but a missing tag is still created and pushed.
func TestPublisher_CleanTreeStillTags(t *testing.T) {
	requireGit(t)

	remoteDir, workDir := setupRepo(t)

	require.NoError(t, os.WriteFile(filepath.Join(workDir, "chromedriver-win64.zip"), []byte("pkg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "version.txt"), []byte("125.0.6422.78"), 0o644))

	runGit(t, workDir, "add", "chromedriver-win64.zip", "version.txt")
	runGit(t, workDir, "commit", "-m", "Update ChromeDriver to version 125.0.6422.78")
	runGit(t, workDir, "push")

	before := strings.TrimSpace(runGit(t, workDir, "rev-parse", "HEAD"))

	err := publisher.New().Publish(context.Background(), &publisher.Options{
		RepoPath:      workDir,
		Files:         []string{"chromedriver-win64.zip", "version.txt"},
		Tag:           "v125.0.6422.78",
		CommitMessage: "Update ChromeDriver to version 125.0.6422.78",
	})
	require.NoError(t, err)

	// No new commit, but the tag reached the remote.
	after := strings.TrimSpace(runGit(t, workDir, "rev-parse", "HEAD"))
	require.Equal(t, before, after)

	tags := strings.Fields(runGit(t, remoteDir, "tag", "--list"))
	require.Equal(t, []string{"v125.0.6422.78"}, tags)

	// Publishing again with the tag present is an idempotent no-op.
	err = publisher.New().Publish(context.Background(), &publisher.Options{
		RepoPath:      workDir,
		Files:         []string{"chromedriver-win64.zip", "version.txt"},
		Tag:           "v125.0.6422.78",
		CommitMessage: "Update ChromeDriver to version 125.0.6422.78",
	})
	require.NoError(t, err)

	tags = strings.Fields(runGit(t, remoteDir, "tag", "--list"))
	require.Equal(t, []string{"v125.0.6422.78"}, tags)
}
