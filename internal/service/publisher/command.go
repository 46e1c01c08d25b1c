package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/chromedriver-publisher/internal/logger"
)

var (
	// ErrCommit is returned when staging or committing the tracked files fails.
	ErrCommit = errors.New("commit failed")
	// ErrPush is returned when pushing the current branch fails.
	ErrPush = errors.New("push failed")
	// ErrTag is returned when creating or pushing the release tag fails.
	ErrTag = errors.New("tag failed")

	errNoFiles = errors.New("no files to publish")
)

// DefaultRemote is the remote the release tag is pushed to.
const DefaultRemote = "origin"

// Options describe a single publication.
type Options struct {
	// RepoPath is the git working tree (the artifact directory).
	RepoPath string
	// Files are the paths, relative to RepoPath, that belong to the release.
	Files []string
	// Tag is the release tag name.
	Tag string
	// CommitMessage is used when the tracked files changed.
	CommitMessage string
	// Remote is the remote for the tag push. Defaults to DefaultRemote.
	Remote string
}

// Publisher drives the commit/push/tag sequence.
type Publisher struct {
	git Runner
}

// New creates a publisher backed by the git executable.
func New() *Publisher {
	return &Publisher{
		git: gitRunner{},
	}
}

// NewWithRunner creates a publisher with a custom command runner.
func NewWithRunner(git Runner) *Publisher {
	return &Publisher{
		git: git,
	}
}

// Publish reconciles the working tree with history:
//  1. Commit the tracked files, but only if they actually changed.
//  2. Push the current branch unconditionally. A clean tree does not mean
//     the previous run finished its push.
//  3. Create and push the tag unless it already exists.
//
// Failures keep the stage that produced them: ErrCommit, ErrPush, ErrTag.
// A missing git binary surfaces as ErrToolMissing regardless of stage.
func (p *Publisher) Publish(ctx context.Context, opts *Options) error {
	if len(opts.Files) == 0 {
		return errNoFiles
	}

	remote := opts.Remote
	if remote == "" {
		remote = DefaultRemote
	}

	if err := p.commitIfDirty(ctx, opts); err != nil {
		return err
	}

	if _, err := p.git.Run(ctx, opts.RepoPath, "push"); err != nil {
		return classify(ErrPush, err)
	}

	logger.Info(ctx, "Branch pushed")

	return p.tagOnce(ctx, opts, remote)
}

// commitIfDirty stages and commits the tracked files when the working
// tree reports changes for them, and skips the commit otherwise.
func (p *Publisher) commitIfDirty(ctx context.Context, opts *Options) error {
	statusArgs := append([]string{"status", "--porcelain", "--"}, opts.Files...)

	status, err := p.git.Run(ctx, opts.RepoPath, statusArgs...)
	if err != nil {
		return classify(ErrCommit, err)
	}

	if strings.TrimSpace(status) == "" {
		logger.Info(ctx, "No changes detected in tracked files, skipping commit")
		return nil
	}

	logger.InfoKV(ctx, "Changes detected, committing", "files", opts.Files)

	addArgs := append([]string{"add", "--"}, opts.Files...)
	if _, err = p.git.Run(ctx, opts.RepoPath, addArgs...); err != nil {
		return classify(ErrCommit, err)
	}

	if _, err = p.git.Run(ctx, opts.RepoPath, "commit", "-m", opts.CommitMessage); err != nil {
		return classify(ErrCommit, err)
	}

	return nil
}

// tagOnce creates and pushes the release tag unless it already exists.
func (p *Publisher) tagOnce(ctx context.Context, opts *Options, remote string) error {
	tags, err := p.git.Run(ctx, opts.RepoPath, "tag", "--list", opts.Tag)
	if err != nil {
		return classify(ErrTag, err)
	}

	if containsLine(tags, opts.Tag) {
		logger.InfoKV(ctx, "Tag already exists, skipping", "tag", opts.Tag)
		return nil
	}

	logger.InfoKV(ctx, "Creating and pushing tag", "tag", opts.Tag)

	if _, err = p.git.Run(ctx, opts.RepoPath, "tag", opts.Tag); err != nil {
		return classify(ErrTag, err)
	}

	if _, err = p.git.Run(ctx, opts.RepoPath, "push", remote, opts.Tag); err != nil {
		return classify(ErrTag, err)
	}

	return nil
}

// classify wraps a git failure with its stage sentinel,
// keeping ErrToolMissing recognizable on its own.
func classify(stage, err error) error {
	if errors.Is(err, ErrToolMissing) {
		return err
	}

	return fmt.Errorf("%w: %w", stage, err)
}

// containsLine reports whether any line of output equals want.
func containsLine(output, want string) bool {
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == want {
			return true
		}
	}

	return false
}
