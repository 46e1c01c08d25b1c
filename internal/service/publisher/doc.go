// Package publisher mirrors the artifact directory into its git repository.
//
// A publication is a conditional commit (only when the tracked files
// changed), an unconditional push, and a once-per-version tag. Tag
// creation is idempotent: an existing tag is a no-op, never an error.
// git runs as an external process with an explicit working directory.
package publisher
