// Package pipeline wires the update flow end to end: resolve the latest
// release, compare it with the local version marker, download and install
// the artifact, persist the marker, publish to git and notify.
//
// The run is strictly sequential and fails fast: any stage error aborts
// the remainder, and nothing is retried within a run — the external
// scheduler retries by invoking the whole process again.
//
// Consistency policy: the version marker is persisted immediately after a
// verified download, before commit and tag. The artifact directory is the
// source of truth and the git repository mirrors it, so a failed publish
// leaves local state ahead of version control until the next release.
package pipeline
