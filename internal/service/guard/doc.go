// Package guard provides single-flight protection for the artifact
// directory: at most one publisher run may operate on it at a time.
//
// The pipeline itself takes no lock; the CLI acquires the guard before
// invoking it. A marker file in the artifact directory marks a run in
// progress. Stale markers (crashed runs) are reclaimed after checking
// that no publisher process is still alive.
package guard
