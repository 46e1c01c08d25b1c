// Package resolver queries the release metadata endpoint and extracts the
// latest version and platform-specific download URL for a channel.
//
// Versions are opaque strings compared only for equality; the resolver
// never parses or orders them.
package resolver
