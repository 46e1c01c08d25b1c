// Package fetcher downloads the artifact package over HTTP.
//
// The stream lands in a temporary file next to the destination while a
// content digest is computed, the received length is verified against the
// declared one, and the result is installed atomically. An interrupted
// download never leaves a partial payload under the canonical name.
package fetcher
