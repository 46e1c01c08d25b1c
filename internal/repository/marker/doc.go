// Package marker implements persistence for the last published version.
//
// The FileRepository stores the version as trimmed UTF-8 text on disk and
// replaces it atomically, so a crash mid-write never leaves a truncated
// marker behind. It exposes a Repository interface that the pipeline
// depends on.
package marker
