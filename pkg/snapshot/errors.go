package snapshot

import "errors"

// Sentinel errors for snapshot persistence.
var (
	// ErrUnsupportedFormat is returned when the snapshot path has no known raster extension.
	ErrUnsupportedFormat = errors.New("snapshot: unsupported file extension")

	// ErrNotRegularFile is returned when the snapshot path exists but is not a regular file.
	ErrNotRegularFile = errors.New("snapshot: not a regular file")

	// ErrEmptyPath is returned when no snapshot path is configured.
	ErrEmptyPath = errors.New("snapshot: empty path")

	// ErrSchedulerStarted is returned when Start is called twice.
	ErrSchedulerStarted = errors.New("snapshot: scheduler already started")
)
