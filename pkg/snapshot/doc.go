// Package snapshot persists the canvas as a raster image file.
//
// A File owns the canonical snapshot path and picks its codec from the path's
// extension (PNG, BMP or TIFF). Saving optionally archives the previous file
// under a timestamped name first, and may mirror the bytes to an object store
// via S3Mirror.
//
// Restore seeds a canvas.Store from the snapshot at startup, and a Scheduler
// writes the canvas back on a fixed interval or cron expression and once more
// on shutdown via Flush.
package snapshot
