package snapshot

import (
	"context"
	"log/slog"

	"github.com/vango-dev/place/pkg/canvas"
)

// Restore loads the snapshot at f into store.
//
// A missing file leaves the canvas blank. A file that cannot be decoded is
// deleted and the canvas stays blank; this is not an error. A path that
// exists but is not a regular file returns ErrNotRegularFile, which callers
// treat as fatal.
func Restore(ctx context.Context, store *canvas.Store, f *File, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "restore", "path", f.Path())

	exists, err := f.Stat()
	if err != nil {
		return err
	}
	if !exists {
		logger.Info("no previous snapshot, starting blank",
			"width", store.Width(), "height", store.Height())
		return nil
	}

	img, err := f.Load(ctx)
	if err != nil {
		logger.Warn("previous snapshot unreadable, removing it and starting blank", "error", err)
		if rmErr := f.Remove(); rmErr != nil {
			logger.Error("remove unreadable snapshot failed", "error", rmErr)
		}
		return nil
	}

	store.LoadFrom(img)
	b := img.Bounds()
	logger.Info("previous snapshot loaded",
		"snapshot_width", b.Dx(), "snapshot_height", b.Dy(),
		"width", store.Width(), "height", store.Height())
	return nil
}
