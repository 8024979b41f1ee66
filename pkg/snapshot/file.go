package snapshot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPath is the default snapshot location.
const DefaultPath = "place.png"

const tracerName = "github.com/vango-dev/place/pkg/snapshot"

// Mirror receives a copy of every saved snapshot, e.g. an object store.
type Mirror interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}

// File is the canonical on-disk snapshot.
type File struct {
	path    string
	codec   Codec
	archive bool
	mirror  Mirror
	now     func() time.Time
	logger  *slog.Logger
	tracer  trace.Tracer
}

// FileOption configures a File.
type FileOption func(*File)

// WithArchive keeps every previous snapshot by renaming it to ArchiveName
// before a new one is written. Saves within the same second get "-1", "-2"
// and so on appended to the timestamp.
func WithArchive(enabled bool) FileOption {
	return func(f *File) {
		f.archive = enabled
	}
}

// WithMirror uploads every saved snapshot to m after it is written locally.
func WithMirror(m Mirror) FileOption {
	return func(f *File) {
		f.mirror = m
	}
}

// WithClock overrides the clock used for archive timestamps.
func WithClock(now func() time.Time) FileOption {
	return func(f *File) {
		if now != nil {
			f.now = now
		}
	}
}

// WithFileLogger sets the logger.
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(f *File) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFile returns the snapshot file at path. The codec is chosen from the
// path's extension.
func NewFile(path string, opts ...FileOption) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}
	codec, err := CodecFor(path)
	if err != nil {
		return nil, err
	}
	f := &File{
		path:   path,
		codec:  codec,
		now:    time.Now,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "snapshot", "path", path)
	return f, nil
}

// Path returns the canonical snapshot path.
func (f *File) Path() string { return f.path }

// Codec returns the raster codec used for the file.
func (f *File) Codec() Codec { return f.codec }

// Archiving reports whether previous snapshots are kept.
func (f *File) Archiving() bool { return f.archive }

// Encode writes img in the file's format to a new buffer.
func (f *File) Encode(img image.Image) ([]byte, error) {
	return EncodeWith(f.codec, img)
}

// Save archives the current file when archiving is enabled, then writes img
// to the canonical path. The write goes through a temporary file in the same
// directory and is renamed into place.
func (f *File) Save(ctx context.Context, img image.Image) (err error) {
	ctx, span := f.tracer.Start(ctx, "snapshot.save",
		trace.WithAttributes(
			attribute.String("snapshot.path", f.path),
			attribute.Bool("snapshot.archive", f.archive),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	data, err := f.Encode(img)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("snapshot.bytes", len(data)))

	archived := ""
	if f.archive {
		var aerr error
		archived, aerr = f.archiveCurrent()
		if aerr != nil {
			// The canonical save still runs.
			f.logger.Warn("archive previous snapshot failed", "error", aerr)
		}
	}

	if err := writeFileAtomic(f.path, data); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", f.path, err)
	}

	f.logger.Info("snapshot saved",
		"size", humanize.Bytes(uint64(len(data))),
		"archived_as", archived,
		"duration", time.Since(start).Round(time.Millisecond))

	if f.mirror != nil {
		key := filepath.Base(f.path)
		if err := f.mirror.Put(ctx, key, f.codec.ContentType, data); err != nil {
			f.logger.Warn("snapshot mirror upload failed", "key", key, "error", err)
		}
		if archived != "" {
			f.mirrorArchive(ctx, archived)
		}
	}
	return nil
}

// mirrorArchive uploads the archived copy, which holds the previous snapshot.
func (f *File) mirrorArchive(ctx context.Context, archived string) {
	key := filepath.Base(archived)
	prev, err := os.ReadFile(archived)
	if err == nil {
		err = f.mirror.Put(ctx, key, f.codec.ContentType, prev)
	}
	if err != nil {
		f.logger.Warn("snapshot mirror upload failed", "key", key, "error", err)
	}
}

// archiveCurrent renames the canonical file to its timestamped name. A
// missing canonical file is not an error.
func (f *File) archiveCurrent() (string, error) {
	if _, err := os.Lstat(f.path); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	name, err := freeArchiveName(f.path, f.now())
	if err != nil {
		return "", err
	}
	if err := os.Rename(f.path, name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return name, nil
}

// Load decodes the canonical file.
func (f *File) Load(ctx context.Context) (_ image.Image, err error) {
	_, span := f.tracer.Start(ctx, "snapshot.load",
		trace.WithAttributes(attribute.String("snapshot.path", f.path)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	fh, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	img, err := f.codec.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", f.path, err)
	}
	return img, nil
}

// Stat reports whether the canonical path exists and, if so, whether it is a
// regular file. A path that exists but is not a regular file returns
// ErrNotRegularFile.
func (f *File) Stat() (exists bool, err error) {
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if !info.Mode().IsRegular() {
		return true, fmt.Errorf("%w: %s", ErrNotRegularFile, f.path)
	}
	return true, nil
}

// Remove deletes the canonical file.
func (f *File) Remove() error {
	return os.Remove(f.path)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
