package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vango-dev/place/internal/config"
	placeerrors "github.com/vango-dev/place/internal/errors"
	"github.com/vango-dev/place/pkg/snapshot"
)

func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot [path]",
		Short: "Describe a saved canvas",
		Long: `Describe a saved canvas: its format, dimensions, size and age, and
any archived copies next to it.

Without a path the configured --save-location is used.

Examples:
  place snapshot
  place snapshot /var/lib/place/place.png`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := config.Load(cmd.Flags())
				if err != nil {
					return err
				}
				path = cfg.SaveLocation
			}
			return describeSnapshot(cmd, path)
		},
	}
}

func describeSnapshot(cmd *cobra.Command, path string) error {
	file, err := snapshot.NewFile(path)
	if err != nil {
		return placeerrors.New(placeerrors.CodeUnsupportedFormat).Wrap(err)
	}
	exists, err := file.Stat()
	if err != nil {
		return placeerrors.New(placeerrors.CodeNotRegularFile).Wrap(err)
	}
	if !exists {
		return placeerrors.New(placeerrors.CodeRestoreFailed).
			WithDetailf("No snapshot exists at %s.", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return placeerrors.New(placeerrors.CodeRestoreFailed).Wrap(err)
	}
	img, err := file.Load(cmd.Context())
	if err != nil {
		return placeerrors.New(placeerrors.CodeRestoreFailed).Wrap(err)
	}
	archives, err := snapshot.Archives(path)
	if err != nil {
		return placeerrors.New(placeerrors.CodeRestoreFailed).Wrap(err)
	}

	printSnapshot(cmd.OutOrStdout(), snapshotInfo{
		path:     path,
		format:   file.Codec().Name,
		width:    img.Bounds().Dx(),
		height:   img.Bounds().Dy(),
		size:     uint64(info.Size()),
		modified: info.ModTime(),
		archives: archives,
	})
	return nil
}

type snapshotInfo struct {
	path     string
	format   string
	width    int
	height   int
	size     uint64
	modified time.Time
	archives []snapshot.Archive
}

func printSnapshot(w io.Writer, s snapshotInfo) {
	fmt.Fprintf(w, "  Path:       %s\n", s.path)
	fmt.Fprintf(w, "  Format:     %s\n", s.format)
	fmt.Fprintf(w, "  Dimensions: %dx%d (%s pixels)\n", s.width, s.height, humanize.Comma(int64(s.width*s.height)))
	fmt.Fprintf(w, "  Size:       %s\n", humanize.Bytes(s.size))
	fmt.Fprintf(w, "  Modified:   %s\n", humanize.Time(s.modified))
	fmt.Fprintf(w, "  Archives:   %d\n", len(s.archives))
	for _, a := range s.archives {
		fmt.Fprintf(w, "    %s  %s\n", a.Path, humanize.Time(a.Taken))
	}
}
