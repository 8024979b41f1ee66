package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/vango-dev/place/pkg/canvas"
)

// Codec encodes and decodes one raster file format.
type Codec struct {
	// Name is a short format name ("png", "bmp", "tiff").
	Name string

	// ContentType is the MIME type served for this format.
	ContentType string

	// Encode writes img to w.
	Encode func(w io.Writer, img image.Image) error

	// Decode reads an image from r.
	Decode func(r io.Reader) (image.Image, error)
}

var (
	pngCodec = Codec{
		Name:        "png",
		ContentType: "image/png",
		Encode: func(w io.Writer, img image.Image) error {
			enc := png.Encoder{CompressionLevel: png.BestSpeed}
			return enc.Encode(w, img)
		},
		Decode: png.Decode,
	}
	bmpCodec = Codec{
		Name:        "bmp",
		ContentType: "image/bmp",
		Encode:      bmp.Encode,
		Decode:      bmp.Decode,
	}
	tiffCodec = Codec{
		Name:        "tiff",
		ContentType: "image/tiff",
		Encode: func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		},
		Decode: tiff.Decode,
	}
)

// codecs maps lower-case file extensions to codecs.
var codecs = map[string]Codec{
	".png":  pngCodec,
	".bmp":  bmpCodec,
	".tif":  tiffCodec,
	".tiff": tiffCodec,
}

// CodecFor returns the codec selected by path's extension.
func CodecFor(path string) (Codec, error) {
	ext := strings.ToLower(filepath.Ext(path))
	c, ok := codecs[ext]
	if !ok {
		return Codec{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, path, strings.Join(SupportedExtensions(), ", "))
	}
	return c, nil
}

// SupportedExtensions lists the accepted snapshot file extensions.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(codecs))
	for ext := range codecs {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// EncodeWith writes img with c to a new buffer. A *canvas.Image is handed
// to the encoder as an *image.RGBA.
func EncodeWith(c Codec, img image.Image) ([]byte, error) {
	if ci, ok := img.(*canvas.Image); ok {
		img = ci.ToRGBA()
	}
	var buf bytes.Buffer
	if err := c.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("snapshot: encode %s: %w", c.Name, err)
	}
	return buf.Bytes(), nil
}
