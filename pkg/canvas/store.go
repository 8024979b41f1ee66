package canvas

import (
	"image"
	"sync"
)

// Default canvas dimensions.
const (
	DefaultWidth  = 1000
	DefaultHeight = 1000
)

// Size limits. MaxSide fits every supported raster format; MaxPixels bounds
// the grid at 768 MiB.
const (
	MaxSide   = 1<<16 - 1
	MaxPixels = 1 << 28
)

// Store owns the authoritative canvas. All access goes through a single
// mutex that is held for one pixel write or one full copy, never across I/O.
type Store struct {
	mu  sync.Mutex
	img *Image
}

// NewStore creates an all-white canvas of the given size.
func NewStore(width, height uint32) *Store {
	return &Store{img: NewImage(int(width), int(height))}
}

// Width returns the canvas width.
func (s *Store) Width() uint32 {
	return uint32(s.img.width)
}

// Height returns the canvas height.
func (s *Store) Height() uint32 {
	return uint32(s.img.height)
}

// Bounds returns the canvas rectangle.
func (s *Store) Bounds() image.Rectangle {
	return s.img.Bounds()
}

// Snapshot returns a copy of the current canvas. The copy is made under the
// lock; callers may encode it at leisure.
func (s *Store) Snapshot() *Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img.Clone()
}

// Set applies a single pixel write. Writes outside the grid are dropped
// silently and Set reports false; the caller decides whether to broadcast.
func (s *Store) Set(p Pixel) bool {
	if p.X >= s.Width() || p.Y >= s.Height() {
		return false
	}
	s.mu.Lock()
	s.img.SetRGB(int(p.X), int(p.Y), p.Color)
	s.mu.Unlock()
	return true
}

// At returns the color at (x, y). Out of range coordinates yield the zero Color.
func (s *Store) At(x, y uint32) Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img.RGBAt(int(x), int(y))
}

// LoadFrom copies the region shared by src and the canvas onto the canvas.
// Pixels outside the overlap keep their current value. Source alpha is
// ignored and the stored RGB is kept as is.
func (s *Store) LoadFrom(src image.Image) {
	if src == nil {
		return
	}
	sb := src.Bounds()
	w := min(s.img.width, sb.Dx())
	h := min(s.img.height, sb.Dy())
	if w <= 0 || h <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if nrgba, ok := src.(*image.NRGBA); ok {
		for y := 0; y < h; y++ {
			off := nrgba.PixOffset(sb.Min.X, sb.Min.Y+y)
			row := nrgba.Pix[off : off+w*4]
			for x := 0; x < w; x++ {
				s.img.SetRGB(x, y, Color{R: row[x*4], G: row[x*4+1], B: row[x*4+2]})
			}
		}
		return
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s.img.SetRGB(x, y, ColorFrom(src.At(sb.Min.X+x, sb.Min.Y+y)))
		}
	}
}
