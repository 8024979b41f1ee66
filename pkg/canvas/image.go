package canvas

import (
	"image"
	"image/color"
)

// Color is a 3-channel RGB color.
type Color struct {
	R, G, B uint8
}

// White is the color every canvas starts with.
var White = Color{R: 255, G: 255, B: 255}

// RGBA implements color.Color. The canvas has no alpha channel, so colors
// are always fully opaque.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}.RGBA()
}

// ColorFrom converts any color.Color to a canvas Color. Alpha is dropped
// without premultiplying, so a transparent pixel keeps its stored RGB.
func ColorFrom(c color.Color) Color {
	switch cc := c.(type) {
	case Color:
		return cc
	case color.NRGBA64:
		return Color{R: uint8(cc.R >> 8), G: uint8(cc.G >> 8), B: uint8(cc.B >> 8)}
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{R: n.R, G: n.G, B: n.B}
}

// Pixel is a single pixel write: grid coordinates plus a color.
type Pixel struct {
	X, Y  uint32
	Color Color
}

// Image is a fixed-size RGB raster, 3 bytes per pixel in row-major order.
// It implements image.Image so it can be handed directly to the raster
// encoders.
type Image struct {
	width  int
	height int
	pix    []uint8
}

// NewImage creates an all-white image of the given size.
func NewImage(width, height int) *Image {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	img := &Image{
		width:  width,
		height: height,
		pix:    make([]uint8, width*height*3),
	}
	img.Fill(White)
	return img
}

// Width returns the image width in pixels.
func (m *Image) Width() int { return m.width }

// Height returns the image height in pixels.
func (m *Image) Height() int { return m.height }

// Pix returns the raw pixel buffer. The slice aliases the image.
func (m *Image) Pix() []uint8 { return m.pix }

// Fill sets every pixel to c.
func (m *Image) Fill(c Color) {
	for i := 0; i < len(m.pix); i += 3 {
		m.pix[i+0] = c.R
		m.pix[i+1] = c.G
		m.pix[i+2] = c.B
	}
}

// InBounds reports whether (x, y) addresses a pixel of the image.
func (m *Image) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.width && y < m.height
}

// RGBAt returns the color at (x, y), or the zero Color when out of range.
func (m *Image) RGBAt(x, y int) Color {
	if !m.InBounds(x, y) {
		return Color{}
	}
	i := (y*m.width + x) * 3
	return Color{R: m.pix[i], G: m.pix[i+1], B: m.pix[i+2]}
}

// SetRGB writes c at (x, y). Out of range writes are ignored.
func (m *Image) SetRGB(x, y int, c Color) {
	if !m.InBounds(x, y) {
		return
	}
	i := (y*m.width + x) * 3
	m.pix[i+0] = c.R
	m.pix[i+1] = c.G
	m.pix[i+2] = c.B
}

// Set implements draw.Image.
func (m *Image) Set(x, y int, c color.Color) {
	m.SetRGB(x, y, ColorFrom(c))
}

// ToRGBA returns an opaque *image.RGBA copy of the image. The raster
// encoders take their row-at-a-time path for *image.RGBA instead of calling
// At for every pixel.
func (m *Image) ToRGBA() *image.RGBA {
	out := image.NewRGBA(m.Bounds())
	for i, j := 0, 0; i < len(m.pix); i, j = i+3, j+4 {
		out.Pix[j+0] = m.pix[i+0]
		out.Pix[j+1] = m.pix[i+1]
		out.Pix[j+2] = m.pix[i+2]
		out.Pix[j+3] = 0xff
	}
	return out
}

// Clone returns a deep copy of the image.
func (m *Image) Clone() *Image {
	clone := &Image{
		width:  m.width,
		height: m.height,
		pix:    make([]uint8, len(m.pix)),
	}
	copy(clone.pix, m.pix)
	return clone
}

// Equal reports whether both images have the same size and pixels.
func (m *Image) Equal(other *Image) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.width != other.width || m.height != other.height {
		return false
	}
	for i := range m.pix {
		if m.pix[i] != other.pix[i] {
			return false
		}
	}
	return true
}

// At implements image.Image.
func (m *Image) At(x, y int) color.Color {
	return m.RGBAt(x, y)
}

// Bounds implements image.Image.
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// ColorModel implements image.Image.
func (m *Image) ColorModel() color.Model {
	return colorModel
}

var colorModel = color.ModelFunc(func(c color.Color) color.Color {
	return ColorFrom(c)
})
