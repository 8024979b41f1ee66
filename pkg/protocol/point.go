package protocol

import (
	"fmt"

	"github.com/vango-dev/place/pkg/canvas"
)

// PointSize is the exact size of an encoded pixel write.
//
// Wire format (11 bytes, no header, no padding):
//
//	┌───────────────┬───────────────┬─────┬─────┬─────┐
//	│ X (uint32 BE) │ Y (uint32 BE) │  R  │  G  │  B  │
//	│   4 bytes     │   4 bytes     │  1  │  1  │  1  │
//	└───────────────┴───────────────┴─────┴─────┴─────┘
const PointSize = 11

// EncodePoint encodes a pixel write into its 11-byte wire form.
func EncodePoint(p canvas.Pixel) []byte {
	e := NewEncoder(PointSize)
	EncodePointTo(e, p)
	return e.Bytes()
}

// EncodePointTo appends the wire form of p to e.
func EncodePointTo(e *Encoder, p canvas.Pixel) {
	e.PutUint32(p.X)
	e.PutUint32(p.Y)
	e.PutColor(p.Color)
}

// DecodePoint decodes a pixel write. The message must be exactly PointSize
// bytes: short buffers return ErrBufferTooShort and long ones ErrTrailingBytes.
func DecodePoint(data []byte) (canvas.Pixel, error) {
	switch {
	case len(data) < PointSize:
		return canvas.Pixel{}, fmt.Errorf("%w: got %d bytes, want %d", ErrBufferTooShort, len(data), PointSize)
	case len(data) > PointSize:
		return canvas.Pixel{}, fmt.Errorf("%w: got %d bytes, want %d", ErrTrailingBytes, len(data), PointSize)
	}
	return DecodePointFrom(NewDecoder(data))
}

// DecodePointFrom reads the next pixel write from d. Bytes after it are left
// unread.
func DecodePointFrom(d *Decoder) (canvas.Pixel, error) {
	var (
		p   canvas.Pixel
		err error
	)
	if p.X, err = d.Uint32(); err != nil {
		return canvas.Pixel{}, err
	}
	if p.Y, err = d.Uint32(); err != nil {
		return canvas.Pixel{}, err
	}
	if p.Color, err = d.Color(); err != nil {
		return canvas.Pixel{}, err
	}
	return p, nil
}
