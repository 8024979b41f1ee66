package protocol

import (
	"encoding/binary"
	"errors"

	"github.com/vango-dev/place/pkg/canvas"
)

// Decoding errors.
var (
	ErrBufferTooShort = errors.New("protocol: buffer too short")
	ErrTrailingBytes  = errors.New("protocol: trailing bytes after message")
)

// Decoder reads fixed-width big-endian fields from a byte slice. Every read
// that runs past the end returns ErrBufferTooShort and consumes nothing.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder returns a decoder positioned at the start of buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.off
}

// Done reports whether every byte has been read.
func (d *Decoder) Done() bool {
	return d.Remaining() <= 0
}

func (d *Decoder) take(n int) ([]byte, error) {
	if d.Remaining() < n {
		return nil, ErrBufferTooShort
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

// Uint8 reads one byte.
func (d *Decoder) Uint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint32 reads a big-endian uint32.
func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Color reads three bytes as R, G, B.
func (d *Decoder) Color() (canvas.Color, error) {
	b, err := d.take(3)
	if err != nil {
		return canvas.Color{}, err
	}
	return canvas.Color{R: b[0], G: b[1], B: b[2]}, nil
}
