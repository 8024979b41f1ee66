package protocol

import (
	"encoding/binary"

	"github.com/vango-dev/place/pkg/canvas"
)

// Encoder appends fixed-width big-endian fields to a reusable buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an encoder whose buffer starts with room for size bytes.
// A size of zero or less reserves room for one point.
func NewEncoder(size int) *Encoder {
	if size <= 0 {
		size = PointSize
	}
	return &Encoder{buf: make([]byte, 0, size)}
}

// Reset empties the encoder and keeps its buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded bytes. The slice aliases the encoder's buffer
// until the next Reset or Put call.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of encoded bytes.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// PutUint8 appends one byte.
func (e *Encoder) PutUint8(v uint8) {
	e.buf = append(e.buf, v)
}

// PutUint32 appends v in big-endian order.
func (e *Encoder) PutUint32(v uint32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, v)
}

// PutColor appends the three channels of c as R, G, B.
func (e *Encoder) PutColor(c canvas.Color) {
	e.buf = append(e.buf, c.R, c.G, c.B)
}
