package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vango-dev/place/pkg/canvas"
)

func TestEncoderDecoder(t *testing.T) {
	e := NewEncoder(0)
	e.PutUint8(0x42)
	e.PutUint32(0x12345678)
	e.PutColor(canvas.Color{R: 1, G: 2, B: 3})

	if e.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", e.Len())
	}

	d := NewDecoder(e.Bytes())
	if b, err := d.Uint8(); err != nil || b != 0x42 {
		t.Errorf("Uint8() = %x, %v; want 0x42, nil", b, err)
	}
	if v, err := d.Uint32(); err != nil || v != 0x12345678 {
		t.Errorf("Uint32() = %x, %v; want 0x12345678, nil", v, err)
	}
	if c, err := d.Color(); err != nil || c != (canvas.Color{R: 1, G: 2, B: 3}) {
		t.Errorf("Color() = %v, %v; want {1 2 3}, nil", c, err)
	}
	if !d.Done() {
		t.Errorf("Done() = false with %d bytes remaining", d.Remaining())
	}
}

func TestEncoder_Uint32IsBigEndian(t *testing.T) {
	e := NewEncoder(4)
	e.PutUint32(0x01020304)
	if got, want := e.Bytes(), []byte{0x01, 0x02, 0x03, 0x04}; !bytes.Equal(got, want) {
		t.Fatalf("PutUint32 bytes = %v, want %v", got, want)
	}
}

func TestEncoder_ResetKeepsCapacity(t *testing.T) {
	e := NewEncoder(32)
	e.PutUint32(7)
	e.Reset()
	if e.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", e.Len())
	}
	if cap(e.Bytes()) < 32 {
		t.Errorf("cap after Reset = %d, want at least 32", cap(e.Bytes()))
	}
}

func TestDecoder_ShortReadsConsumeNothing(t *testing.T) {
	d := NewDecoder([]byte{0x01, 0x02})
	if _, err := d.Uint32(); !errors.Is(err, ErrBufferTooShort) {
		t.Errorf("Uint32() on 2 bytes error = %v, want ErrBufferTooShort", err)
	}
	if d.Remaining() != 2 {
		t.Errorf("Remaining() = %d after failed read, want 2", d.Remaining())
	}
	if _, err := d.Color(); !errors.Is(err, ErrBufferTooShort) {
		t.Errorf("Color() on 2 bytes error = %v, want ErrBufferTooShort", err)
	}

	d = NewDecoder(nil)
	if _, err := d.Uint8(); !errors.Is(err, ErrBufferTooShort) {
		t.Errorf("Uint8() on empty error = %v, want ErrBufferTooShort", err)
	}
}
