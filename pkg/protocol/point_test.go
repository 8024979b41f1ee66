package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vango-dev/place/pkg/canvas"
)

func TestEncodePoint_Layout(t *testing.T) {
	p := canvas.Pixel{X: 1, Y: 1, Color: canvas.Color{R: 255, G: 0, B: 0}}
	got := EncodePoint(p)
	want := []byte{0, 0, 0, 1, 0, 0, 0, 1, 255, 0, 0}
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodePoint() = %v, want %v", got, want)
	}
	if len(got) != PointSize {
		t.Fatalf("len = %d, want %d", len(got), PointSize)
	}
}

func TestEncodePoint_LargeCoordinates(t *testing.T) {
	p := canvas.Pixel{X: 0xDEADBEEF, Y: 0x00010203, Color: canvas.Color{R: 1, G: 2, B: 3}}
	got := EncodePoint(p)
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01, 0x02, 0x03, 1, 2, 3}
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodePoint() = %x, want %x", got, want)
	}
}

func TestPointRoundTrip(t *testing.T) {
	tests := []canvas.Pixel{
		{},
		{X: 1, Y: 1, Color: canvas.Color{R: 255}},
		{X: 999, Y: 0, Color: canvas.Color{G: 128, B: 64}},
		{X: ^uint32(0), Y: ^uint32(0), Color: canvas.White},
	}
	for _, p := range tests {
		got, err := DecodePoint(EncodePoint(p))
		if err != nil {
			t.Fatalf("DecodePoint(EncodePoint(%+v)) error: %v", p, err)
		}
		if got != p {
			t.Errorf("round trip = %+v, want %+v", got, p)
		}
	}
}

func TestDecodePoint_RejectsWrongSizes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrBufferTooShort},
		{"one byte", []byte{1}, ErrBufferTooShort},
		{"ten bytes", make([]byte, 10), ErrBufferTooShort},
		{"twelve bytes", make([]byte, 12), ErrTrailingBytes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePoint(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("DecodePoint(%d bytes) error = %v, want %v", len(tt.data), err, tt.want)
			}
		})
	}
}

func TestEncodePointTo_Appends(t *testing.T) {
	e := NewEncoder(2 * PointSize)
	EncodePointTo(e, canvas.Pixel{X: 1})
	EncodePointTo(e, canvas.Pixel{X: 2})
	if e.Len() != 2*PointSize {
		t.Fatalf("Len() = %d, want %d", e.Len(), 2*PointSize)
	}
	d := NewDecoder(e.Bytes())
	for _, want := range []uint32{1, 2} {
		p, err := DecodePointFrom(d)
		if err != nil {
			t.Fatalf("DecodePointFrom error: %v", err)
		}
		if p.X != want {
			t.Errorf("X = %d, want %d", p.X, want)
		}
	}
}
