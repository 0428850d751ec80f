package fileexport

import "fmt"

var mrleDescriptor = Descriptor{
	ID:                "mrle",
	FourCC:            fourCC("mrle"),
	AVICompressionTag: fourCC("mrle"),
	UsesInterframes:   true,
}

// mrleCodec is the always-present built-in video codec: a byte-oriented
// run-length encoder over the paletted framebuffer, in the spirit of
// Microsoft RLE8 (run markers, an end-of-line marker, an end-of-bitmap
// marker) without claiming bit-for-bit compatibility with that format —
// spec.md §1 explicitly leaves a codec's compression algorithm
// unspecified by the core.
type mrleCodec struct {
	width, height int
	left, top     int
}

func newMRLECodec() VideoCodec { return &mrleCodec{} }

func (c *mrleCodec) Init(width, height, left, top int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("mrle: invalid dimensions %dx%d: %w", width, height, ErrCodec)
	}
	c.width, c.height, c.left, c.top = width, height, left, top
	// Worst case: every run is length 1 (2 bytes/pixel), plus a 2-byte
	// end-of-line marker per row, plus a 2-byte end-of-bitmap marker.
	return width*height*2 + height*2 + 2, nil
}

// mrleEndOfLine and mrleEndOfBitmap are RLE8-style escape markers: a zero run
// count followed by a marker byte (0 = end of line, 1 = end of bitmap).
var (
	mrleEndOfLine   = [2]byte{0x00, 0x00}
	mrleEndOfBitmap = [2]byte{0x00, 0x01}
)

func (c *mrleCodec) Frame(source []byte, _ bool, out []byte) (int, error) {
	if c.width == 0 {
		return 0, fmt.Errorf("mrle: Frame called before Init: %w", ErrCodec)
	}
	n := 0
	for row := 0; row < c.height; row++ {
		rowStart := (c.top+row)*ScreenWidth + c.left
		x := 0
		for x < c.width {
			value := source[rowStart+x]
			runLen := 1
			for x+runLen < c.width && runLen < 255 && source[rowStart+x+runLen] == value {
				runLen++
			}
			if n+2 > len(out) {
				return 0, fmt.Errorf("mrle: output buffer too small: %w", ErrBufferOverflow)
			}
			out[n] = byte(runLen)
			out[n+1] = value
			n += 2
			x += runLen
		}
		if row < c.height-1 {
			if n+2 > len(out) {
				return 0, fmt.Errorf("mrle: output buffer too small: %w", ErrBufferOverflow)
			}
			copy(out[n:], mrleEndOfLine[:])
			n += 2
		}
	}
	if n+2 > len(out) {
		return 0, fmt.Errorf("mrle: output buffer too small: %w", ErrBufferOverflow)
	}
	copy(out[n:], mrleEndOfBitmap[:])
	n += 2
	return n, nil
}

func (c *mrleCodec) End() error { return nil }
